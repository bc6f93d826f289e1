package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cmdrvl/lock/pkg/refusal"
	"github.com/cmdrvl/lock/pkg/verifyrun"
	"github.com/cmdrvl/lock/pkg/witness"
)

func newVerifyCmd(state *cliState) *cobra.Command {
	var (
		root      string
		strict    bool
		jsonOut   bool
		noWitness bool
	)

	cmd := &cobra.Command{
		Use:   "verify LOCKFILE",
		Short: "Verify a lockfile against its self-hash and, optionally, the filesystem",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				e := refusal.New(refusal.SchemaVerify, refusal.CodeIO,
					fmt.Sprintf("reading lockfile: %v", err), nil, "")
				state.exitCode = writeRefusal(state.stdout, e)
				return nil
			}

			report, env := verifyrun.Run(raw, verifyrun.Options{
				Root:    root,
				HasRoot: root != "",
				Strict:  strict,
			})
			if env != nil {
				state.exitCode = writeRefusal(state.stdout, *env)
				return nil
			}

			rendered := renderVerifyReport(report, jsonOut) + "\n"
			fmt.Fprint(state.stdout, rendered)

			if !noWitness {
				path := witness.ResolvePath()
				opts := verifyrun.Options{Root: root, HasRoot: root != "", Strict: strict}
				if werr := verifyrun.RecordWitness(path, Version, opts, args[0], report, []byte(rendered)); werr != nil {
					fmt.Fprintf(state.stderr, "warning: witness append failed: %s\n", werr.Error())
				}
			}

			state.exitCode = verifyrun.ExitCode(report.Outcome)
			return nil
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "dataset root directory to verify members against")
	cmd.Flags().BoolVar(&strict, "strict", false, "promote a partial result (any skipped member) to failed")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the JSON report indented instead of compact")
	cmd.Flags().BoolVar(&noWitness, "no-witness", false, "suppress the witness ledger append")

	return cmd
}

// renderVerifyReport always renders the structured report as JSON — the
// --json flag only switches between indented (operator-friendly) and
// compact rendering, since every testable property of a verify run
// (lock_hash.valid, members.verified/failed/skipped) is a field of this
// same report.
func renderVerifyReport(report *verifyrun.Report, indent bool) string {
	var b []byte
	var err error
	if indent {
		b, err = json.MarshalIndent(report, "", "  ")
	} else {
		b, err = json.Marshal(report)
	}
	if err != nil {
		return fmt.Sprintf(`{"outcome":%q}`, report.Outcome)
	}
	return string(b)
}
