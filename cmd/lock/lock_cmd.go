package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cmdrvl/lock/pkg/lockfile"
	"github.com/cmdrvl/lock/pkg/lockrun"
	"github.com/cmdrvl/lock/pkg/refusal"
	"github.com/cmdrvl/lock/pkg/witness"
)

// attachLockCmd wires the lock behavior directly onto the root command:
// `lock [INPUT]` is the default action, not a named subcommand, so any
// positional word that isn't "verify" or "witness" is treated as the
// input path rather than an unknown subcommand.
func attachLockCmd(root *cobra.Command, state *cliState) {
	var (
		datasetID  string
		asOf       string
		note       string
		noWitness  bool
		describe   bool
		schemaFlag bool
		yamlOut    bool
	)

	root.Args = cobra.MaximumNArgs(1)
	root.Flags().StringVar(&datasetID, "dataset-id", "", "operator-supplied dataset identifier")
	root.Flags().StringVar(&asOf, "as-of", "", "operator-supplied as-of annotation")
	root.Flags().StringVar(&note, "note", "", "operator-supplied free-text note")
	root.Flags().BoolVar(&noWitness, "no-witness", false, "suppress the witness ledger append")
	root.Flags().BoolVar(&describe, "describe", false, "print a human-readable description and exit")
	root.Flags().BoolVar(&schemaFlag, "schema", false, "print the lockfile and witness-record JSON schemas and exit")
	root.Flags().BoolVar(&yamlOut, "yaml", false, "render --schema as YAML instead of JSON")

	root.RunE = func(cmd *cobra.Command, args []string) error {
		if describe {
			fmt.Fprintln(state.stdout, lockDescribeText)
			state.exitCode = 0
			return nil
		}
		if schemaFlag {
			fmt.Fprintln(state.stdout, renderSchema(lockfileSchemaJSON, yamlOut))
			fmt.Fprintln(state.stdout, renderSchema(witnessRecordSchemaJSON, yamlOut))
			state.exitCode = 0
			return nil
		}

		raw, err := readInput(args)
		if err != nil {
			state.exitCode = writeRefusal(state.stdout, refusal.New(refusal.SchemaLock, refusal.CodeBadInput,
				fmt.Sprintf("reading input: %v", err), nil, ""))
			return nil
		}

		meta := lockfile.Meta{
			ToolVersion: Version,
			Created:     time.Now().UTC().Format("2006-01-02T15:04:05Z"),
		}
		if datasetID != "" {
			meta.DatasetID = &datasetID
		}
		if asOf != "" {
			meta.AsOf = &asOf
		}
		if note != "" {
			meta.Note = &note
		}

		opts := lockrun.Options{Meta: meta, NoWitness: noWitness, WitnessPath: witness.ResolvePath()}
		result, env, runErr := lockrun.Run(raw, opts)
		if runErr != nil {
			fmt.Fprintf(state.stderr, "internal error: %v\n", runErr)
			state.exitCode = 2
			return nil
		}
		if env != nil {
			state.exitCode = writeRefusal(state.stdout, *env)
			return nil
		}

		// Written without a trailing newline: stdout is exactly the
		// canonical bytes whose digest the witness record stores.
		state.stdout.Write(result.Rendered)
		if result.WitnessWarning != "" {
			fmt.Fprintf(state.stderr, "warning: witness append failed: %s\n", result.WitnessWarning)
		}
		state.exitCode = result.ExitCode
		return nil
	}
}

// renderSchema prints a schema constant as-is, or re-renders it as YAML
// when the operator wants a format closer to ~/.epistemic/config.yaml
// than raw JSON Schema text.
func renderSchema(jsonSchema string, asYAML bool) string {
	if !asYAML {
		return jsonSchema
	}
	var generic interface{}
	if err := json.Unmarshal([]byte(jsonSchema), &generic); err != nil {
		return jsonSchema
	}
	b, err := yaml.Marshal(generic)
	if err != nil {
		return jsonSchema
	}
	return string(b)
}

// readInput reads the lock command's JSONL input: stdin when no
// positional argument is given, otherwise the named file.
func readInput(args []string) ([]byte, error) {
	if len(args) == 0 {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(args[0])
}

// writeRefusal renders and writes a refusal envelope, returning the
// fixed refusal exit code.
func writeRefusal(w io.Writer, env refusal.Envelope) int {
	rendered, err := refusal.Render(env)
	if err != nil {
		fmt.Fprintln(w, `{"outcome":"REFUSAL","refusal":{"code":"E_BAD_INPUT","detail":{},"message":"failed to render refusal","next_command":null},"version":"lock.v0"}`)
		return refusal.ExitCode
	}
	fmt.Fprintln(w, string(rendered))
	return refusal.ExitCode
}

const lockDescribeText = `lock: build a dataset lockfile from a JSONL record stream.

Input (stdin or a file argument): one JSON object per line, each with a
"version" field drawn from {vacuum.v0, hash.v0, fingerprint.v0}. Records
with "_skipped": true are recorded as skipped entries; all others must
supply bytes_hash, size, and a relative_path or path.

Output (stdout): a single canonical-JSON lockfile, self-hashed via its
lock_hash field, or a REFUSAL envelope on invalid input.`
