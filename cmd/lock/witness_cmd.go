package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cmdrvl/lock/pkg/witness"
)

func newWitnessCmd(state *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "witness",
		Short: "Query the hash-chained witness ledger",
	}

	cmd.AddCommand(newWitnessQueryCmd(state))
	cmd.AddCommand(newWitnessLastCmd(state))
	cmd.AddCommand(newWitnessCountCmd(state))

	return cmd
}

func witnessFilterFlags(cmd *cobra.Command, f *witness.Filters) {
	cmd.Flags().StringVar(&f.Tool, "tool", "", "filter by exact tool name")
	cmd.Flags().StringVar(&f.Outcome, "outcome", "", "filter by exact outcome")
	cmd.Flags().StringVar(&f.InputHash, "input-hash", "", "filter by substring match against any input hash")
	cmd.Flags().StringVar(&f.Since, "since", "", "filter to records at or after this RFC 3339 instant")
	cmd.Flags().StringVar(&f.Until, "until", "", "filter to records at or before this RFC 3339 instant")
}

func newWitnessQueryCmd(state *cliState) *cobra.Command {
	var (
		filters witness.Filters
		limit   int
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "List witness records matching filters, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := witness.Query(witness.ResolvePath(), filters, limit)
			if err != nil {
				fmt.Fprintf(state.stderr, "witness query: %v\n", err)
				state.exitCode = 2
				return nil
			}
			fmt.Fprintln(state.stdout, renderWitnessRecords(records, jsonOut))
			if len(records) == 0 {
				state.exitCode = 1
				return nil
			}
			state.exitCode = 0
			return nil
		},
	}

	witnessFilterFlags(cmd, &filters)
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of records to return (0 = unlimited)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output as JSON instead of a table")

	return cmd
}

func newWitnessLastCmd(state *cliState) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "last",
		Short: "Show the single most recent witness record",
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := witness.Last(witness.ResolvePath(), witness.Filters{})
			if err != nil {
				fmt.Fprintf(state.stderr, "witness last: %v\n", err)
				state.exitCode = 2
				return nil
			}
			if rec == nil {
				state.exitCode = 1
				return nil
			}
			fmt.Fprintln(state.stdout, renderWitnessRecords([]witness.Record{*rec}, jsonOut))
			state.exitCode = 0
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "output as JSON instead of a table")
	return cmd
}

func newWitnessCountCmd(state *cliState) *cobra.Command {
	var (
		filters witness.Filters
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "count",
		Short: "Count witness records matching filters",
		RunE: func(cmd *cobra.Command, args []string) error {
			count, err := witness.Count(witness.ResolvePath(), filters)
			if err != nil {
				fmt.Fprintf(state.stderr, "witness count: %v\n", err)
				state.exitCode = 2
				return nil
			}
			if jsonOut {
				b, _ := json.Marshal(map[string]int{"count": count})
				fmt.Fprintln(state.stdout, string(b))
			} else {
				fmt.Fprintln(state.stdout, count)
			}
			state.exitCode = 0
			return nil
		},
	}

	witnessFilterFlags(cmd, &filters)
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output as JSON instead of a plain integer")
	return cmd
}

func renderWitnessRecords(records []witness.Record, jsonOut bool) string {
	if jsonOut {
		b, err := json.Marshal(records)
		if err != nil {
			return "[]"
		}
		return string(b)
	}

	out := ""
	for i, rec := range records {
		if i > 0 {
			out += "\n"
		}
		out += fmt.Sprintf("%s  %s %s  %s (exit %d)",
			rec.TS, rec.Tool, rec.Version, rec.Outcome, rec.ExitCode)
	}
	return out
}
