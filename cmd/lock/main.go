package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/cmdrvl/lock/internal/appconfig"
	"github.com/cmdrvl/lock/internal/logging"
)

// Version is this tool's own semver stamp, recorded into tool_versions
// and witness records.
const Version = "0.1.0"

func main() {
	os.Exit(Run(os.Args[1:], os.Stdout, os.Stderr))
}

// Run is the testable entrypoint: it builds the command tree, wires
// stdout/stderr, and returns the process exit code rather than calling
// os.Exit directly.
func Run(args []string, stdout, stderr io.Writer) int {
	cfg, err := appconfig.Load()
	if err != nil {
		cfg = &appconfig.Config{LogLevel: "info", LogFormat: "json"}
	}

	state := &cliState{stdout: stdout, stderr: stderr}

	root := newRootCmd(state, cfg)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		return 2
	}
	return state.exitCode
}

// cliState carries the exit code a subcommand decided on back out to
// Run, since cobra's RunE does not itself return a process exit code.
type cliState struct {
	stdout   io.Writer
	stderr   io.Writer
	exitCode int
}

func newRootCmd(state *cliState, cfg *appconfig.Config) *cobra.Command {
	var logLevel, logFormat string

	root := &cobra.Command{
		Use:           "lock",
		Short:         "Build and verify dataset lockfiles",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := logLevel
			if level == "" {
				level = cfg.LogLevel
			}
			format := logFormat
			if format == "" {
				format = cfg.LogFormat
			}
			logging.Configure(level, format)
		},
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug|info|warn|error)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (json|text)")

	attachLockCmd(root, state)
	root.AddCommand(newVerifyCmd(state))
	root.AddCommand(newWitnessCmd(state))

	return root
}
