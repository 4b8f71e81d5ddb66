package cli

import (
	"errors"
	"io"
	"time"

	"github.com/spf13/cobra"
)

type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

type GlobalOptions struct {
	JSON         bool
	ConfigPath   string
	DatabasePath string
	LogLevel     string
	Timeout      time.Duration
}

type commandDeps struct {
	out     io.Writer
	build   BuildInfo
	globals *GlobalOptions
}

func NewRootCommand(out io.Writer, build BuildInfo) *cobra.Command {
	globals := &GlobalOptions{}
	deps := commandDeps{out: out, build: build, globals: globals}

	cmd := &cobra.Command{
		Use:           "journal",
		Short:         "Keep a journal in a local SQLite database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageErrorf("%v", err)
	})

	flags := cmd.PersistentFlags()
	flags.BoolVar(&globals.JSON, "json", false, "Print output as JSON")
	flags.StringVar(&globals.ConfigPath, "config", "", "Path to config.toml")
	flags.StringVar(&globals.DatabasePath, "db", "", "Path to the journal database file")
	flags.StringVar(&globals.LogLevel, "log-level", "", "Log level: trace, debug, info, warn, error")
	flags.DurationVar(&globals.Timeout, "timeout", 10*time.Second, "Timeout for a single command")

	cmd.AddCommand(
		newVersionCommand(deps),
		newAddCommand(deps),
		newListCommand(deps),
		newEditCommand(deps),
		newRemoveCommand(deps),
	)
	return cmd
}

// Execute runs the root command and returns the process exit code.
func Execute(cmd *cobra.Command, errOut io.Writer) int {
	err := cmd.Execute()
	if err == nil {
		return ExitCodeSuccess
	}
	_, _ = io.WriteString(errOut, "journal: "+err.Error()+"\n")

	var withExitCode interface{ ExitCode() int }
	if errors.As(err, &withExitCode) {
		return withExitCode.ExitCode()
	}
	return ExitCodeGeneric
}
