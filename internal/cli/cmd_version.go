package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/amanthanvi/journal/internal/storage/sqlite"
)

// versionReport adds the schema version this binary migrates databases to.
type versionReport struct {
	BuildInfo
	SchemaVersion int `json:"schema_version"`
}

func newVersionCommand(deps commandDeps) *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print build and schema version",
		Example: "  journal version\n" +
			"  journal version --short\n" +
			"  journal --json version",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("version does not accept positional arguments")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			report := versionReport{BuildInfo: deps.build, SchemaVersion: sqlite.CurrentSchemaVersion()}
			switch {
			case deps.globals.JSON:
				return mapCommandError(printJSON(deps.out, report))
			case short:
				_, err := fmt.Fprintln(deps.out, report.Version)
				return mapCommandError(err)
			}
			_, err := fmt.Fprintf(deps.out, "journal %s (commit=%s built=%s schema=v%d)\n",
				report.Version, report.Commit, report.BuildTime, report.SchemaVersion)
			return mapCommandError(err)
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "Print only the version string")
	return cmd
}
