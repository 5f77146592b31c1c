package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/staybook/staybook-cli/internal/output"
	"github.com/staybook/staybook-cli/internal/version"
)

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}
			if app.Flags.JSON || app.Flags.YAML || app.Flags.JQ != "" {
				return app.OK(version.Info(), output.WithSummary(version.Full()))
			}
			fmt.Fprintln(app.Stdout(), version.Full())
			return nil
		},
	}
}
