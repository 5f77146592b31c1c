package commands

import (
	"github.com/spf13/cobra"

	"github.com/staybook/staybook-cli/internal/output"
	"github.com/staybook/staybook-cli/internal/session"
)

// NewOnboardingCmd creates the onboarding command group. The flag survives
// logout so the welcome tour is shown once per machine.
func NewOnboardingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:    "onboarding",
		Short:  "Show or change the onboarding flag",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnboardingStatus(cmd)
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "Report whether onboarding has been completed",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runOnboardingStatus(cmd)
			},
		},
		&cobra.Command{
			Use:   "done",
			Short: "Mark onboarding as completed",
			RunE: func(cmd *cobra.Command, args []string) error {
				app, err := requireApp(cmd)
				if err != nil {
					return err
				}
				if err := app.Sessions.MarkOnboardingSeen(); err != nil {
					return err
				}
				return app.OK(map[string]bool{"seen": true}, output.WithSummary("Onboarding completed"))
			},
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Show onboarding again on next use",
			RunE: func(cmd *cobra.Command, args []string) error {
				app, err := requireApp(cmd)
				if err != nil {
					return err
				}
				if err := app.Sessions.Store().Remove(session.KeyOnboardingSeen); err != nil {
					return err
				}
				return app.OK(map[string]bool{"seen": false}, output.WithSummary("Onboarding reset"))
			},
		},
	)

	return cmd
}

func runOnboardingStatus(cmd *cobra.Command) error {
	app, err := requireApp(cmd)
	if err != nil {
		return err
	}
	seen, err := app.Sessions.OnboardingSeen()
	if err != nil {
		return err
	}
	summary := "Onboarding not completed"
	if seen {
		summary = "Onboarding completed"
	}
	return app.OK(map[string]bool{"seen": seen}, output.WithSummary(summary))
}
