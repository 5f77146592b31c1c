// Package cli assembles the staybook root command.
package cli

import (
	"context"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/staybook/staybook-cli/internal/appctx"
	"github.com/staybook/staybook-cli/internal/commands"
	"github.com/staybook/staybook-cli/internal/completion"
	"github.com/staybook/staybook-cli/internal/config"
	"github.com/staybook/staybook-cli/internal/hostutil"
	"github.com/staybook/staybook-cli/internal/output"
	"github.com/staybook/staybook-cli/internal/resilience"
	"github.com/staybook/staybook-cli/internal/session"
	"github.com/staybook/staybook-cli/internal/tui"
	"github.com/staybook/staybook-cli/internal/version"
)

// NewRootCmd creates the root cobra command.
func NewRootCmd() *cobra.Command {
	var flags appctx.GlobalFlags

	cmd := &cobra.Command{
		Use:           "staybook",
		Short:         "Command-line interface for StayBook",
		Long:          "staybook browses rooms and hotels, manages bookings and reviews, and keeps your StayBook session signed in.",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if skipSetup(cmd) {
				return nil
			}
			// Tests and embedders may install their own app.
			if appctx.FromContext(cmd.Context()) != nil {
				return nil
			}

			app, err := buildApp(cmd, &flags)
			if err != nil {
				return err
			}
			cmd.SetContext(appctx.WithApp(cmd.Context(), app))
			return nil
		},
	}

	cmd.SetVersionTemplate("{{.Name}} " + version.Full() + "\n")

	cmd.Flags().SetInterspersed(true)
	cmd.PersistentFlags().SetInterspersed(true)

	// Output format flags
	pf := cmd.PersistentFlags()
	pf.BoolVarP(&flags.JSON, "json", "j", false, "Output as JSON")
	pf.BoolVar(&flags.YAML, "yaml", false, "Output as YAML")
	pf.BoolVarP(&flags.Quiet, "quiet", "q", false, "Output data only, no envelope")
	pf.BoolVar(&flags.Styled, "styled", false, "Force styled output (ANSI colors)")
	pf.BoolVar(&flags.IDsOnly, "ids-only", false, "Output only IDs")
	pf.BoolVar(&flags.Count, "count", false, "Output only count")
	pf.StringVar(&flags.JQ, "jq", "", "Filter JSON output with a jq expression")

	// Connection flags
	pf.StringVar(&flags.Host, "host", "", "StayBook host (e.g., localhost:8080, api.staybook.vn)")
	pf.StringVar(&flags.BaseURL, "base-url", "", "Full API base URL")
	pf.StringVar(&flags.Profile, "profile", "", "Named config profile (e.g., dev, prod)")
	pf.DurationVar(&flags.Timeout, "timeout", 0, "HTTP request timeout")
	pf.StringVar(&flags.RefreshMode, "refresh-mode", "", "Token refresh mode: "+config.RefreshSingleFlight+" or "+config.RefreshIndependent)
	cmd.MarkFlagsMutuallyExclusive("host", "base-url")

	// Session flags
	pf.BoolVar(&flags.Ephemeral, "ephemeral", false, "Keep the session in memory only")
	pf.BoolVar(&flags.NoKeyring, "no-keyring", false, "Store the session in a file instead of the system keyring")

	// Behavior flags
	pf.CountVarP(&flags.Verbose, "verbose", "v", "Verbose output (-v for operations, -vv for requests)")
	pf.BoolVar(&flags.Stats, "stats", false, "Show session statistics")
	pf.StringVar(&flags.Locale, "locale", "", "Locale for prices and dates (e.g., vi-VN, en-US)")
	pf.BoolVar(&flags.NoInput, "no-input", false, "Never prompt")

	completer := completion.NewCompleter(nil)
	_ = cmd.RegisterFlagCompletionFunc("profile", completer.ProfileCompletion())
	_ = cmd.RegisterFlagCompletionFunc("refresh-mode", cobra.FixedCompletions(
		[]cobra.Completion{config.RefreshSingleFlight, config.RefreshIndependent}, cobra.ShellCompDirectiveNoFileComp))

	return cmd
}

// skipSetup reports commands that run without configuration.
func skipSetup(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "help", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
		return true
	}
	for c := cmd; c != nil; c = c.Parent() {
		if c.Name() == "completion" && c.Parent() != nil && c.Parent().Parent() == nil {
			return cmd.Name() != "refresh" && cmd.Name() != "status"
		}
	}
	return false
}

// buildApp loads configuration and creates the app from the parsed flags.
func buildApp(cmd *cobra.Command, flags *appctx.GlobalFlags) (*appctx.App, error) {
	baseURL := flags.BaseURL
	if flags.Host != "" {
		baseURL = hostutil.BaseURL(flags.Host)
	}
	if baseURL != "" {
		if err := hostutil.RequireSecureURL(baseURL); err != nil {
			return nil, output.ErrUsage(err.Error())
		}
		baseURL = config.NormalizeBaseURL(baseURL)
	}

	overrides := config.FlagOverrides{
		BaseURL:     baseURL,
		Profile:     flags.Profile,
		Timeout:     flags.Timeout,
		RefreshMode: flags.RefreshMode,
		NoKeyring:   flags.NoKeyring,
	}
	if overrides.Profile == "" && baseURL == "" {
		profile, err := resolveProfile(flags)
		if err != nil {
			return nil, err
		}
		overrides.Profile = profile
	}

	cfg, err := config.Load(overrides)
	if err != nil {
		return nil, output.ErrUsage(err.Error())
	}
	resolvePreferences(cmd, cfg, flags)

	guard := resilience.NewGuard(resilience.NewStore(""), hostutil.Origin(cfg.BaseURL), resilience.DefaultConfig())
	opts := []appctx.Option{appctx.WithGuard(guard)}
	if flags.Ephemeral {
		opts = append(opts, appctx.WithStore(session.NewMemoryStore()))
	}
	app, err := appctx.NewApp(cfg, opts...)
	if err != nil {
		return nil, output.ErrUsage(err.Error())
	}
	app.Flags = *flags
	app.ApplyFlags()
	return app, nil
}

// resolvePreferences fills flag values from config when the flag was not
// given explicitly.
func resolvePreferences(cmd *cobra.Command, cfg *config.Config, flags *appctx.GlobalFlags) {
	if f := cmd.Flag("verbose"); cfg.Verbose != nil && (f == nil || !f.Changed) {
		flags.Verbose = *cfg.Verbose
	}
	if flags.Locale == "" {
		flags.Locale = cfg.Locale
	}
}

// resolveProfile picks a profile when several are configured and nothing
// selects one. It returns "" to let config.Load apply its own defaults.
func resolveProfile(flags *appctx.GlobalFlags) (string, error) {
	if os.Getenv("STAYBOOK_PROFILE") != "" || os.Getenv("STAYBOOK_BASE_URL") != "" {
		return "", nil
	}

	cfg, err := config.Load(config.FlagOverrides{})
	if err != nil || cfg.ActiveProfile != "" || len(cfg.Profiles) < 2 {
		return "", nil //nolint:nilerr // the real Load reports config errors
	}
	if !isInteractiveTTY(flags) {
		return "", nil
	}

	names := make([]string, 0, len(cfg.Profiles))
	for name := range cfg.Profiles {
		names = append(names, name)
	}
	slices.Sort(names)

	choices := make([]tui.Choice, len(names))
	for i, name := range names {
		choices[i] = tui.Choice{Value: name, Title: name, Description: cfg.Profiles[name].BaseURL}
	}
	profile, err := tui.Pick("Which StayBook server?", choices)
	if err != nil {
		if tui.IsAborted(err) {
			return "", output.ErrUsageHint("Profile selection canceled", "Use --profile or set default_profile")
		}
		return "", err
	}
	return profile, nil
}

// isInteractiveTTY returns true if both ends are terminals and no
// machine-output mode is set.
func isInteractiveTTY(flags *appctx.GlobalFlags) bool {
	if flags.NoInput || flags.JSON || flags.YAML || flags.Quiet || flags.IDsOnly || flags.Count || flags.JQ != "" {
		return false
	}
	return term.IsTerminal(os.Stdout.Fd()) && term.IsTerminal(os.Stdin.Fd())
}

// AddCommands registers every staybook subcommand on root.
func AddCommands(root *cobra.Command) {
	root.AddCommand(
		commands.NewAuthCmd(),
		commands.NewRoomsCmd(),
		commands.NewHotelsCmd(),
		commands.NewBookingsCmd(),
		commands.NewReviewsCmd(),
		commands.NewConfigCmd(),
		commands.NewDoctorCmd(),
		commands.NewOnboardingCmd(),
		commands.NewVersionCmd(),
		commands.NewCompletionCmd(),
	)
}

// Execute runs the root command and exits with the error's exit code.
func Execute() {
	os.Exit(Run(context.Background(), os.Args[1:]))
}

// Run executes the CLI with args and returns the process exit code.
func Run(ctx context.Context, args []string) int {
	cmd := NewRootCmd()
	AddCommands(cmd)
	cmd.SetArgs(args)

	executedCmd, err := cmd.ExecuteContextC(ctx)
	if err == nil {
		return 0
	}

	err = transformCobraError(err)
	apiErr := output.AsError(err)

	if executedCmd != nil {
		if app := appctx.FromContext(executedCmd.Context()); app != nil {
			_ = app.Err(err)
			return apiErr.ExitCode()
		}
	}

	// The app is not available when setup itself failed.
	pf := cmd.PersistentFlags()
	format := output.FormatAuto
	quiet, _ := pf.GetBool("quiet")
	styled, _ := pf.GetBool("styled")
	yamlFlag, _ := pf.GetBool("yaml")
	jsonFlag, _ := pf.GetBool("json")
	switch {
	case quiet:
		format = output.FormatQuiet
	case jsonFlag:
		format = output.FormatJSON
	case yamlFlag:
		format = output.FormatYAML
	case styled:
		format = output.FormatStyled
	}

	writer := output.New(output.Options{Format: format, Writer: os.Stdout})
	_ = writer.Err(err)
	return apiErr.ExitCode()
}

var (
	shorthandFlagRe = regexp.MustCompile(`unknown shorthand flag: '.' in (-\w)`)
	requiredFlagRe  = regexp.MustCompile(`required flag\(s\) "([\w-]+)" not set`)
	exclusiveFlagRe = regexp.MustCompile(`if any flags in the group \[([\w -]+)\] are set none of the others can be`)
)

// transformCobraError turns cobra's parse errors into usage errors with
// friendlier messages.
func transformCobraError(err error) error {
	msg := err.Error()

	if flag, ok := strings.CutPrefix(msg, "flag needs an argument: "); ok {
		return output.ErrUsage(flag + " requires a value")
	}

	if flag, ok := strings.CutPrefix(msg, "unknown flag: "); ok {
		return output.ErrUsage("Unknown option: " + flag)
	}

	if m := shorthandFlagRe.FindStringSubmatch(msg); len(m) > 1 {
		return output.ErrUsage("Unknown option: " + m[1])
	}

	if strings.HasPrefix(msg, "unknown command ") {
		return output.ErrUsageHint(msg, "Run: staybook --help")
	}

	if strings.Contains(msg, "invalid argument") {
		return output.ErrUsage(msg)
	}

	if strings.Contains(msg, "arg(s), received 0") {
		return output.ErrUsage("ID required")
	}

	if strings.Contains(msg, "arg(s), received") {
		return output.ErrUsage(msg)
	}

	if m := requiredFlagRe.FindStringSubmatch(msg); len(m) > 1 {
		return output.ErrUsage("--" + m[1] + " is required")
	}

	if m := exclusiveFlagRe.FindStringSubmatch(msg); len(m) > 1 {
		return output.ErrUsage("Use only one of --" + strings.Join(strings.Fields(m[1]), ", --"))
	}

	return err
}
