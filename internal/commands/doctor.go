package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/staybook/staybook-cli/internal/appctx"
	"github.com/staybook/staybook-cli/internal/hostutil"
	"github.com/staybook/staybook-cli/internal/output"
	"github.com/staybook/staybook-cli/internal/resilience"
	"github.com/staybook/staybook-cli/internal/session"
	"github.com/staybook/staybook-cli/internal/version"
)

// Check represents a single diagnostic check result.
type Check struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // "pass", "fail", "skip", "warn"
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

// DoctorResult holds the complete diagnostic results.
type DoctorResult struct {
	Checks  []Check `json:"checks"`
	Passed  int     `json:"passed"`
	Failed  int     `json:"failed"`
	Warned  int     `json:"warned"`
	Skipped int     `json:"skipped"`
}

// Summary returns a human-readable summary of the results.
func (r *DoctorResult) Summary() string {
	if r.Failed == 0 && r.Warned == 0 && r.Passed > 0 {
		if r.Skipped > 0 {
			return fmt.Sprintf("All %d checks passed, %d skipped", r.Passed, r.Skipped)
		}
		return fmt.Sprintf("All %d checks passed", r.Passed)
	}
	parts := []string{}
	if r.Passed > 0 {
		parts = append(parts, fmt.Sprintf("%d passed", r.Passed))
	}
	if r.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", r.Failed))
	}
	if r.Warned > 0 {
		parts = append(parts, fmt.Sprintf("%d %s", r.Warned, pluralize(r.Warned, "warning", "warnings")))
	}
	if r.Skipped > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped", r.Skipped))
	}
	return strings.Join(parts, ", ")
}

// NewDoctorCmd creates the doctor command.
func NewDoctorCmd() *cobra.Command {
	var verbose, reset bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check CLI health and diagnose issues",
		Long: `Run diagnostic checks on configuration, the stored session and API connectivity.

Examples:
  staybook doctor              # Run all diagnostic checks
  staybook doctor --json       # Output results as JSON
  staybook doctor --verbose    # Show additional debug information
  staybook doctor --reset      # Forget recorded API failures and rate limits`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}

			if reset && app.Guard != nil {
				if err := app.Guard.Reset(); err != nil {
					return fmt.Errorf("resetting request health: %w", err)
				}
			}

			checks := runDoctorChecks(cmd.Context(), app, verbose)
			result := summarizeChecks(checks)

			if app.Output.EffectiveFormat() == output.FormatStyled {
				renderDoctorStyled(app.Stdout(), result)
				return nil
			}

			opts := []output.ResponseOption{
				output.WithSummary(result.Summary()),
			}
			if breadcrumbs := buildDoctorBreadcrumbs(checks); len(breadcrumbs) > 0 {
				opts = append(opts, output.WithBreadcrumbs(breadcrumbs...))
			}

			return app.OK(result, opts...)
		},
	}

	cmd.Flags().BoolVar(&verbose, "verbose", false, "Show additional debug information")
	cmd.Flags().BoolVar(&reset, "reset", false, "Forget recorded API failures and rate limits first")

	return cmd
}

// runDoctorChecks executes all diagnostic checks.
func runDoctorChecks(ctx context.Context, app *appctx.App, verbose bool) []Check {
	checks := []Check{checkVersion(verbose)}
	if verbose {
		checks = append(checks, checkRuntime())
	}
	checks = append(checks, checkConfigFiles(verbose)...)
	checks = append(checks, checkBaseURL(app))
	checks = append(checks, checkSessionStore(app))

	sessionCheck := checkSession(ctx, app, verbose)
	checks = append(checks, sessionCheck)

	checks = append(checks, checkAPIConnectivity(ctx, app, verbose))
	if app.Guard != nil {
		checks = append(checks, checkRequestHealth(app))
	}

	return checks
}

func checkVersion(verbose bool) Check {
	check := Check{Name: "CLI Version", Status: "pass", Message: version.Version}
	if version.Version == "dev" {
		check.Message = "dev (built from source)"
	}
	if verbose {
		check.Message += fmt.Sprintf(" [commit: %s, date: %s]", version.Commit, version.Date)
	}
	return check
}

func checkRuntime() Check {
	return Check{
		Name:    "Runtime",
		Status:  "pass",
		Message: fmt.Sprintf("Go %s (%s/%s)", runtime.Version(), runtime.GOOS, runtime.GOARCH),
	}
}

// checkConfigFiles validates the global and local config files that exist.
func checkConfigFiles(verbose bool) []Check {
	var checks []Check
	for _, global := range []bool{true, false} {
		path, scope := configTarget(global)
		name := "Config (" + scope + ")"
		if _, err := os.Stat(path); err != nil {
			if global {
				checks = append(checks, Check{
					Name:    name,
					Status:  "pass",
					Message: "Not configured (using defaults)",
				})
			}
			continue
		}
		checks = append(checks, validateConfigFile(path, name, verbose))
	}
	return checks
}

func validateConfigFile(path, name string, verbose bool) Check {
	data, err := os.ReadFile(path) //nolint:gosec // G304: Path is from trusted config location
	if err != nil {
		return Check{
			Name:    name,
			Status:  "fail",
			Message: fmt.Sprintf("Cannot read: %s", path),
			Hint:    fmt.Sprintf("Check file permissions: %v", err),
		}
	}

	var cfg map[string]any
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Check{
			Name:    name,
			Status:  "fail",
			Message: fmt.Sprintf("Invalid JSON: %s", path),
			Hint:    fmt.Sprintf("JSON error: %v", err),
		}
	}

	msg := path
	if verbose {
		msg = fmt.Sprintf("%s (%d keys)", path, len(cfg))
	}
	return Check{Name: name, Status: "pass", Message: msg}
}

func checkBaseURL(app *appctx.App) Check {
	check := Check{Name: "API URL", Status: "pass", Message: app.API.BaseURL()}
	if src := app.Config.Source("base_url"); src != "default" {
		check.Message += " (" + src + ")"
	}
	if err := hostutil.RequireSecureURL(app.API.BaseURL()); err != nil {
		check.Status = "fail"
		check.Hint = err.Error()
	}
	return check
}

func checkSessionStore(app *appctx.App) Check {
	backend := session.BackendName(app.Sessions.Store())
	check := Check{Name: "Session Store", Status: "pass", Message: backend}
	switch app.Sessions.Store().(type) {
	case *session.MemoryStore:
		check.Status = "warn"
		check.Message = "memory (session is not persisted)"
	case *session.FileStore:
		if app.Config.Keyring {
			check.Status = "warn"
			check.Hint = "System keyring unavailable; tokens are stored in a 0600 file"
		}
	}
	return check
}

// checkSession reports whether a session is stored and whether its access
// token is still valid, refreshing it when it has expired.
func checkSession(ctx context.Context, app *appctx.App, verbose bool) Check {
	check := Check{Name: "Session"}

	sess, err := app.Sessions.Load()
	if err != nil {
		check.Status = "fail"
		check.Message = "Cannot read stored session"
		check.Hint = err.Error()
		return check
	}
	if !sess.Authenticated() {
		check.Status = "skip"
		check.Message = "Not signed in"
		check.Hint = "Run: staybook auth login"
		return check
	}

	who := "Signed in"
	if p, err := app.Sessions.Profile(); err == nil && p != nil {
		who += " as " + displayName(*p)
	}

	claims, ok := tokenClaims(sess.AccessToken)
	if !ok || claims.expires.IsZero() {
		check.Status = "pass"
		check.Message = who
		return check
	}

	expiresIn := time.Until(claims.expires)
	switch {
	case expiresIn < 0:
		if sess.RefreshToken == "" {
			check.Status = "fail"
			check.Message = who + ", access token expired"
			check.Hint = "Run: staybook auth login"
			return check
		}
		if err := app.Hotel.Auth().Refresh(ctx); err != nil {
			check.Status = "fail"
			check.Message = "Access token expired and refresh failed"
			check.Hint = "Run: staybook auth login"
			return check
		}
		check.Status = "pass"
		check.Message = who + " (refreshed)"
	case expiresIn < 5*time.Minute:
		check.Status = "warn"
		check.Message = fmt.Sprintf("%s, access token expires in %s", who, expiresIn.Round(time.Second))
		check.Hint = "The token is refreshed automatically on the next request"
	default:
		check.Status = "pass"
		check.Message = who
		if verbose {
			check.Message += fmt.Sprintf(" (expires in %s)", expiresIn.Round(time.Minute))
		}
	}
	return check
}

func checkAPIConnectivity(ctx context.Context, app *appctx.App, verbose bool) Check {
	check := Check{Name: "API Connectivity"}

	health, err := app.API.Ping(ctx)
	if err != nil {
		check.Status = "fail"
		check.Message = "Cannot reach " + hostutil.Origin(app.API.BaseURL())
		check.Hint = fmt.Sprintf("Error: %v", output.AsError(err).Message)
		return check
	}

	check.Status = "pass"
	check.Message = "Server " + health.Status
	if verbose {
		check.Message += fmt.Sprintf(" (%s, %dms)", health.URL, health.LatencyMS)
	}
	return check
}

// checkRequestHealth reports the circuit breaker and Retry-After window
// recorded for the API host by earlier commands.
func checkRequestHealth(app *appctx.App) Check {
	check := Check{Name: "Request Health"}

	st, err := app.Guard.Status()
	if err != nil {
		check.Status = "warn"
		check.Message = "Cannot read request health state"
		check.Hint = err.Error()
		return check
	}

	switch {
	case st.RetryAfter > 0:
		check.Status = "warn"
		check.Message = fmt.Sprintf("Rate limited for %s", st.RetryAfter.Round(time.Second))
		check.Hint = "Wait, or run: staybook doctor --reset"
	case st.Circuit == resilience.CircuitOpen:
		check.Status = "fail"
		check.Message = fmt.Sprintf("Circuit open after %d %s, retrying in %s", st.Failures, pluralize(st.Failures, "failure", "failures"), st.OpenFor.Round(time.Second))
		check.Hint = "Run: staybook doctor --reset"
	case st.Circuit == resilience.CircuitHalfOpen:
		check.Status = "warn"
		check.Message = "Recovering: the next request probes the server"
	default:
		check.Status = "pass"
		check.Message = "No recent failures"
		if st.Failures > 0 {
			check.Message = fmt.Sprintf("%d recent %s", st.Failures, pluralize(st.Failures, "failure", "failures"))
		}
	}
	return check
}

// summarizeChecks counts results by status.
func summarizeChecks(checks []Check) *DoctorResult {
	result := &DoctorResult{Checks: checks}
	for _, c := range checks {
		switch c.Status {
		case "pass":
			result.Passed++
		case "fail":
			result.Failed++
		case "warn":
			result.Warned++
		case "skip":
			result.Skipped++
		}
	}
	return result
}

// buildDoctorBreadcrumbs creates next-step suggestions based on failures.
func buildDoctorBreadcrumbs(checks []Check) []output.Breadcrumb {
	var breadcrumbs []output.Breadcrumb
	seen := make(map[string]bool)
	add := func(b output.Breadcrumb) {
		if !seen[b.Cmd] {
			seen[b.Cmd] = true
			breadcrumbs = append(breadcrumbs, b)
		}
	}

	for _, c := range checks {
		if c.Status != "fail" && c.Status != "skip" {
			continue
		}
		switch {
		case c.Name == "Session":
			add(crumb("login", "staybook auth login", "Sign in"))
		case c.Name == "API Connectivity", c.Name == "API URL", strings.HasPrefix(c.Name, "Config"):
			add(crumb("config", "staybook config show", "Review configuration"))
		}
	}
	return breadcrumbs
}

// pluralize returns singular or plural form based on count.
func pluralize(n int, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}

// renderDoctorStyled outputs a human-friendly styled format for TTY.
func renderDoctorStyled(w io.Writer, result *DoctorResult) {
	r := output.NewRenderer(w, false)

	statusIcon := map[string]string{
		"pass": r.Success.Render("✓"),
		"fail": r.Error.Render("✗"),
		"warn": r.Warning.Render("!"),
		"skip": r.Muted.Render("○"),
	}
	statusMsg := map[string]lipgloss.Style{
		"pass": r.Success,
		"fail": r.Error,
		"warn": r.Warning,
		"skip": r.Muted,
	}
	nameStyle := lipgloss.NewStyle().Bold(true)

	fmt.Fprintln(w)
	fmt.Fprintln(w, r.Summary.Render("StayBook CLI Doctor"))
	fmt.Fprintln(w)

	for _, check := range result.Checks {
		fmt.Fprintf(w, "  %s %s %s\n",
			statusIcon[check.Status],
			nameStyle.Render(check.Name),
			statusMsg[check.Status].Render(check.Message),
		)
		if check.Hint != "" && check.Status != "pass" {
			fmt.Fprintf(w, "      %s\n", r.Hint.Render("↳ "+check.Hint))
		}
	}

	fmt.Fprintln(w)

	var summaryParts []string
	if result.Passed > 0 {
		summaryParts = append(summaryParts, r.Success.Render(fmt.Sprintf("%d passed", result.Passed)))
	}
	if result.Failed > 0 {
		summaryParts = append(summaryParts, r.Error.Render(fmt.Sprintf("%d failed", result.Failed)))
	}
	if result.Warned > 0 {
		summaryParts = append(summaryParts, r.Warning.Render(fmt.Sprintf("%d %s", result.Warned, pluralize(result.Warned, "warning", "warnings"))))
	}
	if result.Skipped > 0 {
		summaryParts = append(summaryParts, r.Muted.Render(fmt.Sprintf("%d skipped", result.Skipped)))
	}

	fmt.Fprintf(w, "  %s\n", strings.Join(summaryParts, "  "))
	fmt.Fprintln(w)
}
