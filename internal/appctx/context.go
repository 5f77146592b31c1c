// Package appctx provides application context helpers.
package appctx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/x/term"

	"github.com/staybook/staybook-cli/internal/api"
	"github.com/staybook/staybook-cli/internal/config"
	"github.com/staybook/staybook-cli/internal/format"
	"github.com/staybook/staybook-cli/internal/hostutil"
	"github.com/staybook/staybook-cli/internal/hotel"
	"github.com/staybook/staybook-cli/internal/observability"
	"github.com/staybook/staybook-cli/internal/output"
	"github.com/staybook/staybook-cli/internal/resilience"
	"github.com/staybook/staybook-cli/internal/session"
)

// contextKey is a private type for context keys.
type contextKey string

const appKey contextKey = "app"

// App holds the shared application context for all commands.
type App struct {
	Config   *config.Config
	Sessions *session.Manager
	API      *api.Client
	Hotel    *hotel.Client
	Output   *output.Writer
	Locale   format.Locale
	Logger   *slog.Logger

	// Guard is nil unless the app was built with WithGuard.
	Guard *resilience.Guard

	// Observability
	Collector *observability.SessionCollector
	Hooks     *observability.CLIHooks

	// Flags holds the global flag values
	Flags GlobalFlags

	logLevel *slog.LevelVar
	stdout   io.Writer
	stderr   io.Writer
}

// GlobalFlags holds values for global CLI flags.
type GlobalFlags struct {
	// Output format flags
	JSON    bool
	YAML    bool
	Quiet   bool
	Styled  bool
	IDsOnly bool
	Count   bool
	JQ      string

	// Connection flags
	Host        string
	BaseURL     string
	Profile     string
	RefreshMode string
	Timeout     time.Duration

	// Session flags
	Ephemeral bool
	NoKeyring bool

	// Behavior flags
	Verbose int // 0=off, 1=operations and refreshes, 2=also requests
	Stats   bool
	Locale  string
	NoInput bool
}

// Option customizes NewApp.
type Option func(*options)

type options struct {
	store     session.Store
	transport http.RoundTripper
	guard     *resilience.Guard
	stdout    io.Writer
	stderr    io.Writer
}

// WithStore replaces the configured session store.
func WithStore(s session.Store) Option {
	return func(o *options) { o.store = s }
}

// WithTransport replaces the HTTP transport used for API calls.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

// WithGuard gates API requests through a circuit breaker and Retry-After
// window shared across invocations.
func WithGuard(g *resilience.Guard) Option {
	return func(o *options) { o.guard = g }
}

// WithOutput sends command output and diagnostics to the given writers.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(o *options) {
		o.stdout = stdout
		o.stderr = stderr
	}
}

// NewApp creates a new App with the given configuration.
func NewApp(cfg *config.Config, opts ...Option) (*App, error) {
	o := options{stdout: os.Stdout, stderr: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}

	store := o.store
	if store == nil {
		store = session.NewStore(cfg.SessionDir, hostutil.Origin(cfg.BaseURL), cfg.Keyring)
	}
	sessions := session.NewManager(store)

	// Collector always runs to gather stats; hooks control output verbosity.
	// ApplyFlags sets the actual level from -v flags.
	collector := observability.NewSessionCollector()
	hooks := observability.NewCLIHooks(0, collector, observability.NewTraceWriterTo(o.stderr))

	level := new(slog.LevelVar)
	level.Set(slog.LevelWarn)
	logger := slog.New(slog.NewTextHandler(o.stderr, &slog.HandlerOptions{Level: level}))

	apiOpts := api.Options{
		BaseURL:     cfg.BaseURL,
		Timeout:     cfg.Timeout,
		RefreshMode: api.RefreshMode(cfg.RefreshMode),
		Transport:   o.transport,
		Hooks:       hooks,
		Logger:      logger,
	}
	if o.guard != nil {
		apiOpts.Guard = o.guard
	}
	client, err := api.NewClient(sessions, apiOpts)
	if err != nil {
		return nil, err
	}

	outputFormat, err := output.ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}

	return &App{
		Config:    cfg,
		Sessions:  sessions,
		API:       client,
		Hotel:     hotel.NewClient(client, sessions),
		Locale:    format.DetectLocale(cfg.Locale),
		Logger:    logger,
		Guard:     o.guard,
		Collector: collector,
		Hooks:     hooks,
		Output:    output.New(output.Options{Format: outputFormat, Writer: o.stdout}),
		logLevel:  level,
		stdout:    o.stdout,
		stderr:    o.stderr,
	}, nil
}

// ApplyFlags applies global flag values to the app configuration.
func (a *App) ApplyFlags() {
	opts := a.Output.Options()
	opts.JQ = a.Flags.JQ

	// Order matters: specific modes first
	switch {
	case a.Flags.IDsOnly:
		opts.Format = output.FormatIDs
	case a.Flags.Count:
		opts.Format = output.FormatCount
	case a.Flags.Quiet:
		opts.Format = output.FormatQuiet
	case a.Flags.JSON:
		opts.Format = output.FormatJSON
	case a.Flags.YAML:
		opts.Format = output.FormatYAML
	case a.Flags.Styled:
		opts.Format = output.FormatStyled
	}
	a.Output = output.New(opts)

	if a.Flags.Locale != "" {
		a.Locale = format.NewLocale(a.Flags.Locale)
	}

	verboseLevel := max(a.Flags.Verbose, debugLevel(os.Getenv("STAYBOOK_DEBUG")))
	if a.Hooks != nil {
		a.Hooks.SetLevel(verboseLevel)
	}
	if verboseLevel > 0 {
		a.logLevel.Set(slog.LevelDebug)
	}
}

// debugLevel reads STAYBOOK_DEBUG: "1", "2", or "true" (treated as 2).
func debugLevel(v string) int {
	if v == "" {
		return 0
	}
	if level, err := strconv.Atoi(v); err == nil {
		return level
	}
	if strings.EqualFold(v, "true") {
		return 2
	}
	return 0
}

// OK outputs a success response, automatically including stats if --stats flag is set.
func (a *App) OK(data any, opts ...output.ResponseOption) error {
	if a.Flags.Stats && a.Collector != nil {
		opts = append(opts, output.WithMeta("stats", a.Collector.Summary().ToMap()))
	}
	return a.Output.OK(data, opts...)
}

// Err outputs an error response, printing stats to stderr if --stats flag is set.
func (a *App) Err(err error) error {
	if outputErr := a.Output.Err(err); outputErr != nil {
		return outputErr
	}

	if a.Flags.Stats && a.Collector != nil && !a.isMachineOutput() {
		if parts := a.Collector.Summary().FormatParts(); len(parts) > 0 {
			fmt.Fprintf(a.stderr, "\nStats: %s\n", strings.Join(parts, " | "))
		}
	}
	return nil
}

// Stdout returns the command output writer.
func (a *App) Stdout() io.Writer {
	return a.stdout
}

// Stderr returns the diagnostics writer.
func (a *App) Stderr() io.Writer {
	return a.stderr
}

// isMachineOutput reports whether the output mode is meant for programs.
func (a *App) isMachineOutput() bool {
	if a.Flags.Quiet || a.Flags.IDsOnly || a.Flags.Count || a.Flags.JQ != "" {
		return true
	}
	switch a.Output.Options().Format {
	case output.FormatQuiet, output.FormatIDs, output.FormatCount:
		return true
	}
	return false
}

// IsInteractive reports whether prompts and spinners may be shown.
func (a *App) IsInteractive() bool {
	if a.Flags.NoInput || a.isMachineOutput() || a.Flags.JSON || a.Flags.YAML {
		return false
	}
	out, ok := a.stdout.(*os.File)
	if !ok || !term.IsTerminal(out.Fd()) {
		return false
	}
	return term.IsTerminal(os.Stdin.Fd())
}

// WithApp stores the app in the context.
func WithApp(ctx context.Context, app *App) context.Context {
	return context.WithValue(ctx, appKey, app)
}

// FromContext retrieves the app from the context.
func FromContext(ctx context.Context) *App {
	app, _ := ctx.Value(appKey).(*App)
	return app
}
