package cli

import (
	"errors"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staybook/staybook-cli/internal/appctx"
	"github.com/staybook/staybook-cli/internal/config"
	"github.com/staybook/staybook-cli/internal/output"
)

func TestResolvePreferences(t *testing.T) {
	intPtr := func(i int) *int { return &i }

	tests := []struct {
		name        string
		cfg         *config.Config
		setFlags    map[string]string
		flags       appctx.GlobalFlags
		wantVerbose int
		wantLocale  string
	}{
		{
			name: "empty config keeps defaults",
			cfg:  &config.Config{},
		},
		{
			name:        "config verbose overrides default",
			cfg:         &config.Config{Verbose: intPtr(2)},
			wantVerbose: 2,
		},
		{
			name:        "explicit --verbose overrides config",
			cfg:         &config.Config{Verbose: intPtr(2)},
			setFlags:    map[string]string{"verbose": "1"},
			flags:       appctx.GlobalFlags{Verbose: 1},
			wantVerbose: 1,
		},
		{
			name:       "config locale fills an empty flag",
			cfg:        &config.Config{Locale: "vi-VN"},
			wantLocale: "vi-VN",
		},
		{
			name:       "--locale wins over config",
			cfg:        &config.Config{Locale: "vi-VN"},
			flags:      appctx.GlobalFlags{Locale: "en-US"},
			wantLocale: "en-US",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &cobra.Command{}
			var verbose int
			var locale string
			cmd.PersistentFlags().IntVar(&verbose, "verbose", 0, "")
			cmd.PersistentFlags().StringVar(&locale, "locale", "", "")

			for f, v := range tt.setFlags {
				require.NoError(t, cmd.PersistentFlags().Set(f, v))
			}

			flags := &tt.flags
			resolvePreferences(cmd, tt.cfg, flags)

			assert.Equal(t, tt.wantVerbose, flags.Verbose, "Verbose")
			assert.Equal(t, tt.wantLocale, flags.Locale, "Locale")
		})
	}
}

func TestTransformCobraError(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"flag needs an argument: --room", "--room requires a value"},
		{"unknown flag: --rooom", "Unknown option: --rooom"},
		{"unknown shorthand flag: 'x' in -x", "Unknown option: -x"},
		{"accepts 1 arg(s), received 0", "ID required"},
		{"accepts 1 arg(s), received 2", "accepts 1 arg(s), received 2"},
		{`required flag(s) "phone" not set`, "--phone is required"},
		{"if any flags in the group [host base-url] are set none of the others can be; [base-url host] were all set", "Use only one of --host, --base-url"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			err := transformCobraError(errors.New(tt.in))
			e := output.AsError(err)
			assert.Equal(t, output.CodeUsage, e.Code)
			assert.Equal(t, tt.want, e.Message)
		})
	}
}

func TestTransformCobraErrorPassesThrough(t *testing.T) {
	orig := errors.New("boom")
	assert.Same(t, orig, transformCobraError(orig))
}

func TestSkipSetup(t *testing.T) {
	root := NewRootCmd()
	AddCommands(root)

	find := func(args ...string) *cobra.Command {
		c, _, err := root.Find(args)
		require.NoError(t, err)
		return c
	}

	assert.True(t, skipSetup(find("completion", "bash")))
	assert.True(t, skipSetup(find("completion")))
	assert.False(t, skipSetup(find("completion", "refresh")))
	assert.False(t, skipSetup(find("rooms", "list")))
	assert.False(t, skipSetup(find("auth", "status")))
}

func TestRunReportsSetupErrors(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Chdir(t.TempDir())

	code := Run(t.Context(), []string{"rooms", "list", "--json", "--host", "http://api.example.com"})
	assert.Equal(t, output.ExitUsage, code)
}
