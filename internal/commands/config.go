package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/staybook/staybook-cli/internal/config"
	"github.com/staybook/staybook-cli/internal/hostutil"
	"github.com/staybook/staybook-cli/internal/output"
)

// NewConfigCmd creates the config command for managing configuration.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage staybook configuration.

Configuration is loaded from multiple sources with the following precedence:
  flags > env > profile > local > global > system > defaults

Config locations:
  - System: /etc/staybook/config.json
  - Global: ~/.config/staybook/config.json
  - Local:  .staybook/config.json

base_url, session_dir, default_profile and profiles are only read from
the system and global files.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd)
		},
	}

	cmd.AddCommand(
		newConfigShowCmd(),
		newConfigSetCmd(),
		newConfigUnsetCmd(),
	)

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Long:  "Display the current effective configuration with source information.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd)
		},
	}
}

func runConfigShow(cmd *cobra.Command) error {
	app, err := requireApp(cmd)
	if err != nil {
		return err
	}
	cfg := app.Config

	keys := []struct {
		key     string
		value   string
		include bool
	}{
		{"base_url", cfg.BaseURL, true},
		{"timeout", cfg.Timeout.String(), true},
		{"refresh_mode", cfg.RefreshMode, true},
		{"session_dir", cfg.SessionDir, cfg.SessionDir != ""},
		{"keyring", strconv.FormatBool(cfg.Keyring), true},
		{"format", cfg.Format, cfg.Format != ""},
		{"locale", cfg.Locale, cfg.Locale != ""},
		{"default_profile", cfg.DefaultProfile, cfg.DefaultProfile != ""},
		{"profile", cfg.ActiveProfile, cfg.ActiveProfile != ""},
		{"verbose", strconv.Itoa(derefInt(cfg.Verbose)), cfg.Verbose != nil},
	}

	configData := make(map[string]any)
	for _, k := range keys {
		if k.include {
			configData[k.key] = map[string]string{
				"value":  k.value,
				"source": cfg.Source(k.key),
			}
		}
	}
	if len(cfg.Profiles) > 0 {
		names := make([]string, 0, len(cfg.Profiles))
		for name := range cfg.Profiles {
			names = append(names, name)
		}
		slices.Sort(names)
		configData["profiles"] = map[string]any{
			"value":  names,
			"source": cfg.Source("profiles"),
		}
	}

	return app.OK(configData,
		output.WithSummary("Effective configuration"),
		output.WithBreadcrumbs(
			crumb("set", "staybook config set <key> <value>", "Set config value"),
		),
	)
}

// configKey describes a settable key.
type configKey struct {
	globalOnly bool
	parse      func(string) (any, error)
}

var configKeys = map[string]configKey{
	"base_url":        {globalOnly: true, parse: parseBaseURL},
	"session_dir":     {globalOnly: true, parse: parseString},
	"default_profile": {globalOnly: true, parse: parseString},
	"timeout":         {parse: parseDuration},
	"refresh_mode":    {parse: parseRefreshMode},
	"keyring":         {parse: parseBool},
	"format":          {parse: parseFormatName},
	"locale":          {parse: parseString},
	"verbose":         {parse: parseVerbose},
}

func configKeyNames() string {
	names := make([]string, 0, len(configKeys))
	for k := range configKeys {
		names = append(names, k)
	}
	slices.Sort(names)
	return strings.Join(names, ", ")
}

func parseString(v string) (any, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, fmt.Errorf("value is empty")
	}
	return v, nil
}

func parseBaseURL(v string) (any, error) {
	if err := hostutil.RequireSecureURL(v); err != nil {
		return nil, err
	}
	return config.NormalizeBaseURL(v), nil
}

func parseDuration(v string) (any, error) {
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return nil, fmt.Errorf("timeout must be a positive duration such as 30s")
	}
	return d.String(), nil
}

func parseRefreshMode(v string) (any, error) {
	if v != config.RefreshSingleFlight && v != config.RefreshIndependent {
		return nil, fmt.Errorf("refresh_mode must be %s or %s", config.RefreshSingleFlight, config.RefreshIndependent)
	}
	return v, nil
}

func parseBool(v string) (any, error) {
	b, ok := parseBoolFlag(v)
	if !ok {
		return nil, fmt.Errorf("must be true/false (or 1/0)")
	}
	return b, nil
}

func parseFormatName(v string) (any, error) {
	if _, err := output.ParseFormat(v); err != nil {
		return nil, err
	}
	return v, nil
}

func parseVerbose(v string) (any, error) {
	level, err := strconv.Atoi(v)
	if err != nil || level < 0 || level > 2 {
		return nil, fmt.Errorf("verbose must be 0, 1, or 2")
	}
	return level, nil
}

// configTarget returns the file and scope name that set and unset write to.
func configTarget(global bool) (string, string) {
	if global {
		return filepath.Join(config.GlobalConfigDir(), "config.json"), "global"
	}
	return filepath.Join(".staybook", "config.json"), "local"
}

func readConfigFile(path string) (map[string]any, bool) {
	configData := make(map[string]any)
	data, err := os.ReadFile(path) //nolint:gosec // G304: Path is from trusted config location
	if err != nil {
		return configData, false
	}
	_ = json.Unmarshal(data, &configData) // Ignore error - start fresh if invalid
	return configData, true
}

func writeConfigFile(path string, configData map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := json.MarshalIndent(configData, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := atomicWriteFile(path, append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func newConfigSetCmd() *cobra.Command {
	var global bool

	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a configuration value in the local or global config file.

Valid keys: ` + configKeyNames() + `

base_url, session_dir and default_profile require --global.`,
		Example: `  staybook config set --global base_url https://api.staybook.vn/api/v1/
  staybook config set timeout 45s`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}
			key, value := args[0], args[1]

			def, ok := configKeys[key]
			if !ok {
				return output.ErrUsage(fmt.Sprintf("Invalid config key %q. Valid keys: %s", key, configKeyNames()))
			}
			if def.globalOnly && !global {
				return output.ErrUsageHint(fmt.Sprintf("%s is only read from the global config", key), "Add --global")
			}
			parsed, err := def.parse(value)
			if err != nil {
				return output.ErrUsage(fmt.Sprintf("%s: %v", key, err))
			}

			configPath, scope := configTarget(global)
			configData, _ := readConfigFile(configPath)

			if key == "default_profile" {
				profiles, _ := configData["profiles"].(map[string]any)
				if len(profiles) > 0 {
					if _, ok := profiles[value]; !ok {
						names := make([]string, 0, len(profiles))
						for name := range profiles {
							names = append(names, name)
						}
						slices.Sort(names)
						return output.ErrUsage(fmt.Sprintf("profile %q not found (available: %s)", value, strings.Join(names, ", ")))
					}
				}
			}

			configData[key] = parsed
			if err := writeConfigFile(configPath, configData); err != nil {
				return err
			}

			return app.OK(map[string]any{
				"key":    key,
				"value":  parsed,
				"scope":  scope,
				"path":   configPath,
				"status": "set",
			},
				output.WithSummary(fmt.Sprintf("Set %s = %v (%s)", key, parsed, scope)),
				output.WithBreadcrumbs(crumb("show", "staybook config show", "View config")),
			)
		},
	}

	cmd.Flags().BoolVar(&global, "global", false, "Set in global config (~/.config/staybook/)")

	return cmd
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func parseBoolFlag(value string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "on":
		return true, true
	case "false", "0", "no", "off":
		return false, true
	default:
		return false, false
	}
}

func newConfigUnsetCmd() *cobra.Command {
	var global bool

	cmd := &cobra.Command{
		Use:   "unset <key>",
		Short: "Unset a configuration value",
		Long:  "Remove a configuration value from the local or global config file.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}
			key := args[0]

			configPath, scope := configTarget(global)
			configData, found := readConfigFile(configPath)
			if !found {
				return app.OK(map[string]any{
					"key":    key,
					"status": "not_found",
				}, output.WithSummary(fmt.Sprintf("Config file not found: %s", configPath)))
			}

			if _, exists := configData[key]; !exists {
				return app.OK(map[string]any{
					"key":    key,
					"status": "not_set",
				}, output.WithSummary(fmt.Sprintf("Key not set: %s", key)))
			}

			delete(configData, key)
			if err := writeConfigFile(configPath, configData); err != nil {
				return err
			}

			return app.OK(map[string]any{
				"key":    key,
				"scope":  scope,
				"status": "unset",
			},
				output.WithSummary(fmt.Sprintf("Unset %s (%s)", key, scope)),
				output.WithBreadcrumbs(crumb("show", "staybook config show", "View config")),
			)
		},
	}

	cmd.Flags().BoolVar(&global, "global", false, "Unset from global config")

	return cmd
}

// atomicWriteFile writes data to a file atomically using temp+rename.
// Files are always created with 0600 permissions (owner read/write only).
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmpFile.Chmod(0600); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	// Windows: rename fails when the destination exists.
	if err := os.Rename(tmpPath, path); err != nil && runtime.GOOS == "windows" {
		_ = os.Remove(path)
		return os.Rename(tmpPath, path)
	} else { //nolint:revive // else-with-return kept for the two-branch pattern
		return err
	}
}
