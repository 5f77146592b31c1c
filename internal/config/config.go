// Package config provides layered configuration loading.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultBaseURL is the API base URL baked in at build time:
//
//	go build -ldflags "-X github.com/staybook/staybook-cli/internal/config.DefaultBaseURL=https://api.example.com/api/v1/"
var DefaultBaseURL = "http://localhost:8080/api/v1/"

// Refresh modes for the session refresher.
const (
	RefreshSingleFlight = "single-flight"
	RefreshIndependent  = "independent"
)

// DefaultTimeout is the per-request timeout when none is configured.
const DefaultTimeout = 30 * time.Second

// Config holds the resolved configuration.
type Config struct {
	// API settings
	BaseURL     string        `json:"base_url"`
	Timeout     time.Duration `json:"-"`
	RefreshMode string        `json:"refresh_mode"`

	// Profile settings (named environments, e.g. "dev" and "prod")
	Profiles       map[string]*ProfileConfig `json:"profiles,omitempty"`
	DefaultProfile string                    `json:"default_profile,omitempty"`
	ActiveProfile  string                    `json:"-"` // Set at runtime, not persisted

	// Session storage
	SessionDir string `json:"session_dir"`
	Keyring    bool   `json:"keyring"`

	// Output settings
	Format string `json:"format"`
	Locale string `json:"locale,omitempty"`

	Verbose *int `json:"verbose,omitempty"`

	// Sources tracks where each value came from (for debugging).
	Sources map[string]string `json:"-"`
}

// ProfileConfig holds configuration for a named profile.
type ProfileConfig struct {
	BaseURL string `json:"base_url"`
	Timeout string `json:"timeout,omitempty"`
}

// Source indicates where a config value came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceSystem  Source = "system"
	SourceGlobal  Source = "global"
	SourceLocal   Source = "local"
	SourceEnv     Source = "env"
	SourceFlag    Source = "flag"
	SourceProfile Source = "profile"
)

// FlagOverrides holds command-line flag values.
type FlagOverrides struct {
	BaseURL     string
	Profile     string
	Timeout     time.Duration
	RefreshMode string
	Format      string
	NoKeyring   bool
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		BaseURL:     DefaultBaseURL,
		Timeout:     DefaultTimeout,
		RefreshMode: RefreshSingleFlight,
		SessionDir:  GlobalConfigDir(),
		Keyring:     true,
		Format:      "auto",
		Sources:     make(map[string]string),
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence: flags > env > profile > local > global > system > defaults
func Load(overrides FlagOverrides) (*Config, error) {
	cfg := Default()

	loadFromFile(cfg, systemConfigPath(), SourceSystem)
	loadFromFile(cfg, globalConfigPath(), SourceGlobal)
	loadFromFile(cfg, localConfigPath(), SourceLocal)

	profile := overrides.Profile
	if profile == "" {
		profile = os.Getenv("STAYBOOK_PROFILE")
	}
	if profile == "" {
		profile = cfg.DefaultProfile
	}
	if profile != "" {
		if err := cfg.ApplyProfile(profile); err != nil {
			return nil, err
		}
	}

	LoadFromEnv(cfg)
	ApplyOverrides(cfg, overrides)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be defaulted silently.
func (cfg *Config) Validate() error {
	switch cfg.RefreshMode {
	case RefreshSingleFlight, RefreshIndependent:
	default:
		return fmt.Errorf("invalid refresh_mode %q (want %q or %q)", cfg.RefreshMode, RefreshSingleFlight, RefreshIndependent)
	}
	if cfg.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", cfg.Timeout)
	}
	if cfg.BaseURL == "" {
		return fmt.Errorf("base_url is empty")
	}
	return nil
}

func loadFromFile(cfg *Config, path string, source Source) {
	if path == "" {
		return
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: Path is from trusted config locations
	if err != nil {
		return // File doesn't exist, skip
	}

	var fileCfg map[string]any
	if err := json.Unmarshal(data, &fileCfg); err != nil {
		fmt.Fprintf(os.Stderr, "warning: skipping malformed config at %s: %v\n", path, err)
		return
	}

	// Authority keys decide where tokens are sent. A config file dropped in
	// the working directory must not redirect authenticated traffic.
	untrusted := source == SourceLocal

	if v, ok := fileCfg["base_url"].(string); ok && v != "" {
		if untrusted {
			fmt.Fprintf(os.Stderr, "warning: ignoring base_url %q from %s config at %s (authority keys are not trusted from local config)\n", v, source, path)
		} else {
			cfg.BaseURL = v
			cfg.Sources["base_url"] = string(source)
		}
	}
	if v, ok := fileCfg["timeout"]; ok {
		if d, ok := parseTimeout(v); ok {
			cfg.Timeout = d
			cfg.Sources["timeout"] = string(source)
		}
	}
	if v, ok := fileCfg["refresh_mode"].(string); ok && v != "" {
		cfg.RefreshMode = v
		cfg.Sources["refresh_mode"] = string(source)
	}
	if v, ok := fileCfg["session_dir"].(string); ok && v != "" {
		if untrusted {
			fmt.Fprintf(os.Stderr, "warning: ignoring session_dir from %s config at %s\n", source, path)
		} else {
			cfg.SessionDir = v
			cfg.Sources["session_dir"] = string(source)
		}
	}
	if v, ok := fileCfg["keyring"].(bool); ok {
		cfg.Keyring = v
		cfg.Sources["keyring"] = string(source)
	}
	if v, ok := fileCfg["format"].(string); ok && v != "" {
		cfg.Format = v
		cfg.Sources["format"] = string(source)
	}
	if v, ok := fileCfg["locale"].(string); ok && v != "" {
		cfg.Locale = v
		cfg.Sources["locale"] = string(source)
	}
	if v, ok := fileCfg["verbose"].(float64); ok {
		iv := int(v)
		if iv >= 0 && iv <= 2 && v == float64(iv) {
			cfg.Verbose = &iv
			cfg.Sources["verbose"] = string(source)
		}
	}
	if untrusted {
		if _, ok := fileCfg["profiles"]; ok {
			fmt.Fprintf(os.Stderr, "warning: ignoring profiles from %s config at %s\n", source, path)
		}
		return
	}
	if v, ok := fileCfg["default_profile"].(string); ok && v != "" {
		cfg.DefaultProfile = v
		cfg.Sources["default_profile"] = string(source)
	}
	if v, ok := fileCfg["profiles"].(map[string]any); ok {
		if cfg.Profiles == nil {
			cfg.Profiles = make(map[string]*ProfileConfig)
		}
		for name, raw := range v {
			m, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			baseURL, _ := m["base_url"].(string)
			if baseURL == "" {
				continue
			}
			p := &ProfileConfig{BaseURL: baseURL}
			if t, ok := m["timeout"].(string); ok {
				p.Timeout = t
			}
			cfg.Profiles[name] = p
		}
		cfg.Sources["profiles"] = string(source)
	}
}

// parseTimeout accepts "15s"-style strings or a number of milliseconds.
func parseTimeout(v any) (time.Duration, bool) {
	switch val := v.(type) {
	case string:
		d, err := time.ParseDuration(val)
		if err != nil || d <= 0 {
			return 0, false
		}
		return d, true
	case float64:
		if val <= 0 {
			return 0, false
		}
		return time.Duration(val) * time.Millisecond, true
	}
	return 0, false
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("STAYBOOK_BASE_URL"); v != "" {
		cfg.BaseURL = v
		cfg.Sources["base_url"] = string(SourceEnv)
	}
	if v := os.Getenv("STAYBOOK_TIMEOUT"); v != "" {
		if d, ok := parseTimeout(v); ok {
			cfg.Timeout = d
			cfg.Sources["timeout"] = string(SourceEnv)
		}
	}
	if v := os.Getenv("STAYBOOK_REFRESH_MODE"); v != "" {
		cfg.RefreshMode = v
		cfg.Sources["refresh_mode"] = string(SourceEnv)
	}
	if v := os.Getenv("STAYBOOK_SESSION_DIR"); v != "" {
		cfg.SessionDir = v
		cfg.Sources["session_dir"] = string(SourceEnv)
	}
	if v := os.Getenv("STAYBOOK_NO_KEYRING"); v != "" {
		if b, ok := parseEnvBool(v); ok {
			cfg.Keyring = !b
			cfg.Sources["keyring"] = string(SourceEnv)
		}
	}
	if v := os.Getenv("STAYBOOK_FORMAT"); v != "" {
		cfg.Format = v
		cfg.Sources["format"] = string(SourceEnv)
	}
	if v := os.Getenv("STAYBOOK_LOCALE"); v != "" {
		cfg.Locale = v
		cfg.Sources["locale"] = string(SourceEnv)
	}
}

// parseEnvBool parses a boolean environment variable strictly.
// Returns (value, true) for recognized values, (false, false) for unrecognized.
func parseEnvBool(v string) (bool, bool) {
	switch strings.ToLower(v) {
	case "true", "1", "yes":
		return true, true
	case "false", "0", "no":
		return false, true
	default:
		return false, false
	}
}

// ApplyOverrides applies non-empty flag overrides to cfg.
func ApplyOverrides(cfg *Config, o FlagOverrides) {
	if o.BaseURL != "" {
		cfg.BaseURL = o.BaseURL
		cfg.Sources["base_url"] = string(SourceFlag)
	}
	if o.Timeout > 0 {
		cfg.Timeout = o.Timeout
		cfg.Sources["timeout"] = string(SourceFlag)
	}
	if o.RefreshMode != "" {
		cfg.RefreshMode = o.RefreshMode
		cfg.Sources["refresh_mode"] = string(SourceFlag)
	}
	if o.Format != "" {
		cfg.Format = o.Format
		cfg.Sources["format"] = string(SourceFlag)
	}
	if o.NoKeyring {
		cfg.Keyring = false
		cfg.Sources["keyring"] = string(SourceFlag)
	}
}

// ApplyProfile overlays profile values onto the config. Load re-applies env
// vars and flags afterwards so they keep precedence over the profile.
func (cfg *Config) ApplyProfile(name string) error {
	if cfg.Profiles == nil {
		return fmt.Errorf("no profiles configured")
	}
	p, ok := cfg.Profiles[name]
	if !ok {
		return fmt.Errorf("profile %q not found", name)
	}

	cfg.ActiveProfile = name
	if p.BaseURL != "" {
		cfg.BaseURL = p.BaseURL
		cfg.Sources["base_url"] = string(SourceProfile)
	}
	if p.Timeout != "" {
		if d, ok := parseTimeout(p.Timeout); ok {
			cfg.Timeout = d
			cfg.Sources["timeout"] = string(SourceProfile)
		}
	}
	return nil
}

// Source returns where key was set, defaulting to "default".
func (cfg *Config) Source(key string) string {
	if s, ok := cfg.Sources[key]; ok {
		return s
	}
	return string(SourceDefault)
}

// Path helpers

func systemConfigPath() string {
	return "/etc/staybook/config.json"
}

func globalConfigPath() string {
	return filepath.Join(GlobalConfigDir(), "config.json")
}

// localConfigPath returns ./.staybook/config.json for the working directory.
// Parent directories are never consulted.
func localConfigPath() string {
	dir, err := os.Getwd()
	if err != nil {
		return "" // fail closed: can't determine CWD
	}
	return filepath.Join(dir, ".staybook", "config.json")
}

// GlobalConfigDir returns the global config directory path.
func GlobalConfigDir() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "staybook")
}

// NormalizeBaseURL ensures the base URL ends with exactly one slash, so that
// relative endpoint paths like "auth/login" resolve under it.
func NormalizeBaseURL(url string) string {
	return strings.TrimRight(url, "/") + "/"
}
