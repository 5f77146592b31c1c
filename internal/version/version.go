// Package version provides build-time version information.
// These variables are set via ldflags at build time.
package version

import "runtime"

var (
	// Version is the semantic version (e.g., "1.0.0")
	Version = "dev"

	// Commit is the git commit SHA
	Commit = "none"

	// Date is the build date in RFC3339 format
	Date = "unknown"
)

// IsDev reports whether this is an unreleased build.
func IsDev() bool {
	return Version == "dev"
}

// Full returns the full version string for display.
func Full() string {
	if IsDev() {
		return "staybook version dev (built from source)"
	}
	return "staybook version " + Version
}

// Info returns version details for machine-readable output.
func Info() map[string]string {
	return map[string]string{
		"version": Version,
		"commit":  Commit,
		"date":    Date,
		"go":      runtime.Version(),
	}
}

// UserAgent returns the user agent string for API requests.
func UserAgent() string {
	return "staybook/" + Version + " (" + runtime.GOOS + "/" + runtime.GOARCH + ")"
}
