// Package version exposes build metadata injected via -ldflags.
package version

import "fmt"

// Set at build time:
//
//	go build -ldflags "-X .../internal/version.Version=1.2.0 ..."
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// Short returns the bare version string.
func Short() string {
	return Version
}

// Info returns a human-readable version line.
func Info() string {
	return fmt.Sprintf("eims %s (commit %s, built %s)", Version, Commit, BuildDate)
}

// Map returns version fields for JSON responses.
func Map() map[string]string {
	return map[string]string{
		"version":    Version,
		"commit":     Commit,
		"build_date": BuildDate,
	}
}
