// Package build exposes version information stamped at link time.
package build

import "fmt"

// Overridden via -ldflags at release time.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// GetBuildInfo returns a human readable build summary.
func GetBuildInfo() string {
	return fmt.Sprintf("scopegate %s (commit %s, built %s)", Version, Commit, BuildDate)
}
