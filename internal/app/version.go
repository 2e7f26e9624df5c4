package app

import "fmt"

// Build-time variables set via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// VersionString returns a detailed version string for logging.
func VersionString() string {
	return fmt.Sprintf("boombox %s (commit: %s, built: %s)", Version, GitCommit, BuildTime)
}
