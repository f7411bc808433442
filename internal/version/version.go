// Package version carries build metadata injected via ldflags.
package version

import "fmt"

// Build-time variables set by ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// BuildInfo is the JSON form of the build metadata.
type BuildInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
}

// Info returns version information
func Info() BuildInfo {
	return BuildInfo{Version: Version, GitCommit: GitCommit, BuildDate: BuildDate}
}

// String renders a one-line version banner.
func String() string {
	return fmt.Sprintf("wastelens %s (commit %s, built %s)", Version, GitCommit, BuildDate)
}
