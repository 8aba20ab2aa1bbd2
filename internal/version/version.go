package version

import (
	"fmt"
	"runtime"
	"time"
)

// Set at build time via -ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
	CommitID  = "unknown"
)

func formatBuildTime() string {
	if BuildTime == "unknown" {
		return BuildTime
	}

	t, err := time.Parse(time.RFC3339, BuildTime)
	if err != nil {
		return BuildTime
	}

	return t.Format("Mon Jan 2 15:04:05 2006")
}

// ClientInfo returns structured version information
func ClientInfo() map[string]string {
	return map[string]string{
		"Version":       Version,
		"GoVersion":     runtime.Version(),
		"GitCommit":     CommitID,
		"BuildTime":     BuildTime,
		"FormattedTime": formatBuildTime(),
		"OS":            runtime.GOOS,
		"Arch":          runtime.GOARCH,
	}
}

// Short is the one-line form printed by --version.
func Short() string {
	return fmt.Sprintf("camserve version %s, build %s", Version, CommitID)
}
