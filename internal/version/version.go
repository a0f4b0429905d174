package version

import (
	"fmt"
	"runtime"
	"strings"
)

// Build-time metadata injected via -ldflags.
// Defaults are used for local/dev builds.
var (
	AppVersion = "dev"
	GitCommit  = "unknown"
	BuildTime  = "unknown"
)

const appName = "amneziawg-webui"

// Info describes the running binary build metadata.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
}

// Current returns the build metadata for this binary.
func Current() Info {
	return Info{
		Version:   orDefault(AppVersion, "dev"),
		Commit:    orDefault(GitCommit, "unknown"),
		BuildTime: orDefault(BuildTime, "unknown"),
		GoVersion: runtime.Version(),
	}
}

// String returns a human-readable version string.
func (i Info) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)",
		appName,
		orDefault(i.Version, "dev"),
		orDefault(i.Commit, "unknown"),
		orDefault(i.BuildTime, "unknown"),
	)
}

// UserAgent is sent by the HTTP client, e.g. "amneziawg-webui/v1.2.3".
func (i Info) UserAgent() string {
	return appName + "/" + orDefault(i.Version, "dev")
}

func orDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}
