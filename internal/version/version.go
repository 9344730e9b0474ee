// Package version holds build metadata set through -ldflags:
//
//	go build -ldflags "-X git.home.luguber.info/inful/depotwatch/internal/version.Version=v1.2.0"
package version

import "fmt"

// Version is the release version.
var Version = "dev"

// BuildInfo contains additional build metadata.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String describes the build for --version output.
func String() string {
	return fmt.Sprintf("depotwatch %s (commit %s, built %s)", Version, GitCommit, BuildTime)
}

// UserAgent identifies depotwatch in outbound HTTP requests.
func UserAgent() string {
	return "depotwatch/" + Version
}
