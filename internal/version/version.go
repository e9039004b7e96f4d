// Package version holds build metadata, set at link time with
// -ldflags "-X github.com/banshee-data/riskmap/internal/version.Version=...".
package version

import "fmt"

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String returns "riskmap <version> (<sha>, built <time>)".
func String() string {
	return fmt.Sprintf("riskmap %s (%s, built %s)", Version, GitSHA, BuildTime)
}
