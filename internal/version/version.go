// Package version carries build metadata for the entryflow binaries.
package version

import "runtime/debug"

// Set at build time via ldflags:
//
//	go build -ldflags="-X github.com/veldt/entryflow/internal/version.Version=v1.2.3 \
//	                   -X github.com/veldt/entryflow/internal/version.Commit=abc123"
var (
	// Version is the semantic version of the application
	Version = "dev"
	// Commit is the git commit hash
	Commit = "unknown"
)

func init() {
	if Commit != "unknown" {
		return
	}
	// Fall back to the VCS revision Go records when building from a git
	// checkout.
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" && setting.Value != "" {
			Commit = setting.Value
			if len(Commit) > 7 {
				Commit = Commit[:7]
			}
		}
	}
}
