// Package version carries build metadata injected with -ldflags.
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

// UserAgent is sent with every radmon.org submission.
func UserAgent() string {
	return "radmon-relay " + Version
}

// String summarises the build for the version command.
func String() string {
	return fmt.Sprintf("radmon-relay %s\n  commit: %s\n  built:  %s", Version, GitSHA, BuildTime)
}
