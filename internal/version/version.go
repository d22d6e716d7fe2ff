// Package version carries build metadata stamped in via ldflags.
package version

var (
	// Version is the semantic version of the otcdesk binary.
	Version = "dev"
	// Commit is the git commit hash the binary was built from.
	Commit = "unknown"
	// BuildDate is the build timestamp.
	BuildDate = "unknown"
)
