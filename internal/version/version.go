package version

import "github.com/fatih/color"

// Version information for the bundlecache CLI.
// These variables can be overridden at build time via -ldflags.

var (
	versionColor = color.New(color.FgGreen, color.Bold)

	// Version is the semantic version of the CLI.
	Version = "0.1.0-dev"

	// Commit is an optional git commit hash.
	Commit = "unknown"

	// BuildTime is an optional build date in ISO-8601.
	BuildTime = "unknown"
)

// String returns the version line shown by --version.
func String() string {
	return versionColor.Sprint(Version) + " (" + Commit + ") " + BuildTime
}
