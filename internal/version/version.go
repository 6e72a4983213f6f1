// Package version holds build metadata injected via ldflags.
package version

import "fmt"

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String renders the build info in one line for --version output.
func String() string {
	return fmt.Sprintf("dynamap %s (%s, %s)", Version, Commit, Date)
}
