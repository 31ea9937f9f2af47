// Package version carries build identification, overridable at link time:
//
//	go build -ldflags "-X github.com/quarry-dev/quarry/internal/version.Version=v1.2.3"
package version

// Build identification.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)
