// Package buildinfo holds the version stamped into the classpath binary.
//
// The variables are set with ldflags at build time:
//
//	go build -ldflags "-X github.com/matzehuels/classpath/pkg/buildinfo.Version=v0.3.0 \
//	    -X github.com/matzehuels/classpath/pkg/buildinfo.Commit=$(git rev-parse HEAD) \
//	    -X github.com/matzehuels/classpath/pkg/buildinfo.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)" \
//	    ./cmd/classpath
package buildinfo

import "fmt"

var (
	// Version is the semantic version, "dev" for local builds.
	Version = "dev"
	// Commit is the git commit SHA.
	Commit = "none"
	// Date is the build timestamp.
	Date = "unknown"
)

// String returns the formatted build information.
func String() string {
	return fmt.Sprintf("version: %s\ncommit: %s\nbuilt: %s", Version, Commit, Date)
}

// Template returns the version template for cobra.
func Template() string {
	return fmt.Sprintf("{{.Name}} version %s\ncommit: %s\nbuilt: %s\n", Version, Commit, Date)
}

// UserAgent identifies app in HTTP requests to repositories.
func UserAgent(app string) string {
	return fmt.Sprintf("%s/%s (%s)", app, Version, Commit)
}
