// Package version holds build metadata injected at link time.
package version

import "runtime"

// Set via -ldflags "-X github.com/visionforge/foundry/version.GitRelease=..."
var (
	GitRelease    = "dev"
	GitCommit     = ""
	GitCommitDate = ""
)

// GoInfo is the Go toolchain version this binary was built with.
var GoInfo = runtime.Version()
