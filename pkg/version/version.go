// Package version records the version of the slate binary.
package version

// Version is the current semantic version, overridable at link time with
// -ldflags "-X github.com/slatedbg/slate/pkg/version.Version=...".
var Version = "0.1.0-dev"
