// Package version carries the build version, overridden at link time
// with -ldflags "-X github.com/six502/emuctl/internal/version.Version=...".
package version

var Version = "dev"
