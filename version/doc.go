// Package version reports the build version of the funnel binary.
//
// Version, git commit, branch and build time are set at compile time
// via -ldflags; anything left unset is filled from the module build info:
//
//	go build -ldflags "-X github.com/kbukum/funnel/version.Version=1.0.0" ./cmd/funnel
package version
