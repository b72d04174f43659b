// Package buildinfo exposes build metadata injected at link time:
//
//	-X 'github.com/infohelper/euwork-bot/core/buildinfo.Version=v0.3.0'
//	-X 'github.com/infohelper/euwork-bot/core/buildinfo.Commit=abcdef0'
//	-X 'github.com/infohelper/euwork-bot/core/buildinfo.Date=2026-01-30T12:00:00Z'
package buildinfo

import (
	"runtime"
	"strings"
)

var (
	// Version is the release tag of the build.
	Version = "dev"
	// Commit is the source revision of the build.
	Commit = "local"
	// Date is the RFC3339 build timestamp.
	Date = ""
)

// Summary renders the metadata as a single line, e.g. "dev (local, go1.24.0)".
func Summary() string {
	parts := []string{Commit}
	if d := strings.TrimSpace(Date); d != "" {
		parts = append(parts, d)
	}
	parts = append(parts, runtime.Version())
	return Version + " (" + strings.Join(parts, ", ") + ")"
}
