// Package version carries build metadata stamped in by the linker.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Overridden with -ldflags "-X github.com/soyeahso/sprout/internal/version.Version=v0.3.0"
// (likewise Commit and Date) by release builds.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Build describes the running binary. It is returned by the gateway
// health RPC and printed by `sprout version --json`.
type Build struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
	Dirty   bool   `json:"dirty,omitempty"`
	Go      string `json:"go"`
	OS      string `json:"os"`
	Arch    string `json:"arch"`
}

// Current returns the metadata of the running binary. Commit and Date
// fall back to the VCS stamp of `go build` when the linker did not set
// them.
func Current() Build {
	b := Build{
		Version: Version,
		Commit:  Commit,
		Date:    Date,
		Go:      runtime.Version(),
		OS:      runtime.GOOS,
		Arch:    runtime.GOARCH,
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		b = withVCS(b, info.Settings)
	}
	b.Commit = abbrev(b.Commit)
	return b
}

func withVCS(b Build, settings []debug.BuildSetting) Build {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if b.Commit == "unknown" {
				b.Commit = s.Value
			}
		case "vcs.time":
			if b.Date == "unknown" {
				b.Date = s.Value
			}
		case "vcs.modified":
			b.Dirty = s.Value == "true"
		}
	}
	return b
}

func (b Build) String() string {
	commit := b.Commit
	if b.Dirty {
		commit += "+dirty"
	}
	return fmt.Sprintf("sprout %s (%s, %s) %s %s/%s", b.Version, commit, b.Date, b.Go, b.OS, b.Arch)
}

// UserAgent is the User-Agent sent to the model provider.
func UserAgent() string {
	return "sprout/" + Version
}

func abbrev(rev string) string {
	const n = 7
	if len(rev) <= n {
		return rev
	}
	return rev[:n]
}
