// Package version exposes build metadata for the opsbox binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

var (
	Version   string // Set via ldflags.
	Branch    string
	BuildUser string
	BuildDate string

	Revision  = revision(debug.ReadBuildInfo)
	GoVersion = runtime.Version()
	GoOS      = runtime.GOOS
	GoArch    = runtime.GOARCH
)

// GetVersion returns the release version, or the VCS revision for
// development builds.
func GetVersion() string {
	if Version != "" {
		return Version
	}

	return Revision
}

// String returns the multi-line text printed by `opsbox --version`.
func String() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s (revision %s", GetVersion(), Revision)
	if Branch != "" {
		fmt.Fprintf(&sb, ", branch %s", Branch)
	}

	sb.WriteString(")\n")
	fmt.Fprintf(&sb, "  go: %s %s/%s", GoVersion, GoOS, GoArch)

	if BuildUser != "" || BuildDate != "" {
		fmt.Fprintf(&sb, "\n  build: %s %s", BuildUser, BuildDate)
	}

	return strings.TrimSpace(sb.String())
}

func revision(readBuildInfo func() (*debug.BuildInfo, bool)) string {
	rev := "unknown"

	info, ok := readBuildInfo()
	if !ok {
		return rev
	}

	modified := false

	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
			if len(rev) > 7 {
				rev = rev[:7]
			}

		case "vcs.modified":
			modified = s.Value == "true"
		}
	}

	if modified {
		return rev + "-dirty"
	}

	return rev
}
