// Package version reports the plugdoc build. Release builds inject Version and
// GitCommit through ldflags; `go install` builds fall back to the module
// version and VCS revision recorded by the toolchain.
package version

import (
	"encoding/json"
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	// Version is set with -ldflags "-X github.com/jingkaihe/plugdoc/pkg/version.Version=v1.2.3"
	Version = "dev"

	// GitCommit is set with -ldflags "-X github.com/jingkaihe/plugdoc/pkg/version.GitCommit=<sha>"
	GitCommit = "unknown"
)

// Info describes the running binary
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

// Get returns the build information, preferring injected values
func Get() Info {
	info := Info{
		Version:   Version,
		GitCommit: GitCommit,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		fillFromBuildInfo(&info, bi)
	}
	return info
}

func fillFromBuildInfo(info *Info, bi *debug.BuildInfo) {
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	if info.GitCommit != "unknown" {
		return
	}
	for _, s := range bi.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			info.GitCommit = s.Value
		}
	}
}

// String returns a one line summary
func (i Info) String() string {
	return fmt.Sprintf("plugdoc %s (%s, %s, %s)", i.Version, shortCommit(i.GitCommit), i.GoVersion, i.Platform)
}

// JSON returns the indented JSON form
func (i Info) JSON() (string, error) {
	b, err := json.MarshalIndent(i, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func shortCommit(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
