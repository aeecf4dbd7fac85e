package version

import (
	"fmt"
	"runtime"
)

// Populated with -ldflags "-X github.com/grovetools/warden/version.Version=..."
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// Info describes the running binary.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"buildDate"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

// GetInfo returns the build information of this binary.
func GetInfo() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// Short renders "warden <version> (<commit>)".
func (i Info) Short() string {
	commit := i.Commit
	if len(commit) > 7 {
		commit = commit[:7]
	}
	return fmt.Sprintf("warden %s (%s)", i.Version, commit)
}

func (i Info) String() string {
	return fmt.Sprintf(
		"Version:\t%s\nCommit:\t\t%s\nBuild Date:\t%s\nGo Version:\t%s\nPlatform:\t%s",
		i.Version, i.Commit, i.BuildDate, i.GoVersion, i.Platform,
	)
}
