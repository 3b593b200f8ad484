package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Set via -ldflags "-X". When left at their defaults, Get falls back to the
// VCS stamp the go tool embeds in the binary.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

const projectURL = "https://github.com/pscheid92/shiritori"

type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
	UserAgent string `json:"user_agent"`
}

func Get() Info {
	info := Info{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		UserAgent: UserAgent(),
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "unknown" {
				info.Commit = s.Value
			}
		case "vcs.time":
			if info.BuildTime == "unknown" {
				info.BuildTime = s.Value
			}
		}
	}
	return info
}

// UserAgent is the bot user agent the chat API requires on every REST call.
func UserAgent() string {
	return fmt.Sprintf("DiscordBot (%s, %s)", projectURL, Version)
}
