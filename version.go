package swarmkit

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Version is overridden at release time; module-mode builds (go install
// .../cmd/swarmctl@vX.Y.Z) report the tag via runtime/debug instead.
const Version = "0.1.0-dev"

// Info describes a build.
type Info struct {
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// GetVersion resolves build info: the module version reported by
// runtime/debug.ReadBuildInfo when available (go install/go run against a
// tagged module), falling back to the Version constant for untagged
// builds.
func GetVersion() Info {
	version := Version
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			version = info.Main.Version
		}
	}
	return Info{
		Version:   version,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

func (i Info) String() string {
	return fmt.Sprintf("swarmkit %s (%s %s)", i.Version, i.GoVersion, i.Platform)
}
