package api

import (
	"runtime"
	"runtime/debug"

	"github.com/MJE43/czn-savedata-calc/internal/score"
)

// Calculator build metadata. Release builds set these with
// -ldflags "-X github.com/MJE43/czn-savedata-calc/internal/api.EngineVersion=v1.2.0".
var (
	EngineVersion = "0.1.0-dev"
	GitCommit     = ""
	BuildTime     = ""
)

// GetVersionInfo returns the build metadata. Commit and time fall back to the
// VCS stamp embedded by the go toolchain when ldflags did not set them.
func GetVersionInfo() VersionInfo {
	info := VersionInfo{
		EngineVersion: EngineVersion,
		GitCommit:     GitCommit,
		BuildTime:     BuildTime,
		GoVersion:     runtime.Version(),
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, kv := range bi.Settings {
			switch {
			case kv.Key == "vcs.revision" && info.GitCommit == "":
				info.GitCommit = kv.Value
			case kv.Key == "vcs.time" && info.BuildTime == "":
				info.BuildTime = kv.Value
			}
		}
	}
	for _, spec := range score.List() {
		info.RuleSets = append(info.RuleSets, spec.Name)
	}
	return info
}
