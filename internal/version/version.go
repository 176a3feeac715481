package version

import "runtime/debug"

// Version information set via ldflags during build
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var readBuildInfo = debug.ReadBuildInfo

// FullVersion returns a formatted version string. Without ldflags it falls
// back to the module version and VCS revision stamped by go install.
func FullVersion() string {
	if Version != "dev" {
		return "rtq " + Version + " (commit: " + GitCommit + ", built: " + BuildDate + ")"
	}

	info, ok := readBuildInfo()
	if !ok || info.Main.Version == "" || info.Main.Version == "(devel)" {
		return "rtq development build"
	}
	s := "rtq " + info.Main.Version
	for _, kv := range info.Settings {
		if kv.Key == "vcs.revision" {
			s += " (commit: " + kv.Value + ")"
		}
	}
	return s
}
