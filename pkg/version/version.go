// Package version reports which Litka build is running. The values are
// stamped by the release build:
//
//	go build -ldflags "-X github.com/litka-chat/litka/pkg/version.tag=v1.0.0
//	  -X github.com/litka-chat/litka/pkg/version.commit=abc1234
//	  -X github.com/litka-chat/litka/pkg/version.date=2026-01-01"
package version

import "runtime"

var (
	tag    = ""
	commit = "unknown"
	date   = "unknown"
)

// Info is the build description served by /healthz.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuiltAt   string `json:"builtAt"`
	GoVersion string `json:"goVersion"`
}

// Get returns the build description of the running binary.
func Get() Info {
	return Info{
		Version:   String(),
		Commit:    commit,
		BuiltAt:   date,
		GoVersion: runtime.Version(),
	}
}

// String returns the tag, else the commit, else "dev".
func String() string {
	if tag != "" {
		return tag
	}
	if commit != "unknown" {
		return commit
	}
	return "dev"
}

// Full returns the version with commit and build date for -version.
func Full() string {
	i := Get()
	switch {
	case tag != "":
		return i.Version + " (" + i.Commit + ") built " + i.BuiltAt + ", " + i.GoVersion
	case commit != "unknown":
		return i.Commit + " built " + i.BuiltAt + ", " + i.GoVersion
	default:
		return "dev, " + i.GoVersion
	}
}
