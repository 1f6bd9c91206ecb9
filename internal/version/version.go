// Package version exposes the build metadata of the migration binary.
//
// The values are injected at build time:
//
//	-ldflags "-X granulemigration/internal/version.version=v1.0.0 -X granulemigration/internal/version.commit=abc123 -X granulemigration/internal/version.buildTime=2025-01-01T00:00:00Z"
package version

import (
	"fmt"
	"io"
	"time"
)

//nolint:gochecknoglobals // Required for build-time injection via ldflags.
var (
	version   string
	commit    string
	buildTime string
)

// ApplicationName is the name of the application displayed in version output.
const ApplicationName = "Granule Migration CLI"

// Default values used when version information is not available.
const (
	DefaultVersion   = "dev"
	DefaultCommit    = "unknown"
	DefaultBuildTime = "unknown"
)

// Info holds the build metadata, with defaults applied.
type Info struct {
	Version   string `json:"version"   yaml:"version"`
	Commit    string `json:"commit"    yaml:"commit"`
	BuildTime string `json:"buildTime" yaml:"buildTime"`
}

// Get returns the current build metadata.
func Get() Info {
	return Info{
		Version:   orDefault(version, DefaultVersion),
		Commit:    orDefault(commit, DefaultCommit),
		BuildTime: orDefault(buildTime, DefaultBuildTime),
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Write prints either the bare version or the full block.
func (i Info) Write(w io.Writer, short bool) error {
	if short {
		_, err := fmt.Fprintln(w, i.Version)
		return err
	}
	_, err := fmt.Fprintf(w, "%s\nVersion: %s\nCommit: %s\nBuilt: %s\n",
		ApplicationName, i.Version, i.Commit, i.BuildTime)
	return err
}

// IsDevelopment reports whether this is an unversioned build.
func (i Info) IsDevelopment() bool {
	return i.Version == DefaultVersion
}

// BuiltAt parses BuildTime, returning the zero time when it is unknown.
func (i Info) BuiltAt() time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, i.BuildTime); err == nil {
			return t
		}
	}
	return time.Time{}
}

// SetBuildVars overrides the injected values.
func SetBuildVars(ver, com, bt string) {
	version, commit, buildTime = ver, com, bt
}

// ResetBuildVars clears the injected values.
func ResetBuildVars() {
	SetBuildVars("", "", "")
}
