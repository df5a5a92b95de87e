package mailmerge

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"
)

// Version information for the mailmerge tool.
// These values are injected during build time via ldflags.
// The values below are fallbacks for development builds.
var (
	// Version is the semantic version of the tool.
	Version = "dev"

	// GitCommit is the git commit hash when the binary was built.
	GitCommit = "unknown"

	// BuildDate is the date when the binary was built.
	BuildDate = "unknown"
)

// VersionInfo contains detailed version information.
type VersionInfo struct {
	// Version is the semantic version of the tool.
	Version string `json:"version"`

	// GitCommit is the git commit hash.
	GitCommit string `json:"git_commit"`

	// BuildDate is the build timestamp.
	BuildDate string `json:"build_date"`

	// GoVersion is the Go version used for building.
	GoVersion string `json:"go_version"`

	// Platform is the target platform (GOOS/GOARCH).
	Platform string `json:"platform"`

	// Module information from debug.BuildInfo.
	Module *ModuleInfo `json:"module,omitempty"`
}

// ModuleInfo contains Go module information.
type ModuleInfo struct {
	// Path is the module path.
	Path string `json:"path"`

	// Version is the module version.
	Version string `json:"version"`

	// Sum is the module checksum.
	Sum string `json:"sum"`
}

// GetVersion returns the current version string.
func GetVersion() string {
	return Version
}

// GetVersionInfo returns detailed version information, filling gaps
// from the binary's embedded build info where possible.
func GetVersionInfo() *VersionInfo {
	info := &VersionInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}

	if buildInfo, ok := debug.ReadBuildInfo(); ok {
		if buildInfo.Main.Path != "" {
			info.Module = &ModuleInfo{
				Path:    buildInfo.Main.Path,
				Version: buildInfo.Main.Version,
				Sum:     buildInfo.Main.Sum,
			}
		}

		for _, setting := range buildInfo.Settings {
			switch setting.Key {
			case "vcs.revision":
				if info.GitCommit == "unknown" {
					info.GitCommit = setting.Value
				}
			case "vcs.time":
				if info.BuildDate == "unknown" {
					if t, err := time.Parse(time.RFC3339, setting.Value); err == nil {
						info.BuildDate = t.Format("2006-01-02T15:04:05Z")
					}
				}
			case "vcs.modified":
				if setting.Value == "true" && !strings.HasSuffix(info.GitCommit, "-dirty") {
					info.GitCommit += "-dirty"
				}
			}
		}
	}

	return info
}

// String returns a human-readable version string.
func (v *VersionInfo) String() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Version: %s", v.Version))

	if v.GitCommit != "unknown" && v.GitCommit != "" {
		parts = append(parts, fmt.Sprintf("Commit: %s", v.GitCommit))
	}

	if v.BuildDate != "unknown" && v.BuildDate != "" {
		parts = append(parts, fmt.Sprintf("Built: %s", v.BuildDate))
	}

	if v.GoVersion != "" {
		parts = append(parts, fmt.Sprintf("Go: %s", v.GoVersion))
	}

	if v.Platform != "/" {
		parts = append(parts, fmt.Sprintf("Platform: %s", v.Platform))
	}

	return strings.Join(parts, ", ")
}

// UserAgent returns a user agent string for HTTP requests.
func (v *VersionInfo) UserAgent() string {
	return fmt.Sprintf("mailmerge/%s (%s)", v.Version, v.Platform)
}

// IsDevBuild returns true if this is a development build.
func (v *VersionInfo) IsDevBuild() bool {
	return strings.Contains(v.Version, "dev") ||
		strings.HasSuffix(v.GitCommit, "-dirty") ||
		v.GitCommit == "unknown"
}
