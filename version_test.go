package mailmerge

import (
	"fmt"
	"runtime"
	"strings"
	"testing"
)

func TestGetVersionInfo(t *testing.T) {
	t.Parallel()

	info := GetVersionInfo()
	if info.Version != GetVersion() {
		t.Errorf("Version: got %q, want %q", info.Version, GetVersion())
	}
	if info.GoVersion != runtime.Version() {
		t.Errorf("GoVersion: got %q, want %q", info.GoVersion, runtime.Version())
	}
	want := fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)
	if info.Platform != want {
		t.Errorf("Platform: got %q, want %q", info.Platform, want)
	}
}

func TestVersionInfo_String(t *testing.T) {
	t.Parallel()

	info := &VersionInfo{
		Version:   "1.2.3",
		GitCommit: "abc1234",
		BuildDate: "2024-06-01T12:00:00Z",
		GoVersion: "go1.23.0",
		Platform:  "linux/amd64",
	}

	s := info.String()
	for _, part := range []string{
		"Version: 1.2.3",
		"Commit: abc1234",
		"Built: 2024-06-01T12:00:00Z",
		"Go: go1.23.0",
		"Platform: linux/amd64",
	} {
		if !strings.Contains(s, part) {
			t.Errorf("String: got %q, want substring %q", s, part)
		}
	}

	bare := &VersionInfo{Version: "dev", GitCommit: "unknown", BuildDate: "unknown"}
	if s := bare.String(); strings.Contains(s, "Commit") || strings.Contains(s, "Built") {
		t.Errorf("String: got %q, want unknown fields omitted", s)
	}
}

func TestVersionInfo_UserAgent(t *testing.T) {
	t.Parallel()

	info := &VersionInfo{Version: "1.2.3", Platform: "linux/amd64"}
	if got, want := info.UserAgent(), "mailmerge/1.2.3 (linux/amd64)"; got != want {
		t.Errorf("UserAgent: got %q, want %q", got, want)
	}
}

func TestVersionInfo_IsDevBuild(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		info VersionInfo
		want bool
	}{
		{
			name: "dev version",
			info: VersionInfo{Version: "dev", GitCommit: "abc1234"},
			want: true,
		},
		{
			name: "dirty commit",
			info: VersionInfo{Version: "1.2.3", GitCommit: "abc1234-dirty"},
			want: true,
		},
		{
			name: "unknown commit",
			info: VersionInfo{Version: "1.2.3", GitCommit: "unknown"},
			want: true,
		},
		{
			name: "release build",
			info: VersionInfo{Version: "1.2.3", GitCommit: "abc1234"},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.info.IsDevBuild(); got != tt.want {
				t.Errorf("IsDevBuild: got %v, want %v", got, tt.want)
			}
		})
	}
}
