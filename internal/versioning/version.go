package versioning

import (
	"fmt"
	"regexp"
	"runtime"
	"strconv"
)

// Set at build time with -ldflags "-X whatsflow/internal/versioning.Version=...".
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// APIVersion is a semantic version of the HTTP API.
type APIVersion struct {
	Major      int    `json:"major"`
	Minor      int    `json:"minor"`
	Patch      int    `json:"patch"`
	Prerelease string `json:"prerelease,omitempty"`
}

// CurrentAPIVersion is what this build serves.
var CurrentAPIVersion = APIVersion{Major: 1, Minor: 0, Patch: 0}

func (v APIVersion) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Prerelease != "" {
		s += "-" + v.Prerelease
	}
	return s
}

// Compare returns -1, 0 or 1. A release sorts after its prereleases.
func (v APIVersion) Compare(other APIVersion) int {
	for _, d := range [...]int{v.Major - other.Major, v.Minor - other.Minor, v.Patch - other.Patch} {
		switch {
		case d < 0:
			return -1
		case d > 0:
			return 1
		}
	}
	switch {
	case v.Prerelease == other.Prerelease:
		return 0
	case v.Prerelease == "":
		return 1
	case other.Prerelease == "":
		return -1
	case v.Prerelease < other.Prerelease:
		return -1
	default:
		return 1
	}
}

// Serves reports whether a server at v can answer a client asking for requested:
// same major, and requested is not newer than v.
func (v APIVersion) Serves(requested APIVersion) bool {
	return v.Major == requested.Major && v.Compare(requested) >= 0
}

var versionPattern = regexp.MustCompile(`^v?(\d+)(?:\.(\d+))?(?:\.(\d+))?(?:-([0-9A-Za-z.-]+))?$`)

// ParseVersion accepts "1", "1.2", "1.2.3", "v1.2.3" and "1.2.3-beta".
func ParseVersion(s string) (APIVersion, error) {
	m := versionPattern.FindStringSubmatch(s)
	if m == nil {
		return APIVersion{}, fmt.Errorf("invalid version format: %q", s)
	}
	var parts [3]int
	for i := range parts {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return APIVersion{}, fmt.Errorf("invalid version component %q: %w", m[i+1], err)
		}
		parts[i] = n
	}
	return APIVersion{Major: parts[0], Minor: parts[1], Patch: parts[2], Prerelease: m[4]}, nil
}

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version    string `json:"version"`
	GitCommit  string `json:"git_commit"`
	BuildTime  string `json:"build_time"`
	GoVersion  string `json:"go_version"`
	APIVersion string `json:"api_version"`
}

func Info() BuildInfo {
	return BuildInfo{
		Version:    Version,
		GitCommit:  GitCommit,
		BuildTime:  BuildTime,
		GoVersion:  runtime.Version(),
		APIVersion: CurrentAPIVersion.String(),
	}
}

func (b BuildInfo) String() string {
	return fmt.Sprintf("whatsflow %s (commit %s, built %s, %s)", b.Version, b.GitCommit, b.BuildTime, b.GoVersion)
}
