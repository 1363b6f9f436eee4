// Package contracts holds the types shared between the panel and its
// clients: the domain model, the live feed messages and build metadata.
package contracts

import (
	"fmt"
	"runtime"
)

const (
	// DataFormatVersion is the version of the persisted JSON documents
	DataFormatVersion = "v1"

	// APIVersion is the version of the admin API and feed messages
	APIVersion = "v1"
)

var (
	// Version is set during build using ldflags
	Version = "dev"

	// BuildTime is set during build using ldflags
	BuildTime = "unknown"

	// GitCommit is set during build using ldflags
	GitCommit = "unknown"
)

// VersionInfo contains detailed version information
type VersionInfo struct {
	Version      string `json:"version"`
	BuildTime    string `json:"build_time"`
	GitCommit    string `json:"git_commit"`
	GoVersion    string `json:"go_version"`
	OS           string `json:"os"`
	Architecture string `json:"architecture"`
	DataFormat   string `json:"data_format"`
	APIVersion   string `json:"api_version"`
}

// GetVersionInfo returns detailed version information
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:      Version,
		BuildTime:    BuildTime,
		GitCommit:    GitCommit,
		GoVersion:    runtime.Version(),
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
		DataFormat:   DataFormatVersion,
		APIVersion:   APIVersion,
	}
}

// GetFullVersionString returns a one-line version banner.
func GetFullVersionString() string {
	info := GetVersionInfo()
	return fmt.Sprintf("License Panel %s (built: %s, commit: %s, go: %s, os: %s/%s)",
		info.Version, info.BuildTime, info.GitCommit, info.GoVersion, info.OS, info.Architecture)
}

// IsDevBuild reports whether the binary was built without a version stamp.
func IsDevBuild() bool {
	return Version == "dev"
}
