package resync

// Version is the current version of the resync library.
const Version = "v0.3.1"

// VersionInfo provides version information.
type VersionInfo struct {
	Version   string
	GoVersion string
}

// GetVersionInfo returns the current version information.
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version: Version,
	}
}
