// Package version reports the build version of the revdb tools.
package version

import (
	"fmt"
	"runtime"
	"strconv"

	"github.com/willibrandon/revdb/pkg/store"
)

// These variables are set with -ldflags at build time
var (
	// Version is the release of the build
	Version = "dev"
	// BuildTime is the time when the build was created
	BuildTime = "unknown"
)

// GetVersionInfo returns the version, the log format it writes and the
// host it was built for
func GetVersionInfo() string {
	return fmt.Sprintf("revdb %s (log format v%d, %d-bit %s/%s, built: %s)",
		Version,
		store.Version,
		strconv.IntSize,
		runtime.GOOS,
		runtime.GOARCH,
		BuildTime,
	)
}

// GetVersion returns just the version number
func GetVersion() string {
	return Version
}

// GetBuildTime returns the build timestamp
func GetBuildTime() string {
	return BuildTime
}
