// Package instrumentation provides ready-made record/replay wrappers for the
// usual sources of non-determinism in a Go program, and stop points for
// function boundaries.
package instrumentation

import (
	"runtime"
	"strings"

	"github.com/willibrandon/revdb/pkg/revdb"
)

// FuncEntry marks a stop point on entry to the calling function, if its
// package is instrumented.
func FuncEntry(s *revdb.Session) {
	if shouldInstrumentCaller() {
		s.StopPoint()
	}
}

// FuncExit marks a stop point on exit from the calling function, if its
// package is instrumented.
func FuncExit(s *revdb.Session) {
	if shouldInstrumentCaller() {
		s.StopPoint()
	}
}

// Statement marks a stop point at a statement of the calling function, if
// its package is instrumented.
func Statement(s *revdb.Session) {
	if shouldInstrumentCaller() {
		s.StopPoint()
	}
}

// shouldInstrumentCaller checks if the caller's package should be instrumented
func shouldInstrumentCaller() bool {
	// Skip this function and the hook that called it.
	pc, _, _, ok := runtime.Caller(2)
	if !ok {
		return true
	}

	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return true
	}

	return ShouldInstrument(extractPackagePath(fn.Name()))
}

// extractPackagePath extracts the package path from a full function name
func extractPackagePath(fullName string) string {
	lastSlash := strings.LastIndexByte(fullName, '/')
	if lastSlash < 0 {
		dotIndex := strings.IndexByte(fullName, '.')
		if dotIndex < 0 {
			return ""
		}
		return fullName[:dotIndex]
	}

	// The package name ends at the first dot after the last slash.
	funcName := fullName[lastSlash+1:]
	dotIndex := strings.IndexByte(funcName, '.')
	if dotIndex < 0 {
		return ""
	}

	return fullName[:lastSlash+1+dotIndex]
}
