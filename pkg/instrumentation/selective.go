package instrumentation

import (
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/willibrandon/revdb/pkg/config"
)

// InstrumentationOptions selects which packages get stop points from
// FuncEntry and FuncExit. Value wrappers such as Now are not filtered: a
// skipped value would desynchronize the log.
type InstrumentationOptions struct {
	// Enabled turns package stop points on or off
	Enabled bool `env:"REVDB_INSTRUMENT_ENABLED" envDefault:"true"`

	// IncludePackages is a list of package paths to instrument
	// Empty means all packages are instrumented
	IncludePackages []string `env:"REVDB_INSTRUMENT" envSeparator:","`

	// ExcludePackages is a list of package paths to exclude from instrumentation
	// This takes precedence over IncludePackages
	ExcludePackages []string `env:"REVDB_EXCLUDE" envSeparator:","`

	// InstrumentStdlib indicates whether to instrument standard library code
	InstrumentStdlib bool `env:"REVDB_INSTRUMENT_STDLIB"`
}

// DefaultInstrumentationOptions returns the default instrumentation options
func DefaultInstrumentationOptions() InstrumentationOptions {
	return InstrumentationOptions{
		Enabled:          true,
		IncludePackages:  []string{}, // Empty means all packages
		ExcludePackages:  []string{},
		InstrumentStdlib: false,
	}
}

// Global instrumentation options
var (
	CurrentOptions = loadOptionsFromEnvironment()
)

// LoadOptionsFromEnvironment reads instrumentation options from REVDB_*
// environment variables.
func LoadOptionsFromEnvironment() (InstrumentationOptions, error) {
	options := DefaultInstrumentationOptions()
	if err := config.ParseEnv(&options); err != nil {
		return DefaultInstrumentationOptions(), err
	}
	options.IncludePackages = trimAll(options.IncludePackages)
	options.ExcludePackages = trimAll(options.ExcludePackages)
	return options, nil
}

func loadOptionsFromEnvironment() InstrumentationOptions {
	options, err := LoadOptionsFromEnvironment()
	if err != nil {
		slog.Warn("revdb: ignoring instrumentation environment", "err", err)
	}
	return options
}

func trimAll(patterns []string) []string {
	out := patterns[:0]
	for _, p := range patterns {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ShouldInstrument checks if a package should be instrumented
func ShouldInstrument(packagePath string) bool {
	if !CurrentOptions.Enabled {
		return false
	}

	// Standard library import paths have no dot in their first element.
	// Command packages are always named main.
	isStdlib := packagePath != "main" && !strings.Contains(packagePath, ".")
	if isStdlib && !CurrentOptions.InstrumentStdlib {
		return false
	}

	for _, exclude := range CurrentOptions.ExcludePackages {
		if matchesPackagePath(packagePath, exclude) {
			return false
		}
	}

	if len(CurrentOptions.IncludePackages) == 0 {
		return true
	}

	for _, include := range CurrentOptions.IncludePackages {
		if matchesPackagePath(packagePath, include) {
			return true
		}
	}

	return false
}

// matchesPackagePath checks if a package matches a pattern. A trailing
// "..." matches every package below the prefix.
func matchesPackagePath(packagePath, pattern string) bool {
	if strings.HasSuffix(pattern, "...") {
		prefix := strings.TrimSuffix(pattern, "...")
		return strings.HasPrefix(packagePath, prefix)
	}

	matched, _ := filepath.Match(pattern, packagePath)
	return matched
}

// SetInstrumentationOptions sets the current instrumentation options
func SetInstrumentationOptions(options InstrumentationOptions) {
	CurrentOptions = options
}
