// Package config loads session configuration from REVDB_* environment
// variables.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config holds the environment-driven settings of a record/replay session.
type Config struct {
	// RecordPath is the log written when recording. Empty disables the log.
	RecordPath string `env:"REVDB"`
	// ReplayPath selects replay mode when set.
	ReplayPath string `env:"REVDB_REPLAY"`

	BufferSize         int    `env:"REVDB_BUFFER_SIZE" envDefault:"65536"`
	Compression        string `env:"REVDB_COMPRESSION" envDefault:"none"`
	CheckpointInterval uint64 `env:"REVDB_CHECKPOINT_INTERVAL" envDefault:"0"`
	FrameCacheSize     int    `env:"REVDB_FRAME_CACHE" envDefault:"16"`

	// TraceEmits logs every emitted value at debug level.
	TraceEmits bool   `env:"REVDB_TRACE"`
	LogLevel   string `env:"REVDB_LOG_LEVEL" envDefault:"info"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load returns the session configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SlogLevel maps LogLevel to a slog level. Unknown values map to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
