package revdb

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/willibrandon/revdb/pkg/config"
	"github.com/willibrandon/revdb/pkg/recorder"
	"github.com/willibrandon/revdb/pkg/store"
)

const (
	replayFlag = "--revdb-replay"
	recordFlag = "--revdb-record"
)

var (
	// ErrMissingPath is returned by Setup when a revdb flag has no value.
	ErrMissingPath = errors.New("missing log path")

	// ErrConflictingModes is returned by Setup when --revdb-record is given
	// together with a replay path.
	ErrConflictingModes = errors.New("record and replay are mutually exclusive")
)

// Setup starts the session of a process. Settings come from the REVDB_*
// environment variables and then from args:
//
//	--revdb-replay FILE   replay FILE
//	--revdb-record FILE   record to FILE (overrides REVDB)
//
// Giving --revdb-record with a replay path, from REVDB_REPLAY or the flag,
// is an error.
// With neither a replay nor a record path the process records to a sink that
// discards everything. The returned args have the revdb flags removed. opts
// are applied after the environment and take precedence.
func Setup(args []string, opts ...Option) (*Session, []string, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	rest, err := parseArgs(args, &cfg)
	if err != nil {
		return nil, nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	all := []Option{
		WithLogger(logger),
		WithBufferSize(cfg.BufferSize),
		WithCheckpointInterval(cfg.CheckpointInterval),
		WithTraceEmits(cfg.TraceEmits),
	}

	if cfg.ReplayPath != "" {
		all = append(append(all, WithIndexPath(recorder.IndexPath(cfg.ReplayPath))), opts...)
		src, err := store.OpenFileWithOptions(cfg.ReplayPath, store.SourceOptions{FrameCacheSize: cfg.FrameCacheSize})
		if err != nil {
			return nil, nil, fmt.Errorf("open replay log: %w", err)
		}
		s, err := NewReplayer(src, all...)
		if err != nil {
			src.Close()
			return nil, nil, fmt.Errorf("replay %s: %w", cfg.ReplayPath, err)
		}
		return s, rest, nil
	}

	compression, err := store.ParseCompression(cfg.Compression)
	if err != nil {
		return nil, nil, err
	}

	if cfg.RecordPath == "" {
		return NewRecorder(store.Discard(store.NewHeader(compression)), append(all, opts...)...), rest, nil
	}

	all = append(append(all, WithIndexPath(recorder.IndexPath(cfg.RecordPath))), opts...)
	sink, err := store.CreateFile(cfg.RecordPath, compression)
	if err != nil {
		return nil, nil, fmt.Errorf("create log: %w", err)
	}
	return NewRecorder(sink, all...), rest, nil
}

// parseArgs strips the revdb flags from args into cfg.
func parseArgs(args []string, cfg *config.Config) ([]string, error) {
	rest := make([]string, 0, len(args))
	recording := false
	for i := 0; i < len(args); i++ {
		arg := args[i]

		var target *string
		var value string
		switch {
		case arg == replayFlag || arg == recordFlag:
			if i+1 >= len(args) {
				return nil, fmt.Errorf("%w after %s", ErrMissingPath, arg)
			}
			i++
			value = args[i]
		case strings.HasPrefix(arg, replayFlag+"="), strings.HasPrefix(arg, recordFlag+"="):
			_, value, _ = strings.Cut(arg, "=")
			if value == "" {
				return nil, fmt.Errorf("%w in %s", ErrMissingPath, arg)
			}
		default:
			rest = append(rest, arg)
			continue
		}

		if strings.HasPrefix(arg, replayFlag) {
			target = &cfg.ReplayPath
		} else {
			target = &cfg.RecordPath
			recording = true
		}
		*target = value
	}
	if recording && cfg.ReplayPath != "" {
		return nil, fmt.Errorf("%w: %s and %s", ErrConflictingModes, recordFlag, cfg.ReplayPath)
	}
	return rest, nil
}
