package revdb

import (
	"log/slog"
	"os"

	"github.com/willibrandon/revdb/pkg/channel"
)

// Hooks are the callbacks the control layer installs on a session.
type Hooks struct {
	// Breakpoint runs when the stop point count reaches the breakpoint target.
	Breakpoint func(s *Session)

	// UniqueIDBreak runs when an allocation hits the unique id break target
	// or is made for NoHandle. It returns the id to use, which must not be
	// below the proposed one.
	UniqueIDBreak func(s *Session, h Handle, proposed uint64) uint64

	// Snapshot captures host state at a checkpoint. The bytes are stored in
	// the checkpoint and handed back to the ChangeTime resume callback.
	Snapshot func(s *Session) []byte
}

// Options configures a session
type Options struct {
	// BufferSize is the channel buffer capacity in bytes.
	BufferSize int

	// CheckpointInterval adds a checkpoint every N stop points. Zero keeps
	// only the origin checkpoint.
	CheckpointInterval uint64

	// IndexPath is where the checkpoint index is written at teardown when
	// recording, and read from when replaying. Empty disables it.
	IndexPath string

	Logger *slog.Logger

	// Fatal is called with the error that ends the session. It should not
	// return; if it does the session panics with the same error.
	Fatal func(err error)

	Hooks Hooks

	// TraceEmits logs every emitted value with its call site at debug level.
	TraceEmits bool
}

// Option modifies Options
type Option func(*Options)

// DefaultOptions returns the default session options
func DefaultOptions() Options {
	return Options{
		BufferSize:         channel.DefaultCapacity,
		CheckpointInterval: 0,
		Logger:             slog.Default(),
	}
}

// WithBufferSize sets the channel buffer capacity
func WithBufferSize(n int) Option {
	return func(o *Options) {
		o.BufferSize = n
	}
}

// WithCheckpointInterval adds a checkpoint every n stop points
func WithCheckpointInterval(n uint64) Option {
	return func(o *Options) {
		o.CheckpointInterval = n
	}
}

// WithIndexPath sets the checkpoint index path
func WithIndexPath(path string) Option {
	return func(o *Options) {
		o.IndexPath = path
	}
}

// WithLogger sets the session logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

// WithFatalHandler replaces the default fatal handler, which logs and exits
func WithFatalHandler(fn func(err error)) Option {
	return func(o *Options) {
		o.Fatal = fn
	}
}

// WithHooks installs control layer callbacks
func WithHooks(hooks Hooks) Option {
	return func(o *Options) {
		o.Hooks = hooks
	}
}

// WithTraceEmits enables per-value debug logging
func WithTraceEmits(enabled bool) Option {
	return func(o *Options) {
		o.TraceEmits = enabled
	}
}

func buildOptions(opts []Option) Options {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if options.Fatal == nil {
		logger := options.Logger
		options.Fatal = func(err error) {
			logger.Error("revdb: fatal", "err", err)
			os.Exit(1)
		}
	}
	return options
}
