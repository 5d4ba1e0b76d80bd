// Package jitlog writes tag-prefixed diagnostic records to a file chosen by
// the JITLOG environment variable.
//
// The sink is best effort. Records written before initialization or after
// teardown are dropped, write errors are ignored, and a record is not atomic:
// the tag and the payload are two writes.
//
// A Logger is not safe for concurrent use.
package jitlog

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// EnvVar names the environment variable read by InitFromEnv. Its value is
// one of
//
//	file          log everything to file
//	+file         the same, even when file contains a colon
//	prefix:file   log to file, filtered by prefix
//
// A %d in file is replaced with the process id, and the variable is then left
// set so child processes log to their own file. Otherwise it is unset once
// read. A file of "-" initializes the logger without opening anything.
const EnvVar = "JITLOG"

// fileMode is rwxrwxr-x.
const fileMode = 0o775

// descriptor is the open log file.
type descriptor interface {
	Write(p []byte) (int, error)
	Close() error
}

// Logger is the state of one event log.
type Logger struct {
	out      descriptor
	path     string
	prefix   string
	ready    bool
	torn     bool
	getpid   func() int
	counters []*Counter
}

// New returns an uninitialized logger.
func New() *Logger {
	return &Logger{getpid: os.Getpid}
}

// Default is the process event log used by the package-level functions.
var Default = New()

// Enabled reports whether the logger has been initialized.
func (l *Logger) Enabled() bool { return l.ready }

// Prefix returns the filter prefix given at initialization.
func (l *Logger) Prefix() string { return l.prefix }

// Path returns the file opened by InitFromEnv, if any.
func (l *Logger) Path() string { return l.path }

// InitFromEnv initializes the logger from JITLOG. It does nothing if the
// logger is already initialized or has been torn down. The logger is marked
// ready even when the variable is unset or the file cannot be opened; writes
// are then dropped.
func (l *Logger) InitFromEnv() error {
	if l.ready || l.torn {
		return nil
	}
	defer func() { l.ready = true }()

	value := os.Getenv(EnvVar)
	if value == "" {
		return nil
	}

	filename := value
	if rest, ok := strings.CutPrefix(filename, "+"); ok {
		filename = rest
	} else if prefix, rest, ok := strings.Cut(filename, ":"); ok {
		l.prefix = prefix
		filename = rest
	}

	before, after, pid := strings.Cut(filename, "%d")
	if pid {
		filename = before + strconv.Itoa(l.getpid()) + after
	} else {
		os.Unsetenv(EnvVar)
	}

	if filename == "-" {
		return nil
	}
	out, err := openFile(filename)
	if err != nil {
		return fmt.Errorf("open %s: %w", filename, err)
	}
	l.out = out
	l.path = filename
	return nil
}

// Init initializes the logger with an open file, which it takes ownership of.
// After Teardown the file is closed instead.
func (l *Logger) Init(f *os.File, prefix string) {
	if l.torn {
		f.Close()
		return
	}
	l.out = f
	l.prefix = prefix
	l.ready = true
}

// InitFD initializes the logger with an open file descriptor, which it takes
// ownership of. After Teardown the descriptor is closed instead.
func (l *Logger) InitFD(fd int, prefix string) {
	if l.torn {
		fromFD(fd).Close()
		return
	}
	l.out = fromFD(fd)
	l.prefix = prefix
	l.ready = true
}

// Teardown closes the file and clears the prefix. Later writes are dropped
// and the logger cannot be initialized again.
func (l *Logger) Teardown() error {
	l.ready = false
	l.torn = true
	l.prefix = ""
	if l.out == nil {
		return nil
	}
	out := l.out
	l.out = nil
	return out.Close()
}

// WriteMarked writes tag followed by payload. There is no length prefix.
func (l *Logger) WriteMarked(tag byte, payload []byte) {
	if !l.ready || l.out == nil {
		return
	}
	l.out.Write([]byte{tag})
	l.out.Write(payload)
}

// Enabled reports whether the default logger has been initialized.
func Enabled() bool { return Default.Enabled() }

// InitFromEnv initializes the default logger from JITLOG.
func InitFromEnv() error { return Default.InitFromEnv() }

// Init initializes the default logger with an open file.
func Init(f *os.File, prefix string) { Default.Init(f, prefix) }

// InitFD initializes the default logger with an open file descriptor.
func InitFD(fd int, prefix string) { Default.InitFD(fd, prefix) }

// Teardown closes the default logger.
func Teardown() error { return Default.Teardown() }

// WriteMarked writes a record to the default logger.
func WriteMarked(tag byte, payload []byte) { Default.WriteMarked(tag, payload) }
