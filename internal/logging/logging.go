// Package logging builds the component loggers used across DoDash.
//
// Every component takes a *log.Logger with a "[component] " prefix. Output
// goes to stderr and, when a log file is configured, is also written to a
// size-rotated file.
package logging

import (
	"io"
	"log"
	"net/http"
	"os"
	"sync"

	"github.com/felixge/httpsnoop"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configure the shared log output.
type Options struct {
	// File is an optional log file path. Empty means stderr only.
	File string

	// MaxSizeMB is the size at which the log file is rotated (default: 10)
	MaxSizeMB int

	// MaxBackups is the number of rotated files kept (default: 3)
	MaxBackups int

	// Quiet drops stderr output and keeps only the file, if any.
	Quiet bool
}

var (
	mu     sync.Mutex
	output io.Writer = os.Stderr
	rotate *lumberjack.Logger
)

// Setup installs the shared log output. It is safe to call more than once;
// a previously opened log file is closed.
func Setup(opts Options) {
	mu.Lock()
	defer mu.Unlock()

	if rotate != nil {
		_ = rotate.Close()
		rotate = nil
	}

	var writers []io.Writer
	if !opts.Quiet {
		writers = append(writers, os.Stderr)
	}
	if opts.File != "" {
		if opts.MaxSizeMB <= 0 {
			opts.MaxSizeMB = 10
		}
		if opts.MaxBackups <= 0 {
			opts.MaxBackups = 3
		}
		rotate = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
		}
		writers = append(writers, rotate)
	}

	switch len(writers) {
	case 0:
		output = io.Discard
	case 1:
		output = writers[0]
	default:
		output = io.MultiWriter(writers...)
	}
}

// Close flushes and closes the log file, if one is open.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if rotate == nil {
		return nil
	}
	err := rotate.Close()
	rotate = nil
	output = os.Stderr
	return err
}

// Writer returns the current shared log output.
func Writer() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	return output
}

// New returns a logger for component, e.g. New("server") prefixes lines
// with "[server] ".
func New(component string) *log.Logger {
	return log.New(Writer(), "["+component+"] ", log.LstdFlags)
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// Middleware logs one line per HTTP request with its status and duration.
func Middleware(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m := httpsnoop.CaptureMetrics(next, w, r)
			logger.Printf("%s %s %d %s (%d bytes)", r.Method, r.URL.Path, m.Code, m.Duration, m.Written)
		})
	}
}
