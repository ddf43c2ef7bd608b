package store

import (
	"errors"
	"fmt"
)

// Common errors returned by stores.
//
// These can be checked with errors.Is:
//
//	if errors.Is(err, store.ErrConflict) {
//	    // re-read and retry the edit
//	}
var (
	// ErrCorrupt is returned by reads when the persisted document exists but
	// fails to parse or validate. Reads never repair; repair happens only
	// when a store is opened.
	ErrCorrupt = errors.New("stored document is corrupt")

	// ErrConflict is returned by WriteIfVersion when the stored document
	// changed since the caller read it.
	ErrConflict = errors.New("document version mismatch")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store is closed")

	// ErrUnknownBackend is returned by New for an unsupported backend name.
	ErrUnknownBackend = errors.New("unknown store backend")
)

// IOError reports that the backing storage could not be read or written.
type IOError struct {
	Op   string // read, write, rename, ...
	Path string
	Err  error
}

func (e *IOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *IOError) Unwrap() error {
	return e.Err
}

// IsIOError reports whether err contains an *IOError.
func IsIOError(err error) bool {
	var ioe *IOError
	return errors.As(err, &ioe)
}
