// Package store persists the single DoDash document.
//
// A store holds exactly one document and serves it whole. Writes are
// validated with the strict schema policy and replace the stored document
// atomically: readers observe either the previous or the new document,
// never a partial one. Concurrent writers are not serialized beyond that;
// the last write wins.
//
// Three backends are provided:
//
//   - FileStore: a JSON file replaced by write-to-temp then rename (default)
//   - SQLiteStore: a single row in an embedded SQLite database
//   - MemoryStore: an in-process copy, used by tests and ephemeral servers
//
// All backends implement Versioned, which adds an optimistic-concurrency
// write (WriteIfVersion) on top of plain last-writer-wins.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"os"

	"github.com/mschirtzinger/dodash/internal/schema"
)

// Store reads and replaces the whole document.
type Store interface {
	// Read returns the persisted document.
	Read(ctx context.Context) (*schema.Document, error)

	// Write validates doc and atomically replaces the persisted document.
	// Invalid documents are rejected with a *schema.ValidationError and the
	// stored document is left untouched.
	Write(ctx context.Context, doc *schema.Document) error

	// Close releases backend resources.
	Close() error
}

// Versioned is a Store that exposes document versions for
// compare-and-swap writes.
type Versioned interface {
	Store

	// ReadVersion returns the document together with its version.
	ReadVersion(ctx context.Context) (*schema.Document, string, error)

	// WriteIfVersion writes doc only if the stored version equals version.
	// An empty version behaves like Write. Returns the new version, or
	// ErrConflict when the stored document changed.
	WriteIfVersion(ctx context.Context, doc *schema.Document, version string) (string, error)
}

// Backend names accepted by New.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Config selects and configures a backend.
type Config struct {
	// Backend is one of BackendFile, BackendSQLite, BackendMemory (default: file)
	Backend string

	// Path is the data file or database path (default: data/todos.json)
	Path string

	// Logger for store activity (default: stderr logger)
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendFile,
		Path:    "data/todos.json",
		Logger:  log.New(os.Stderr, "[store] ", log.LstdFlags),
	}
}

// New opens the configured backend, creating and bootstrapping the backing
// location if needed. A failure here means no writable location exists.
func New(config *Config) (Versioned, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = DefaultConfig().Logger
	}

	switch config.Backend {
	case "", BackendFile:
		return OpenFile(config.Path, config.Logger)
	case BackendSQLite:
		return OpenSQLite(config.Path, config.Logger)
	case BackendMemory:
		return NewMemory(nil), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, config.Backend)
	}
}

// Version returns the version string of a serialized document: the hex
// SHA-256 of its bytes.
func Version(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// encode validates and serializes a document for persistence.
func encode(doc *schema.Document) ([]byte, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return schema.Marshal(doc)
}
