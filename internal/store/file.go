package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mschirtzinger/dodash/internal/schema"
)

// FileStore keeps the document in a single JSON file.
//
// Writes go to a uniquely named sibling temp file which is synced and then
// renamed over the target, so a concurrent reader sees the old or the new
// file and never a truncated one.
type FileStore struct {
	path   string
	logger *log.Logger

	// mu orders writers inside this process so WriteIfVersion can compare
	// and swap. Readers never take it.
	mu sync.Mutex
}

// OpenFile opens the JSON file store at path, creating the parent directory
// and bootstrapping a default document when the file is absent, unreadable
// or malformed.
func OpenFile(path string, logger *log.Logger) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("data file path cannot be empty")
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[store] ", log.LstdFlags)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, &IOError{Op: "create data directory", Path: filepath.Dir(path), Err: err}
	}

	s := &FileStore{path: path, logger: logger}
	if err := s.initialize(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the data file path.
func (s *FileStore) Path() string {
	return s.path
}

// initialize ensures a well-formed document exists on disk. An existing
// malformed file is preserved next to the target before being replaced.
func (s *FileStore) initialize() error {
	data, err := os.ReadFile(s.path)
	switch {
	case err == nil:
		_, perr := schema.Parse(data)
		if perr == nil {
			s.logger.Printf("Existing data file is valid: %s", s.path)
			return nil
		}
		s.logger.Printf("Data file %s is malformed: %v", s.path, perr)
		backup := fmt.Sprintf("%s.corrupt-%d", s.path, time.Now().Unix())
		if err := os.Rename(s.path, backup); err != nil {
			return &IOError{Op: "preserve malformed data file", Path: s.path, Err: err}
		}
		s.logger.Printf("Preserved malformed data file as %s", backup)
	case errors.Is(err, os.ErrNotExist):
		s.logger.Printf("Creating new data file: %s", s.path)
	default:
		s.logger.Printf("Data file %s is unreadable: %v", s.path, err)
	}

	data, err = encode(schema.Default())
	if err != nil {
		return fmt.Errorf("failed to encode default document: %w", err)
	}
	if err := s.replace(data); err != nil {
		return err
	}
	s.logger.Printf("Created new data file with initial content")
	return nil
}

// Read implements Store.Read.
func (s *FileStore) Read(ctx context.Context) (*schema.Document, error) {
	doc, _, err := s.ReadVersion(ctx)
	return doc, err
}

// ReadVersion implements Versioned.ReadVersion.
func (s *FileStore) ReadVersion(ctx context.Context) (*schema.Document, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, "", &IOError{Op: "read", Path: s.path, Err: err}
	}

	doc, err := schema.Parse(data)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s: %w", ErrCorrupt, s.path, err)
	}
	return doc, Version(data), nil
}

// Write implements Store.Write.
func (s *FileStore) Write(ctx context.Context, doc *schema.Document) error {
	_, err := s.WriteIfVersion(ctx, doc, "")
	return err
}

// WriteIfVersion implements Versioned.WriteIfVersion.
func (s *FileStore) WriteIfVersion(ctx context.Context, doc *schema.Document, version string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := encode(doc)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if version != "" {
		current, err := os.ReadFile(s.path)
		if err != nil {
			return "", &IOError{Op: "read", Path: s.path, Err: err}
		}
		if Version(current) != version {
			return "", ErrConflict
		}
	}

	if err := s.replace(data); err != nil {
		return "", err
	}
	return Version(data), nil
}

// replace atomically swaps the file content for data.
func (s *FileStore) replace(data []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &IOError{Op: "create data directory", Path: dir, Err: err}
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return &IOError{Op: "create temp file", Path: dir, Err: err}
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return &IOError{Op: "write", Path: tmpPath, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return &IOError{Op: "sync", Path: tmpPath, Err: err}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return &IOError{Op: "close", Path: tmpPath, Err: err}
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		_ = os.Remove(tmpPath)
		return &IOError{Op: "chmod", Path: tmpPath, Err: err}
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return &IOError{Op: "rename", Path: s.path, Err: err}
	}
	return nil
}

// Close implements Store.Close. The file store holds no open handles.
func (s *FileStore) Close() error {
	return nil
}
