package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/mschirtzinger/dodash/internal/schema"
)

// SQLiteStore keeps the document as a single row of an embedded SQLite
// database running in WAL mode. Each write is one transaction, which gives
// the same all-or-nothing visibility as the file store's rename.
type SQLiteStore struct {
	conn   *sql.DB
	path   string
	logger *log.Logger
}

// OpenSQLite opens (or creates) the database at path, creates the schema
// and bootstraps the default document when the row is missing or malformed.
//
// The caller MUST call Close() when done so the WAL is checkpointed.
func OpenSQLite(path string, logger *log.Logger) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[store] ", log.LstdFlags)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, &IOError{Op: "create database directory", Path: filepath.Dir(path), Err: err}
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, &IOError{Op: "open database", Path: path, Err: err}
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, &IOError{Op: "ping database", Path: path, Err: err}
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &SQLiteStore{conn: conn, path: path, logger: logger}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := s.initSchema(context.Background()); err != nil {
		_ = s.Close()
		return nil, err
	}
	if err := s.initialize(context.Background()); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	ddl := `
	CREATE TABLE IF NOT EXISTS document (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		body TEXT NOT NULL,
		version TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Malformed documents found at startup, kept for manual recovery
	CREATE TABLE IF NOT EXISTS document_corrupt (
		body TEXT NOT NULL,
		found_at TEXT NOT NULL
	);
	`
	if _, err := s.conn.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) initialize(ctx context.Context) error {
	var body string
	err := s.conn.QueryRowContext(ctx, `SELECT body FROM document WHERE id = 1`).Scan(&body)
	switch {
	case err == nil:
		_, perr := schema.Parse([]byte(body))
		if perr == nil {
			s.logger.Printf("Existing document is valid: %s", s.path)
			return nil
		}
		s.logger.Printf("Stored document is malformed: %v", perr)
		if _, err := s.conn.ExecContext(ctx,
			`INSERT INTO document_corrupt (body, found_at) VALUES (?, ?)`,
			body, time.Now().UTC().Format(time.RFC3339),
		); err != nil {
			return fmt.Errorf("failed to preserve malformed document: %w", err)
		}
	case errors.Is(err, sql.ErrNoRows):
		s.logger.Printf("Creating new document: %s", s.path)
	default:
		return &IOError{Op: "read", Path: s.path, Err: err}
	}

	if _, err := s.WriteIfVersion(ctx, schema.Default(), ""); err != nil {
		return fmt.Errorf("failed to write default document: %w", err)
	}
	return nil
}

// Read implements Store.Read.
func (s *SQLiteStore) Read(ctx context.Context) (*schema.Document, error) {
	doc, _, err := s.ReadVersion(ctx)
	return doc, err
}

// ReadVersion implements Versioned.ReadVersion.
func (s *SQLiteStore) ReadVersion(ctx context.Context) (*schema.Document, string, error) {
	if s.conn == nil {
		return nil, "", ErrClosed
	}

	var body, version string
	err := s.conn.QueryRowContext(ctx, `SELECT body, version FROM document WHERE id = 1`).Scan(&body, &version)
	if err != nil {
		return nil, "", &IOError{Op: "read", Path: s.path, Err: err}
	}

	doc, err := schema.Parse([]byte(body))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s: %w", ErrCorrupt, s.path, err)
	}
	return doc, version, nil
}

// Write implements Store.Write.
func (s *SQLiteStore) Write(ctx context.Context, doc *schema.Document) error {
	_, err := s.WriteIfVersion(ctx, doc, "")
	return err
}

// WriteIfVersion implements Versioned.WriteIfVersion.
func (s *SQLiteStore) WriteIfVersion(ctx context.Context, doc *schema.Document, version string) (string, error) {
	if s.conn == nil {
		return "", ErrClosed
	}

	data, err := encode(doc)
	if err != nil {
		return "", err
	}
	newVersion := Version(data)

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return "", &IOError{Op: "begin transaction", Path: s.path, Err: err}
	}
	defer tx.Rollback()

	if version != "" {
		var current string
		err := tx.QueryRowContext(ctx, `SELECT version FROM document WHERE id = 1`).Scan(&current)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return "", &IOError{Op: "read version", Path: s.path, Err: err}
		}
		if current != version {
			return "", ErrConflict
		}
	}

	query := `
	INSERT INTO document (id, body, version, updated_at)
	VALUES (1, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		body = excluded.body,
		version = excluded.version,
		updated_at = excluded.updated_at
	`
	if _, err := tx.ExecContext(ctx, query, string(data), newVersion, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return "", &IOError{Op: "write", Path: s.path, Err: err}
	}

	if err := tx.Commit(); err != nil {
		return "", &IOError{Op: "commit", Path: s.path, Err: err}
	}
	return newVersion, nil
}

// Close implements Store.Close.
// Performs a WAL checkpoint to ensure all changes are persisted.
func (s *SQLiteStore) Close() error {
	if s.conn == nil {
		return nil
	}

	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		s.logger.Printf("Warning: failed to checkpoint WAL: %v", err)
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	s.conn = nil
	return nil
}
