package store

import (
	"context"
	"sync"

	"github.com/mschirtzinger/dodash/internal/schema"
)

// MemoryStore keeps the serialized document in memory. It applies the same
// validation and versioning as the durable backends, which makes it a
// drop-in fake for tests.
type MemoryStore struct {
	mu     sync.RWMutex
	data   []byte
	closed bool
}

// NewMemory returns a memory store holding initial, or the default
// document when initial is nil. An invalid initial document is replaced by
// the default one.
func NewMemory(initial *schema.Document) *MemoryStore {
	if initial == nil {
		initial = schema.Default()
	}
	data, err := encode(initial)
	if err != nil {
		data, _ = encode(schema.Default())
	}
	return &MemoryStore{data: data}
}

// Read implements Store.Read.
func (m *MemoryStore) Read(ctx context.Context) (*schema.Document, error) {
	doc, _, err := m.ReadVersion(ctx)
	return doc, err
}

// ReadVersion implements Versioned.ReadVersion.
func (m *MemoryStore) ReadVersion(ctx context.Context) (*schema.Document, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	m.mu.RLock()
	data, closed := m.data, m.closed
	m.mu.RUnlock()

	if closed {
		return nil, "", ErrClosed
	}
	doc, err := schema.Parse(data)
	if err != nil {
		return nil, "", err
	}
	return doc, Version(data), nil
}

// Write implements Store.Write.
func (m *MemoryStore) Write(ctx context.Context, doc *schema.Document) error {
	_, err := m.WriteIfVersion(ctx, doc, "")
	return err
}

// WriteIfVersion implements Versioned.WriteIfVersion.
func (m *MemoryStore) WriteIfVersion(ctx context.Context, doc *schema.Document, version string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := encode(doc)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return "", ErrClosed
	}
	if version != "" && Version(m.data) != version {
		return "", ErrConflict
	}
	m.data = data
	return Version(data), nil
}

// Close implements Store.Close.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
