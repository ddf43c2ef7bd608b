// Package client keeps an in-memory mirror of the DoDash document in sync
// with a server.
//
// The mirror is loaded once, refreshed periodically by a Poller (or by a
// websocket Subscription), and every local mutation is applied to a copy
// of the mirror which is then pushed whole. Concurrent writers are not
// coordinated: the last push wins unless the mirror is configured for
// conditional pushes.
package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/mschirtzinger/dodash/internal/schema"
)

// FailurePolicy decides what the mirror shows after a failed push.
type FailurePolicy int

const (
	// PolicyRollback keeps the pre-mutation mirror until a push succeeds.
	PolicyRollback FailurePolicy = iota
	// PolicyWarn applies the mutation immediately and keeps it even when
	// the push fails. The error is still reported.
	PolicyWarn
)

// String returns the policy name used in configuration.
func (p FailurePolicy) String() string {
	switch p {
	case PolicyRollback:
		return "rollback"
	case PolicyWarn:
		return "warn"
	default:
		return "unknown"
	}
}

// ParsePolicy parses "rollback" or "warn".
func ParsePolicy(s string) (FailurePolicy, error) {
	switch s {
	case "", "rollback":
		return PolicyRollback, nil
	case "warn":
		return PolicyWarn, nil
	default:
		return 0, fmt.Errorf("unknown failure policy %q", s)
	}
}

// MirrorConfig holds mirror configuration.
type MirrorConfig struct {
	// Policy applied when a push fails (default: PolicyRollback)
	Policy FailurePolicy

	// OnError is called with every fetch or push failure.
	OnError func(error)

	// Conditional sends the mirror's version with each push so a write
	// based on a stale mirror fails with ErrConflict.
	Conditional bool

	// NewID generates ids for new lists and tasks (default: random UUID)
	NewID func() schema.ID

	// Logger for mirror activity (default: stderr logger)
	Logger *log.Logger
}

// DefaultMirrorConfig returns sensible defaults.
func DefaultMirrorConfig() *MirrorConfig {
	return &MirrorConfig{
		Policy: PolicyRollback,
		NewID:  func() schema.ID { return schema.StringID(uuid.NewString()) },
		Logger: log.New(os.Stderr, "[client] ", log.LstdFlags),
	}
}

// Mirror is a client-side copy of the document plus the active list
// selection.
type Mirror struct {
	remote Remote
	config *MirrorConfig

	mu        sync.Mutex
	doc       *schema.Document
	version   string
	active    schema.ID
	hasActive bool
}

// NewMirror creates an empty mirror backed by remote. Call Load to fill it.
func NewMirror(remote Remote, config *MirrorConfig) *Mirror {
	def := DefaultMirrorConfig()
	if config == nil {
		config = def
	}
	if config.NewID == nil {
		config.NewID = def.NewID
	}
	if config.Logger == nil {
		config.Logger = def.Logger
	}
	return &Mirror{
		remote: remote,
		config: config,
		doc:    schema.Empty(),
	}
}

// Load fetches the document once and selects the first list. On failure
// the mirror falls back to an empty document and the error is reported
// and returned.
func (m *Mirror) Load(ctx context.Context) error {
	doc, version, err := m.remote.Fetch(ctx)

	m.mu.Lock()
	if err != nil {
		m.doc, m.version = schema.Empty(), ""
	} else {
		m.doc, m.version = doc, version
	}
	m.hasActive = false
	m.fixSelection()
	m.mu.Unlock()

	if err != nil {
		m.report(fmt.Errorf("failed to load document: %w", err))
		return err
	}
	return nil
}

// Refresh re-fetches the document and overwrites the mirror. A failed
// fetch leaves the mirror as it was.
func (m *Mirror) Refresh(ctx context.Context) error {
	doc, version, err := m.remote.Fetch(ctx)
	if err != nil {
		m.report(fmt.Errorf("failed to refresh document: %w", err))
		return err
	}
	m.Adopt(doc, version)
	return nil
}

// Adopt replaces the mirror with doc, e.g. one pushed by the server.
func (m *Mirror) Adopt(doc *schema.Document, version string) {
	if doc == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doc, m.version = doc.Clone(), version
	m.fixSelection()
}

// Snapshot returns a copy of the mirrored document.
func (m *Mirror) Snapshot() *schema.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.doc.Clone()
}

// Version returns the version of the mirrored document, if known.
func (m *Mirror) Version() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.version
}

// Active returns the selected list id, or false when nothing is selected.
func (m *Mirror) Active() (schema.ID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active, m.hasActive
}

// ActiveList returns a copy of the selected list.
func (m *Mirror) ActiveList() (schema.List, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasActive {
		return schema.List{}, false
	}
	l, i := m.doc.FindList(m.active)
	if l == nil {
		return schema.List{}, false
	}
	return m.doc.Clone().Lists[i], true
}

// Select makes id the active list.
func (m *Mirror) Select(id schema.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, _ := m.doc.FindList(id); l == nil {
		return schema.ErrListNotFound
	}
	m.active, m.hasActive = id, true
	return nil
}

// AddList creates a list and selects it once the push succeeds. An empty
// color gets the default for new lists.
func (m *Mirror) AddList(ctx context.Context, name, color string) (schema.ID, error) {
	id := m.config.NewID()
	err := m.mutate(ctx, func(d *schema.Document) error {
		return d.AddList(schema.List{ID: id, Name: name, Color: color})
	})
	if err != nil {
		return schema.ID{}, err
	}

	m.mu.Lock()
	if l, _ := m.doc.FindList(id); l != nil {
		m.active, m.hasActive = id, true
	}
	m.mu.Unlock()
	return id, nil
}

// RenameList renames a list.
func (m *Mirror) RenameList(ctx context.Context, id schema.ID, name string) error {
	return m.ignoreNotFound(m.mutate(ctx, func(d *schema.Document) error {
		return d.RenameList(id, name)
	}))
}

// RecolorList changes a list's color.
func (m *Mirror) RecolorList(ctx context.Context, id schema.ID, color string) error {
	return m.ignoreNotFound(m.mutate(ctx, func(d *schema.Document) error {
		return d.RecolorList(id, color)
	}))
}

// DeleteList removes a list. If it was selected, the selection falls back
// to the first remaining list, or to none.
func (m *Mirror) DeleteList(ctx context.Context, id schema.ID) error {
	return m.ignoreNotFound(m.mutate(ctx, func(d *schema.Document) error {
		return d.DeleteList(id)
	}))
}

// AddTask appends a task to a list and returns its id.
func (m *Mirror) AddTask(ctx context.Context, listID schema.ID, text string) (schema.ID, error) {
	id := m.config.NewID()
	err := m.mutate(ctx, func(d *schema.Document) error {
		return d.AddTask(listID, schema.Task{ID: id, Text: text})
	})
	if err != nil {
		return schema.ID{}, m.ignoreNotFound(err)
	}
	return id, nil
}

// RenameTask replaces a task's text.
func (m *Mirror) RenameTask(ctx context.Context, listID, taskID schema.ID, text string) error {
	return m.ignoreNotFound(m.mutate(ctx, func(d *schema.Document) error {
		return d.RenameTask(listID, taskID, text)
	}))
}

// ToggleTask flips a task's completed flag.
func (m *Mirror) ToggleTask(ctx context.Context, listID, taskID schema.ID) error {
	return m.ignoreNotFound(m.mutate(ctx, func(d *schema.Document) error {
		return d.ToggleTask(listID, taskID)
	}))
}

// SetCompleted sets a task's completed flag.
func (m *Mirror) SetCompleted(ctx context.Context, listID, taskID schema.ID, completed bool) error {
	return m.ignoreNotFound(m.mutate(ctx, func(d *schema.Document) error {
		return d.SetCompleted(listID, taskID, completed)
	}))
}

// DeleteTask removes a task.
func (m *Mirror) DeleteTask(ctx context.Context, listID, taskID schema.ID) error {
	return m.ignoreNotFound(m.mutate(ctx, func(d *schema.Document) error {
		return d.DeleteTask(listID, taskID)
	}))
}

// MoveTask moves a task to display position to and re-ranks the list.
func (m *Mirror) MoveTask(ctx context.Context, listID, taskID schema.ID, to int) error {
	return m.ignoreNotFound(m.mutate(ctx, func(d *schema.Document) error {
		return d.MoveTask(listID, taskID, to)
	}))
}

// ClearCompleted removes the completed tasks of a list and returns how
// many were removed. Nothing is pushed when none are completed.
func (m *Mirror) ClearCompleted(ctx context.Context, listID schema.ID) (int, error) {
	var removed int
	err := m.mutate(ctx, func(d *schema.Document) error {
		n, err := d.ClearCompleted(listID)
		if err != nil {
			return err
		}
		if n == 0 {
			return errNothingToDo
		}
		removed = n
		return nil
	})
	if errors.Is(err, errNothingToDo) {
		return 0, nil
	}
	return removed, m.ignoreNotFound(err)
}

var errNothingToDo = errors.New("nothing to do")

// ignoreNotFound turns an unknown list or task id into a no-op.
func (m *Mirror) ignoreNotFound(err error) error {
	if schema.IsNotFound(err) {
		m.config.Logger.Printf("Ignoring edit: %v", err)
		return nil
	}
	return err
}

// mutate applies fn to a copy of the mirror and pushes the result.
//
// Errors from fn, such as an unknown id or blank text, are returned
// without pushing anything and without calling OnError.
func (m *Mirror) mutate(ctx context.Context, fn func(d *schema.Document) error) error {
	m.mu.Lock()
	next := m.doc.Clone()
	if err := fn(next); err != nil {
		m.mu.Unlock()
		return err
	}
	if err := next.Validate(); err != nil {
		m.mu.Unlock()
		return err
	}

	ifVersion := ""
	if m.config.Conditional {
		ifVersion = m.version
	}
	if m.config.Policy == PolicyWarn {
		m.doc = next
		m.fixSelection()
	}
	m.mu.Unlock()

	version, err := m.remote.Push(ctx, next, ifVersion)
	if err != nil {
		m.report(fmt.Errorf("failed to save changes: %w", err))
		return err
	}

	m.mu.Lock()
	m.doc, m.version = next, version
	m.fixSelection()
	m.mu.Unlock()
	return nil
}

// fixSelection keeps the selection pointing at an existing list. Callers
// hold mu.
func (m *Mirror) fixSelection() {
	if m.hasActive {
		if l, _ := m.doc.FindList(m.active); l != nil {
			return
		}
	}
	if len(m.doc.Lists) > 0 {
		m.active, m.hasActive = m.doc.Lists[0].ID, true
		return
	}
	m.active, m.hasActive = schema.ID{}, false
}

func (m *Mirror) report(err error) {
	m.config.Logger.Printf("%v", err)
	if m.config.OnError != nil {
		m.config.OnError(err)
	}
}
