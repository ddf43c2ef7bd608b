package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"regexp"
	"sort"
	"strings"
)

// Errors returned by document operations.
var (
	// ErrListNotFound is returned when no list has the requested id.
	ErrListNotFound = errors.New("list not found")

	// ErrTaskNotFound is returned when the list has no task with the requested id.
	ErrTaskNotFound = errors.New("task not found")

	// ErrInvalidColor is returned for colors not in #RRGGBB form.
	ErrInvalidColor = errors.New("color must be in #RRGGBB form")

	// ErrEmptyText is returned when a task or list would get blank text.
	ErrEmptyText = errors.New("text must not be empty")
)

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// IsValidColor reports whether s is a #RRGGBB hex color.
func IsValidColor(s string) bool {
	return colorPattern.MatchString(s)
}

// IsNotFound reports whether err is a missing list or task.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrListNotFound) || errors.Is(err, ErrTaskNotFound)
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := &Document{Lists: make([]List, len(d.Lists))}
	for i, l := range d.Lists {
		out.Lists[i] = l.clone()
	}
	return out
}

func (l List) clone() List {
	tasks := make([]Task, len(l.Tasks))
	for i, t := range l.Tasks {
		if t.Order != nil {
			o := *t.Order
			t.Order = &o
		}
		tasks[i] = t
	}
	l.Tasks = tasks
	return l
}

// Equal reports whether two documents encode to the same JSON.
func Equal(a, b *Document) bool {
	ab, errA := json.Marshal(a)
	bb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

// FindList returns the list with the given id and its index, or nil and -1.
func (d *Document) FindList(id ID) (*List, int) {
	for i := range d.Lists {
		if d.Lists[i].ID == id {
			return &d.Lists[i], i
		}
	}
	return nil, -1
}

// FindTask returns the task with the given id and its index, or nil and -1.
func (l *List) FindTask(id ID) (*Task, int) {
	for i := range l.Tasks {
		if l.Tasks[i].ID == id {
			return &l.Tasks[i], i
		}
	}
	return nil, -1
}

// Sorted returns the tasks in display order: by Order, then by position.
// Tasks without an Order sort by their position.
func (l *List) Sorted() []Task {
	out := make([]Task, len(l.Tasks))
	copy(out, l.Tasks)
	rank := func(i int) int {
		if out[i].Order != nil {
			return *out[i].Order
		}
		return i
	}
	ranks := make([]int, len(out))
	for i := range out {
		ranks[i] = rank(i)
	}
	idx := make([]int, len(out))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return ranks[idx[a]] < ranks[idx[b]]
	})
	sorted := make([]Task, len(out))
	for i, j := range idx {
		sorted[i] = out[j]
	}
	return sorted
}

// AddList appends a list. A missing color gets NewListColor and nil tasks
// become an empty slice.
func (d *Document) AddList(l List) error {
	l.Name = strings.TrimSpace(l.Name)
	if l.Name == "" {
		return ErrEmptyText
	}
	if l.Color == "" {
		l.Color = NewListColor
	}
	if !IsValidColor(l.Color) {
		return ErrInvalidColor
	}
	if l.Tasks == nil {
		l.Tasks = []Task{}
	}
	d.Lists = append(d.Lists, l)
	return nil
}

// RenameList sets a list's name. Blank names are rejected.
func (d *Document) RenameList(id ID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyText
	}
	l, _ := d.FindList(id)
	if l == nil {
		return ErrListNotFound
	}
	l.Name = name
	return nil
}

// RecolorList sets a list's color.
func (d *Document) RecolorList(id ID, color string) error {
	if !IsValidColor(color) {
		return ErrInvalidColor
	}
	l, _ := d.FindList(id)
	if l == nil {
		return ErrListNotFound
	}
	l.Color = color
	return nil
}

// DeleteList removes a list.
func (d *Document) DeleteList(id ID) error {
	_, i := d.FindList(id)
	if i < 0 {
		return ErrListNotFound
	}
	d.Lists = append(d.Lists[:i:i], d.Lists[i+1:]...)
	return nil
}

// AddTask appends a task to a list, ranking it after the existing tasks.
func (d *Document) AddTask(listID ID, t Task) error {
	t.Text = strings.TrimSpace(t.Text)
	if t.Text == "" {
		return ErrEmptyText
	}
	l, _ := d.FindList(listID)
	if l == nil {
		return ErrListNotFound
	}
	if t.Order == nil {
		order := l.nextRank()
		t.Order = &order
	}
	l.Tasks = append(l.Tasks, t)
	return nil
}

// nextRank returns one past the highest rank in the list, treating a task
// without an Order as ranked at its position.
func (l *List) nextRank() int {
	next := 0
	for i, t := range l.Tasks {
		rank := i
		if t.Order != nil {
			rank = *t.Order
		}
		if rank+1 > next {
			next = rank + 1
		}
	}
	return next
}

func (d *Document) task(listID, taskID ID) (*List, *Task, int, error) {
	l, _ := d.FindList(listID)
	if l == nil {
		return nil, nil, -1, ErrListNotFound
	}
	t, i := l.FindTask(taskID)
	if t == nil {
		return l, nil, -1, ErrTaskNotFound
	}
	return l, t, i, nil
}

// RenameTask replaces a task's text.
func (d *Document) RenameTask(listID, taskID ID, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyText
	}
	_, t, _, err := d.task(listID, taskID)
	if err != nil {
		return err
	}
	t.Text = text
	return nil
}

// ToggleTask flips a task's completed flag.
func (d *Document) ToggleTask(listID, taskID ID) error {
	_, t, _, err := d.task(listID, taskID)
	if err != nil {
		return err
	}
	t.Completed = !t.Completed
	return nil
}

// SetCompleted sets a task's completed flag.
func (d *Document) SetCompleted(listID, taskID ID, completed bool) error {
	_, t, _, err := d.task(listID, taskID)
	if err != nil {
		return err
	}
	t.Completed = completed
	return nil
}

// DeleteTask removes a task from its list.
func (d *Document) DeleteTask(listID, taskID ID) error {
	l, _, i, err := d.task(listID, taskID)
	if err != nil {
		return err
	}
	l.Tasks = append(l.Tasks[:i:i], l.Tasks[i+1:]...)
	return nil
}

// MoveTask moves a task to display position to (clamped to the list
// bounds) and dense-ranks every task of the list 0..n-1.
func (d *Document) MoveTask(listID, taskID ID, to int) error {
	l, _, _, err := d.task(listID, taskID)
	if err != nil {
		return err
	}

	sorted := l.Sorted()
	from := -1
	for i := range sorted {
		if sorted[i].ID == taskID {
			from = i
			break
		}
	}
	moved := sorted[from]
	sorted = append(sorted[:from:from], sorted[from+1:]...)

	if to < 0 {
		to = 0
	}
	if to > len(sorted) {
		to = len(sorted)
	}
	sorted = append(sorted[:to:to], append([]Task{moved}, sorted[to:]...)...)

	for i := range sorted {
		order := i
		sorted[i].Order = &order
	}
	l.Tasks = sorted
	return nil
}

// ClearCompleted removes every completed task of a list and returns how
// many were removed.
func (d *Document) ClearCompleted(listID ID) (int, error) {
	l, _ := d.FindList(listID)
	if l == nil {
		return 0, ErrListNotFound
	}
	kept := make([]Task, 0, len(l.Tasks))
	for _, t := range l.Tasks {
		if !t.Completed {
			kept = append(kept, t)
		}
	}
	removed := len(l.Tasks) - len(kept)
	l.Tasks = kept
	return removed, nil
}

// Counts returns the number of open and completed tasks in a list.
func (l *List) Counts() (open, done int) {
	for _, t := range l.Tasks {
		if t.Completed {
			done++
		} else {
			open++
		}
	}
	return open, done
}
