package schema

import (
	"encoding/json"
	"fmt"
)

// Default values for a freshly bootstrapped document.
const (
	DefaultListID   = "default"
	DefaultListName = "My Tasks"
	DefaultColor    = "#8B5CF6"

	// NewListColor is the accent used for lists created without a color.
	NewListColor = "#6B46C1"
)

// Task is a single to-do item.
type Task struct {
	ID        ID     `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`

	// Order is the display rank inside the list. Nil means "use position".
	Order *int `json:"order,omitempty"`
}

// List is a named, colored, ordered collection of tasks.
type List struct {
	ID    ID     `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
	Tasks []Task `json:"tasks"`
}

// UnmarshalJSON accepts the legacy "todos" key in place of "tasks".
func (l *List) UnmarshalJSON(data []byte) error {
	type plain List
	var aux struct {
		plain
		Todos []Task `json:"todos"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*l = List(aux.plain)
	if l.Tasks == nil && aux.Todos != nil {
		l.Tasks = aux.Todos
	}
	return nil
}

// MarshalJSON always writes a tasks array, never null.
func (l List) MarshalJSON() ([]byte, error) {
	type plain List
	if l.Tasks == nil {
		l.Tasks = []Task{}
	}
	return json.Marshal(plain(l))
}

// Document is the root value and the only unit of persistence.
type Document struct {
	Lists []List `json:"lists"`
}

// MarshalJSON always writes a lists array, never null.
func (d Document) MarshalJSON() ([]byte, error) {
	type plain Document
	if d.Lists == nil {
		d.Lists = []List{}
	}
	return json.Marshal(plain(d))
}

// Empty returns a document with no lists.
func Empty() *Document {
	return &Document{Lists: []List{}}
}

// Default returns the document written on first run: a single empty list.
func Default() *Document {
	return &Document{
		Lists: []List{{
			ID:    StringID(DefaultListID),
			Name:  DefaultListName,
			Color: DefaultColor,
			Tasks: []Task{},
		}},
	}
}

// Parse decodes and strictly validates a serialized document.
// Any failure is reported as a *ValidationError (possibly joined).
func Parse(data []byte) (*Document, error) {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ValidationError{Err: fmt.Errorf("malformed JSON: %w", err)}
	}

	if err := validateSchema(raw); err != nil {
		return nil, err
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &ValidationError{Err: fmt.Errorf("failed to decode document: %w", err)}
	}

	if err := doc.checkUnique(); err != nil {
		return nil, err
	}

	return &doc, nil
}

// Marshal encodes the document with 2-space indentation and a trailing
// newline, the on-disk format.
func Marshal(doc *Document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	return append(data, '\n'), nil
}
