// Package export converts the DoDash document to and from portable files.
//
// JSON output is the on-disk store format. YAML and TOML go through a
// small mirror of the document types: TOML has no null, so an unset task
// order is omitted, and ids keep their string or integer kind.
package export

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/mschirtzinger/dodash/internal/schema"
)

// Format is a supported file format.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// ParseFormat accepts a format name, case-insensitively. "yml" is an
// alias for yaml.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("unknown format %q (want json, yaml or toml)", s)
	}
}

// FormatFromPath infers the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "", fmt.Errorf("cannot infer format of %s: no extension", path)
	}
	return ParseFormat(ext)
}

type taskFile struct {
	ID        interface{} `yaml:"id" toml:"id"`
	Text      string      `yaml:"text" toml:"text"`
	Completed bool        `yaml:"completed" toml:"completed"`
	Order     *int        `yaml:"order,omitempty" toml:"order,omitempty"`
}

type listFile struct {
	ID    interface{} `yaml:"id" toml:"id"`
	Name  string      `yaml:"name" toml:"name"`
	Color string      `yaml:"color" toml:"color"`
	Tasks []taskFile  `yaml:"tasks" toml:"tasks"`
}

type documentFile struct {
	Lists []listFile `yaml:"lists" toml:"lists"`
}

func idValue(id schema.ID) interface{} {
	if id.IsNumeric() {
		if n, err := strconv.ParseInt(id.String(), 10, 64); err == nil {
			return n
		}
	}
	return id.String()
}

func idFrom(v interface{}) (schema.ID, error) {
	switch x := v.(type) {
	case string:
		return schema.StringID(x), nil
	case int:
		return schema.NumericID(int64(x)), nil
	case int64:
		return schema.NumericID(x), nil
	case nil:
		return schema.ID{}, fmt.Errorf("missing id")
	default:
		return schema.ID{}, fmt.Errorf("id must be a string or an integer, got %T", v)
	}
}

func toFile(doc *schema.Document) documentFile {
	out := documentFile{Lists: make([]listFile, 0, len(doc.Lists))}
	for _, l := range doc.Lists {
		lf := listFile{
			ID:    idValue(l.ID),
			Name:  l.Name,
			Color: l.Color,
			Tasks: make([]taskFile, 0, len(l.Tasks)),
		}
		for _, t := range l.Tasks {
			lf.Tasks = append(lf.Tasks, taskFile{
				ID:        idValue(t.ID),
				Text:      t.Text,
				Completed: t.Completed,
				Order:     t.Order,
			})
		}
		out.Lists = append(out.Lists, lf)
	}
	return out
}

func fromFile(f documentFile) (*schema.Document, error) {
	doc := &schema.Document{Lists: make([]schema.List, 0, len(f.Lists))}
	for i, lf := range f.Lists {
		id, err := idFrom(lf.ID)
		if err != nil {
			return nil, fmt.Errorf("list %d: %w", i, err)
		}
		l := schema.List{ID: id, Name: lf.Name, Color: lf.Color, Tasks: make([]schema.Task, 0, len(lf.Tasks))}
		for j, tf := range lf.Tasks {
			tid, err := idFrom(tf.ID)
			if err != nil {
				return nil, fmt.Errorf("list %d task %d: %w", i, j, err)
			}
			l.Tasks = append(l.Tasks, schema.Task{ID: tid, Text: tf.Text, Completed: tf.Completed, Order: tf.Order})
		}
		doc.Lists = append(doc.Lists, l)
	}
	return doc, nil
}

// Encode writes doc to w in the given format.
func Encode(w io.Writer, doc *schema.Document, format Format) error {
	switch format {
	case FormatJSON:
		data, err := schema.Marshal(doc)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err

	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(toFile(doc)); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()

	case FormatTOML:
		if err := toml.NewEncoder(w).Encode(toFile(doc)); err != nil {
			return fmt.Errorf("failed to encode toml: %w", err)
		}
		return nil

	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}

// Decode reads a document in the given format and validates it with the
// same rules the store applies.
func Decode(data []byte, format Format) (*schema.Document, error) {
	if format == FormatJSON {
		return schema.Parse(data)
	}

	var f documentFile
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("invalid yaml: %w", err)
		}
	case FormatTOML:
		if _, err := toml.Decode(string(data), &f); err != nil {
			return nil, fmt.Errorf("invalid toml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}

	doc, err := fromFile(f)
	if err != nil {
		return nil, &schema.ValidationError{Err: err}
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

// WriteFile exports doc to path, inferring the format from the extension
// unless format is set. The file is replaced via a temp file and rename.
func WriteFile(path string, doc *schema.Document, format Format) error {
	if format == "" {
		f, err := FormatFromPath(path)
		if err != nil {
			return err
		}
		format = f
	}

	var buf bytes.Buffer
	if err := Encode(&buf, doc, format); err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create export directory: %w", err)
		}
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// ReadFile imports a document from path.
func ReadFile(path string, format Format) (*schema.Document, error) {
	if format == "" {
		f, err := FormatFromPath(path)
		if err != nil {
			return nil, err
		}
		format = f
	}

	// #nosec G304 - controlled path from CLI
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Decode(data, format)
}
