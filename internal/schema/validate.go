package schema

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed document.schema.json
var documentSchema string

const documentSchemaURL = "document.schema.json"

// ValidationError describes one failed constraint.
type ValidationError struct {
	Path string // JSON path to the offending value, e.g. lists[0].color
	Err  error
}

func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Err)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidationError reports whether err contains a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(documentSchemaURL, strings.NewReader(documentSchema)); err != nil {
		return nil, fmt.Errorf("failed to load document schema: %w", err)
	}
	s, err := compiler.Compile(documentSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("failed to compile document schema: %w", err)
	}
	return s, nil
})

// Validate applies the strict policy to an in-memory document. The document
// is checked in its encoded form so that Go callers and HTTP callers are
// held to exactly the same rules.
func (d *Document) Validate() error {
	if d == nil {
		return &ValidationError{Err: fmt.Errorf("document is nil")}
	}

	data, err := json.Marshal(d)
	if err != nil {
		return &ValidationError{Err: fmt.Errorf("failed to marshal document: %w", err)}
	}

	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return &ValidationError{Err: fmt.Errorf("failed to unmarshal document: %w", err)}
	}

	if err := validateSchema(raw); err != nil {
		return err
	}
	return d.checkUnique()
}

// validateSchema runs the embedded JSON Schema over a decoded value.
func validateSchema(raw interface{}) error {
	s, err := compiledSchema()
	if err != nil {
		return err
	}

	if err := s.Validate(raw); err != nil {
		var ve *jsonschema.ValidationError
		if !errors.As(err, &ve) {
			return &ValidationError{Err: err}
		}
		var errs []error
		collectSchemaErrors(&errs, ve)
		if len(errs) == 0 {
			return &ValidationError{Err: errors.New(ve.Message)}
		}
		return errors.Join(errs...)
	}
	return nil
}

func collectSchemaErrors(errs *[]error, err *jsonschema.ValidationError) {
	if len(err.Causes) == 0 {
		*errs = append(*errs, &ValidationError{
			Path: jsonPointerToPath(err.InstanceLocation),
			Err:  errors.New(err.Message),
		})
		return
	}

	for _, cause := range err.Causes {
		collectSchemaErrors(errs, cause)
	}
}

// checkUnique enforces id uniqueness, which JSON Schema cannot express for
// object members.
func (d *Document) checkUnique() error {
	listIDs := make(map[ID]int, len(d.Lists))
	for i, list := range d.Lists {
		if prev, ok := listIDs[list.ID]; ok {
			return &ValidationError{
				Path: fmt.Sprintf("lists[%d].id", i),
				Err:  fmt.Errorf("duplicate list id %q (also lists[%d])", list.ID, prev),
			}
		}
		listIDs[list.ID] = i

		taskIDs := make(map[ID]int, len(list.Tasks))
		for j, task := range list.Tasks {
			if prev, ok := taskIDs[task.ID]; ok {
				return &ValidationError{
					Path: fmt.Sprintf("lists[%d].tasks[%d].id", i, j),
					Err:  fmt.Errorf("duplicate task id %q (also tasks[%d])", task.ID, prev),
				}
			}
			taskIDs[task.ID] = j
		}
	}
	return nil
}

func jsonPointerToPath(ptr string) string {
	ptr = strings.TrimPrefix(ptr, "#")
	ptr = strings.TrimPrefix(ptr, "/")
	if ptr == "" {
		return ""
	}

	path := ""
	for _, part := range strings.Split(ptr, "/") {
		part = strings.ReplaceAll(part, "~1", "/")
		part = strings.ReplaceAll(part, "~0", "~")
		if part == "" {
			continue
		}
		if idx, err := strconv.Atoi(part); err == nil {
			path += fmt.Sprintf("[%d]", idx)
			continue
		}
		if path == "" {
			path = part
		} else {
			path += "." + part
		}
	}
	return path
}
