package export

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mschirtzinger/dodash/internal/schema"
)

func intPtr(i int) *int { return &i }

func sampleDoc() *schema.Document {
	return &schema.Document{Lists: []schema.List{
		{
			ID:    schema.StringID("work"),
			Name:  "Work",
			Color: "#8B5CF6",
			Tasks: []schema.Task{
				{ID: schema.NumericID(1712000000000), Text: "Ship it", Completed: true, Order: intPtr(0)},
				{ID: schema.StringID("t2"), Text: "Write notes: \"quoted\"", Order: nil},
			},
		},
		{ID: schema.NumericID(7), Name: "Empty", Color: "#10B981", Tasks: []schema.Task{}},
	}}
}

func TestEncodeDecode_AllFormats(t *testing.T) {
	for _, format := range []Format{FormatJSON, FormatYAML, FormatTOML} {
		t.Run(string(format), func(t *testing.T) {
			var buf bytes.Buffer
			if err := Encode(&buf, sampleDoc(), format); err != nil {
				t.Fatalf("Encode() failed: %v", err)
			}

			got, err := Decode(buf.Bytes(), format)
			if err != nil {
				t.Fatalf("Decode() failed: %v\n%s", err, buf.String())
			}
			if !schema.Equal(got, sampleDoc()) {
				t.Errorf("document changed across %s round-trip:\n%s", format, buf.String())
			}
			if !got.Lists[1].ID.IsNumeric() || got.Lists[0].ID.IsNumeric() {
				t.Error("id kinds not preserved")
			}
			if got.Lists[0].Tasks[1].Order != nil {
				t.Error("unset order became set")
			}
		})
	}
}

func TestDecode_Validates(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		input  string
	}{
		{"yaml bad color", FormatYAML, "lists:\n  - id: a\n    name: A\n    color: red\n    tasks: []\n"},
		{"yaml missing id", FormatYAML, "lists:\n  - name: A\n    color: \"#000000\"\n    tasks: []\n"},
		{"toml float id", FormatTOML, "[[lists]]\nid = 1.5\nname = \"A\"\ncolor = \"#000000\"\ntasks = []\n"},
		{"toml duplicate ids", FormatTOML, "[[lists]]\nid = \"a\"\nname = \"A\"\ncolor = \"#000000\"\ntasks = []\n[[lists]]\nid = \"a\"\nname = \"B\"\ncolor = \"#000000\"\ntasks = []\n"},
		{"json wrong shape", FormatJSON, `{"lists": {}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.input), tt.format)
			if err == nil {
				t.Fatal("Decode() should fail")
			}
			if !schema.IsValidationError(err) {
				t.Errorf("expected validation error, got %T: %v", err, err)
			}
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	if _, err := Decode([]byte("lists: [\n"), FormatYAML); err == nil {
		t.Error("malformed yaml should fail")
	}
	if _, err := Decode([]byte("[[lists]\n"), FormatTOML); err == nil {
		t.Error("malformed toml should fail")
	}
}

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{
		"json": FormatJSON,
		"YAML": FormatYAML,
		"yml":  FormatYAML,
		"toml": FormatTOML,
	}
	for in, want := range tests {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("ParseFormat(xml) should fail")
	}
	if _, err := FormatFromPath("backup"); err == nil {
		t.Error("FormatFromPath without extension should fail")
	}
}

func TestWriteReadFile(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{"out.json", "out.yaml", "nested/out.toml"} {
		path := filepath.Join(dir, name)
		if err := WriteFile(path, sampleDoc(), ""); err != nil {
			t.Fatalf("WriteFile(%s) failed: %v", name, err)
		}
		if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
			t.Errorf("temp file left behind for %s", name)
		}

		got, err := ReadFile(path, "")
		if err != nil {
			t.Fatalf("ReadFile(%s) failed: %v", name, err)
		}
		if !schema.Equal(got, sampleDoc()) {
			t.Errorf("%s: document changed", name)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, "out.json"))
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !strings.HasPrefix(string(data), "{\n  \"lists\"") {
		t.Errorf("json export is not in store format: %q", data[:20])
	}
}
