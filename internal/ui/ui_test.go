package ui

import (
	"strings"
	"testing"

	"github.com/mschirtzinger/dodash/internal/schema"
)

func intPtr(i int) *int { return &i }

func TestRender_Plain(t *testing.T) {
	SetColor(false)

	for name, fn := range map[string]func(string) string{
		"accent": RenderAccent,
		"pass":   RenderPass,
		"warn":   RenderWarn,
		"fail":   RenderFail,
		"muted":  RenderMuted,
	} {
		if got := fn("hello"); got != "hello" {
			t.Errorf("%s: got %q with color disabled", name, got)
		}
	}
	if got := Swatch("#8B5CF6"); got != "■" {
		t.Errorf("Swatch() = %q", got)
	}
}

func TestRender_Color(t *testing.T) {
	SetColor(true)
	defer SetColor(false)

	got := Swatch("#8B5CF6")
	if !strings.Contains(got, "\x1b[") {
		t.Errorf("Swatch() with color = %q, want ANSI escape", got)
	}
	if !strings.Contains(got, "139;92;246") {
		t.Errorf("Swatch() = %q, want 24-bit #8B5CF6", got)
	}
}

func TestList_DisplayOrder(t *testing.T) {
	SetColor(false)

	l := schema.List{
		ID:    schema.StringID("work"),
		Name:  "Work",
		Color: "#8B5CF6",
		Tasks: []schema.Task{
			{ID: schema.StringID("b"), Text: "second", Order: intPtr(1)},
			{ID: schema.StringID("a"), Text: "first", Completed: true, Order: intPtr(0)},
		},
	}

	out := List(l)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("List() = %q, want header and 2 tasks", out)
	}
	if lines[0] != "■ Work" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "  1. [x] first" || lines[2] != "  2. [ ] second" {
		t.Errorf("tasks = %q", lines[1:])
	}
}

func TestList_Empty(t *testing.T) {
	SetColor(false)

	out := List(schema.List{ID: schema.StringID("x"), Name: "X", Color: "#000000"})
	if !strings.Contains(out, "no tasks") {
		t.Errorf("List() = %q", out)
	}
}

func TestListLine(t *testing.T) {
	SetColor(false)

	l := schema.Default().Lists[0]
	l.Tasks = []schema.Task{{ID: schema.StringID("t"), Text: "x", Completed: true}}

	got := ListLine(l, true)
	want := "▸ ■ My Tasks  0 open · 1 done  (default)"
	if got != want {
		t.Errorf("ListLine() = %q, want %q", got, want)
	}
	if got := ListLine(l, false); !strings.HasPrefix(got, "  ■") {
		t.Errorf("inactive ListLine() = %q", got)
	}
}
