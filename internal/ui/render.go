package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mschirtzinger/dodash/internal/schema"
)

// ListLine renders one line of a list overview:
//
//	▸ ■ Work  2 open · 1 done  (work)
func ListLine(l schema.List, active bool) string {
	marker := " "
	if active {
		marker = RenderAccent("▸")
	}
	open, done := l.Counts()
	name := l.Name
	if active {
		name = RenderAccent(name)
	}
	return fmt.Sprintf("%s %s %s  %s  %s",
		marker, Swatch(l.Color), name,
		RenderMuted(fmt.Sprintf("%d open · %d done", open, done)),
		RenderMuted("("+l.ID.String()+")"))
}

// TaskLine renders a task with its 1-based position in display order.
func TaskLine(pos int, t schema.Task) string {
	box := "[ ]"
	text := t.Text
	if t.Completed {
		box = RenderPass("[x]")
		text = render(doneStyle, text)
	}
	return fmt.Sprintf("%3d. %s %s", pos, box, text)
}

// List renders a list header followed by its tasks in display order.
func List(l schema.List) string {
	var b strings.Builder

	header := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(l.Color))
	b.WriteString(Swatch(l.Color))
	b.WriteString(" ")
	b.WriteString(render(header, l.Name))
	b.WriteString("\n")

	tasks := l.Sorted()
	if len(tasks) == 0 {
		b.WriteString(RenderMuted("     no tasks"))
		b.WriteString("\n")
		return b.String()
	}
	for i, t := range tasks {
		b.WriteString(TaskLine(i+1, t))
		b.WriteString("\n")
	}
	return b.String()
}
