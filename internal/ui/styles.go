// Package ui renders DoDash data for the terminal.
package ui

import (
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

var (
	ColorAccent = lipgloss.AdaptiveColor{Light: "#6B46C1", Dark: "#8B5CF6"}
	ColorPass   = lipgloss.AdaptiveColor{Light: "#047857", Dark: "#10B981"}
	ColorWarn   = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#F59E0B"}
	ColorFail   = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#EF4444"}
	ColorMuted  = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}
)

var (
	accentStyle = lipgloss.NewStyle().Foreground(ColorAccent).Bold(true)
	passStyle   = lipgloss.NewStyle().Foreground(ColorPass)
	warnStyle   = lipgloss.NewStyle().Foreground(ColorWarn)
	failStyle   = lipgloss.NewStyle().Foreground(ColorFail).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(ColorMuted)
	doneStyle   = mutedStyle.Strikethrough(true)
)

var profileOnce sync.Once

// detectProfile picks the color profile from stdout. NO_COLOR and
// non-terminal output disable color.
func detectProfile() {
	profileOnce.Do(func() {
		if os.Getenv("NO_COLOR") != "" || !IsTerminal() {
			lipgloss.SetColorProfile(termenv.Ascii)
			return
		}
		out := termenv.NewOutput(os.Stdout)
		lipgloss.SetColorProfile(out.EnvColorProfile())
		lipgloss.SetHasDarkBackground(out.HasDarkBackground())
	})
}

// SetColor forces color on (true color) or off.
func SetColor(enabled bool) {
	profileOnce.Do(func() {})
	if enabled {
		lipgloss.SetColorProfile(termenv.TrueColor)
	} else {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// IsTerminal reports whether stdout is a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// IsInteractive reports whether stdin and stdout are both terminals, so
// prompts can be shown.
func IsInteractive() bool {
	return IsTerminal() && term.IsTerminal(int(os.Stdin.Fd()))
}

func render(s lipgloss.Style, text string) string {
	detectProfile()
	return s.Render(text)
}

func RenderAccent(s string) string { return render(accentStyle, s) }
func RenderPass(s string) string   { return render(passStyle, s) }
func RenderWarn(s string) string   { return render(warnStyle, s) }
func RenderFail(s string) string   { return render(failStyle, s) }
func RenderMuted(s string) string  { return render(mutedStyle, s) }

// Swatch renders a block in the given #RRGGBB color.
func Swatch(hex string) string {
	return render(lipgloss.NewStyle().Foreground(lipgloss.Color(hex)), "■")
}
