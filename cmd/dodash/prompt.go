package main

import (
	"errors"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/mschirtzinger/dodash/internal/ui"
)

var errNotInteractive = errors.New("missing argument (not a terminal, cannot prompt)")

// interactive reports whether prompts can be shown.
var interactive = ui.IsInteractive

// promptText asks for a non-blank line of text.
func promptText(title, placeholder string) (string, error) {
	if !interactive() {
		return "", errNotInteractive
	}
	var value string
	err := huh.NewInput().
		Title(title).
		Placeholder(placeholder).
		Validate(func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New("cannot be empty")
			}
			return nil
		}).
		Value(&value).
		Run()
	return strings.TrimSpace(value), err
}

// confirm asks a yes/no question. Without a terminal it answers yes only
// when assumeYes is set.
func confirm(title string, assumeYes bool) (bool, error) {
	if assumeYes {
		return true, nil
	}
	if !interactive() {
		return false, errors.New("refusing to continue without confirmation (use --yes)")
	}
	ok := false
	err := huh.NewConfirm().
		Title(title).
		Affirmative("Yes").
		Negative("No").
		Value(&ok).
		Run()
	return ok, err
}
