package components

import (
	"strings"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
)

// IDInput is a single-line input for participant ids. It accepts letters,
// digits, '-' and '_' only, since the id ends up in export file names.
type IDInput struct {
	Model textinput.Model
}

// NewIDInput creates a focused id input.
func NewIDInput(placeholder string, maxLen int) IDInput {
	ti := textinput.New()
	ti.Placeholder = placeholder
	if maxLen > 0 {
		ti.CharLimit = maxLen
	}
	ti.Focus()
	return IDInput{Model: ti}
}

// Init returns the initial command.
func (t IDInput) Init() tea.Cmd {
	return t.Model.Focus()
}

// Update handles messages, dropping characters that are not allowed.
func (t IDInput) Update(msg tea.Msg) (IDInput, tea.Cmd) {
	if kmsg, ok := msg.(tea.KeyPressMsg); ok && kmsg.Text != "" {
		if strings.IndexFunc(kmsg.Text, func(r rune) bool { return !IDRune(r) }) >= 0 {
			return t, nil
		}
	}
	var cmd tea.Cmd
	t.Model, cmd = t.Model.Update(msg)
	return t, cmd
}

// View renders the input.
func (t IDInput) View() string {
	return t.Model.View()
}

// Value returns the trimmed input.
func (t IDInput) Value() string {
	return strings.TrimSpace(t.Model.Value())
}

// IDRune reports whether r may appear in a participant id.
func IDRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '-' || r == '_':
		return true
	}
	return false
}
