package screen

import (
	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/revlearn/internal/ui/layout"
)

// Screen is one full-frame view of the terminal host.
type Screen interface {
	Init() tea.Cmd

	// Update handles messages and returns the screen to keep active.
	Update(msg tea.Msg) (Screen, tea.Cmd)

	// View renders the content area, excluding header and footer.
	View(width, height int) string

	// Title is shown in the header.
	Title() string
}

// KeyHintProvider lets a screen replace the default footer hints.
type KeyHintProvider interface {
	KeyHints() []layout.KeyHint
}

// StatusProvider lets a screen fill the right side of the header.
type StatusProvider interface {
	Status() string
}
