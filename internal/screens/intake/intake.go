package intake

import (
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/revlearn/internal/router"
	"github.com/abhisek/revlearn/internal/screen"
	"github.com/abhisek/revlearn/internal/ui/components"
	"github.com/abhisek/revlearn/internal/ui/layout"
	"github.com/abhisek/revlearn/internal/ui/theme"
)

// StartFunc builds the task screen for a participant.
type StartFunc func(subject string) (screen.Screen, error)

// Screen asks for the participant id before the task starts.
type Screen struct {
	input   components.IDInput
	start   StartFunc
	errMsg  string
	started bool
}

var _ screen.Screen = (*Screen)(nil)
var _ screen.KeyHintProvider = (*Screen)(nil)

// New creates the intake screen.
func New(start StartFunc) *Screen {
	return &Screen{
		input: components.NewIDInput("participant id", 64),
		start: start,
	}
}

func (s *Screen) Init() tea.Cmd {
	return s.input.Init()
}

func (s *Screen) Title() string {
	return "Welcome"
}

func (s *Screen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "Enter", Description: "Start"},
		{Key: "Ctrl+C", Description: "Quit"},
	}
}

func (s *Screen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	if kmsg, ok := msg.(tea.KeyPressMsg); ok && kmsg.String() == "enter" {
		return s, s.submit()
	}
	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	return s, cmd
}

func (s *Screen) submit() tea.Cmd {
	if s.started {
		return nil
	}
	subject := s.input.Value()
	if subject == "" {
		s.errMsg = "Please enter your participant id."
		return nil
	}
	next, err := s.start(subject)
	if err != nil {
		s.errMsg = err.Error()
		return nil
	}
	s.started = true
	return func() tea.Msg {
		return router.ReplaceScreenMsg{Screen: next}
	}
}

func (s *Screen) View(width, height int) string {
	content := theme.Title.Render("Reversal Learning Task") + "\n\n" +
		theme.Body.Render("Enter your participant id and press Enter to begin.") + "\n\n" +
		theme.Card.Render(s.input.View())
	if s.errMsg != "" {
		content += "\n\n" + theme.Incorrect.Render(s.errMsg)
	}
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center,
		lipgloss.NewStyle().Align(lipgloss.Center).Render(content))
}
