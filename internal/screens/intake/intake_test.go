package intake

import (
	"errors"
	"testing"

	tea "charm.land/bubbletea/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/revlearn/internal/router"
	"github.com/abhisek/revlearn/internal/screen"
)

type stubScreen struct{}

func (s *stubScreen) Init() tea.Cmd                           { return nil }
func (s *stubScreen) Update(tea.Msg) (screen.Screen, tea.Cmd) { return s, nil }
func (s *stubScreen) View(int, int) string                    { return "task" }
func (s *stubScreen) Title() string                           { return "Task" }

func typeText(s *Screen, text string) {
	for _, r := range text {
		s.Update(tea.KeyPressMsg{Code: r, Text: string(r)})
	}
}

func enter(s *Screen) tea.Cmd {
	_, cmd := s.Update(tea.KeyPressMsg{Code: tea.KeyEnter})
	return cmd
}

func TestSubmitStartsTask(t *testing.T) {
	var got string
	s := New(func(subject string) (screen.Screen, error) {
		got = subject
		return &stubScreen{}, nil
	})
	s.Init()

	typeText(s, "p-17")
	cmd := enter(s)
	require.NotNil(t, cmd)

	msg, ok := cmd().(router.ReplaceScreenMsg)
	require.True(t, ok)
	assert.Equal(t, "task", msg.Screen.View(0, 0))
	assert.Equal(t, "p-17", got)

	assert.Nil(t, enter(s), "second submit is ignored")
}

func TestEmptyID(t *testing.T) {
	calls := 0
	s := New(func(string) (screen.Screen, error) {
		calls++
		return &stubScreen{}, nil
	})
	s.Init()

	assert.Nil(t, enter(s))
	assert.Equal(t, 0, calls)
	assert.Contains(t, s.View(80, 24), "Please enter your participant id.")
}

func TestStartError(t *testing.T) {
	s := New(func(string) (screen.Screen, error) {
		return nil, errors.New("sequence missing block 4")
	})
	s.Init()
	typeText(s, "p1")

	assert.Nil(t, enter(s))
	assert.Contains(t, s.View(100, 24), "sequence missing block 4")
}

func TestRejectsPathCharacters(t *testing.T) {
	s := New(nil)
	s.Init()
	typeText(s, "../p1")
	assert.Equal(t, "p1", s.input.Value())
}
