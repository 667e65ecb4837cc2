package task

import (
	"context"
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"
	"go.uber.org/zap"

	"github.com/abhisek/revlearn/internal/schedule"
	"github.com/abhisek/revlearn/internal/screen"
	"github.com/abhisek/revlearn/internal/session"
	"github.com/abhisek/revlearn/internal/trial"
	"github.com/abhisek/revlearn/internal/ui/layout"
)

// Timing holds the host-side durations of a trial.
type Timing struct {
	Fixation time.Duration
	Trial    time.Duration
	Feedback time.Duration
}

// Options configures a task Screen.
type Options struct {
	Engine *session.Engine

	// Keys are the physical keys for response indexes 0..n-1.
	Keys []string

	// Start is the timeline index to begin at.
	Start int

	Timing Timing

	// ForceCorrect holds incorrect feedback until the correct key is pressed.
	ForceCorrect bool

	ImageRoot string
	Context   context.Context
	Logger    *zap.Logger
	Now       func() time.Time
}

// timeoutMsg fires when the wait of the step entered as seq elapses.
type timeoutMsg struct {
	seq int
}

// Screen plays a session timeline step by step.
type Screen struct {
	opts   Options
	eng    *session.Engine
	ctx    context.Context
	log    *zap.Logger
	now    func() time.Time
	steps  []schedule.Step
	main   int
	slides []string

	respond []key.Binding
	next    key.Binding

	idx int
	seq int
	cue session.Cue

	// slide is the current slide of an instructions step.
	slide int

	// shownAt is when the current trial's stimulus appeared.
	shownAt time.Time
	correct int

	// feedback is set once the current trial has an outcome.
	feedback *trial.Record

	// holding is set while forced-correct feedback waits for the right key.
	holding bool

	label string
	err   error
}

var _ screen.Screen = (*Screen)(nil)
var _ screen.KeyHintProvider = (*Screen)(nil)
var _ screen.StatusProvider = (*Screen)(nil)

// New creates a task screen.
func New(opts Options) *Screen {
	s := &Screen{
		opts:  opts,
		eng:   opts.Engine,
		ctx:   opts.Context,
		log:   opts.Logger,
		now:   opts.Now,
		steps: opts.Engine.Steps(),
		idx:   opts.Start,
		next: key.NewBinding(
			key.WithKeys("space"),
			key.WithHelp("Space", "Continue"),
		),
	}
	if s.ctx == nil {
		s.ctx = context.Background()
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	for _, k := range opts.Keys {
		s.respond = append(s.respond, key.NewBinding(
			key.WithKeys(k),
			key.WithHelp(keyLabel(k), "Respond"),
		))
	}
	for _, st := range s.steps {
		if st.Kind == schedule.KindSummary {
			s.main++
		}
	}
	return s
}

func (s *Screen) Init() tea.Cmd {
	return s.enter(s.idx)
}

func (s *Screen) Title() string {
	if s.idx >= len(s.steps) {
		return ""
	}
	switch s.steps[s.idx].Kind {
	case schedule.KindInstructions:
		return "Instructions"
	case schedule.KindSaving, schedule.KindEnd:
		return "Done"
	}
	return s.label
}

// Status shows the running point total.
func (s *Screen) Status() string {
	return fmt.Sprintf("%d pts", s.eng.Points())
}

func (s *Screen) KeyHints() []layout.KeyHint {
	quit := layout.KeyHint{Key: "Ctrl+C", Description: "Quit"}
	if s.err != nil {
		return []layout.KeyHint{quit}
	}
	st := s.Step()
	switch {
	case st.Kind == schedule.KindTrial && s.feedback == nil:
		labels := make([]string, len(s.respond))
		for i, b := range s.respond {
			labels[i] = b.Help().Key
		}
		return []layout.KeyHint{{Key: strings.Join(labels, " "), Description: "Respond"}, quit}
	case s.holding:
		return []layout.KeyHint{{Key: s.respond[s.correct].Help().Key, Description: "Correct key"}, quit}
	case st.Continue || st.Kind == schedule.KindInstructions || st.Kind == schedule.KindEnd:
		return []layout.KeyHint{{Key: s.next.Help().Key, Description: s.next.Help().Desc}, quit}
	}
	return []layout.KeyHint{quit}
}

// Step returns the step being shown.
func (s *Screen) Step() schedule.Step {
	if s.idx < 0 || s.idx >= len(s.steps) {
		return schedule.Step{}
	}
	return s.steps[s.idx]
}

// Err returns the engine error that stopped the timeline, if any.
func (s *Screen) Err() error { return s.err }

// Done reports whether the whole timeline was played.
func (s *Screen) Done() bool { return s.idx >= len(s.steps) }

func (s *Screen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	if s.err != nil {
		return s, nil
	}
	switch msg := msg.(type) {
	case timeoutMsg:
		if msg.seq != s.seq {
			return s, nil
		}
		return s, s.handleTimeout()
	case tea.KeyPressMsg:
		return s, s.handleKey(msg)
	}
	return s, nil
}

// enter begins step i and arms its timer.
func (s *Screen) enter(i int) tea.Cmd {
	s.idx = i
	s.seq++
	s.slide = 0
	s.slides = nil
	s.feedback = nil
	s.holding = false

	if i >= len(s.steps) {
		return tea.Quit
	}

	cue, err := s.eng.Begin(s.ctx, i)
	if err != nil {
		s.err = fmt.Errorf("begin step %d: %w", i, err)
		s.log.Error("timeline stopped", zap.Int("step", i), zap.Error(err))
		return nil
	}
	s.cue = cue
	st := cue.Step

	switch st.Kind {
	case schedule.KindInstructions:
		s.slides = Slides(st.Slides, s.opts.Keys, s.main)
		if len(s.slides) == 0 {
			return s.advance()
		}
	case schedule.KindPreview:
		s.label = st.Label
		if s.label == "" {
			s.label = "Practice"
		}
	case schedule.KindFixation:
		return s.after(s.opts.Timing.Fixation)
	case schedule.KindTrial:
		cor, err := s.eng.Present(i)
		if err != nil {
			s.err = fmt.Errorf("present step %d: %w", i, err)
			return nil
		}
		s.correct = cor
		s.shownAt = s.now()
		return s.after(s.opts.Timing.Trial)
	case schedule.KindGate, schedule.KindSummary:
		if st.Wait > 0 {
			return s.after(st.Wait)
		}
	case schedule.KindSaving:
		return s.after(st.Wait)
	}
	return nil
}

func (s *Screen) advance() tea.Cmd {
	return s.enter(s.idx + 1)
}

// after arms a timeout for the current step. A zero duration fires at once.
func (s *Screen) after(d time.Duration) tea.Cmd {
	seq := s.seq
	if d <= 0 {
		return func() tea.Msg { return timeoutMsg{seq: seq} }
	}
	return tea.Tick(d, func(time.Time) tea.Msg {
		return timeoutMsg{seq: seq}
	})
}

func (s *Screen) handleTimeout() tea.Cmd {
	st := s.Step()
	if st.Kind != schedule.KindTrial {
		return s.advance()
	}
	if s.feedback == nil {
		return s.record(session.Timeout())
	}
	if s.holding {
		return nil
	}
	return s.advance()
}

func (s *Screen) handleKey(msg tea.KeyPressMsg) tea.Cmd {
	st := s.Step()
	switch st.Kind {
	case schedule.KindInstructions:
		if key.Matches(msg, s.next) {
			s.slide++
			if s.slide >= len(s.slides) {
				return s.advance()
			}
		}
	case schedule.KindTrial:
		k := s.responseKey(msg)
		if k < 0 {
			return nil
		}
		if s.feedback == nil {
			rt := s.now().Sub(s.shownAt)
			return s.record(session.Pressed(k, rt))
		}
		if s.holding && k == s.correct {
			return s.advance()
		}
	case schedule.KindEnd:
		if key.Matches(msg, s.next) {
			return s.advance()
		}
	default:
		if st.Continue && key.Matches(msg, s.next) {
			return s.advance()
		}
	}
	return nil
}

func (s *Screen) responseKey(msg tea.KeyPressMsg) int {
	for i, b := range s.respond {
		if key.Matches(msg, b) {
			return i
		}
	}
	return -1
}

// record applies the outcome and switches the trial to its feedback.
func (s *Screen) record(resp session.Response) tea.Cmd {
	rec, err := s.eng.RecordOutcome(s.ctx, s.idx, resp)
	if err != nil {
		s.err = fmt.Errorf("record step %d: %w", s.idx, err)
		s.log.Error("timeline stopped", zap.Int("step", s.idx), zap.Error(err))
		return nil
	}
	s.feedback = &rec
	s.seq++
	if s.opts.ForceCorrect && !rec.Correct {
		s.holding = true
		return nil
	}
	return s.after(s.opts.Timing.Feedback)
}
