package task

import (
	"sync"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/revlearn/internal/reversal"
	"github.com/abhisek/revlearn/internal/schedule"
	"github.com/abhisek/revlearn/internal/session"
	"github.com/abhisek/revlearn/internal/stimseq"
	"github.com/abhisek/revlearn/internal/trial"
)

type zeroRand struct{}

func (zeroRand) IntN(int) int { return 0 }

type memExporter struct {
	mu    sync.Mutex
	saves []string
	mails []string
}

func (m *memExporter) Save(scope string, _ []trial.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves = append(m.saves, scope)
}

func (m *memExporter) Mail(scope string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mails = append(m.mails, scope)
}

type clock struct {
	t time.Time
}

func (c *clock) Now() time.Time { return c.t }

func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// sequence: practice block 1 (two images, four trials), practice block 2
// (one image, four trials) and main block 3 (two images, six trials).
func sequence() *stimseq.Sequence {
	seq := &stimseq.Sequence{}
	add := func(stim, key, setSize, blockID int) {
		seq.Stims = append(seq.Stims, stim)
		seq.CorKeys = append(seq.CorKeys, key)
		seq.SetSizes = append(seq.SetSizes, setSize)
		seq.Blocks = append(seq.Blocks, blockID)
		seq.Folders = append(seq.Folders, blockID+10)
	}
	for i, stim := range []int{1, 2, 1, 2} {
		add(stim, i%2, 2, 1)
	}
	for range 4 {
		add(1, 0, 1, 2)
	}
	for _, stim := range []int{1, 2, 1, 2, 1, 2} {
		add(stim, 0, 2, 3)
	}
	return seq
}

type fixture struct {
	screen   *Screen
	engine   *session.Engine
	exporter *memExporter
	clock    *clock
}

func newFixture(t *testing.T, mutate func(*Options)) *fixture {
	t.Helper()
	policy, err := reversal.NewPolicy(zeroRand{}, 3)
	require.NoError(t, err)

	cfg := session.DefaultConfig()
	cfg.Schedule.NumBlocks = 3
	cfg.EndLink = "https://example.org/done"

	f := &fixture{exporter: &memExporter{}, clock: &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}}
	f.engine, err = session.New(sequence(), policy, cfg, session.Options{
		Subject:  "s1",
		FileName: "s1_test",
		Exporter: f.exporter,
		Now:      f.clock.Now,
	})
	require.NoError(t, err)

	opts := Options{
		Engine:    f.engine,
		Keys:      []string{"j", "k", "l"},
		Timing:    Timing{Fixation: 500 * time.Millisecond, Trial: 2 * time.Second, Feedback: time.Second},
		ImageRoot: "images",
		Now:       f.clock.Now,
	}
	if mutate != nil {
		mutate(&opts)
	}
	f.screen = New(opts)
	f.screen.Init()
	return f
}

func press(r rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: r, Text: string(r)}
}

func space() tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: tea.KeySpace, Text: " "}
}

func (f *fixture) expire() tea.Cmd {
	_, cmd := f.screen.Update(timeoutMsg{seq: f.screen.seq})
	return cmd
}

func (f *fixture) send(msg tea.Msg) tea.Cmd {
	_, cmd := f.screen.Update(msg)
	return cmd
}

// firstTrial returns the timeline index of the first trial of blockID.
func firstTrial(t *testing.T, e *session.Engine, blockID int) int {
	t.Helper()
	for _, st := range e.Steps() {
		if st.IsTrial() && st.BlockID == blockID {
			return st.Index
		}
	}
	t.Fatalf("block %d has no trials", blockID)
	return 0
}

func TestInstructionsAdvanceOnSpace(t *testing.T) {
	f := newFixture(t, nil)
	s := f.screen

	require.Equal(t, schedule.KindInstructions, s.Step().Kind)
	require.Len(t, s.slides, 5)

	f.send(press('x'))
	assert.Equal(t, 0, s.slide)

	f.send(space())
	assert.Equal(t, 1, s.slide)
	assert.Contains(t, s.View(100, 30), "J, K, or L")

	for range 4 {
		f.send(space())
	}
	assert.Equal(t, schedule.KindPreview, s.Step().Kind)
	assert.Equal(t, "Practice", s.Title())
}

func TestPreviewShowsImages(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.Start = 1 })
	view := f.screen.View(120, 40)
	assert.Contains(t, view, "images11/image1.jpg")
	assert.Contains(t, view, "images11/image2.jpg")

	f.send(space())
	assert.Equal(t, schedule.KindFixation, f.screen.Step().Kind)
	assert.Contains(t, f.screen.View(80, 24), "+")
}

func TestTrialRecordsReactionTime(t *testing.T) {
	f := newFixture(t, nil)
	first := firstTrial(t, f.engine, 1)
	f = newFixture(t, func(o *Options) { o.Start = first })
	s := f.screen

	require.Equal(t, schedule.KindTrial, s.Step().Kind)
	assert.Contains(t, s.View(100, 30), "images11/image1.jpg")

	f.clock.Advance(700 * time.Millisecond)
	f.send(press('j'))

	recs := f.engine.Records()
	require.Len(t, recs, 1)
	require.NotNil(t, recs[0].Response)
	assert.Equal(t, 0, *recs[0].Response)
	require.NotNil(t, recs[0].ReactionTime)
	assert.Equal(t, 700*time.Millisecond, *recs[0].ReactionTime)
	assert.True(t, recs[0].Correct)
	assert.Contains(t, s.View(100, 30), PracticeCorrectText)
	assert.Equal(t, "1 pts", s.Status())
}

func TestTrialIgnoresOtherKeys(t *testing.T) {
	f := newFixture(t, nil)
	first := firstTrial(t, f.engine, 1)
	f = newFixture(t, func(o *Options) { o.Start = first })

	f.send(press('x'))
	f.send(space())
	assert.Empty(t, f.engine.Records())
	assert.Nil(t, f.screen.feedback)
}

func TestTrialTimeoutBoundary(t *testing.T) {
	f := newFixture(t, nil)
	first := firstTrial(t, f.engine, 1)
	f = newFixture(t, func(o *Options) { o.Start = first })
	s := f.screen

	// A timer from an earlier step does not end the trial.
	f.send(timeoutMsg{seq: s.seq - 1})
	assert.Empty(t, f.engine.Records())

	f.expire()
	recs := f.engine.Records()
	require.Len(t, recs, 1)
	assert.True(t, recs[0].TimedOut())
	assert.False(t, recs[0].Correct)
	assert.Contains(t, s.View(100, 30), TimeoutText)

	// A key after the timeout is not a second response.
	f.send(press('j'))
	assert.Len(t, f.engine.Records(), 1)
	assert.Equal(t, first, s.idx)

	f.expire()
	assert.Equal(t, first+1, s.idx)
}

func TestResponseCancelsTrialTimer(t *testing.T) {
	f := newFixture(t, nil)
	first := firstTrial(t, f.engine, 1)
	f = newFixture(t, func(o *Options) { o.Start = first })
	s := f.screen

	trialSeq := s.seq
	f.send(press('k'))
	require.Len(t, f.engine.Records(), 1)
	assert.False(t, f.engine.Records()[0].Correct)
	assert.Contains(t, s.View(100, 30), PracticeWrongText)

	f.send(timeoutMsg{seq: trialSeq})
	assert.Equal(t, first, s.idx, "trial timer fired after the response")
	assert.Len(t, f.engine.Records(), 1)

	f.expire()
	assert.Equal(t, first+1, s.idx)
}

func TestForceCorrect(t *testing.T) {
	f := newFixture(t, nil)
	first := firstTrial(t, f.engine, 1)
	f = newFixture(t, func(o *Options) {
		o.Start = first
		o.ForceCorrect = true
	})
	s := f.screen

	f.send(press('k'))
	require.True(t, s.holding)
	assert.Contains(t, s.View(100, 30), ForceCorrectText)
	assert.Equal(t, "J", s.KeyHints()[0].Key)

	f.expire()
	f.send(press('l'))
	assert.Equal(t, first, s.idx)

	f.send(press('j'))
	assert.Equal(t, first+1, s.idx)
	assert.Len(t, f.engine.Records(), 1)
}

func TestKeyHints(t *testing.T) {
	f := newFixture(t, nil)
	first := firstTrial(t, f.engine, 1)
	f = newFixture(t, func(o *Options) { o.Start = first })
	assert.Equal(t, "J K L", f.screen.KeyHints()[0].Key)

	f = newFixture(t, nil)
	assert.Equal(t, "Space", f.screen.KeyHints()[0].Key)
}

func TestBeginErrorStopsTimeline(t *testing.T) {
	f := newFixture(t, nil)
	var summary int
	for _, st := range f.engine.Steps() {
		if st.Kind == schedule.KindSummary {
			summary = st.Index
		}
	}
	f = newFixture(t, func(o *Options) { o.Start = summary })

	require.ErrorIs(t, f.screen.Err(), session.ErrBlockIncomplete)
	assert.Contains(t, f.screen.View(100, 30), "Something went wrong")
	assert.Nil(t, f.send(space()))
}

// play drives the whole timeline, always answering with the correct key.
func play(t *testing.T, f *fixture) (views map[schedule.Kind]string, quit bool) {
	t.Helper()
	s := f.screen
	views = make(map[schedule.Kind]string)
	for guard := 0; guard < 1000; guard++ {
		require.NoError(t, s.Err())
		st := s.Step()
		if _, seen := views[st.Kind]; !seen {
			views[st.Kind] = s.View(120, 40)
		}

		var cmd tea.Cmd
		switch st.Kind {
		case schedule.KindInstructions, schedule.KindPreview, schedule.KindGate, schedule.KindSummary:
			cmd = f.send(space())
		case schedule.KindFixation, schedule.KindSaving:
			cmd = f.expire()
		case schedule.KindTrial:
			f.send(press(rune(f.screen.opts.Keys[s.correct][0])))
			cmd = f.expire()
		case schedule.KindEnd:
			cmd = f.send(space())
			if cmd != nil {
				_, quit = cmd().(tea.QuitMsg)
			}
			return views, quit
		}
		_ = cmd
	}
	t.Fatal("timeline did not end")
	return nil, false
}

func TestFullSession(t *testing.T) {
	f := newFixture(t, nil)
	views, quit := play(t, f)

	assert.True(t, quit)
	assert.Equal(t, 12, f.engine.Points())
	assert.Contains(t, views[schedule.KindSummary], "you earned")
	assert.Contains(t, views[schedule.KindSummary], "6")
	assert.Contains(t, views[schedule.KindGate], "ONE correct key", "two outcomes are below the mastery bar")
	assert.Contains(t, views[schedule.KindSaving], "Saving data")
	assert.Contains(t, views[schedule.KindEnd], "https://example.org/done?id=s1")

	assert.Equal(t, []string{"s1_test_block_1", "s1_test_block_2", "s1_test_block_3", "s1_test"}, f.exporter.saves)
	assert.Equal(t, []string{"s1_test"}, f.exporter.mails)
}

func TestMainPreviewLabel(t *testing.T) {
	f := newFixture(t, nil)
	var preview int
	for _, st := range f.engine.Steps() {
		if st.Kind == schedule.KindPreview && st.BlockID == 3 {
			preview = st.Index
		}
	}
	f = newFixture(t, func(o *Options) { o.Start = preview })
	assert.Equal(t, "Block 1 of 1", f.screen.Title())
	assert.Contains(t, f.screen.View(120, 40), "Block 1 of 1.")
}

func TestSlides(t *testing.T) {
	keys := []string{"j", "k", "l"}
	assert.Equal(t, "J, K, or L", keyPhrase(keys))
	assert.Equal(t, "A or S", keyPhrase([]string{"a", "s"}))

	assert.Len(t, Slides(schedule.SlidesIntro, keys, 21), 5)
	assert.Len(t, Slides(schedule.SlidesReversal, keys, 21), 3)
	main := Slides(schedule.SlidesMainTask, keys, 21)
	require.Len(t, main, 3)
	assert.Contains(t, main[1], "There are 21 blocks.")
	assert.Contains(t, Slides(schedule.SlidesIntro, keys, 21)[1], "one of the three keys")
	assert.Nil(t, Slides(schedule.SlideSet(99), keys, 21))
}
