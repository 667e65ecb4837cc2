package schedule

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/revlearn/internal/block"
	"github.com/abhisek/revlearn/internal/stimseq"
	"github.com/abhisek/revlearn/internal/trial"
)

// sessionSequence builds practice block 1 (6 trials, set size 2), practice
// block 2 (4 trials, set size 1) and main blocks 3 and 4.
func sessionSequence() *stimseq.Sequence {
	seq := &stimseq.Sequence{}
	add := func(stim, key, setSize, blockID, folder int) {
		seq.Stims = append(seq.Stims, stim)
		seq.CorKeys = append(seq.CorKeys, key)
		seq.SetSizes = append(seq.SetSizes, setSize)
		seq.Blocks = append(seq.Blocks, blockID)
		seq.Folders = append(seq.Folders, folder)
	}
	for i, stim := range []int{1, 2, 2, 1, 1, 2} {
		add(stim, i%3, 2, 1, 1)
	}
	for i := 0; i < 4; i++ {
		add(1, 0, 1, 2, 2)
	}
	for _, stim := range []int{1, 2, 3, 1, 2} {
		add(stim, 0, 3, 3, 5)
	}
	for _, stim := range []int{2, 1} {
		add(stim, 0, 2, 4, 6)
	}
	return seq
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.NumBlocks = 4
	return opts
}

func kinds(steps []Step) []Kind {
	out := make([]Kind, len(steps))
	for i, s := range steps {
		out[i] = s.Kind
	}
	return out
}

func trials(steps []Step) []Step {
	var out []Step
	for _, s := range steps {
		if s.IsTrial() {
			out = append(out, s)
		}
	}
	return out
}

func TestPlanAdaptive(t *testing.T) {
	seq := sessionSequence()
	b, err := block.Plan(seq, 3)
	require.NoError(t, err)

	steps, err := PlanAdaptive(seq, b, testOptions())
	require.NoError(t, err)

	require.Len(t, steps, 1+2*5+1)
	assert.Equal(t, KindPreview, steps[0].Kind)
	assert.Equal(t, "Block 1 of 2", steps[0].Label)
	assert.Len(t, steps[0].Images, 3)
	assert.Equal(t, KindSummary, steps[len(steps)-1].Kind)
	assert.Equal(t, 3, steps[len(steps)-1].ExportBlock)
	assert.Equal(t, testOptions().SummaryWait, steps[len(steps)-1].Wait)

	tr := trials(steps)
	require.Len(t, tr, 5)
	for i, s := range tr {
		assert.Equal(t, KindFixation, steps[1+2*i].Kind)
		assert.Equal(t, i, s.Trial)
		assert.Equal(t, seq.Stims[b.Start+i], s.Stimulus.ID, "sequence order kept")
		assert.Equal(t, s.Stimulus.ID-1, s.Slot)
		assert.Equal(t, 5, s.Stimulus.Folder)
		assert.Equal(t, trial.ModeReversal, s.Mode)
	}
}

func TestPlanAdaptive_StimulusOutsideSet(t *testing.T) {
	seq := sessionSequence()
	b, err := block.Plan(seq, 4)
	require.NoError(t, err)
	seq.Stims[b.Start] = 3

	_, err = PlanAdaptive(seq, b, testOptions())
	var cfgErr *block.ConfigError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestPlanFixedPractice(t *testing.T) {
	seq := sessionSequence()
	b, err := block.Plan(seq, 1)
	require.NoError(t, err)

	steps := PlanFixedPractice(seq, b, testOptions())
	tr := trials(steps)

	// Six trials: 0..2 in the first half, index 3 skipped, 4..5 in the second.
	require.Len(t, tr, 5)
	var idx []int
	for _, s := range tr {
		idx = append(idx, s.Trial)
		assert.Equal(t, trial.ModeFixed, s.Mode)
		assert.Equal(t, NoSlot, s.Slot)
		assert.Equal(t, seq.CorKeys[b.Start+s.Trial], s.FixedResponse)
		if s.Trial < 3 {
			assert.Equal(t, 0, s.Phase)
			assert.True(t, s.Practice)
			assert.Equal(t, seq.Stims[b.Start+s.Trial], s.Stimulus.ID)
		} else {
			assert.Equal(t, 1, s.Phase)
			assert.False(t, s.Practice)
			assert.Equal(t, seq.Stims[b.Start+s.Trial]+2, s.Stimulus.ID)
		}
	}
	assert.Equal(t, []int{0, 1, 2, 4, 5}, idx)

	gates := 0
	for i, s := range steps {
		if s.Kind == KindGate {
			gates++
			assert.Equal(t, GateMastery, s.Gate)
			assert.Equal(t, testOptions().GateWait, s.Wait)
			assert.Equal(t, KindTrial, steps[i-1].Kind)
			assert.Equal(t, 2, steps[i-1].Trial)
		}
	}
	assert.Equal(t, 1, gates)
}

func TestPlanReversalPractice(t *testing.T) {
	seq := sessionSequence()
	b, err := block.Plan(seq, 2)
	require.NoError(t, err)

	steps := PlanReversalPractice(seq, b, testOptions())
	assert.Equal(t, []Kind{
		KindPreview,
		KindFixation, KindTrial, KindFixation, KindTrial,
		KindGate,
		KindFixation, KindTrial,
	}, kinds(steps))

	for _, s := range trials(steps) {
		assert.Equal(t, 0, s.Slot)
		assert.Equal(t, trial.ModeReversal, s.Mode)
		if s.Phase == 1 {
			assert.Equal(t, 3, s.Stimulus.ID)
		} else {
			assert.Equal(t, 1, s.Stimulus.ID)
		}
	}
	assert.Equal(t, GateReversal, steps[5].Gate)
}

func TestPlanSession(t *testing.T) {
	seq := sessionSequence()
	steps, err := PlanSession(seq, testOptions())
	require.NoError(t, err)

	for i, s := range steps {
		assert.Equal(t, i, s.Index)
	}
	assert.Equal(t, KindInstructions, steps[0].Kind)
	assert.Equal(t, SlidesIntro, steps[0].Slides)
	assert.Equal(t, KindSaving, steps[len(steps)-2].Kind)
	assert.Equal(t, KindEnd, steps[len(steps)-1].Kind)

	var exports []int
	for _, s := range steps {
		if s.ExportBlock != 0 {
			exports = append(exports, s.ExportBlock)
		}
	}
	assert.Equal(t, []int{1, 2, 3, 4}, exports)
}

func TestPlanSession_MainOnly(t *testing.T) {
	opts := testOptions()
	opts.RunPractice = false
	steps, err := PlanSession(sessionSequence(), opts)
	require.NoError(t, err)
	assert.Equal(t, KindPreview, steps[0].Kind)
	assert.Equal(t, 3, steps[0].BlockID)
}

func TestPlanSession_MissingBlockFailsFast(t *testing.T) {
	opts := testOptions()
	opts.NumBlocks = 5
	_, err := PlanSession(sessionSequence(), opts)
	var cfgErr *block.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, 5, cfgErr.BlockID)
}

func TestBlockKind(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, block.KindFixedPractice, BlockKind(1, opts))
	assert.Equal(t, block.KindReversalPractice, BlockKind(2, opts))
	assert.Equal(t, block.KindAdaptive, BlockKind(3, opts))
}
