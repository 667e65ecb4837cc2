package schedule

import (
	"fmt"
	"time"

	"github.com/abhisek/revlearn/internal/block"
	"github.com/abhisek/revlearn/internal/stimseq"
	"github.com/abhisek/revlearn/internal/trial"
)

// Options controls timeline construction.
type Options struct {
	// StimOffset is added to stimulus ids in the second half of practice
	// blocks so novel images are shown.
	StimOffset int

	GateWait    time.Duration
	SummaryWait time.Duration
	SettleDelay time.Duration

	FixedPracticeBlock    int
	ReversalPracticeBlock int
	FirstMainBlock        int
	NumBlocks             int

	RunPractice bool
	RunMain     bool
}

// DefaultOptions mirrors the standard task: two practice blocks followed by
// main blocks 3..23.
func DefaultOptions() Options {
	return Options{
		StimOffset:            2,
		GateWait:              30 * time.Second,
		SummaryWait:           60 * time.Second,
		SettleDelay:           5 * time.Second,
		FixedPracticeBlock:    1,
		ReversalPracticeBlock: 2,
		FirstMainBlock:        3,
		NumBlocks:             23,
		RunPractice:           true,
		RunMain:               true,
	}
}

// Validate checks the block numbering.
func (o Options) Validate() error {
	if o.RunMain && o.NumBlocks < o.FirstMainBlock {
		return fmt.Errorf("num blocks %d below first main block %d", o.NumBlocks, o.FirstMainBlock)
	}
	if o.StimOffset < 0 {
		return fmt.Errorf("stimulus offset %d must be >= 0", o.StimOffset)
	}
	return nil
}

// MainBlockCount returns how many main blocks the session runs.
func (o Options) MainBlockCount() int {
	return o.NumBlocks - o.FirstMainBlock + 1
}

// PlanAdaptive lays out a main block: preview, fixation + trial pairs, and
// the block summary. Trials follow the sequence order verbatim.
func PlanAdaptive(seq *stimseq.Sequence, b block.Block, opts Options) ([]Step, error) {
	if err := block.CheckStimuli(seq, b); err != nil {
		return nil, err
	}

	steps := []Step{{
		Kind:     KindPreview,
		BlockID:  b.ID,
		Images:   b.Stimuli(),
		Label:    fmt.Sprintf("Block %d of %d", b.ID-opts.FirstMainBlock+1, opts.MainBlockCount()),
		Continue: true,
	}}

	for t := 0; t < b.NumTrials; t++ {
		stim := seq.Stims[b.Start+t]
		steps = append(steps,
			Step{Kind: KindFixation, BlockID: b.ID, Trial: t},
			Step{
				Kind:     KindTrial,
				BlockID:  b.ID,
				Trial:    t,
				Stimulus: stimseq.Stimulus{Folder: b.Folder, ID: stim},
				Mode:     trial.ModeReversal,
				Slot:     stim - 1,
			},
		)
	}

	steps = append(steps, Step{
		Kind:        KindSummary,
		BlockID:     b.ID,
		ExportBlock: b.ID,
		Wait:        opts.SummaryWait,
		Continue:    true,
	})
	return steps, nil
}

// PlanFixedPractice lays out the fixed-mapping practice block: first half,
// mastery gate, then the second half with offset stimulus ids.
func PlanFixedPractice(seq *stimseq.Sequence, b block.Block, opts Options) []Step {
	steps := []Step{practicePreview(b)}

	half := b.NumTrials / 2
	fixed := func(t, phase, offset int) Step {
		row := seq.At(b.Start + t)
		return Step{
			Kind:          KindTrial,
			BlockID:       b.ID,
			Trial:         t,
			Phase:         phase,
			Stimulus:      stimseq.Stimulus{Folder: b.Folder, ID: row.Stim + offset},
			Mode:          trial.ModeFixed,
			Slot:          NoSlot,
			FixedResponse: row.CorKey,
			Practice:      phase == 0,
		}
	}

	for t := 0; t < half; t++ {
		steps = append(steps, Step{Kind: KindFixation, BlockID: b.ID, Trial: t}, fixed(t, 0, 0))
	}
	steps = append(steps, gateStep(b, GateMastery, opts))
	for t := half + 1; t < b.NumTrials; t++ {
		steps = append(steps, Step{Kind: KindFixation, BlockID: b.ID, Trial: t, Phase: 1}, fixed(t, 1, opts.StimOffset))
	}
	return steps
}

// PlanReversalPractice lays out the single-stimulus reversal practice block.
// Both halves share slot 0; the engine resets it when phase 1 starts.
func PlanReversalPractice(seq *stimseq.Sequence, b block.Block, opts Options) []Step {
	steps := []Step{practicePreview(b)}

	half := b.NumTrials / 2
	rev := func(t, phase, offset int) Step {
		return Step{
			Kind:     KindTrial,
			BlockID:  b.ID,
			Trial:    t,
			Phase:    phase,
			Stimulus: stimseq.Stimulus{Folder: b.Folder, ID: seq.Stims[b.Start+t] + offset},
			Mode:     trial.ModeReversal,
			Slot:     0,
			Practice: phase == 0,
		}
	}

	for t := 0; t < half; t++ {
		steps = append(steps, Step{Kind: KindFixation, BlockID: b.ID, Trial: t}, rev(t, 0, 0))
	}
	steps = append(steps, gateStep(b, GateReversal, opts))
	for t := half + 1; t < b.NumTrials; t++ {
		steps = append(steps, Step{Kind: KindFixation, BlockID: b.ID, Trial: t, Phase: 1}, rev(t, 1, opts.StimOffset))
	}
	return steps
}

func practicePreview(b block.Block) Step {
	return Step{
		Kind:     KindPreview,
		BlockID:  b.ID,
		Images:   b.Stimuli(),
		Continue: true,
	}
}

func gateStep(b block.Block, gate GateKind, opts Options) Step {
	return Step{
		Kind:     KindGate,
		BlockID:  b.ID,
		Gate:     gate,
		Wait:     opts.GateWait,
		Continue: true,
	}
}

// BlockKind reports how opts treats block id.
func BlockKind(id int, opts Options) block.Kind {
	switch id {
	case opts.FixedPracticeBlock:
		return block.KindFixedPractice
	case opts.ReversalPracticeBlock:
		return block.KindReversalPractice
	}
	return block.KindAdaptive
}

// PlanSession builds the full timeline: instructions and practice blocks,
// the main blocks, then the saving and end steps. Every referenced block
// must exist in seq.
func PlanSession(seq *stimseq.Sequence, opts Options) ([]Step, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	var steps []Step
	if opts.RunPractice {
		fb, err := block.Plan(seq, opts.FixedPracticeBlock)
		if err != nil {
			return nil, err
		}
		rb, err := block.Plan(seq, opts.ReversalPracticeBlock)
		if err != nil {
			return nil, err
		}

		steps = append(steps, Step{Kind: KindInstructions, Slides: SlidesIntro, Continue: true})
		steps = append(steps, PlanFixedPractice(seq, fb, opts)...)
		steps = append(steps, Step{Kind: KindInstructions, Slides: SlidesReversal, ExportBlock: fb.ID, Continue: true})
		steps = append(steps, PlanReversalPractice(seq, rb, opts)...)
		steps = append(steps, Step{Kind: KindInstructions, Slides: SlidesMainTask, ExportBlock: rb.ID, Continue: true})
	}

	if opts.RunMain {
		for id := opts.FirstMainBlock; id <= opts.NumBlocks; id++ {
			b, err := block.Plan(seq, id)
			if err != nil {
				return nil, err
			}
			blockSteps, err := PlanAdaptive(seq, b, opts)
			if err != nil {
				return nil, err
			}
			steps = append(steps, blockSteps...)
		}
	}

	steps = append(steps,
		Step{Kind: KindSaving, Wait: opts.SettleDelay},
		Step{Kind: KindEnd},
	)
	for i := range steps {
		steps[i].Index = i
	}
	return steps, nil
}
