package block

import (
	"fmt"
	"io/fs"

	"github.com/abhisek/revlearn/internal/stimseq"
)

// Kind selects how a block's trials decide correctness.
type Kind string

const (
	// KindFixedPractice uses the sequence's fixed correct keys.
	KindFixedPractice Kind = "fixed-practice"

	// KindReversalPractice tracks a single shared reversal state.
	KindReversalPractice Kind = "reversal-practice"

	// KindAdaptive tracks one reversal state per stimulus.
	KindAdaptive Kind = "adaptive"
)

// Block is the immutable description of a contiguous block run.
type Block struct {
	ID        int
	Start     int
	NumTrials int
	SetSize   int
	Folder    int
}

// End returns the absolute index of the last trial in the block.
func (b Block) End() int {
	return b.Start + b.NumTrials - 1
}

// Stimuli returns the block's images in preview order (ids 1..SetSize).
func (b Block) Stimuli() []stimseq.Stimulus {
	out := make([]stimseq.Stimulus, b.SetSize)
	for i := range out {
		out[i] = stimseq.Stimulus{Folder: b.Folder, ID: i + 1}
	}
	return out
}

// ConfigError reports a block that cannot be built from the sequence.
type ConfigError struct {
	BlockID int
	Reason  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("block %d: %s", e.BlockID, e.Reason)
}

// Plan locates block id in seq. Set size and folder are read at the first
// trial of the block.
func Plan(seq *stimseq.Sequence, id int) (Block, error) {
	start, end := -1, -1
	for i, b := range seq.Blocks {
		if b != id {
			continue
		}
		if start < 0 {
			start = i
		}
		end = i
	}
	if start < 0 {
		return Block{}, &ConfigError{BlockID: id, Reason: "not present in stimulus sequence"}
	}
	row := seq.At(start)
	return Block{
		ID:        id,
		Start:     start,
		NumTrials: end - start + 1,
		SetSize:   row.SetSize,
		Folder:    row.Folder,
	}, nil
}

// CheckStimuli verifies that every stimulus of an adaptive block lies inside
// its set, since each one indexes a reversal slot.
func CheckStimuli(seq *stimseq.Sequence, b Block) error {
	for i := b.Start; i <= b.End(); i++ {
		stim := seq.Stims[i]
		if stim < 1 || stim > b.SetSize {
			return &ConfigError{
				BlockID: b.ID,
				Reason:  fmt.Sprintf("stimulus %d at position %d outside set size %d", stim, i, b.SetSize),
			}
		}
	}
	return nil
}

// CheckImages verifies that fsys holds an image for every stimulus id in
// ids, laid out as images<folder>/image<id>.jpg.
func CheckImages(fsys fs.FS, b Block, ids []int) error {
	for _, id := range ids {
		p := stimseq.Stimulus{Folder: b.Folder, ID: id}.ImagePath("")
		if _, err := fs.Stat(fsys, p); err != nil {
			return &ConfigError{
				BlockID: b.ID,
				Reason:  fmt.Sprintf("image %s missing from folder contents: %v", p, err),
			}
		}
	}
	return nil
}
