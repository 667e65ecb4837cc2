package score

import (
	"sort"

	"github.com/abhisek/revlearn/internal/trial"
)

// PointsForBlock counts the correct trials of blockID. One point per correct
// trial; no partial credit.
func PointsForBlock(records []trial.Record, blockID int) int {
	n := 0
	for _, r := range records {
		if r.BlockID == blockID && r.Correct {
			n++
		}
	}
	return n
}

// SessionPoints counts every correct trial.
func SessionPoints(records []trial.Record) int {
	n := 0
	for _, r := range records {
		if r.Correct {
			n++
		}
	}
	return n
}

// BlockScore summarises one block.
type BlockScore struct {
	BlockID   int
	Trials    int
	Points    int
	Timeouts  int
	Reversals int
}

// Accuracy returns Points / Trials, or 0 for an empty block.
func (b BlockScore) Accuracy() float64 {
	if b.Trials == 0 {
		return 0
	}
	return float64(b.Points) / float64(b.Trials)
}

// ByBlock groups records into per-block scores ordered by block id.
func ByBlock(records []trial.Record) []BlockScore {
	idx := make(map[int]*BlockScore)
	for _, r := range records {
		bs, ok := idx[r.BlockID]
		if !ok {
			bs = &BlockScore{BlockID: r.BlockID}
			idx[r.BlockID] = bs
		}
		bs.Trials++
		if r.Correct {
			bs.Points++
		}
		if r.TimedOut() {
			bs.Timeouts++
		}
		if r.Reversed {
			bs.Reversals++
		}
	}

	out := make([]BlockScore, 0, len(idx))
	for _, bs := range idx {
		out = append(out, *bs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BlockID < out[j].BlockID })
	return out
}
