package session

import (
	"fmt"
	"slices"

	"github.com/abhisek/revlearn/internal/schedule"
	"github.com/abhisek/revlearn/internal/trial"
)

type trialKey struct {
	block, phase, trial int
}

// Restore loads the records of completed blocks from an interrupted session
// and returns the step index to resume from. Completed blocks must form a
// prefix of the session's block order. Records of other blocks are dropped;
// those blocks restart with fresh reversal states.
func (e *Engine) Restore(records []trial.Record, completed []int) (int, error) {
	if len(e.records) > 0 {
		return 0, fmt.Errorf("restore: session already has %d records", len(e.records))
	}
	if len(completed) == 0 {
		return 0, nil
	}

	order := e.blockOrder()
	if len(completed) > len(order) {
		return 0, fmt.Errorf("restore: %d completed blocks, session has %d", len(completed), len(order))
	}
	done := slices.Clone(completed)
	slices.SortFunc(done, func(a, b int) int {
		return slices.Index(order, a) - slices.Index(order, b)
	})
	for i, id := range done {
		if order[i] != id {
			return 0, fmt.Errorf("restore: completed blocks %v are not a prefix of %v", completed, order)
		}
	}

	steps := make(map[trialKey]int)
	for _, s := range e.steps {
		if s.IsTrial() {
			steps[trialKey{s.BlockID, s.Phase, s.Trial}] = s.Index
		}
	}

	for _, rec := range records {
		if !slices.Contains(done, rec.BlockID) {
			continue
		}
		idx, ok := steps[trialKey{rec.BlockID, rec.Phase, rec.TrialIndex}]
		if !ok {
			return 0, fmt.Errorf("restore: block %d trial %d is not in the timeline", rec.BlockID, rec.TrialIndex)
		}
		if e.recorded[idx] {
			return 0, fmt.Errorf("%w: block %d trial %d", ErrAlreadyRecorded, rec.BlockID, rec.TrialIndex)
		}
		rec.SessionID = e.id
		e.records = append(e.records, rec)
		e.recorded[idx] = true
		if rec.Reversed {
			e.blocks[rec.BlockID].reversals[rec.Phase]++
		}
	}

	for _, id := range done {
		for _, s := range e.steps {
			if s.IsTrial() && s.BlockID == id && !e.recorded[s.Index] {
				return 0, fmt.Errorf("%w: block %d step %d", ErrBlockIncomplete, id, s.Index)
			}
		}
		e.blocks[id].finalized = true
	}

	last := done[len(done)-1]
	for _, s := range e.steps {
		if s.ExportBlock != last {
			continue
		}
		// Instruction slides introduce the next block and are shown again.
		if s.Kind == schedule.KindInstructions {
			return s.Index, nil
		}
		return s.Index + 1, nil
	}
	return 0, fmt.Errorf("restore: block %d has no export step", last)
}

// blockOrder lists block ids in timeline order.
func (e *Engine) blockOrder() []int {
	var ids []int
	for _, s := range e.steps {
		if s.BlockID != 0 && !slices.Contains(ids, s.BlockID) {
			ids = append(ids, s.BlockID)
		}
	}
	return ids
}
