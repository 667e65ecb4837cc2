package block

import (
	"fmt"

	"github.com/abhisek/revlearn/internal/reversal"
)

// Arena owns the reversal states of one block, indexed by stimulus slot.
// States are only mutated through Apply and Reset.
type Arena struct {
	policy *reversal.Policy
	states []reversal.State
}

// InitStates creates one fresh state per slot with thresholds drawn from r
// and responses drawn over the full alphabet.
func InitStates(p *reversal.Policy, slots int, r reversal.Range) *Arena {
	a := &Arena{policy: p, states: make([]reversal.State, slots)}
	for i := range a.states {
		a.states[i] = p.NewState(r)
	}
	return a
}

// Len returns the number of slots.
func (a *Arena) Len() int {
	return len(a.states)
}

// State returns a copy of the state in slot i.
func (a *Arena) State(i int) (reversal.State, error) {
	if err := a.check(i); err != nil {
		return reversal.State{}, err
	}
	return a.states[i], nil
}

// Apply feeds one outcome into slot i.
func (a *Arena) Apply(i int, correct bool) (reversal.Outcome, error) {
	if err := a.check(i); err != nil {
		return reversal.Outcome{}, err
	}
	return a.policy.ApplyOutcome(&a.states[i], correct), nil
}

// Reset replaces slot i with a fresh state drawn from r.
func (a *Arena) Reset(i int, r reversal.Range) error {
	if err := a.check(i); err != nil {
		return err
	}
	a.states[i] = a.policy.NewState(r)
	return nil
}

// SetThreshold overrides the current threshold of slot i.
func (a *Arena) SetThreshold(i, threshold int) error {
	if err := a.check(i); err != nil {
		return err
	}
	a.states[i].Threshold = threshold
	return nil
}

func (a *Arena) check(i int) error {
	if i < 0 || i >= len(a.states) {
		return fmt.Errorf("reversal slot %d out of range [0,%d)", i, len(a.states))
	}
	return nil
}
