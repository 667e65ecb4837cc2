package reversal

// State is the mutable reversal record of one stimulus slot.
// Invariant: 0 <= ConsecutiveCorrect < Threshold between trials.
type State struct {
	ConsecutiveCorrect int
	Threshold          int
	CorrectResponse    int

	// Range is where the threshold is redrawn from on reversal.
	Range Range
}

// Outcome describes the effect of one ApplyOutcome call.
type Outcome struct {
	// Reversed is set when the outcome triggered a reversal.
	Reversed bool

	// PriorResponse is the correct response before the outcome was applied.
	PriorResponse int

	// Threshold and ConsecutiveCorrect are the values after the update.
	Threshold          int
	ConsecutiveCorrect int
}
