package trial

import "time"

// Mode describes how the correct response of a trial is decided.
type Mode string

const (
	// ModeFixed trials take their correct key from the stimulus sequence.
	ModeFixed Mode = "fixed"

	// ModeReversal trials take their correct key from a reversal state
	// that is updated after every outcome.
	ModeReversal Mode = "reversal"
)

// Record is the immutable result of one completed trial.
type Record struct {
	SessionID string
	BlockID   int

	// TrialIndex is the 0-based position of the trial within its block.
	TrialIndex int

	Folder     int
	StimulusID int
	Mode       Mode
	Phase      int

	// Response is the pressed key index, nil on timeout.
	Response        *int
	CorrectResponse int
	Correct         bool

	// ReactionTime is nil on timeout.
	ReactionTime *time.Duration

	// Reversal bookkeeping, only meaningful for ModeReversal.
	Threshold          int
	ConsecutiveCorrect int
	Reversed           bool
	Reversals          int

	RecordedAt time.Time
}

// TimedOut reports whether the participant gave no response.
func (r Record) TimedOut() bool {
	return r.Response == nil
}

// ReactionTimeMs returns the reaction time in milliseconds, or -1 on timeout.
func (r Record) ReactionTimeMs() int64 {
	if r.ReactionTime == nil {
		return -1
	}
	return r.ReactionTime.Milliseconds()
}

// FilterBlock returns the records belonging to blockID, in order.
func FilterBlock(records []Record, blockID int) []Record {
	var out []Record
	for _, r := range records {
		if r.BlockID == blockID {
			out = append(out, r)
		}
	}
	return out
}
