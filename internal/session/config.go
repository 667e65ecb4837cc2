package session

import (
	"fmt"

	"github.com/abhisek/revlearn/internal/practice"
	"github.com/abhisek/revlearn/internal/reversal"
	"github.com/abhisek/revlearn/internal/schedule"
)

// Config holds the engine's task parameters.
type Config struct {
	Schedule schedule.Options

	// FullRange is the threshold range of main blocks.
	FullRange reversal.Range

	// PracticeFirstRange and PracticeSecondRange are the threshold ranges of
	// the two halves of the reversal practice block.
	PracticeFirstRange  reversal.Range
	PracticeSecondRange reversal.Range

	// PracticeInitialThreshold overrides the first threshold of the reversal
	// practice block. Zero draws it from PracticeFirstRange.
	PracticeInitialThreshold int

	MasteryGate  practice.MasteryGate
	ReversalGate practice.ReversalGate

	// ImageRoot prefixes stimulus image paths.
	ImageRoot string

	// EndLink is where participants go after the session; the subject id is
	// appended as the id query parameter.
	EndLink string
}

// DefaultConfig returns the standard task parameters.
func DefaultConfig() Config {
	return Config{
		Schedule:                 schedule.DefaultOptions(),
		FullRange:                reversal.FullBlockRange,
		PracticeFirstRange:       reversal.PracticeFirstRange,
		PracticeSecondRange:      reversal.FullBlockRange,
		PracticeInitialThreshold: 5,
		MasteryGate:              practice.DefaultMasteryGate(),
		ReversalGate:             practice.DefaultReversalGate(),
	}
}

// Validate checks ranges and schedule options.
func (c Config) Validate() error {
	ranges := []struct {
		name string
		r    reversal.Range
	}{
		{"full", c.FullRange},
		{"practice first", c.PracticeFirstRange},
		{"practice second", c.PracticeSecondRange},
	}
	for _, rg := range ranges {
		if err := rg.r.Validate(); err != nil {
			return fmt.Errorf("%s range: %w", rg.name, err)
		}
	}
	if c.PracticeInitialThreshold < 0 {
		return fmt.Errorf("practice initial threshold %d must be >= 0", c.PracticeInitialThreshold)
	}
	if c.MasteryGate.Window < 1 {
		return fmt.Errorf("mastery window %d must be >= 1", c.MasteryGate.Window)
	}
	return c.Schedule.Validate()
}
