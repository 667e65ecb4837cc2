package reversal

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

// ErrAlphabetTooSmall is returned when fewer than two responses exist, which
// leaves no candidate for a reversal.
var ErrAlphabetTooSmall = errors.New("response alphabet must have at least 2 members")

// Rand is the random source used for threshold and response draws.
// *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// NewRand returns an unseeded source when seed is 0 and a reproducible
// PCG source otherwise.
func NewRand(seed uint64) Rand {
	if seed == 0 {
		return globalRand{}
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Range is an inclusive range of reversal thresholds.
type Range struct {
	Low  int `mapstructure:"low" json:"low"`
	High int `mapstructure:"high" json:"high"`
}

// Standard ranges.
var (
	FullBlockRange     = Range{Low: 2, High: 4}
	PracticeFirstRange = Range{Low: 3, High: 5}
)

// Validate checks that the range is non-empty and positive.
func (r Range) Validate() error {
	if r.Low < 1 {
		return fmt.Errorf("threshold range low %d must be >= 1", r.Low)
	}
	if r.High < r.Low {
		return fmt.Errorf("threshold range [%d,%d] is empty", r.Low, r.High)
	}
	return nil
}

// Contains reports whether n lies in the range.
func (r Range) Contains(n int) bool {
	return n >= r.Low && n <= r.High
}

func (r Range) String() string {
	return fmt.Sprintf("[%d,%d]", r.Low, r.High)
}

// Policy draws thresholds and reassigns correct responses.
type Policy struct {
	rng      Rand
	alphabet int
}

// NewPolicy creates a Policy over a response alphabet of the given size.
func NewPolicy(rng Rand, alphabet int) (*Policy, error) {
	if alphabet < 2 {
		return nil, ErrAlphabetTooSmall
	}
	if rng == nil {
		rng = globalRand{}
	}
	return &Policy{rng: rng, alphabet: alphabet}, nil
}

// Alphabet returns the number of response keys.
func (p *Policy) Alphabet() int {
	return p.alphabet
}

// DrawThreshold samples uniformly from r, inclusive on both ends.
func (p *Policy) DrawThreshold(r Range) int {
	return r.Low + p.rng.IntN(r.High-r.Low+1)
}

// InitialResponse samples uniformly over the whole alphabet.
func (p *Policy) InitialResponse() int {
	return p.rng.IntN(p.alphabet)
}

// ChooseNewResponse samples uniformly over the alphabet minus excluding.
func (p *Policy) ChooseNewResponse(excluding int) int {
	k := p.rng.IntN(p.alphabet - 1)
	if k >= excluding {
		k++
	}
	return k
}

// NewState returns a fresh state whose redraws use r.
func (p *Policy) NewState(r Range) State {
	return State{
		Threshold:       p.DrawThreshold(r),
		CorrectResponse: p.InitialResponse(),
		Range:           r,
	}
}

// ApplyOutcome advances s by one trial outcome. A reversal happens when the
// consecutive-correct counter reaches the threshold: the counter is reset,
// the threshold redrawn from s.Range and the correct response moved to a
// different key, all before the next trial reads s.
func (p *Policy) ApplyOutcome(s *State, correct bool) Outcome {
	if correct {
		s.ConsecutiveCorrect++
	} else {
		s.ConsecutiveCorrect = 0
	}

	out := Outcome{PriorResponse: s.CorrectResponse}
	if s.ConsecutiveCorrect >= s.Threshold {
		s.ConsecutiveCorrect = 0
		s.Threshold = p.DrawThreshold(s.Range)
		s.CorrectResponse = p.ChooseNewResponse(out.PriorResponse)
		out.Reversed = true
	}
	out.Threshold = s.Threshold
	out.ConsecutiveCorrect = s.ConsecutiveCorrect
	return out
}
