package session

import (
	"context"
	"fmt"
	"time"

	"github.com/abhisek/revlearn/internal/reversal"
	"github.com/abhisek/revlearn/internal/schedule"
	"github.com/abhisek/revlearn/internal/trial"
)

// Agent answers trials in place of a participant.
type Agent interface {
	Respond(cue Cue, alphabet int) Response
	Observe(rec trial.Record)
}

// RandomAgent presses a uniformly random key, or times out with probability
// TimeoutRate (in percent).
type RandomAgent struct {
	Rand        reversal.Rand
	TimeoutRate int
	RT          time.Duration
}

func (a *RandomAgent) Respond(_ Cue, alphabet int) Response {
	if a.TimeoutRate > 0 && a.Rand.IntN(100) < a.TimeoutRate {
		return Timeout()
	}
	return Pressed(a.Rand.IntN(alphabet), a.RT)
}

func (a *RandomAgent) Observe(trial.Record) {}

// WinStayAgent repeats the last rewarded key for each image and tries a
// different key after an error.
type WinStayAgent struct {
	Rand reversal.Rand
	RT   time.Duration

	guess    map[[2]int]int
	alphabet int
}

func (a *WinStayAgent) key(cue Cue) [2]int {
	return [2]int{cue.Step.Stimulus.Folder, cue.Step.Stimulus.ID}
}

func (a *WinStayAgent) Respond(cue Cue, alphabet int) Response {
	if a.guess == nil {
		a.guess = make(map[[2]int]int)
	}
	a.alphabet = alphabet
	k, ok := a.guess[a.key(cue)]
	if !ok {
		k = a.Rand.IntN(alphabet)
		a.guess[a.key(cue)] = k
	}
	return Pressed(k, a.RT)
}

func (a *WinStayAgent) Observe(rec trial.Record) {
	if rec.Correct || a.alphabet < 2 {
		return
	}
	key := [2]int{rec.Folder, rec.StimulusID}
	prev := a.guess[key]
	k := a.Rand.IntN(a.alphabet - 1)
	if k >= prev {
		k++
	}
	a.guess[key] = k
}

// Run plays the timeline from step start to the end with agent answering
// every trial. Waits and timeouts are not simulated.
func Run(ctx context.Context, e *Engine, agent Agent, start int) error {
	for i := start; i < len(e.steps); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		cue, err := e.Begin(ctx, i)
		if err != nil {
			return fmt.Errorf("begin step %d: %w", i, err)
		}
		if cue.Step.Kind != schedule.KindTrial {
			continue
		}
		rec, err := e.RecordOutcome(ctx, i, agent.Respond(cue, e.Alphabet()))
		if err != nil {
			return fmt.Errorf("record step %d: %w", i, err)
		}
		agent.Observe(rec)
	}
	return nil
}
