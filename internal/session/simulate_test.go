package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/abhisek/revlearn/internal/reversal"
	"github.com/abhisek/revlearn/internal/schedule"
	"github.com/abhisek/revlearn/internal/stimseq"
	"github.com/abhisek/revlearn/internal/trial"
)

func TestWinStayAgent(t *testing.T) {
	a := &WinStayAgent{Rand: reversal.NewRand(1)}
	cue := Cue{Step: schedule.Step{Kind: schedule.KindTrial, Stimulus: stimseq.Stimulus{Folder: 4, ID: 2}}}

	first := a.Respond(cue, 3)
	key := *first.Key
	assert.Equal(t, key, *a.Respond(cue, 3).Key, "stays without feedback")

	a.Observe(trial.Record{Folder: 4, StimulusID: 2, Response: &key, Correct: true})
	assert.Equal(t, key, *a.Respond(cue, 3).Key, "stays after a win")

	for range 20 {
		prev := *a.Respond(cue, 3).Key
		a.Observe(trial.Record{Folder: 4, StimulusID: 2, Response: &prev})
		assert.NotEqual(t, prev, *a.Respond(cue, 3).Key, "shifts after a loss")
	}
}

func TestRandomAgent_Timeouts(t *testing.T) {
	a := &RandomAgent{Rand: reversal.NewRand(2), TimeoutRate: 100}
	assert.Nil(t, a.Respond(Cue{}, 3).Key)

	a.TimeoutRate = 0
	for range 50 {
		r := a.Respond(Cue{}, 3)
		assert.NotNil(t, r.Key)
		assert.Less(t, *r.Key, 3)
	}
}
