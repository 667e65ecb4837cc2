package schedule

import (
	"time"

	"github.com/abhisek/revlearn/internal/stimseq"
	"github.com/abhisek/revlearn/internal/trial"
)

// Kind is the type of a timeline step.
type Kind string

const (
	KindInstructions Kind = "instructions"
	KindPreview      Kind = "preview"
	KindFixation     Kind = "fixation"
	KindTrial        Kind = "trial"
	KindGate         Kind = "gate"
	KindSummary      Kind = "summary"
	KindSaving       Kind = "saving"
	KindEnd          Kind = "end"
)

// GateKind selects which practice gate an intermediate feedback step runs.
type GateKind string

const (
	GateNone     GateKind = ""
	GateMastery  GateKind = "mastery"
	GateReversal GateKind = "reversal"
)

// SlideSet names a group of instruction slides rendered by the host.
type SlideSet int

const (
	SlidesIntro SlideSet = iota + 1
	SlidesReversal
	SlidesMainTask
)

// NoSlot marks a trial whose correct key is fixed.
const NoSlot = -1

// Step is one entry of the timeline a host plays in order.
type Step struct {
	Kind Kind

	// Index is the position in the full timeline.
	Index int

	BlockID int

	// Trial is the 0-based trial index within the block.
	Trial int

	// Phase is 0 for the first half of a practice block and 1 for the second.
	Phase int

	Stimulus stimseq.Stimulus
	Mode     trial.Mode

	// Slot indexes the block's reversal state; NoSlot for fixed trials.
	Slot int

	// FixedResponse is the correct key of a fixed trial.
	FixedResponse int

	// Practice selects the practice feedback texts.
	Practice bool

	// Images lists the preview images.
	Images []stimseq.Stimulus

	// Label is the preview heading.
	Label string

	Gate   GateKind
	Slides SlideSet

	// ExportBlock, when non-zero, asks the engine to export that block's
	// records as the step starts.
	ExportBlock int

	// Wait bounds how long the host shows the step. Zero waits for the
	// continue key only.
	Wait time.Duration

	// Continue reports whether the continue key advances the step.
	Continue bool
}

// IsTrial reports whether the step expects a response.
func (s Step) IsTrial() bool {
	return s.Kind == KindTrial
}
