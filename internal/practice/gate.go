package practice

// Message is the intermediate feedback selected by a practice gate.
type Message string

const (
	// MessageMastered follows a fixed-mapping half with enough correct answers.
	MessageMastered Message = "mastered"

	// MessageTryAllKeys follows a fixed-mapping half below the bar.
	MessageTryAllKeys Message = "try-all-keys"

	// MessageUnderstood follows a reversal half with enough reversals.
	MessageUnderstood Message = "understood"

	// MessageRememberOne follows a reversal half below the bar.
	MessageRememberOne Message = "remember-one-answer"
)

// Text returns the headline and body shown to the participant.
func (m Message) Text() (headline, body string) {
	switch m {
	case MessageMastered:
		return "Looks like you have a hang of it!", "Here is another practice round."
	case MessageTryAllKeys:
		return "Remember that every image has ONE correct key.",
			"Try out all the keys to find the correct one! Here is another practice round."
	case MessageUnderstood:
		return "It looks like you understand the task!", "Here is one last practice round."
	case MessageRememberOne:
		return "Remember that there is always ONE correct answer per image.",
			"This correct answer will change once in a while! Here is one last practice round."
	}
	return "", ""
}

// MasteryGate inspects the most recent outcomes of a fixed-mapping block.
type MasteryGate struct {
	Window     int
	MinCorrect int
}

// DefaultMasteryGate checks the last 10 outcomes for at least 8 correct.
func DefaultMasteryGate() MasteryGate {
	return MasteryGate{Window: 10, MinCorrect: 8}
}

// CountRecent returns the number of correct outcomes among the last
// g.Window entries of outcomes.
func (g MasteryGate) CountRecent(outcomes []bool) int {
	if len(outcomes) > g.Window {
		outcomes = outcomes[len(outcomes)-g.Window:]
	}
	n := 0
	for _, ok := range outcomes {
		if ok {
			n++
		}
	}
	return n
}

// Evaluate selects the feedback message for outcomes, oldest first.
func (g MasteryGate) Evaluate(outcomes []bool) Message {
	if g.CountRecent(outcomes) >= g.MinCorrect {
		return MessageMastered
	}
	return MessageTryAllKeys
}

// ReversalGate checks how many reversals a participant produced.
type ReversalGate struct {
	MinReversals int
}

// DefaultReversalGate requires two reversals.
func DefaultReversalGate() ReversalGate {
	return ReversalGate{MinReversals: 2}
}

// Evaluate selects the feedback message for a reversal count.
func (g ReversalGate) Evaluate(reversals int) Message {
	if reversals >= g.MinReversals {
		return MessageUnderstood
	}
	return MessageRememberOne
}
