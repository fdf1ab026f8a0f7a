package domain

import (
	"fmt"
	"strings"
)

// Decision is an operator's choice for a selected task.
type Decision string

// Recognized decisions
const (
	DecisionComplete Decision = "complete"
	DecisionRemind   Decision = "remind"
	DecisionHelp     Decision = "help"
	DecisionSkip     Decision = "skip"
	DecisionBack     Decision = "back"
)

// Decisions lists the recognized decisions in prompt order.
func Decisions() []Decision {
	return []Decision{DecisionComplete, DecisionRemind, DecisionHelp, DecisionSkip, DecisionBack}
}

// ParseDecision normalizes free-form operator input (trimmed, lowercased) and
// returns the matching Decision or ErrUnknownDecision.
func ParseDecision(raw string) (Decision, error) {
	d := Decision(strings.ToLower(strings.TrimSpace(raw)))
	switch d {
	case DecisionComplete, DecisionRemind, DecisionHelp, DecisionSkip, DecisionBack:
		return d, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDecision, raw)
	}
}
