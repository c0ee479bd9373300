package agent

import (
	"context"
	"fmt"
)

// Decision is the three-way outcome of an approval request. Unsupported means
// the current transport has no way to ask a human; the gate treats it the
// same as a denial under the fallback policy.
type Decision int

const (
	DecisionUnsupported Decision = iota
	DecisionDenied
	DecisionApproved
)

func (d Decision) String() string {
	switch d {
	case DecisionApproved:
		return "approved"
	case DecisionDenied:
		return "denied"
	default:
		return "unsupported"
	}
}

// Approver is the external approval channel consulted before a dangerous
// action executes.
type Approver interface {
	Confirm(ctx context.Context, prompt string) (Decision, error)
}

// describeAction renders a dangerous action for a human approver.
func describeAction(a Action) string {
	params, err := json.MarshalToString(a.Params)
	if err != nil {
		params = fmt.Sprintf("%v", a.Params)
	}
	msg := fmt.Sprintf("The agent wants to perform a potentially dangerous action:\n  action: %s\n  parameters: %s", a.Name, params)
	if a.Rationale != "" {
		msg += "\n  reasoning: " + a.Rationale
	}
	return msg + "\nAllow this action?"
}
