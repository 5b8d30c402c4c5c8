package catalogsync

import "fmt"

// Outcome is how an invocation ended.
type Outcome string

const (
	// OutcomeHandedOff means the run yielded to a self-invocation
	OutcomeHandedOff Outcome = "HANDED_OFF"
	// OutcomeForwardTriggered means staging finished and the forward task was started
	OutcomeForwardTriggered Outcome = "FORWARD_TRIGGERED"
	// OutcomeCompleted means the forward task drained its queue
	OutcomeCompleted Outcome = "COMPLETED"
	// OutcomeDuplicate means the trigger token was already claimed
	OutcomeDuplicate Outcome = "DUPLICATE"
	// OutcomeFailed means the run aborted with an error
	OutcomeFailed Outcome = "FAILED"
)

// String returns the string representation of Outcome
func (o Outcome) String() string {
	return string(o)
}

// RunResult summarizes one invocation.
type RunResult struct {
	Task      string  `json:"task"`
	Outcome   Outcome `json:"outcome"`
	Offset    int     `json:"offset"`
	Total     int     `json:"total"`
	Loop      int     `json:"loop"`
	Staged    int     `json:"staged,omitempty"`
	Unchanged int     `json:"unchanged,omitempty"`
	Forwarded int     `json:"forwarded,omitempty"`
	Failed    int     `json:"failed,omitempty"`
	// TriggerToken is the token claimed for this invocation.
	TriggerToken string `json:"trigger_token,omitempty"`
	// NextToken is the token carried by the dispatched handoff or forward payload.
	NextToken string `json:"next_token,omitempty"`
	Err       error  `json:"-"`
}

// ErrorText returns the run error text, empty on success.
func (r *RunResult) ErrorText() string {
	if r == nil || r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Summary is a one-line description for logs and CLI output.
func (r *RunResult) Summary() string {
	s := fmt.Sprintf("%s %s offset=%d/%d loop=%d staged=%d unchanged=%d forwarded=%d failed=%d",
		r.Task, r.Outcome, r.Offset, r.Total, r.Loop, r.Staged, r.Unchanged, r.Forwarded, r.Failed)
	if r.Err != nil {
		s += " err=" + r.Err.Error()
	}
	return s
}
