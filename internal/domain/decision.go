package domain

import "time"

// DecisionVerdict is the coordinator's four-way scheduling ruling.
type DecisionVerdict string

const (
	DecisionAccept DecisionVerdict = "ACCEPT"
	DecisionDefer  DecisionVerdict = "DEFER"
	DecisionSleep  DecisionVerdict = "SLEEP"
	DecisionIdle   DecisionVerdict = "IDLE"
)

// CheckOutcome records one sub-check's contribution to a decision.
type CheckOutcome struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Detail  string `json:"detail,omitempty"`
	Errored bool   `json:"errored,omitempty"` // check failed internally; treated fail-open
}

// Decision is one appended row of the audit log. Never silent: every
// verdict carries a human-readable reason, and Defer carries a
// wait/retry estimate where one exists.
type Decision struct {
	ID        string          `json:"id"`
	TaskID    string          `json:"task_id"`
	Verdict   DecisionVerdict `json:"verdict"`
	Reason    string          `json:"reason"`
	Checks    []CheckOutcome  `json:"checks"`
	RetryIn   time.Duration   `json:"retry_in,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
