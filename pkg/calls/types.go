package calls

import (
	"time"
)

// State is a call's lifecycle state
type State string

const (
	StateRequested State = "requested"
	StateAdmitted  State = "admitted"
	StateActive    State = "active"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateRejected  State = "rejected"
)

// IsTerminal reports whether a state ends the call
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateRejected
}

// Call is an ephemeral entity; terminal rows persist only as an audit
// trail, the durable effect of a call is its usage contribution.
type Call struct {
	ID        string     `json:"id"`
	AccountID string     `json:"account_id"`
	Number    string     `json:"number,omitempty"`
	State     State      `json:"state"`
	Minutes   int64      `json:"minutes"`
	IsTrial   bool       `json:"is_trial"`
	Message   string     `json:"message,omitempty"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// SimulateRequest describes a call to simulate
type SimulateRequest struct {
	AccountID string `json:"account_id"`

	// Number is the dialed number, if the caller wants one recorded.
	Number string `json:"number,omitempty"`

	// Minutes is the metered duration the call will contribute to usage.
	Minutes int64 `json:"minutes"`

	// Message is free-form caller context recorded on the call.
	Message string `json:"message,omitempty"`

	// IsTrial routes the usage to the trial bucket.
	IsTrial bool `json:"is_trial"`

	// HoldFor keeps the call active for this long before completing.
	// Zero completes the call synchronously.
	HoldFor time.Duration `json:"-"`

	// Fail forces the terminal state to failed instead of completed.
	// Usage is still recorded; the call happened.
	Fail bool `json:"fail,omitempty"`
}
