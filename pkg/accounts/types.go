package accounts

import (
	"fmt"
	"time"
)

// Account represents a tenant account
type Account struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	IsTest    bool      `json:"is_test"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// State is a combined snapshot of everything the service tracks for an
// account. It is assembled from several tables and is read-only.
type State struct {
	Account         *Account      `json:"account"`
	Subscription    *Subscription `json:"subscription,omitempty"`
	Usage           []UsageBucket `json:"usage"`
	ActiveCalls     int           `json:"active_calls"`
	PhoneNumbers    []PhoneNumber `json:"phone_numbers"`
	ProcessedEvents []string      `json:"processed_events"`
}

// Subscription is the billing view embedded in a state snapshot
type Subscription struct {
	Plan             string    `json:"plan"`
	Status           string    `json:"status"`
	ConcurrencyLimit int       `json:"concurrency_limit"`
	MinuteQuota      int64     `json:"minute_quota"`
	NumberQuota      int       `json:"number_quota"`
	PeriodStart      time.Time `json:"period_start"`
	PeriodEnd        time.Time `json:"period_end"`
}

// UsageBucket is one usage counter row (trial or paid) in a state snapshot
type UsageBucket struct {
	IsTrial     bool  `json:"is_trial"`
	MinutesUsed int64 `json:"minutes_used"`
	CallsMade   int64 `json:"calls_made"`
}

// PhoneNumber is an owned number in a state snapshot
type PhoneNumber struct {
	ID     string `json:"id"`
	Number string `json:"number"`
	Label  string `json:"label,omitempty"`
}

// NotFoundError indicates the requested account does not exist
type NotFoundError struct {
	AccountID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("account %s not found", e.AccountID)
}

// IsNotFound checks if an error is a NotFoundError
func IsNotFound(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}
