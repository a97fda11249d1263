package usage

import "time"

// Record is a per-account running total for one bucket (trial or paid)
type Record struct {
	AccountID   string    `json:"account_id"`
	IsTrial     bool      `json:"is_trial"`
	MinutesUsed int64     `json:"minutes_used"`
	CallsMade   int64     `json:"calls_made"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
