package admission

import "fmt"

// ConcurrencyLimitExceededError indicates all concurrency slots are in use.
// The condition is retryable once an active call releases its slot.
type ConcurrencyLimitExceededError struct {
	AccountID string
	Active    int
	Limit     int
}

func (e *ConcurrencyLimitExceededError) Error() string {
	return fmt.Sprintf("concurrency limit exceeded for account %s: %d of %d slots in use",
		e.AccountID, e.Active, e.Limit)
}

// IsConcurrencyLimitExceeded checks if an error is a ConcurrencyLimitExceededError
func IsConcurrencyLimitExceeded(err error) bool {
	_, ok := err.(*ConcurrencyLimitExceededError)
	return ok
}
