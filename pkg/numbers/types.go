package numbers

import (
	"fmt"
	"strings"
	"time"
)

// PhoneNumber is a provisioned number owned by one account
type PhoneNumber struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	Number    string    `json:"number"`
	Label     string    `json:"label,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// QuotaExceededError indicates the account owns as many numbers as its
// subscription allows. Not retryable without a plan change.
type QuotaExceededError struct {
	AccountID string
	Current   int
	Limit     int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("phone number quota exceeded for account %s: %d/%d",
		e.AccountID, e.Current, e.Limit)
}

// IsQuotaExceeded checks if an error is a QuotaExceededError
func IsQuotaExceeded(err error) bool {
	_, ok := err.(*QuotaExceededError)
	return ok
}

// AlreadyOwnedError indicates the number belongs to another account
type AlreadyOwnedError struct {
	Number string
}

func (e *AlreadyOwnedError) Error() string {
	return fmt.Sprintf("number %s is already owned by another account", e.Number)
}

// IsAlreadyOwned checks if an error is an AlreadyOwnedError
func IsAlreadyOwned(err error) bool {
	_, ok := err.(*AlreadyOwnedError)
	return ok
}

// NotFoundError indicates the identifier does not resolve to a number
// owned by the account
type NotFoundError struct {
	AccountID  string
	Identifier string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("number %s not found for account %s", e.Identifier, e.AccountID)
}

// IsNotFound checks if an error is a NotFoundError
func IsNotFound(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}

// Normalize converts a phone number to E.164 form: a leading plus and 8 to
// 15 digits. Spaces, dashes, dots, and parentheses are stripped; a bare
// national-looking number is rejected rather than guessed at.
func Normalize(number string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '.', '(', ')':
			return -1
		}
		return r
	}, number)

	if !strings.HasPrefix(cleaned, "+") {
		return "", fmt.Errorf("number %q must start with a country code prefix", number)
	}

	digits := cleaned[1:]
	if len(digits) < 8 || len(digits) > 15 {
		return "", fmt.Errorf("number %q must have 8 to 15 digits", number)
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("number %q contains non-digit characters", number)
		}
	}

	return cleaned, nil
}
