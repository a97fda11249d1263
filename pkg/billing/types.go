package billing

import (
	"time"
)

// SubscriptionStatus is the lifecycle status of a subscription
type SubscriptionStatus string

const (
	// StatusNone means the account has no subscription row. It is never
	// stored; it is the synthesized status for an absent row.
	StatusNone SubscriptionStatus = "none"

	StatusActive   SubscriptionStatus = "active"
	StatusPastDue  SubscriptionStatus = "past_due"
	StatusCanceled SubscriptionStatus = "canceled"
)

// Subscription is an account's billing state. It is replaced wholesale by
// checkout and webhook events, never partially mutated elsewhere.
type Subscription struct {
	AccountID        string             `json:"account_id"`
	Plan             string             `json:"plan"`
	Status           SubscriptionStatus `json:"status"`
	ConcurrencyLimit int                `json:"concurrency_limit"`
	MinuteQuota      int64              `json:"minute_quota"`
	NumberQuota      int                `json:"number_quota"`
	PeriodStart      time.Time          `json:"period_start"`
	PeriodEnd        time.Time          `json:"period_end"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// Webhook event types understood by the processor
const (
	EventCheckoutCompleted   = "checkout.completed"
	EventSubscriptionUpdated = "subscription.updated"
	EventSubscriptionDeleted = "subscription.deleted"
	EventPaymentFailed       = "invoice.payment_failed"
	EventPaymentSucceeded    = "invoice.payment_succeeded"
)

// WebhookEvent is a payment-provider lifecycle event
type WebhookEvent struct {
	// ID is the provider's unique event identifier, used for idempotency.
	ID string `json:"id"`

	// Type is the provider event type, e.g. "checkout.completed".
	Type string `json:"type"`

	// AccountID is the account the event applies to.
	AccountID string `json:"account_id"`

	// Plan names the plan for checkout.completed and subscription.updated
	// events. Ignored for other event types.
	Plan string `json:"plan,omitempty"`
}

// OutcomeStatus says whether an event mutated state
type OutcomeStatus string

const (
	OutcomeApplied OutcomeStatus = "applied"
	OutcomeIgnored OutcomeStatus = "ignored"
)

// Ignore reasons
const (
	ReasonAlreadyProcessed  = "already_processed"
	ReasonInvalidTransition = "invalid_transition"
	ReasonUnsupportedEvent  = "unsupported_event_type"
)

// Outcome is the result of processing a webhook event. Ignored outcomes are
// defined no-ops, not errors; the caller still acknowledges the event.
type Outcome struct {
	Status OutcomeStatus `json:"status"`
	Reason string        `json:"reason,omitempty"`
}

// Applied returns an applied outcome
func Applied() Outcome {
	return Outcome{Status: OutcomeApplied}
}

// Ignored returns an ignored outcome with a reason
func Ignored(reason string) Outcome {
	return Outcome{Status: OutcomeIgnored, Reason: reason}
}
