package billing

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ringforge/callgate/pkg/observability"
)

// Service defines billing operations
type Service interface {
	Process(event *WebhookEvent) (Outcome, error)
	SimulateCheckout(accountID, plan string) (Outcome, error)
	GetSubscription(accountID string) (*Subscription, error)
}

// PostgresService implements the Service interface using PostgreSQL
type PostgresService struct {
	db           *sql.DB
	catalog      *Catalog
	logger       *observability.Logger
	periodLength time.Duration
}

// NewPostgresService creates a new PostgresService
func NewPostgresService(db *sql.DB, catalog *Catalog, logger *observability.Logger, periodLength time.Duration) *PostgresService {
	return &PostgresService{
		db:           db,
		catalog:      catalog,
		logger:       logger,
		periodLength: periodLength,
	}
}

// Process applies a webhook event to the account's subscription state.
//
// The processed-event log insert and the state mutation share one
// transaction: a replayed event identifier short-circuits before any
// mutation, and a failed mutation rolls the log entry back so the
// provider's retry is applied cleanly.
func (s *PostgresService) Process(event *WebhookEvent) (Outcome, error) {
	if event.ID == "" {
		return Outcome{}, fmt.Errorf("webhook event has no identifier")
	}
	if event.AccountID == "" {
		return Outcome{}, fmt.Errorf("webhook event has no account reference")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`INSERT INTO processed_events (event_id, account_id) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING`,
		event.ID, event.AccountID,
	)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to record event: %w", err)
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to check event record: %w", err)
	}
	if inserted == 0 {
		s.logger.WithField("event_id", event.ID).
			WithField("event_type", event.Type).
			Info("Webhook event already processed")
		return Ignored(ReasonAlreadyProcessed), nil
	}

	// Lock the subscription row so per-account event application is serial.
	status := StatusNone
	err = tx.QueryRow(
		`SELECT status FROM subscriptions WHERE account_id = $1 FOR UPDATE`,
		event.AccountID,
	).Scan(&status)
	if err != nil && err != sql.ErrNoRows {
		return Outcome{}, fmt.Errorf("failed to read subscription status: %w", err)
	}

	outcome, err := s.applyTransition(tx, event, status)
	if err != nil {
		return Outcome{}, err
	}

	if err := tx.Commit(); err != nil {
		return Outcome{}, fmt.Errorf("failed to commit event: %w", err)
	}

	if outcome.Status == OutcomeIgnored {
		s.logger.WithField("event_id", event.ID).
			WithField("event_type", event.Type).
			WithField("account_id", event.AccountID).
			WithField("subscription_status", string(status)).
			WithField("reason", outcome.Reason).
			Info("Webhook event ignored")
	} else {
		s.logger.WithField("event_id", event.ID).
			WithField("event_type", event.Type).
			WithField("account_id", event.AccountID).
			Info("Webhook event applied")
	}

	return outcome, nil
}

// applyTransition mutates subscription state inside the event transaction
func (s *PostgresService) applyTransition(tx *sql.Tx, event *WebhookEvent, status SubscriptionStatus) (Outcome, error) {
	switch event.Type {
	case EventCheckoutCompleted:
		// A canceled subscription can be re-activated by a new checkout;
		// the row is replaced wholesale.
		if status != StatusNone && status != StatusCanceled {
			return Ignored(ReasonInvalidTransition), nil
		}
		return s.installSubscription(tx, event)

	case EventSubscriptionUpdated:
		if status != StatusActive {
			return Ignored(ReasonInvalidTransition), nil
		}
		plan, ok := s.catalog.Get(event.Plan)
		if !ok {
			return Outcome{}, fmt.Errorf("unknown plan %q", event.Plan)
		}
		_, err := tx.Exec(`
			UPDATE subscriptions
			SET plan = $2, concurrency_limit = $3, minute_quota = $4, number_quota = $5, updated_at = NOW()
			WHERE account_id = $1
		`, event.AccountID, plan.Name, plan.ConcurrencyLimit, plan.MinuteQuota, plan.NumberQuota)
		if err != nil {
			return Outcome{}, fmt.Errorf("failed to update subscription: %w", err)
		}
		return Applied(), nil

	case EventSubscriptionDeleted:
		if status != StatusActive && status != StatusPastDue {
			return Ignored(ReasonInvalidTransition), nil
		}
		return s.setStatus(tx, event.AccountID, StatusCanceled)

	case EventPaymentFailed:
		if status != StatusActive {
			return Ignored(ReasonInvalidTransition), nil
		}
		return s.setStatus(tx, event.AccountID, StatusPastDue)

	case EventPaymentSucceeded:
		if status != StatusPastDue {
			return Ignored(ReasonInvalidTransition), nil
		}
		return s.setStatus(tx, event.AccountID, StatusActive)

	default:
		return Ignored(ReasonUnsupportedEvent), nil
	}
}

// installSubscription replaces the subscription with the plan's limits.
// This is the sole path by which a plan's limits become effective for
// admission and number allocation.
func (s *PostgresService) installSubscription(tx *sql.Tx, event *WebhookEvent) (Outcome, error) {
	plan, ok := s.catalog.Get(event.Plan)
	if !ok {
		return Outcome{}, fmt.Errorf("unknown plan %q", event.Plan)
	}

	now := time.Now().UTC()
	periodEnd := now.Add(s.periodLength)

	_, err := tx.Exec(`
		INSERT INTO subscriptions (account_id, plan, status, concurrency_limit, minute_quota, number_quota, period_start, period_end)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (account_id) DO UPDATE SET
			plan = EXCLUDED.plan,
			status = EXCLUDED.status,
			concurrency_limit = EXCLUDED.concurrency_limit,
			minute_quota = EXCLUDED.minute_quota,
			number_quota = EXCLUDED.number_quota,
			period_start = EXCLUDED.period_start,
			period_end = EXCLUDED.period_end,
			updated_at = NOW()
	`, event.AccountID, plan.Name, StatusActive, plan.ConcurrencyLimit,
		plan.MinuteQuota, plan.NumberQuota, now, periodEnd)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to install subscription: %w", err)
	}

	// Make sure the paid usage bucket exists for the new period.
	_, err = tx.Exec(`
		INSERT INTO usage_records (account_id, is_trial, minutes_used, calls_made)
		VALUES ($1, false, 0, 0)
		ON CONFLICT (account_id, is_trial) DO NOTHING
	`, event.AccountID)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to initialize usage: %w", err)
	}

	return Applied(), nil
}

// setStatus updates only the subscription status
func (s *PostgresService) setStatus(tx *sql.Tx, accountID string, status SubscriptionStatus) (Outcome, error) {
	_, err := tx.Exec(
		`UPDATE subscriptions SET status = $2, updated_at = NOW() WHERE account_id = $1`,
		accountID, status,
	)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to update subscription status: %w", err)
	}
	return Applied(), nil
}

// SimulateCheckout drives the processor as if a checkout.completed event
// arrived from the provider. Used by the test control surface.
func (s *PostgresService) SimulateCheckout(accountID, plan string) (Outcome, error) {
	event := &WebhookEvent{
		ID:        "evt_sim_" + uuid.NewString(),
		Type:      EventCheckoutCompleted,
		AccountID: accountID,
		Plan:      plan,
	}
	return s.Process(event)
}

// GetSubscription retrieves an account's subscription.
// Returns nil with no error when the account has none.
func (s *PostgresService) GetSubscription(accountID string) (*Subscription, error) {
	query := `
		SELECT account_id, plan, status, concurrency_limit, minute_quota, number_quota,
		       period_start, period_end, created_at, updated_at
		FROM subscriptions
		WHERE account_id = $1
	`
	sub := &Subscription{}
	err := s.db.QueryRow(query, accountID).Scan(
		&sub.AccountID, &sub.Plan, &sub.Status, &sub.ConcurrencyLimit,
		&sub.MinuteQuota, &sub.NumberQuota, &sub.PeriodStart, &sub.PeriodEnd,
		&sub.CreatedAt, &sub.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	return sub, nil
}
