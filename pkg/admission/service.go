package admission

import (
	"database/sql"
	"fmt"

	"github.com/ringforge/callgate/pkg/billing"
	"github.com/ringforge/callgate/pkg/observability"
)

// Service defines concurrency slot operations
type Service interface {
	TryAdmit(accountID string) error
	Release(accountID string) error
	ReleaseTx(tx *sql.Tx, accountID string) error
	ActiveCount(accountID string) (int, error)
	SetActiveCount(accountID string, count int) error
	EffectiveLimit(accountID string) (int, error)
}

// execer is satisfied by *sql.DB and *sql.Tx
type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

// PostgresService implements the Service interface using PostgreSQL
type PostgresService struct {
	db            *sql.DB
	billing       billing.Service
	logger        *observability.Logger
	freeTierLimit int
}

// NewPostgresService creates a new PostgresService
func NewPostgresService(db *sql.DB, billingService billing.Service, logger *observability.Logger, freeTierLimit int) *PostgresService {
	return &PostgresService{
		db:            db,
		billing:       billingService,
		logger:        logger,
		freeTierLimit: freeTierLimit,
	}
}

// TryAdmit reserves a concurrency slot for one call.
//
// The subscription limit is read fresh on every attempt; the increment is
// conditional on the stored count still being below that limit, which makes
// the UPDATE itself the linearization point. K parallel attempts against N
// free slots admit exactly min(K, N) calls.
func (s *PostgresService) TryAdmit(accountID string) error {
	limit, err := s.EffectiveLimit(accountID)
	if err != nil {
		return err
	}

	if limit <= 0 {
		active, err := s.ActiveCount(accountID)
		if err != nil {
			return err
		}
		return &ConcurrencyLimitExceededError{AccountID: accountID, Active: active, Limit: limit}
	}

	result, err := s.db.Exec(`
		INSERT INTO active_calls (account_id, active_count)
		VALUES ($1, 1)
		ON CONFLICT (account_id) DO UPDATE
		SET active_count = active_calls.active_count + 1, updated_at = NOW()
		WHERE active_calls.active_count < $2
	`, accountID, limit)
	if err != nil {
		return fmt.Errorf("failed to reserve slot: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check slot reservation: %w", err)
	}
	if rows == 0 {
		active, err := s.ActiveCount(accountID)
		if err != nil {
			return err
		}
		return &ConcurrencyLimitExceededError{AccountID: accountID, Active: active, Limit: limit}
	}

	return nil
}

// Release frees one concurrency slot.
//
// The count never goes below zero. A release with no matching admission
// indicates a bookkeeping inconsistency upstream; it is logged and treated
// as a no-op rather than failing the call teardown.
func (s *PostgresService) Release(accountID string) error {
	return s.release(s.db, accountID)
}

// ReleaseTx is Release inside a caller-owned transaction, so the decrement
// commits or rolls back together with the caller's other teardown writes.
func (s *PostgresService) ReleaseTx(tx *sql.Tx, accountID string) error {
	return s.release(tx, accountID)
}

func (s *PostgresService) release(run execer, accountID string) error {
	result, err := run.Exec(`
		UPDATE active_calls
		SET active_count = GREATEST(active_count - 1, 0), updated_at = NOW()
		WHERE account_id = $1 AND active_count > 0
	`, accountID)
	if err != nil {
		return fmt.Errorf("failed to release slot: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check slot release: %w", err)
	}
	if rows == 0 {
		s.logger.WithField("account_id", accountID).
			Warn("Release without matching admission, active count already zero")
	}

	return nil
}

// ActiveCount returns the number of concurrency slots currently held
func (s *PostgresService) ActiveCount(accountID string) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT active_count FROM active_calls WHERE account_id = $1`,
		accountID,
	).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get active count: %w", err)
	}

	return count, nil
}

// SetActiveCount overrides the active count. Test control surface only.
func (s *PostgresService) SetActiveCount(accountID string, count int) error {
	if count < 0 {
		return fmt.Errorf("active count must not be negative")
	}

	_, err := s.db.Exec(`
		INSERT INTO active_calls (account_id, active_count)
		VALUES ($1, $2)
		ON CONFLICT (account_id) DO UPDATE
		SET active_count = EXCLUDED.active_count, updated_at = NOW()
	`, accountID, count)
	if err != nil {
		return fmt.Errorf("failed to set active count: %w", err)
	}

	return nil
}

// EffectiveLimit resolves the concurrency limit that applies right now.
// Active and past_due subscriptions keep their plan limit; canceled or
// absent subscriptions fall back to the free-tier limit.
func (s *PostgresService) EffectiveLimit(accountID string) (int, error) {
	sub, err := s.billing.GetSubscription(accountID)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve concurrency limit: %w", err)
	}

	if sub == nil || sub.Status == billing.StatusCanceled {
		return s.freeTierLimit, nil
	}

	return sub.ConcurrencyLimit, nil
}
