package usage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ringforge/callgate/pkg/observability"
)

// Service defines usage metering operations
type Service interface {
	RecordUsage(accountID string, minutes, calls int64, isTrial bool) error
	RecordUsageTx(tx *sql.Tx, accountID string, minutes, calls int64, isTrial bool) error
	SetUsage(accountID string, minutes, calls int64, isTrial bool) error
	GetUsage(accountID string, isTrial bool) (*Record, error)
	RemainingMinutes(accountID string) (int64, error)
	MinutesExhausted(accountID string) (bool, error)
	ResetUsage(accountID string) error
	RollExpiredPeriods() (int, error)
}

// PostgresService implements the Service interface using PostgreSQL
type PostgresService struct {
	db           *sql.DB
	logger       *observability.Logger
	periodLength time.Duration
}

// NewPostgresService creates a new PostgresService
func NewPostgresService(db *sql.DB, logger *observability.Logger, periodLength time.Duration) *PostgresService {
	return &PostgresService{
		db:           db,
		logger:       logger,
		periodLength: periodLength,
	}
}

// execer is satisfied by *sql.DB and *sql.Tx
type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

// RecordUsage additively merges deltas into the account's running totals
// for the applicable bucket. Never clamps or rejects.
func (s *PostgresService) RecordUsage(accountID string, minutes, calls int64, isTrial bool) error {
	return s.recordUsage(s.db, accountID, minutes, calls, isTrial)
}

// RecordUsageTx is RecordUsage inside a caller-owned transaction; call
// teardown uses it so the usage write commits with the terminal transition.
func (s *PostgresService) RecordUsageTx(tx *sql.Tx, accountID string, minutes, calls int64, isTrial bool) error {
	return s.recordUsage(tx, accountID, minutes, calls, isTrial)
}

func (s *PostgresService) recordUsage(run execer, accountID string, minutes, calls int64, isTrial bool) error {
	if minutes < 0 || calls < 0 {
		return fmt.Errorf("usage deltas must not be negative")
	}

	result, err := run.Exec(`
		UPDATE usage_records
		SET minutes_used = minutes_used + $3, calls_made = calls_made + $4, updated_at = NOW()
		WHERE account_id = $1 AND is_trial = $2
	`, accountID, isTrial, minutes, calls)
	if err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check usage update: %w", err)
	}
	if rows > 0 {
		return nil
	}

	// First usage for this bucket. A concurrent insert can win the race,
	// so fall back to the additive update on conflict.
	_, err = run.Exec(`
		INSERT INTO usage_records (account_id, is_trial, minutes_used, calls_made)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_id, is_trial) DO UPDATE
		SET minutes_used = usage_records.minutes_used + EXCLUDED.minutes_used,
		    calls_made = usage_records.calls_made + EXCLUDED.calls_made,
		    updated_at = NOW()
	`, accountID, isTrial, minutes, calls)
	if err != nil {
		return fmt.Errorf("failed to initialize usage: %w", err)
	}

	return nil
}

// SetUsage replaces the totals for a bucket. Test control surface only.
func (s *PostgresService) SetUsage(accountID string, minutes, calls int64, isTrial bool) error {
	if minutes < 0 || calls < 0 {
		return fmt.Errorf("usage totals must not be negative")
	}

	_, err := s.db.Exec(`
		INSERT INTO usage_records (account_id, is_trial, minutes_used, calls_made)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_id, is_trial) DO UPDATE
		SET minutes_used = EXCLUDED.minutes_used,
		    calls_made = EXCLUDED.calls_made,
		    updated_at = NOW()
	`, accountID, isTrial, minutes, calls)
	if err != nil {
		return fmt.Errorf("failed to set usage: %w", err)
	}

	return nil
}

// GetUsage returns the totals for one bucket. An account that has never
// recorded usage in the bucket gets a zero record, not an error.
func (s *PostgresService) GetUsage(accountID string, isTrial bool) (*Record, error) {
	query := `
		SELECT account_id, is_trial, minutes_used, calls_made, created_at, updated_at
		FROM usage_records
		WHERE account_id = $1 AND is_trial = $2
	`
	record := &Record{}
	err := s.db.QueryRow(query, accountID, isTrial).Scan(
		&record.AccountID, &record.IsTrial, &record.MinutesUsed,
		&record.CallsMade, &record.CreatedAt, &record.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return &Record{AccountID: accountID, IsTrial: isTrial}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get usage: %w", err)
	}

	return record, nil
}

// RemainingMinutes returns the paid minutes left in the current period.
// May be negative when an overage policy admitted calls past the quota.
// Accounts without a subscription have no metered quota and report zero.
func (s *PostgresService) RemainingMinutes(accountID string) (int64, error) {
	query := `
		SELECT s.minute_quota, COALESCE(u.minutes_used, 0)
		FROM subscriptions s
		LEFT JOIN usage_records u ON u.account_id = s.account_id AND u.is_trial = false
		WHERE s.account_id = $1
	`
	var quota, used int64
	err := s.db.QueryRow(query, accountID).Scan(&quota, &used)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get remaining minutes: %w", err)
	}

	return quota - used, nil
}

// MinutesExhausted reports whether the paid bucket has consumed the
// subscription's minute quota. Accounts without a subscription are never
// exhausted; their gate is the concurrency limit.
func (s *PostgresService) MinutesExhausted(accountID string) (bool, error) {
	query := `
		SELECT s.minute_quota, COALESCE(u.minutes_used, 0)
		FROM subscriptions s
		LEFT JOIN usage_records u ON u.account_id = s.account_id AND u.is_trial = false
		WHERE s.account_id = $1
	`
	var quota, used int64
	err := s.db.QueryRow(query, accountID).Scan(&quota, &used)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check minute quota: %w", err)
	}

	return used >= quota, nil
}

// ResetUsage zeroes both buckets for an account
func (s *PostgresService) ResetUsage(accountID string) error {
	_, err := s.db.Exec(`
		UPDATE usage_records
		SET minutes_used = 0, calls_made = 0, updated_at = NOW()
		WHERE account_id = $1
	`, accountID)
	if err != nil {
		return fmt.Errorf("failed to reset usage: %w", err)
	}

	return nil
}

// RollExpiredPeriods advances every subscription whose billing period has
// ended: the paid usage bucket is zeroed and the period boundaries move
// forward one period length. Returns the number of accounts rolled.
// Invoked on a schedule by the rollover job.
func (s *PostgresService) RollExpiredPeriods() (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(`
		SELECT account_id FROM subscriptions
		WHERE status IN ('active', 'past_due') AND period_end < NOW()
		FOR UPDATE
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to find expired periods: %w", err)
	}

	var accountIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan expired period: %w", err)
		}
		accountIDs = append(accountIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to iterate expired periods: %w", err)
	}

	for _, accountID := range accountIDs {
		_, err := tx.Exec(`
			UPDATE subscriptions
			SET period_start = period_end, period_end = period_end + make_interval(secs => $2), updated_at = NOW()
			WHERE account_id = $1
		`, accountID, s.periodLength.Seconds())
		if err != nil {
			return 0, fmt.Errorf("failed to roll period: %w", err)
		}

		_, err = tx.Exec(`
			UPDATE usage_records
			SET minutes_used = 0, calls_made = 0, updated_at = NOW()
			WHERE account_id = $1 AND is_trial = false
		`, accountID)
		if err != nil {
			return 0, fmt.Errorf("failed to reset rolled usage: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit rollover: %w", err)
	}

	if len(accountIDs) > 0 {
		s.logger.WithField("account_count", len(accountIDs)).Info("Billing periods rolled over")
	}

	return len(accountIDs), nil
}
