package accounts

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// Service defines account operations
type Service interface {
	CreateTestAccount(id, name, email string) (*Account, error)
	GetAccount(id string) (*Account, error)
	GetState(id string) (*State, error)
	ResetAccount(id string) error
	DeleteAccount(id string) error
}

// PostgresService implements the Service interface using PostgreSQL
type PostgresService struct {
	db *sql.DB
}

// NewPostgresService creates a new PostgresService
func NewPostgresService(db *sql.DB) *PostgresService {
	return &PostgresService{db: db}
}

// CreateTestAccount provisions a fresh account with no subscription,
// zero usage, zero active calls, and no phone numbers. Test fixtures
// supply predictable IDs; recreating an existing ID wipes its state so
// each scenario starts pristine.
func (s *PostgresService) CreateTestAccount(id, name, email string) (*Account, error) {
	if id == "" {
		id = "acct_" + uuid.NewString()
	}

	account := &Account{
		ID:     id,
		Name:   name,
		Email:  email,
		IsTest: true,
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO accounts (id, name, email, is_test)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = $2, email = $3, updated_at = NOW()
		RETURNING created_at, updated_at
	`
	err = tx.QueryRow(query, account.ID, account.Name, account.Email, account.IsTest).
		Scan(&account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	for _, stmt := range resetStatements {
		if _, err := tx.Exec(stmt, account.ID); err != nil {
			return nil, fmt.Errorf("failed to clear account state: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit account creation: %w", err)
	}

	return account, nil
}

// GetAccount retrieves an account by ID
func (s *PostgresService) GetAccount(id string) (*Account, error) {
	query := `
		SELECT id, name, email, is_test, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`
	account := &Account{}
	err := s.db.QueryRow(query, id).Scan(
		&account.ID, &account.Name, &account.Email, &account.IsTest,
		&account.CreatedAt, &account.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{AccountID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return account, nil
}

// GetState assembles the combined state snapshot for an account
func (s *PostgresService) GetState(id string) (*State, error) {
	account, err := s.GetAccount(id)
	if err != nil {
		return nil, err
	}

	state := &State{
		Account:         account,
		Usage:           []UsageBucket{},
		PhoneNumbers:    []PhoneNumber{},
		ProcessedEvents: []string{},
	}

	subQuery := `
		SELECT plan, status, concurrency_limit, minute_quota, number_quota, period_start, period_end
		FROM subscriptions
		WHERE account_id = $1
	`
	sub := &Subscription{}
	err = s.db.QueryRow(subQuery, id).Scan(
		&sub.Plan, &sub.Status, &sub.ConcurrencyLimit, &sub.MinuteQuota,
		&sub.NumberQuota, &sub.PeriodStart, &sub.PeriodEnd,
	)
	if err == nil {
		state.Subscription = sub
	} else if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	usageQuery := `
		SELECT is_trial, minutes_used, calls_made
		FROM usage_records
		WHERE account_id = $1
		ORDER BY is_trial DESC
	`
	rows, err := s.db.Query(usageQuery, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get usage: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var bucket UsageBucket
		if err := rows.Scan(&bucket.IsTrial, &bucket.MinutesUsed, &bucket.CallsMade); err != nil {
			return nil, fmt.Errorf("failed to scan usage: %w", err)
		}
		state.Usage = append(state.Usage, bucket)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate usage: %w", err)
	}

	activeQuery := `SELECT active_count FROM active_calls WHERE account_id = $1`
	err = s.db.QueryRow(activeQuery, id).Scan(&state.ActiveCalls)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get active calls: %w", err)
	}

	numbersQuery := `
		SELECT id, number, label
		FROM phone_numbers
		WHERE account_id = $1
		ORDER BY created_at ASC
	`
	numberRows, err := s.db.Query(numbersQuery, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get phone numbers: %w", err)
	}
	defer numberRows.Close()

	for numberRows.Next() {
		var num PhoneNumber
		if err := numberRows.Scan(&num.ID, &num.Number, &num.Label); err != nil {
			return nil, fmt.Errorf("failed to scan phone number: %w", err)
		}
		state.PhoneNumbers = append(state.PhoneNumbers, num)
	}
	if err := numberRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate phone numbers: %w", err)
	}

	eventsQuery := `
		SELECT event_id
		FROM processed_events
		WHERE account_id = $1
		ORDER BY processed_at ASC
	`
	eventRows, err := s.db.Query(eventsQuery, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get processed events: %w", err)
	}
	defer eventRows.Close()

	for eventRows.Next() {
		var eventID string
		if err := eventRows.Scan(&eventID); err != nil {
			return nil, fmt.Errorf("failed to scan processed event: %w", err)
		}
		state.ProcessedEvents = append(state.ProcessedEvents, eventID)
	}
	if err := eventRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate processed events: %w", err)
	}

	return state, nil
}

// resetStatements clear every piece of per-account state. Shared by
// creation and reset so both leave the same pristine shape.
var resetStatements = []string{
	`DELETE FROM subscriptions WHERE account_id = $1`,
	`DELETE FROM usage_records WHERE account_id = $1`,
	`DELETE FROM active_calls WHERE account_id = $1`,
	`DELETE FROM phone_numbers WHERE account_id = $1`,
	`DELETE FROM calls WHERE account_id = $1`,
	`DELETE FROM processed_events WHERE account_id = $1`,
}

// ResetAccount returns an account to a pristine state: no subscription,
// zero usage, zero active calls, no phone numbers. The account row itself
// is kept so the ID remains valid.
func (s *PostgresService) ResetAccount(id string) error {
	if _, err := s.GetAccount(id); err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// All per-account state clears atomically so concurrent readers never
	// observe a half-reset account.
	for _, stmt := range resetStatements {
		if _, err := tx.Exec(stmt, id); err != nil {
			return fmt.Errorf("failed to reset account state: %w", err)
		}
	}

	if _, err := tx.Exec(`UPDATE accounts SET updated_at = NOW() WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to touch account: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reset: %w", err)
	}

	return nil
}

// DeleteAccount removes an account and all of its state
func (s *PostgresService) DeleteAccount(id string) error {
	result, err := s.db.Exec(`DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if rows == 0 {
		return &NotFoundError{AccountID: id}
	}

	return nil
}
