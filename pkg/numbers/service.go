package numbers

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Service defines phone number operations
type Service interface {
	AddNumber(accountID, number, label string) (*PhoneNumber, error)
	RemoveNumber(accountID, identifier string) error
	ListNumbers(accountID string) ([]*PhoneNumber, error)
}

// PostgresService implements the Service interface using PostgreSQL
type PostgresService struct {
	db        *sql.DB
	allocator Allocator
}

// NewPostgresService creates a new PostgresService
func NewPostgresService(db *sql.DB, allocator Allocator) *PostgresService {
	return &PostgresService{
		db:        db,
		allocator: allocator,
	}
}

// AddNumber provisions a number for an account. When number is empty, one
// is obtained from the allocator. Fails with QuotaExceededError when the
// account holds as many numbers as its subscription allows, and with
// AlreadyOwnedError when the number belongs to another account.
func (s *PostgresService) AddNumber(accountID, number, label string) (*PhoneNumber, error) {
	var err error
	if number == "" {
		number, err = s.allocator.Allocate()
		if err != nil {
			return nil, fmt.Errorf("failed to allocate number: %w", err)
		}
	}

	normalized, err := Normalize(number)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// The subscription row is the serialization point for an account's
	// number provisioning: locking it before counting stops two racing
	// adds from both passing the check at quota-1, including when the
	// account holds no rows yet for a count query to lock. No lockable
	// subscription means a zero quota, which rejects before any insert.
	var quota int
	err = tx.QueryRow(
		`SELECT number_quota FROM subscriptions WHERE account_id = $1 AND status IN ('active', 'past_due') FOR UPDATE`,
		accountID,
	).Scan(&quota)
	if err == sql.ErrNoRows {
		quota = 0
	} else if err != nil {
		return nil, fmt.Errorf("failed to get number quota: %w", err)
	}

	var current int
	err = tx.QueryRow(
		`SELECT COUNT(*) FROM phone_numbers WHERE account_id = $1`,
		accountID,
	).Scan(&current)
	if err != nil {
		return nil, fmt.Errorf("failed to count numbers: %w", err)
	}

	if current >= quota {
		return nil, &QuotaExceededError{AccountID: accountID, Current: current, Limit: quota}
	}

	phone := &PhoneNumber{
		ID:        "num_" + uuid.NewString(),
		AccountID: accountID,
		Number:    normalized,
		Label:     label,
	}

	err = tx.QueryRow(`
		INSERT INTO phone_numbers (id, account_id, number, label)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, phone.ID, phone.AccountID, phone.Number, phone.Label).Scan(&phone.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil, &AlreadyOwnedError{Number: normalized}
		}
		return nil, fmt.Errorf("failed to add number: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit number: %w", err)
	}

	return phone, nil
}

// RemoveNumber releases a number identified by its ID or the number itself.
// Removing a number the account does not own is an explicit NotFoundError,
// never a silent success.
func (s *PostgresService) RemoveNumber(accountID, identifier string) error {
	result, err := s.db.Exec(
		`DELETE FROM phone_numbers WHERE account_id = $1 AND (id = $2 OR number = $2)`,
		accountID, identifier,
	)
	if err != nil {
		return fmt.Errorf("failed to remove number: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check number removal: %w", err)
	}
	if rows == 0 {
		return &NotFoundError{AccountID: accountID, Identifier: identifier}
	}

	return nil
}

// ListNumbers returns all numbers owned by an account
func (s *PostgresService) ListNumbers(accountID string) ([]*PhoneNumber, error) {
	rows, err := s.db.Query(`
		SELECT id, account_id, number, label, created_at
		FROM phone_numbers
		WHERE account_id = $1
		ORDER BY created_at ASC
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list numbers: %w", err)
	}
	defer rows.Close()

	numbers := make([]*PhoneNumber, 0)
	for rows.Next() {
		phone := &PhoneNumber{}
		if err := rows.Scan(&phone.ID, &phone.AccountID, &phone.Number, &phone.Label, &phone.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan number: %w", err)
		}
		numbers = append(numbers, phone)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate numbers: %w", err)
	}

	return numbers, nil
}
