package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns the schema migrations in order
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create accounts table",
			SQL: `
				CREATE TABLE IF NOT EXISTS accounts (
					id VARCHAR(255) PRIMARY KEY,
					name VARCHAR(255) NOT NULL DEFAULT '',
					email VARCHAR(255) NOT NULL DEFAULT '',
					is_test BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
			`,
		},
		{
			Version:     2,
			Description: "Create subscriptions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS subscriptions (
					account_id VARCHAR(255) PRIMARY KEY REFERENCES accounts(id) ON DELETE CASCADE,
					plan VARCHAR(100) NOT NULL,
					status VARCHAR(20) NOT NULL,
					concurrency_limit INT NOT NULL DEFAULT 0,
					minute_quota BIGINT NOT NULL DEFAULT 0,
					number_quota INT NOT NULL DEFAULT 0,
					period_start TIMESTAMPTZ NOT NULL,
					period_end TIMESTAMPTZ NOT NULL,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_subscriptions_period_end ON subscriptions(period_end);
			`,
		},
		{
			Version:     3,
			Description: "Create usage_records table",
			SQL: `
				CREATE TABLE IF NOT EXISTS usage_records (
					account_id VARCHAR(255) NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
					is_trial BOOLEAN NOT NULL,
					minutes_used BIGINT NOT NULL DEFAULT 0,
					calls_made BIGINT NOT NULL DEFAULT 0,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					PRIMARY KEY (account_id, is_trial)
				);
			`,
		},
		{
			Version:     4,
			Description: "Create active_calls table",
			SQL: `
				CREATE TABLE IF NOT EXISTS active_calls (
					account_id VARCHAR(255) PRIMARY KEY REFERENCES accounts(id) ON DELETE CASCADE,
					active_count INT NOT NULL DEFAULT 0 CHECK (active_count >= 0),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
			`,
		},
		{
			Version:     5,
			Description: "Create phone_numbers table",
			SQL: `
				CREATE TABLE IF NOT EXISTS phone_numbers (
					id VARCHAR(255) PRIMARY KEY,
					account_id VARCHAR(255) NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
					number VARCHAR(20) NOT NULL UNIQUE,
					label VARCHAR(255) NOT NULL DEFAULT '',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_phone_numbers_account_id ON phone_numbers(account_id);
			`,
		},
		{
			Version:     6,
			Description: "Create processed_events table",
			SQL: `
				CREATE TABLE IF NOT EXISTS processed_events (
					event_id VARCHAR(255) PRIMARY KEY,
					account_id VARCHAR(255) NOT NULL,
					processed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_processed_events_account_id ON processed_events(account_id);
			`,
		},
		{
			Version:     7,
			Description: "Create calls table",
			SQL: `
				CREATE TABLE IF NOT EXISTS calls (
					id VARCHAR(255) PRIMARY KEY,
					account_id VARCHAR(255) NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
					number VARCHAR(20) NOT NULL DEFAULT '',
					state VARCHAR(20) NOT NULL,
					minutes BIGINT NOT NULL DEFAULT 0,
					is_trial BOOLEAN NOT NULL DEFAULT FALSE,
					message TEXT NOT NULL DEFAULT '',
					started_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					ended_at TIMESTAMPTZ
				);

				CREATE INDEX IF NOT EXISTS idx_calls_account_id ON calls(account_id);
				CREATE INDEX IF NOT EXISTS idx_calls_state ON calls(state);
			`,
		},
	}
}

// RunMigrations executes all pending migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate migrations: %w", err)
	}

	for _, migration := range GetMigrations() {
		if applied[migration.Version] {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
