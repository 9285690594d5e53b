package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// NewDB creates a new database connection
// connectionString should be in the format: "host=localhost port=5432 user=postgres password=postgres dbname=equityflow sslmode=disable"
func NewDB(connectionString string) (*DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}

// Migrate creates the financing tables if they do not exist yet
func (db *DB) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS schedules (
			id                  UUID PRIMARY KEY,
			property_value      BIGINT NOT NULL CHECK (property_value > 0),
			monthly_installment BIGINT NOT NULL CHECK (monthly_installment > 0),
			platform_fee_rate   NUMERIC NOT NULL,
			investor_yield_rate NUMERIC NOT NULL,
			currency            CHAR(3) NOT NULL,
			start_date          TIMESTAMPTZ NOT NULL,
			created_at          TIMESTAMPTZ NOT NULL
		)`,
		// Rates are stored unscaled so a validated schedule reads back unchanged
		`ALTER TABLE schedules
			ALTER COLUMN platform_fee_rate TYPE NUMERIC,
			ALTER COLUMN investor_yield_rate TYPE NUMERIC`,

		`CREATE TABLE IF NOT EXISTS ledgers (
			schedule_id            UUID PRIMARY KEY REFERENCES schedules (id),
			cumulative_equity_paid BIGINT NOT NULL DEFAULT 0 CHECK (cumulative_equity_paid >= 0),
			payments_received      INTEGER NOT NULL DEFAULT 0,
			state                  TEXT NOT NULL,
			last_payment_at        TIMESTAMPTZ,
			updated_at             TIMESTAMPTZ NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS payments (
			id             UUID PRIMARY KEY,
			schedule_id    UUID NOT NULL REFERENCES schedules (id),
			amount         BIGINT NOT NULL CHECK (amount > 0),
			received_at    TIMESTAMPTZ NOT NULL,
			platform_fee   BIGINT NOT NULL,
			investor_yield BIGINT NOT NULL,
			equity_portion BIGINT NOT NULL,
			overpaid       BIGINT NOT NULL DEFAULT 0,
			posted_at      TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_schedule ON payments (schedule_id, received_at)`,

		`CREATE TABLE IF NOT EXISTS disbursements (
			id          UUID PRIMARY KEY,
			payment_id  UUID NOT NULL REFERENCES payments (id),
			schedule_id UUID NOT NULL REFERENCES schedules (id),
			kind        TEXT NOT NULL,
			amount      BIGINT NOT NULL CHECK (amount > 0)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_disbursements_payment ON disbursements (payment_id)`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
	}
	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
