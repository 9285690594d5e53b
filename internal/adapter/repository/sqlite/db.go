package sqlite

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// DB wraps a SQLite database used for single-node deployments and local development
type DB struct {
	*sql.DB
	mu sync.Mutex // serializes write transactions
}

// Open opens (or creates) the SQLite database at path and runs migrations.
// Use ":memory:" for an ephemeral database.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and writes ordered
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	d := &DB{DB: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

func (d *DB) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS schedules (
			id                  TEXT PRIMARY KEY,
			property_value      INTEGER NOT NULL,
			monthly_installment INTEGER NOT NULL,
			platform_fee_rate   TEXT NOT NULL,
			investor_yield_rate TEXT NOT NULL,
			currency            TEXT NOT NULL,
			start_date          INTEGER NOT NULL,
			created_at          INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS ledgers (
			schedule_id            TEXT PRIMARY KEY REFERENCES schedules (id),
			cumulative_equity_paid INTEGER NOT NULL DEFAULT 0,
			payments_received      INTEGER NOT NULL DEFAULT 0,
			state                  TEXT NOT NULL,
			last_payment_at        INTEGER,
			updated_at             INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS payments (
			id             TEXT PRIMARY KEY,
			schedule_id    TEXT NOT NULL REFERENCES schedules (id),
			amount         INTEGER NOT NULL,
			received_at    INTEGER NOT NULL,
			platform_fee   INTEGER NOT NULL,
			investor_yield INTEGER NOT NULL,
			equity_portion INTEGER NOT NULL,
			overpaid       INTEGER NOT NULL DEFAULT 0,
			posted_at      INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_schedule ON payments (schedule_id, received_at)`,

		`CREATE TABLE IF NOT EXISTS disbursements (
			id          TEXT PRIMARY KEY,
			payment_id  TEXT NOT NULL REFERENCES payments (id),
			schedule_id TEXT NOT NULL REFERENCES schedules (id),
			kind        TEXT NOT NULL,
			amount      INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_disbursements_payment ON disbursements (payment_id)`,
	}

	for _, s := range stmts {
		if _, err := d.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// Timestamps are stored as Unix nanoseconds
func toUnix(t time.Time) int64 {
	return t.UnixNano()
}

func fromUnix(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func nullUnix(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}
