package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/simaogato/equityflow-backend/internal/domain"
)

// ledgerRepository implements domain.LedgerRepository
type ledgerRepository struct {
	db *DB
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *DB) domain.LedgerRepository {
	return &ledgerRepository{db: db}
}

// GetByScheduleID retrieves the stored ledger snapshot of a schedule
func (r *ledgerRepository) GetByScheduleID(ctx context.Context, scheduleID uuid.UUID) (*domain.LedgerSnapshot, error) {
	query := `
		SELECT schedule_id, cumulative_equity_paid, payments_received, state, last_payment_at, updated_at
		FROM ledgers
		WHERE schedule_id = $1
	`

	var snapshot domain.LedgerSnapshot
	var equityPaid int64
	var state string
	var lastPaymentAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, scheduleID).Scan(
		&snapshot.ScheduleID,
		&equityPaid,
		&snapshot.PaymentsReceived,
		&state,
		&lastPaymentAt,
		&snapshot.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("ledger for schedule %s: %w", scheduleID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get ledger: %w", err)
	}

	snapshot.CumulativeEquityPaid = domain.Money(equityPaid)
	snapshot.State = domain.LedgerState(state)
	if lastPaymentAt.Valid {
		t := lastPaymentAt.Time
		snapshot.LastPaymentAt = &t
	}

	return &snapshot, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
