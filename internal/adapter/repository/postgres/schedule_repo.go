package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/simaogato/equityflow-backend/internal/domain"
)

// scheduleRepository implements domain.ScheduleRepository
type scheduleRepository struct {
	db *DB
}

// NewScheduleRepository creates a new schedule repository
func NewScheduleRepository(db *DB) domain.ScheduleRepository {
	return &scheduleRepository{db: db}
}

const selectSchedule = `
	SELECT id, property_value, monthly_installment, platform_fee_rate, investor_yield_rate,
	       currency, start_date, created_at
	FROM schedules
`

// Create inserts the schedule and its empty ledger in one database transaction
func (r *scheduleRepository) Create(ctx context.Context, schedule *domain.InstallmentSchedule, ledger domain.LedgerSnapshot) error {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	insertScheduleQuery := `
		INSERT INTO schedules (id, property_value, monthly_installment, platform_fee_rate,
		                       investor_yield_rate, currency, start_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = dbTx.ExecContext(ctx, insertScheduleQuery,
		schedule.ID,
		int64(schedule.PropertyValue),
		int64(schedule.MonthlyInstallment),
		schedule.PlatformFeeRate.String(),
		schedule.InvestorYieldRate.String(),
		schedule.Currency,
		schedule.StartDate,
		schedule.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert schedule: %w", err)
	}

	insertLedgerQuery := `
		INSERT INTO ledgers (schedule_id, cumulative_equity_paid, payments_received, state, last_payment_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = dbTx.ExecContext(ctx, insertLedgerQuery,
		ledger.ScheduleID,
		int64(ledger.CumulativeEquityPaid),
		ledger.PaymentsReceived,
		string(ledger.State),
		nullTime(ledger.LastPaymentAt),
		ledger.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert ledger: %w", err)
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetByID retrieves a schedule by its ID
func (r *scheduleRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.InstallmentSchedule, error) {
	schedule, err := scanSchedule(r.db.QueryRowContext(ctx, selectSchedule+`WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("schedule %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get schedule by ID: %w", err)
	}
	return schedule, nil
}

// List retrieves all schedules ordered by creation time
func (r *scheduleRepository) List(ctx context.Context) ([]*domain.InstallmentSchedule, error) {
	rows, err := r.db.QueryContext(ctx, selectSchedule+`ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	defer rows.Close()

	var schedules []*domain.InstallmentSchedule
	for rows.Next() {
		schedule, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}
		schedules = append(schedules, schedule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schedules: %w", err)
	}

	return schedules, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(row rowScanner) (*domain.InstallmentSchedule, error) {
	var schedule domain.InstallmentSchedule
	var propertyValue, installment int64
	var feeRateStr, yieldRateStr string

	err := row.Scan(
		&schedule.ID,
		&propertyValue,
		&installment,
		&feeRateStr,
		&yieldRateStr,
		&schedule.Currency,
		&schedule.StartDate,
		&schedule.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	schedule.PropertyValue = domain.Money(propertyValue)
	schedule.MonthlyInstallment = domain.Money(installment)

	// Parse rates (NUMERIC)
	if schedule.PlatformFeeRate, err = decimal.NewFromString(feeRateStr); err != nil {
		return nil, fmt.Errorf("failed to parse platform_fee_rate: %w", err)
	}
	if schedule.InvestorYieldRate, err = decimal.NewFromString(yieldRateStr); err != nil {
		return nil, fmt.Errorf("failed to parse investor_yield_rate: %w", err)
	}

	return &schedule, nil
}
