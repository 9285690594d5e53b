package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/simaogato/equityflow-backend/internal/domain"
)

type rowScanner interface {
	Scan(dest ...any) error
}

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

func (r *scheduleRepository) Create(ctx context.Context, schedule *domain.InstallmentSchedule, ledger domain.LedgerSnapshot) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO schedules (id, property_value, monthly_installment, platform_fee_rate,
		                       investor_yield_rate, currency, start_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		schedule.ID.String(),
		int64(schedule.PropertyValue),
		int64(schedule.MonthlyInstallment),
		schedule.PlatformFeeRate.String(),
		schedule.InvestorYieldRate.String(),
		schedule.Currency,
		toUnix(schedule.StartDate),
		toUnix(schedule.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert schedule: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO ledgers (schedule_id, cumulative_equity_paid, payments_received, state, last_payment_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ledger.ScheduleID.String(),
		int64(ledger.CumulativeEquityPaid),
		ledger.PaymentsReceived,
		string(ledger.State),
		nullUnix(ledger.LastPaymentAt),
		toUnix(ledger.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert ledger: %w", err)
	}

	return tx.Commit()
}

func (r *scheduleRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.InstallmentSchedule, error) {
	schedule, err := scanSchedule(r.db.QueryRowContext(ctx, selectSchedule+`WHERE id = ?`, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("schedule %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return schedule, nil
}

func (r *scheduleRepository) List(ctx context.Context) ([]*domain.InstallmentSchedule, error) {
	rows, err := r.db.QueryContext(ctx, selectSchedule+`ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var schedules []*domain.InstallmentSchedule
	for rows.Next() {
		schedule, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		schedules = append(schedules, schedule)
	}
	return schedules, rows.Err()
}

func scanSchedule(row rowScanner) (*domain.InstallmentSchedule, error) {
	var (
		s                      domain.InstallmentSchedule
		id, feeRate, yieldRate string
		pv, installment        int64
		startDate, createdAt   int64
	)
	if err := row.Scan(&id, &pv, &installment, &feeRate, &yieldRate, &s.Currency, &startDate, &createdAt); err != nil {
		return nil, err
	}

	var err error
	if s.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse id: %w", err)
	}
	if s.PlatformFeeRate, err = decimal.NewFromString(feeRate); err != nil {
		return nil, fmt.Errorf("parse platform_fee_rate: %w", err)
	}
	if s.InvestorYieldRate, err = decimal.NewFromString(yieldRate); err != nil {
		return nil, fmt.Errorf("parse investor_yield_rate: %w", err)
	}
	s.PropertyValue = domain.Money(pv)
	s.MonthlyInstallment = domain.Money(installment)
	s.StartDate = fromUnix(startDate)
	s.CreatedAt = fromUnix(createdAt)
	return &s, nil
}

// ledgerRepository implements domain.LedgerRepository
type ledgerRepository struct {
	db *DB
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *DB) domain.LedgerRepository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) GetByScheduleID(ctx context.Context, scheduleID uuid.UUID) (*domain.LedgerSnapshot, error) {
	var (
		snapshot      domain.LedgerSnapshot
		equityPaid    int64
		state         string
		lastPaymentAt sql.NullInt64
		updatedAt     int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT cumulative_equity_paid, payments_received, state, last_payment_at, updated_at
		FROM ledgers
		WHERE schedule_id = ?`, scheduleID.String(),
	).Scan(&equityPaid, &snapshot.PaymentsReceived, &state, &lastPaymentAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ledger for schedule %s: %w", scheduleID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get ledger: %w", err)
	}

	snapshot.ScheduleID = scheduleID
	snapshot.CumulativeEquityPaid = domain.Money(equityPaid)
	snapshot.State = domain.LedgerState(state)
	snapshot.UpdatedAt = fromUnix(updatedAt)
	if lastPaymentAt.Valid {
		t := fromUnix(lastPaymentAt.Int64)
		snapshot.LastPaymentAt = &t
	}
	return &snapshot, nil
}

// paymentRepository implements domain.PaymentRepository
type paymentRepository struct {
	db *DB
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db *DB) domain.PaymentRepository {
	return &paymentRepository{db: db}
}

const selectPayment = `
	SELECT id, schedule_id, amount, received_at, platform_fee, investor_yield, equity_portion, overpaid, posted_at
	FROM payments
`

func (r *paymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.PostedPayment, error) {
	payment, err := scanPayment(r.db.QueryRowContext(ctx, selectPayment+`WHERE id = ?`, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("payment %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return payment, nil
}

func (r *paymentRepository) ListBySchedule(ctx context.Context, scheduleID uuid.UUID) ([]*domain.PostedPayment, error) {
	rows, err := r.db.QueryContext(ctx, selectPayment+`WHERE schedule_id = ? ORDER BY received_at, posted_at`, scheduleID.String())
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var payments []*domain.PostedPayment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, payment)
	}
	return payments, rows.Err()
}

// Post applies the ledger update, the payment row and its disbursements atomically.
// The ledger update only matches while payments_received still equals the count
// the posting was computed from.
func (r *paymentRepository) Post(ctx context.Context, posting *domain.Posting) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	payment := posting.Payment
	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM payments WHERE id = ?`, payment.ID.String()).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check payment: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("payment %s: %w", payment.ID, domain.ErrDuplicatePayment)
	}

	ledger := posting.Ledger
	result, err := tx.ExecContext(ctx, `
		UPDATE ledgers
		SET cumulative_equity_paid = ?, payments_received = ?, state = ?, last_payment_at = ?, updated_at = ?
		WHERE schedule_id = ? AND payments_received = ?`,
		int64(ledger.CumulativeEquityPaid),
		ledger.PaymentsReceived,
		string(ledger.State),
		nullUnix(ledger.LastPaymentAt),
		toUnix(ledger.UpdatedAt),
		ledger.ScheduleID.String(),
		posting.PreviousPaymentsReceived,
	)
	if err != nil {
		return fmt.Errorf("update ledger: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("update ledger: %w", err)
	} else if n == 0 {
		return fmt.Errorf("ledger for schedule %s: %w", ledger.ScheduleID, domain.ErrConcurrentUpdate)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO payments (id, schedule_id, amount, received_at, platform_fee, investor_yield,
		                      equity_portion, overpaid, posted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		payment.ID.String(),
		payment.ScheduleID.String(),
		int64(payment.Amount),
		toUnix(payment.ReceivedAt),
		int64(posting.Allocation.PlatformFee),
		int64(posting.Allocation.InvestorYield),
		int64(posting.Allocation.EquityPortion),
		int64(posting.Overpaid),
		toUnix(ledger.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}

	for _, d := range posting.Disbursements {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO disbursements (id, payment_id, schedule_id, kind, amount)
			VALUES (?, ?, ?, ?, ?)`,
			d.ID.String(), d.PaymentID.String(), d.ScheduleID.String(), string(d.Kind), int64(d.Amount),
		)
		if err != nil {
			return fmt.Errorf("insert disbursement: %w", err)
		}
	}

	return tx.Commit()
}

func scanPayment(row rowScanner) (*domain.PostedPayment, error) {
	var (
		posted                         domain.PostedPayment
		id, scheduleID                 string
		amount, fee, yield, equity     int64
		overpaid, receivedAt, postedAt int64
	)
	err := row.Scan(&id, &scheduleID, &amount, &receivedAt, &fee, &yield, &equity, &overpaid, &postedAt)
	if err != nil {
		return nil, err
	}

	if posted.Payment.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse id: %w", err)
	}
	if posted.Payment.ScheduleID, err = uuid.Parse(scheduleID); err != nil {
		return nil, fmt.Errorf("parse schedule_id: %w", err)
	}
	posted.Payment.Amount = domain.Money(amount)
	posted.Payment.ReceivedAt = fromUnix(receivedAt)
	posted.Allocation = domain.WaterfallAllocation{
		PlatformFee:   domain.Money(fee),
		InvestorYield: domain.Money(yield),
		EquityPortion: domain.Money(equity),
	}
	posted.Overpaid = domain.Money(overpaid)
	posted.PostedAt = fromUnix(postedAt)
	return &posted, nil
}
