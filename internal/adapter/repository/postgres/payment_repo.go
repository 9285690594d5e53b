package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/simaogato/equityflow-backend/internal/domain"
)

// SQLSTATE returned by PostgreSQL on primary key or unique constraint violations
const uniqueViolation = "23505"

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

// GetByID retrieves a posted payment by its ID
func (r *paymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.PostedPayment, error) {
	payment, err := scanPayment(r.db.QueryRowContext(ctx, selectPayment+`WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("payment %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get payment by ID: %w", err)
	}
	return payment, nil
}

// ListBySchedule retrieves every posted payment of a schedule in receipt order
func (r *paymentRepository) ListBySchedule(ctx context.Context, scheduleID uuid.UUID) ([]*domain.PostedPayment, error) {
	rows, err := r.db.QueryContext(ctx, selectPayment+`WHERE schedule_id = $1 ORDER BY received_at, posted_at`, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []*domain.PostedPayment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, payment)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payments: %w", err)
	}

	return payments, nil
}

// Post writes a cleared payment in a single database transaction:
//  1. Advance the ledger, guarded by the payment count the posting was computed from
//  2. Insert the payment with its allocation
//  3. Insert its disbursement instructions
func (r *paymentRepository) Post(ctx context.Context, posting *domain.Posting) error {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	updateLedgerQuery := `
		UPDATE ledgers
		SET cumulative_equity_paid = $2, payments_received = $3, state = $4, last_payment_at = $5, updated_at = $6
		WHERE schedule_id = $1 AND payments_received = $7
	`
	ledger := posting.Ledger
	result, err := dbTx.ExecContext(ctx, updateLedgerQuery,
		ledger.ScheduleID,
		int64(ledger.CumulativeEquityPaid),
		ledger.PaymentsReceived,
		string(ledger.State),
		nullTime(ledger.LastPaymentAt),
		ledger.UpdatedAt,
		posting.PreviousPaymentsReceived,
	)
	if err != nil {
		return fmt.Errorf("failed to update ledger: %w", err)
	}
	updated, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if updated == 0 {
		return fmt.Errorf("ledger for schedule %s: %w", ledger.ScheduleID, domain.ErrConcurrentUpdate)
	}

	insertPaymentQuery := `
		INSERT INTO payments (id, schedule_id, amount, received_at, platform_fee, investor_yield,
		                      equity_portion, overpaid, posted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	payment := posting.Payment
	_, err = dbTx.ExecContext(ctx, insertPaymentQuery,
		payment.ID,
		payment.ScheduleID,
		int64(payment.Amount),
		payment.ReceivedAt,
		int64(posting.Allocation.PlatformFee),
		int64(posting.Allocation.InvestorYield),
		int64(posting.Allocation.EquityPortion),
		int64(posting.Overpaid),
		ledger.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("payment %s: %w", payment.ID, domain.ErrDuplicatePayment)
		}
		return fmt.Errorf("failed to insert payment: %w", err)
	}

	insertDisbursementQuery := `
		INSERT INTO disbursements (id, payment_id, schedule_id, kind, amount)
		VALUES ($1, $2, $3, $4, $5)
	`
	for _, d := range posting.Disbursements {
		_, err = dbTx.ExecContext(ctx, insertDisbursementQuery,
			d.ID,
			d.PaymentID,
			d.ScheduleID,
			string(d.Kind),
			int64(d.Amount),
		)
		if err != nil {
			return fmt.Errorf("failed to insert disbursement: %w", err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func scanPayment(row rowScanner) (*domain.PostedPayment, error) {
	var posted domain.PostedPayment
	var amount, fee, yield, equity, overpaid int64

	err := row.Scan(
		&posted.Payment.ID,
		&posted.Payment.ScheduleID,
		&amount,
		&posted.Payment.ReceivedAt,
		&fee,
		&yield,
		&equity,
		&overpaid,
		&posted.PostedAt,
	)
	if err != nil {
		return nil, err
	}

	posted.Payment.Amount = domain.Money(amount)
	posted.Allocation = domain.WaterfallAllocation{
		PlatformFee:   domain.Money(fee),
		InvestorYield: domain.Money(yield),
		EquityPortion: domain.Money(equity),
	}
	posted.Overpaid = domain.Money(overpaid)

	return &posted, nil
}
