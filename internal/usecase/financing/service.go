package financing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/simaogato/equityflow-backend/internal/domain"
	"github.com/simaogato/equityflow-backend/internal/usecase/disbursement"
	"github.com/simaogato/equityflow-backend/internal/usecase/equity"
	"github.com/simaogato/equityflow-backend/internal/usecase/payoff"
	"github.com/simaogato/equityflow-backend/internal/usecase/waterfall"
)

// CreateScheduleInput represents the input for signing a financing agreement
type CreateScheduleInput struct {
	ID                 uuid.UUID // Optional; generated when Nil
	PropertyValue      domain.Money
	MonthlyInstallment domain.Money
	PlatformFeeRate    decimal.Decimal
	InvestorYieldRate  decimal.Decimal
	Currency           string
	StartDate          time.Time
}

// RecordPaymentInput represents a cleared payment reported by the payment processor
type RecordPaymentInput struct {
	PaymentID  uuid.UUID // Processor reference, used to reject retried deliveries
	ScheduleID uuid.UUID
	Amount     domain.Money
	ReceivedAt time.Time
}

// Position is the point-in-time ownership state of a schedule
type Position struct {
	ScheduleID           uuid.UUID
	Currency             string
	PropertyValue        domain.Money
	CumulativeEquityPaid domain.Money
	RemainingBalance     domain.Money
	EquityPercentage     decimal.Decimal
	State                domain.LedgerState
	PaymentsReceived     int
	LastPaymentAt        *time.Time
	MonthsToPayoff       *int // nil when no equity progress makes a projection impossible
}

// PaymentResult is what RecordPayment hands back to the caller.
// Overpaid is non-zero when the payment pushed the ledger past the property
// value; the caller refunds or credits it.
type PaymentResult struct {
	Payment       domain.Payment
	Allocation    domain.WaterfallAllocation
	Overpaid      domain.Money
	Disbursements []domain.Disbursement
	Position      *Position
}

// ReconcileReport compares a stored ledger snapshot with a replay of its payments
type ReconcileReport struct {
	ScheduleID uuid.UUID
	Stored     domain.LedgerSnapshot
	Replayed   domain.LedgerSnapshot
	Consistent bool
	Mismatches []string
}

// FinancingService handles schedule creation and payment posting
type FinancingService struct {
	ScheduleRepo domain.ScheduleRepository
	LedgerRepo   domain.LedgerRepository
	PaymentRepo  domain.PaymentRepository

	log   *logrus.Logger
	locks *scheduleLocks
	now   func() time.Time
}

// NewFinancingService creates a new FinancingService instance
func NewFinancingService(
	scheduleRepo domain.ScheduleRepository,
	ledgerRepo domain.LedgerRepository,
	paymentRepo domain.PaymentRepository,
	log *logrus.Logger,
) *FinancingService {
	return &FinancingService{
		ScheduleRepo: scheduleRepo,
		LedgerRepo:   ledgerRepo,
		PaymentRepo:  paymentRepo,
		log:          log,
		locks:        newScheduleLocks(),
		now:          time.Now,
	}
}

// CreateSchedule validates and stores a new schedule with an empty ledger.
// Rate problems surface here as *domain.InvalidScheduleError so they never reach
// allocation time.
func (s *FinancingService) CreateSchedule(ctx context.Context, input CreateScheduleInput) (*domain.InstallmentSchedule, error) {
	id := input.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = domain.DefaultCurrency
	}

	now := s.now().UTC()
	schedule := &domain.InstallmentSchedule{
		ID:                 id,
		PropertyValue:      input.PropertyValue,
		MonthlyInstallment: input.MonthlyInstallment,
		PlatformFeeRate:    input.PlatformFeeRate,
		InvestorYieldRate:  input.InvestorYieldRate,
		Currency:           currency,
		StartDate:          input.StartDate,
		CreatedAt:          now,
	}

	if err := schedule.Validate(); err != nil {
		return nil, err
	}

	if err := s.ScheduleRepo.Create(ctx, schedule, domain.NewLedgerSnapshot(schedule.ID, now)); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"schedule_id":    schedule.ID,
		"property_value": schedule.PropertyValue,
		"installment":    schedule.MonthlyInstallment,
	}).Info("schedule created")

	return schedule, nil
}

// RecordPayment posts one cleared payment to its schedule
// Logic:
//  1. Serialize on the schedule so appends never interleave
//  2. Reject retried deliveries (same payment ID) and out-of-order receipts
//  3. Split the payment with the waterfall allocator
//  4. Append the equity portion to the ledger, capping on overpayment
//  5. Derive disbursements and persist everything in one transaction
func (s *FinancingService) RecordPayment(ctx context.Context, input RecordPaymentInput) (*PaymentResult, error) {
	if input.Amount <= 0 {
		return nil, domain.ErrNonPositiveAmount
	}
	if input.PaymentID == uuid.Nil {
		return nil, domain.ErrMissingPaymentID
	}
	if input.ReceivedAt.IsZero() {
		return nil, domain.ErrMissingReceivedAt
	}

	unlock := s.locks.Lock(input.ScheduleID)
	defer unlock()

	entry := s.log.WithFields(logrus.Fields{
		"schedule_id": input.ScheduleID,
		"payment_id":  input.PaymentID,
	})

	existing, err := s.PaymentRepo.GetByID(ctx, input.PaymentID)
	switch {
	case err == nil:
		if existing.Payment.ScheduleID != input.ScheduleID {
			return nil, domain.ErrScheduleMismatch
		}
		return nil, domain.ErrDuplicatePayment
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	schedule, err := s.ScheduleRepo.GetByID(ctx, input.ScheduleID)
	if err != nil {
		return nil, err
	}
	snapshot, err := s.LedgerRepo.GetByScheduleID(ctx, input.ScheduleID)
	if err != nil {
		return nil, err
	}
	ledger, err := equity.Restore(schedule, *snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to restore ledger: %w", err)
	}

	if last := ledger.LastPaymentAt(); last != nil && input.ReceivedAt.Before(*last) {
		return nil, domain.ErrOutOfOrderPayment
	}

	allocation, err := waterfall.Allocate(input.Amount, schedule)
	if err != nil {
		return nil, err
	}

	previousCount := ledger.PaymentsReceived()
	overpaid, err := ledger.Append(allocation)
	if err != nil {
		var overpayment *domain.OverpaymentError
		if !errors.As(err, &overpayment) {
			entry.WithError(err).Warn("payment rejected by ledger")
			return nil, err
		}
		entry.WithField("overpaid", overpayment.Overpaid).Warn("payment overpays schedule, excess reported for refund")
	}
	ledger.MarkReceived(input.ReceivedAt)

	payment := domain.Payment{
		ID:         input.PaymentID,
		ScheduleID: input.ScheduleID,
		Amount:     input.Amount,
		ReceivedAt: input.ReceivedAt,
	}

	disbursements, err := disbursement.Generate(payment, allocation, overpaid)
	if err != nil {
		return nil, err
	}

	posting := &domain.Posting{
		Payment:                  payment,
		Allocation:               allocation,
		Overpaid:                 overpaid,
		Disbursements:            disbursements,
		Ledger:                   ledger.Snapshot(s.now().UTC()),
		PreviousPaymentsReceived: previousCount,
	}
	if err := s.PaymentRepo.Post(ctx, posting); err != nil {
		return nil, err
	}

	position := positionOf(ledger, schedule)
	entry.WithFields(logrus.Fields{
		"amount":            payment.Amount,
		"equity_portion":    allocation.EquityPortion,
		"equity_percentage": position.EquityPercentage.String(),
		"state":             position.State,
	}).Info("payment posted")

	return &PaymentResult{
		Payment:       payment,
		Allocation:    allocation,
		Overpaid:      overpaid,
		Disbursements: disbursements,
		Position:      position,
	}, nil
}

// GetPosition returns the current ownership state and payoff projection of a schedule
func (s *FinancingService) GetPosition(ctx context.Context, scheduleID uuid.UUID) (*Position, error) {
	schedule, err := s.ScheduleRepo.GetByID(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	snapshot, err := s.LedgerRepo.GetByScheduleID(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	ledger, err := equity.Restore(schedule, *snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to restore ledger: %w", err)
	}
	return positionOf(ledger, schedule), nil
}

// ReconcileLedger replays every stored allocation of a schedule and compares the
// result with the stored snapshot. It reports, never repairs.
func (s *FinancingService) ReconcileLedger(ctx context.Context, scheduleID uuid.UUID) (*ReconcileReport, error) {
	schedule, err := s.ScheduleRepo.GetByID(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	snapshot, err := s.LedgerRepo.GetByScheduleID(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	payments, err := s.PaymentRepo.ListBySchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}

	report := &ReconcileReport{ScheduleID: scheduleID, Stored: *snapshot}

	replayed, err := equity.Replay(schedule, payments)
	if err != nil {
		report.Mismatches = append(report.Mismatches, err.Error())
		return report, nil
	}
	report.Replayed = replayed.Snapshot(snapshot.UpdatedAt)

	if report.Replayed.CumulativeEquityPaid != snapshot.CumulativeEquityPaid {
		report.Mismatches = append(report.Mismatches, fmt.Sprintf("cumulative equity stored %d, replayed %d",
			snapshot.CumulativeEquityPaid, report.Replayed.CumulativeEquityPaid))
	}
	if report.Replayed.PaymentsReceived != snapshot.PaymentsReceived {
		report.Mismatches = append(report.Mismatches, fmt.Sprintf("payments stored %d, replayed %d",
			snapshot.PaymentsReceived, report.Replayed.PaymentsReceived))
	}
	if report.Replayed.State != snapshot.State {
		report.Mismatches = append(report.Mismatches, fmt.Sprintf("state stored %s, replayed %s",
			snapshot.State, report.Replayed.State))
	}

	report.Consistent = len(report.Mismatches) == 0
	return report, nil
}

// ReconcileAll reconciles every schedule and logs the inconsistent ones
func (s *FinancingService) ReconcileAll(ctx context.Context) ([]*ReconcileReport, error) {
	schedules, err := s.ScheduleRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}

	reports := make([]*ReconcileReport, 0, len(schedules))
	for _, schedule := range schedules {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		report, err := s.ReconcileLedger(ctx, schedule.ID)
		if err != nil {
			return reports, err
		}
		if !report.Consistent {
			s.log.WithFields(logrus.Fields{
				"schedule_id": schedule.ID,
				"mismatches":  report.Mismatches,
			}).Error("ledger snapshot does not match its payments")
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func positionOf(ledger *equity.Ledger, schedule *domain.InstallmentSchedule) *Position {
	position := &Position{
		ScheduleID:           schedule.ID,
		Currency:             schedule.Currency,
		PropertyValue:        schedule.PropertyValue,
		CumulativeEquityPaid: ledger.CumulativeEquityPaid(),
		RemainingBalance:     ledger.RemainingBalance(),
		EquityPercentage:     ledger.EquityPercentage(),
		State:                ledger.State(),
		PaymentsReceived:     ledger.PaymentsReceived(),
		LastPaymentAt:        ledger.LastPaymentAt(),
	}
	if months, err := payoff.ProjectMonthsToPayoff(ledger, schedule); err == nil {
		position.MonthsToPayoff = &months
	}
	return position
}
