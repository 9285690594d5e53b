package equity

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/simaogato/equityflow-backend/internal/domain"
)

// Digits kept by EquityPercentage. int64 property values have at most 19
// digits, so an ACCRUING ledger never rounds up to 1.
const percentagePrecision = 30

// Ledger accumulates the equity portions of a schedule's payments into an
// ownership position. A Ledger is a single mutable aggregate and is not safe
// for concurrent use; callers serialize appends per schedule.
//
// States: ACCRUING (percentage < 1) -> PAID_OFF (percentage == 1, terminal).
type Ledger struct {
	schedule         *domain.InstallmentSchedule
	cumulativeEquity domain.Money
	paymentsReceived int
	state            domain.LedgerState
	lastPaymentAt    *time.Time
}

// NewLedger creates an empty ACCRUING ledger for a schedule
func NewLedger(schedule *domain.InstallmentSchedule) (*Ledger, error) {
	if schedule == nil {
		return nil, errors.New("schedule is required")
	}
	if err := schedule.Validate(); err != nil {
		return nil, err
	}
	return &Ledger{
		schedule: schedule,
		state:    domain.LedgerStateAccruing,
	}, nil
}

// Restore rebuilds a ledger from a persisted snapshot
func Restore(schedule *domain.InstallmentSchedule, snapshot domain.LedgerSnapshot) (*Ledger, error) {
	l, err := NewLedger(schedule)
	if err != nil {
		return nil, err
	}
	if snapshot.ScheduleID != schedule.ID {
		return nil, fmt.Errorf("snapshot for schedule %s restored against schedule %s", snapshot.ScheduleID, schedule.ID)
	}
	if snapshot.CumulativeEquityPaid < 0 || snapshot.CumulativeEquityPaid > schedule.PropertyValue {
		return nil, fmt.Errorf("snapshot equity %d outside [0, %d]", snapshot.CumulativeEquityPaid, schedule.PropertyValue)
	}
	if snapshot.PaymentsReceived < 0 {
		return nil, errors.New("snapshot payment count must be non-negative")
	}

	wantState := domain.LedgerStateAccruing
	if snapshot.CumulativeEquityPaid == schedule.PropertyValue {
		wantState = domain.LedgerStatePaidOff
	}
	if snapshot.State != wantState {
		return nil, fmt.Errorf("snapshot state %s does not match equity paid (want %s)", snapshot.State, wantState)
	}

	l.cumulativeEquity = snapshot.CumulativeEquityPaid
	l.paymentsReceived = snapshot.PaymentsReceived
	l.state = snapshot.State
	l.lastPaymentAt = snapshot.LastPaymentAt
	return l, nil
}

// Replay rebuilds a ledger by appending stored allocations in receipt order.
// Overpayments are expected on the final payment and are not treated as errors.
func Replay(schedule *domain.InstallmentSchedule, payments []*domain.PostedPayment) (*Ledger, error) {
	l, err := NewLedger(schedule)
	if err != nil {
		return nil, err
	}

	for _, p := range payments {
		if _, err := l.Append(p.Allocation); err != nil {
			var overpaid *domain.OverpaymentError
			if !errors.As(err, &overpaid) {
				return nil, fmt.Errorf("replay payment %s: %w", p.Payment.ID, err)
			}
		}
		l.MarkReceived(p.Payment.ReceivedAt)
	}
	return l, nil
}

// Append adds an allocation's equity portion to the running total.
//
// If the new total would exceed the property value the ledger caps itself at the
// property value, moves to PAID_OFF and returns the overpaid remainder together
// with an *OverpaymentError. A PAID_OFF ledger rejects every append with
// *AlreadyPaidOffError and is left untouched.
func (l *Ledger) Append(allocation domain.WaterfallAllocation) (domain.Money, error) {
	if l.state == domain.LedgerStatePaidOff {
		return 0, &domain.AlreadyPaidOffError{ScheduleID: l.schedule.ID}
	}
	if allocation.EquityPortion < 0 {
		return 0, errors.New("equity portion must be non-negative")
	}

	l.paymentsReceived++
	headroom := l.schedule.PropertyValue - l.cumulativeEquity

	switch {
	case allocation.EquityPortion < headroom:
		l.cumulativeEquity += allocation.EquityPortion
		return 0, nil
	case allocation.EquityPortion == headroom:
		l.cumulativeEquity = l.schedule.PropertyValue
		l.state = domain.LedgerStatePaidOff
		return 0, nil
	default:
		// Compared against headroom so a huge portion never overflows the total
		overpaid := allocation.EquityPortion - headroom
		l.cumulativeEquity = l.schedule.PropertyValue
		l.state = domain.LedgerStatePaidOff
		return overpaid, &domain.OverpaymentError{ScheduleID: l.schedule.ID, Overpaid: overpaid}
	}
}

// MarkReceived records the receipt time of the most recently appended payment
func (l *Ledger) MarkReceived(at time.Time) {
	received := at
	l.lastPaymentAt = &received
}

// EquityPercentage returns cumulative equity paid over property value, in [0,1].
// It is exactly 1 only once the ledger is PAID_OFF.
func (l *Ledger) EquityPercentage() decimal.Decimal {
	if l.state == domain.LedgerStatePaidOff {
		return decimal.NewFromInt(1)
	}
	pct := l.cumulativeEquity.Decimal().DivRound(l.schedule.PropertyValue.Decimal(), percentagePrecision)
	if pct.IsNegative() {
		return decimal.Zero
	}
	return pct
}

// RemainingBalance returns the equity still owed
func (l *Ledger) RemainingBalance() domain.Money {
	return l.schedule.PropertyValue - l.cumulativeEquity
}

func (l *Ledger) CumulativeEquityPaid() domain.Money { return l.cumulativeEquity }
func (l *Ledger) PaymentsReceived() int              { return l.paymentsReceived }
func (l *Ledger) State() domain.LedgerState          { return l.state }
func (l *Ledger) LastPaymentAt() *time.Time          { return l.lastPaymentAt }
func (l *Ledger) Schedule() *domain.InstallmentSchedule {
	return l.schedule
}

// Snapshot returns the persistable state of the ledger
func (l *Ledger) Snapshot(now time.Time) domain.LedgerSnapshot {
	return domain.LedgerSnapshot{
		ScheduleID:           l.schedule.ID,
		CumulativeEquityPaid: l.cumulativeEquity,
		PaymentsReceived:     l.paymentsReceived,
		State:                l.state,
		LastPaymentAt:        l.lastPaymentAt,
		UpdatedAt:            now,
	}
}
