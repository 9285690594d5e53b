package equity

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simaogato/equityflow-backend/internal/domain"
)

func referenceSchedule() *domain.InstallmentSchedule {
	return &domain.InstallmentSchedule{
		ID:                 uuid.New(),
		PropertyValue:      10_000_000,
		MonthlyInstallment: 300_000,
		PlatformFeeRate:    decimal.RequireFromString("0.05"),
		InvestorYieldRate:  decimal.RequireFromString("0.15"),
		Currency:           domain.DefaultCurrency,
		StartDate:          time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func equityOf(amount domain.Money) domain.WaterfallAllocation {
	return domain.WaterfallAllocation{EquityPortion: amount}
}

func TestLedger_AccruesUntilPaidOff(t *testing.T) {
	schedule := referenceSchedule()
	ledger, err := NewLedger(schedule)
	require.NoError(t, err)

	// 40 payments of 240,000 equity -> 9,600,000
	for i := 0; i < 40; i++ {
		overpaid, err := ledger.Append(equityOf(240_000))
		require.NoError(t, err)
		assert.Equal(t, domain.Money(0), overpaid)
	}
	assert.Equal(t, domain.Money(9_600_000), ledger.CumulativeEquityPaid())
	assert.Equal(t, domain.LedgerStateAccruing, ledger.State())

	// 41st payment -> 9,840,000, still accruing
	_, err = ledger.Append(equityOf(240_000))
	require.NoError(t, err)
	assert.Equal(t, domain.Money(9_840_000), ledger.CumulativeEquityPaid())
	assert.Equal(t, domain.Money(160_000), ledger.RemainingBalance())
	assert.Equal(t, domain.LedgerStateAccruing, ledger.State())
	assert.True(t, ledger.EquityPercentage().Equal(decimal.RequireFromString("0.984")))

	// 42nd payment would reach 10,080,000 -> capped with 80,000 overpaid
	overpaid, err := ledger.Append(equityOf(240_000))
	var overpayment *domain.OverpaymentError
	require.True(t, errors.As(err, &overpayment), "expected OverpaymentError, got %v", err)
	assert.Equal(t, domain.Money(80_000), overpaid)
	assert.Equal(t, domain.Money(80_000), overpayment.Overpaid)
	assert.Equal(t, schedule.ID, overpayment.ScheduleID)

	assert.Equal(t, domain.Money(10_000_000), ledger.CumulativeEquityPaid())
	assert.Equal(t, domain.Money(0), ledger.RemainingBalance())
	assert.Equal(t, domain.LedgerStatePaidOff, ledger.State())
	assert.True(t, ledger.EquityPercentage().Equal(decimal.NewFromInt(1)))
	assert.Equal(t, 42, ledger.PaymentsReceived())
}

func TestLedger_ExactPayoffHasNoOverpayment(t *testing.T) {
	ledger, err := NewLedger(referenceSchedule())
	require.NoError(t, err)

	_, err = ledger.Append(equityOf(9_000_000))
	require.NoError(t, err)

	overpaid, err := ledger.Append(equityOf(1_000_000))
	require.NoError(t, err)
	assert.Equal(t, domain.Money(0), overpaid)
	assert.Equal(t, domain.LedgerStatePaidOff, ledger.State())
}

func TestLedger_PaidOffRejectsAppend(t *testing.T) {
	schedule := referenceSchedule()
	ledger, err := NewLedger(schedule)
	require.NoError(t, err)

	_, err = ledger.Append(equityOf(10_000_000))
	require.NoError(t, err)
	before := ledger.Snapshot(time.Now())

	overpaid, err := ledger.Append(equityOf(1))

	var paidOff *domain.AlreadyPaidOffError
	require.True(t, errors.As(err, &paidOff), "expected AlreadyPaidOffError, got %v", err)
	assert.Equal(t, schedule.ID, paidOff.ScheduleID)
	assert.Equal(t, domain.Money(0), overpaid)
	assert.Equal(t, before.CumulativeEquityPaid, ledger.CumulativeEquityPaid())
	assert.Equal(t, before.PaymentsReceived, ledger.PaymentsReceived())
}

func TestLedger_PercentageIsMonotonicAndBounded(t *testing.T) {
	ledger, err := NewLedger(referenceSchedule())
	require.NoError(t, err)

	portions := []domain.Money{0, 1, 333_333, 0, 2_500_000, 7, 4_999_999, 3_000_000, 1}
	previous := decimal.Zero
	one := decimal.NewFromInt(1)

	for _, portion := range portions {
		_, err := ledger.Append(equityOf(portion))
		if err != nil {
			var overpayment *domain.OverpaymentError
			var paidOff *domain.AlreadyPaidOffError
			require.True(t, errors.As(err, &overpayment) || errors.As(err, &paidOff), "unexpected error %v", err)
		}

		pct := ledger.EquityPercentage()
		assert.True(t, pct.GreaterThanOrEqual(previous), "percentage decreased from %s to %s", previous, pct)
		assert.True(t, pct.LessThanOrEqual(one), "percentage %s above 1", pct)
		previous = pct
	}
	assert.Equal(t, domain.LedgerStatePaidOff, ledger.State())
}

func TestLedger_HugePortionCapsWithoutOverflow(t *testing.T) {
	schedule := referenceSchedule()
	schedule.PlatformFeeRate = decimal.Zero
	schedule.InvestorYieldRate = decimal.Zero
	ledger, err := NewLedger(schedule)
	require.NoError(t, err)

	_, err = ledger.Append(equityOf(1))
	require.NoError(t, err)
	before := ledger.EquityPercentage()

	overpaid, err := ledger.Append(equityOf(math.MaxInt64))

	var overpayment *domain.OverpaymentError
	require.True(t, errors.As(err, &overpayment), "expected OverpaymentError, got %v", err)
	assert.Equal(t, domain.Money(math.MaxInt64-(10_000_000-1)), overpaid)
	assert.Equal(t, overpaid, overpayment.Overpaid)
	assert.Equal(t, domain.Money(10_000_000), ledger.CumulativeEquityPaid())
	assert.Equal(t, domain.LedgerStatePaidOff, ledger.State())
	assert.True(t, ledger.EquityPercentage().GreaterThan(before))

	_, err = Restore(schedule, ledger.Snapshot(time.Now()))
	assert.NoError(t, err)
}

func TestLedger_PercentageBelowOneUntilPaidOff(t *testing.T) {
	schedule := referenceSchedule()
	schedule.PropertyValue = 1_000_000_000_000_000_000

	ledger, err := Restore(schedule, domain.LedgerSnapshot{
		ScheduleID:           schedule.ID,
		CumulativeEquityPaid: schedule.PropertyValue - 1,
		PaymentsReceived:     1,
		State:                domain.LedgerStateAccruing,
	})
	require.NoError(t, err)

	pct := ledger.EquityPercentage()
	assert.True(t, pct.LessThan(decimal.NewFromInt(1)), "accruing ledger reported %s", pct)
	assert.True(t, pct.Equal(decimal.RequireFromString("0.999999999999999999")))

	_, err = ledger.Append(equityOf(1))
	require.NoError(t, err)
	assert.True(t, ledger.EquityPercentage().Equal(decimal.NewFromInt(1)))
}

func TestLedger_RejectsNegativeEquity(t *testing.T) {
	ledger, err := NewLedger(referenceSchedule())
	require.NoError(t, err)

	_, err = ledger.Append(equityOf(-5))
	assert.Error(t, err)
	assert.Equal(t, 0, ledger.PaymentsReceived())
}

func TestRestore(t *testing.T) {
	schedule := referenceSchedule()
	received := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("ok", func(t *testing.T) {
		ledger, err := Restore(schedule, domain.LedgerSnapshot{
			ScheduleID:           schedule.ID,
			CumulativeEquityPaid: 480_000,
			PaymentsReceived:     2,
			State:                domain.LedgerStateAccruing,
			LastPaymentAt:        &received,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.Money(480_000), ledger.CumulativeEquityPaid())
		assert.Equal(t, 2, ledger.PaymentsReceived())
		assert.Equal(t, received, *ledger.LastPaymentAt())
	})

	t.Run("state mismatch", func(t *testing.T) {
		_, err := Restore(schedule, domain.LedgerSnapshot{
			ScheduleID:           schedule.ID,
			CumulativeEquityPaid: schedule.PropertyValue,
			PaymentsReceived:     40,
			State:                domain.LedgerStateAccruing,
		})
		assert.Error(t, err)
	})

	t.Run("equity above property value", func(t *testing.T) {
		_, err := Restore(schedule, domain.LedgerSnapshot{
			ScheduleID:           schedule.ID,
			CumulativeEquityPaid: schedule.PropertyValue + 1,
			State:                domain.LedgerStatePaidOff,
		})
		assert.Error(t, err)
	})

	t.Run("foreign schedule", func(t *testing.T) {
		_, err := Restore(schedule, domain.NewLedgerSnapshot(uuid.New(), time.Now()))
		assert.Error(t, err)
	})
}

func TestReplay(t *testing.T) {
	schedule := referenceSchedule()
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	var payments []*domain.PostedPayment
	for i := 0; i < 42; i++ {
		payments = append(payments, &domain.PostedPayment{
			Payment: domain.Payment{
				ID:         uuid.New(),
				ScheduleID: schedule.ID,
				Amount:     300_000,
				ReceivedAt: start.AddDate(0, i, 0),
			},
			Allocation: domain.WaterfallAllocation{PlatformFee: 15_000, InvestorYield: 45_000, EquityPortion: 240_000},
		})
	}

	ledger, err := Replay(schedule, payments)
	require.NoError(t, err)
	assert.Equal(t, domain.LedgerStatePaidOff, ledger.State())
	assert.Equal(t, 42, ledger.PaymentsReceived())
	assert.Equal(t, start.AddDate(0, 41, 0), *ledger.LastPaymentAt())

	// A payment after payoff cannot be replayed
	payments = append(payments, payments[0])
	_, err = Replay(schedule, payments)
	var paidOff *domain.AlreadyPaidOffError
	assert.True(t, errors.As(err, &paidOff))
}
