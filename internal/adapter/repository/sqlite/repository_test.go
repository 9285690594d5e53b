package sqlite_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simaogato/equityflow-backend/internal/adapter/repository/sqlite"
	"github.com/simaogato/equityflow-backend/internal/domain"
	"github.com/simaogato/equityflow-backend/internal/usecase/financing"
)

var start = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func referenceSchedule() *domain.InstallmentSchedule {
	return &domain.InstallmentSchedule{
		ID:                 uuid.New(),
		PropertyValue:      10_000_000,
		MonthlyInstallment: 300_000,
		PlatformFeeRate:    decimal.RequireFromString("0.05"),
		InvestorYieldRate:  decimal.RequireFromString("0.15"),
		Currency:           "NGN",
		StartDate:          start,
		CreatedAt:          start,
	}
}

func TestScheduleRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	schedules := sqlite.NewScheduleRepository(db)
	ledgers := sqlite.NewLedgerRepository(db)

	schedule := referenceSchedule()
	require.NoError(t, schedules.Create(ctx, schedule, domain.NewLedgerSnapshot(schedule.ID, start)))

	got, err := schedules.GetByID(ctx, schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, schedule.ID, got.ID)
	assert.Equal(t, schedule.PropertyValue, got.PropertyValue)
	assert.Equal(t, schedule.MonthlyInstallment, got.MonthlyInstallment)
	assert.True(t, schedule.PlatformFeeRate.Equal(got.PlatformFeeRate))
	assert.True(t, schedule.InvestorYieldRate.Equal(got.InvestorYieldRate))
	assert.Equal(t, "NGN", got.Currency)
	assert.True(t, schedule.StartDate.Equal(got.StartDate))

	snapshot, err := ledgers.GetByScheduleID(ctx, schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LedgerStateAccruing, snapshot.State)
	assert.Zero(t, snapshot.CumulativeEquityPaid)
	assert.Nil(t, snapshot.LastPaymentAt)

	all, err := schedules.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRepositories_NotFound(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	_, err := sqlite.NewScheduleRepository(db).GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = sqlite.NewLedgerRepository(db).GetByScheduleID(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = sqlite.NewPaymentRepository(db).GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPaymentRepository_Post(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	schedules := sqlite.NewScheduleRepository(db)
	ledgers := sqlite.NewLedgerRepository(db)
	payments := sqlite.NewPaymentRepository(db)

	schedule := referenceSchedule()
	require.NoError(t, schedules.Create(ctx, schedule, domain.NewLedgerSnapshot(schedule.ID, start)))

	receivedAt := start.Add(24 * time.Hour)
	payment := domain.Payment{ID: uuid.New(), ScheduleID: schedule.ID, Amount: 300_000, ReceivedAt: receivedAt}
	posting := &domain.Posting{
		Payment:    payment,
		Allocation: domain.WaterfallAllocation{PlatformFee: 15_000, InvestorYield: 45_000, EquityPortion: 240_000},
		Disbursements: []domain.Disbursement{
			{ID: uuid.New(), PaymentID: payment.ID, ScheduleID: schedule.ID, Kind: domain.DisbursementPlatformFee, Amount: 15_000},
			{ID: uuid.New(), PaymentID: payment.ID, ScheduleID: schedule.ID, Kind: domain.DisbursementInvestorYield, Amount: 45_000},
			{ID: uuid.New(), PaymentID: payment.ID, ScheduleID: schedule.ID, Kind: domain.DisbursementEquity, Amount: 240_000},
		},
		Ledger: domain.LedgerSnapshot{
			ScheduleID:           schedule.ID,
			CumulativeEquityPaid: 240_000,
			PaymentsReceived:     1,
			State:                domain.LedgerStateAccruing,
			LastPaymentAt:        &receivedAt,
			UpdatedAt:            receivedAt,
		},
		PreviousPaymentsReceived: 0,
	}

	t.Run("Posts atomically", func(t *testing.T) {
		require.NoError(t, payments.Post(ctx, posting))

		snapshot, err := ledgers.GetByScheduleID(ctx, schedule.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.Money(240_000), snapshot.CumulativeEquityPaid)
		assert.Equal(t, 1, snapshot.PaymentsReceived)
		require.NotNil(t, snapshot.LastPaymentAt)
		assert.True(t, receivedAt.Equal(*snapshot.LastPaymentAt))

		stored, err := payments.GetByID(ctx, payment.ID)
		require.NoError(t, err)
		assert.Equal(t, posting.Allocation, stored.Allocation)
		assert.Equal(t, domain.Money(300_000), stored.Payment.Amount)
	})

	t.Run("Rejects duplicate payment", func(t *testing.T) {
		dup := *posting
		dup.PreviousPaymentsReceived = 1
		dup.Ledger.PaymentsReceived = 2
		err := payments.Post(ctx, &dup)
		assert.ErrorIs(t, err, domain.ErrDuplicatePayment)
	})

	t.Run("Rejects stale ledger", func(t *testing.T) {
		stale := *posting
		stale.Payment.ID = uuid.New()
		stale.Disbursements = nil
		stale.PreviousPaymentsReceived = 0
		err := payments.Post(ctx, &stale)
		assert.ErrorIs(t, err, domain.ErrConcurrentUpdate)

		// Nothing from the failed posting is visible
		_, err = payments.GetByID(ctx, stale.Payment.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func newFinancingService(db *sqlite.DB) *financing.FinancingService {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return financing.NewFinancingService(
		sqlite.NewScheduleRepository(db),
		sqlite.NewLedgerRepository(db),
		sqlite.NewPaymentRepository(db),
		log,
	)
}

func TestFinancingService_WithSQLite(t *testing.T) {
	ctx := context.Background()
	service := newFinancingService(openTestDB(t))

	schedule, err := service.CreateSchedule(ctx, financing.CreateScheduleInput{
		PropertyValue:      10_000_000,
		MonthlyInstallment: 300_000,
		PlatformFeeRate:    decimal.RequireFromString("0.05"),
		InvestorYieldRate:  decimal.RequireFromString("0.15"),
		Currency:           "ngn",
		StartDate:          start,
	})
	require.NoError(t, err)

	var result *financing.PaymentResult
	for i := 0; i < 42; i++ {
		result, err = service.RecordPayment(ctx, financing.RecordPaymentInput{
			PaymentID:  uuid.New(),
			ScheduleID: schedule.ID,
			Amount:     300_000,
			ReceivedAt: start.AddDate(0, i, 0),
		})
		require.NoError(t, err, "payment %d", i+1)
	}

	assert.Equal(t, domain.Money(80_000), result.Overpaid)
	assert.Equal(t, domain.LedgerStatePaidOff, result.Position.State)
	assert.Equal(t, domain.Money(10_000_000), result.Position.CumulativeEquityPaid)

	_, err = service.RecordPayment(ctx, financing.RecordPaymentInput{
		PaymentID:  uuid.New(),
		ScheduleID: schedule.ID,
		Amount:     300_000,
		ReceivedAt: start.AddDate(0, 42, 0),
	})
	var paidOff *domain.AlreadyPaidOffError
	assert.ErrorAs(t, err, &paidOff)

	report, err := service.ReconcileLedger(ctx, schedule.ID)
	require.NoError(t, err)
	assert.True(t, report.Consistent, report.Mismatches)
	assert.Equal(t, 42, report.Replayed.PaymentsReceived)
}

func TestFinancingService_ConcurrentPayments(t *testing.T) {
	ctx := context.Background()
	service := newFinancingService(openTestDB(t))

	schedule, err := service.CreateSchedule(ctx, financing.CreateScheduleInput{
		PropertyValue:      10_000_000,
		MonthlyInstallment: 300_000,
		PlatformFeeRate:    decimal.RequireFromString("0.05"),
		InvestorYieldRate:  decimal.RequireFromString("0.15"),
		StartDate:          start,
	})
	require.NoError(t, err)

	const deliveries = 50
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		posted   int
		rejected int
		failures []error
	)
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.RecordPayment(ctx, financing.RecordPaymentInput{
				PaymentID:  uuid.New(),
				ScheduleID: schedule.ID,
				Amount:     300_000,
				ReceivedAt: start,
			})

			mu.Lock()
			defer mu.Unlock()
			var paidOff *domain.AlreadyPaidOffError
			switch {
			case err == nil:
				posted++
			case errors.As(err, &paidOff):
				rejected++
			default:
				failures = append(failures, err)
			}
		}()
	}
	wg.Wait()

	require.Empty(t, failures)
	assert.Equal(t, 42, posted)
	assert.Equal(t, deliveries-42, rejected)

	position, err := service.GetPosition(ctx, schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Money(10_000_000), position.CumulativeEquityPaid)
	assert.Equal(t, domain.LedgerStatePaidOff, position.State)
	assert.Equal(t, 42, position.PaymentsReceived)

	report, err := service.ReconcileLedger(ctx, schedule.ID)
	require.NoError(t, err)
	assert.True(t, report.Consistent, report.Mismatches)
}

func TestScheduleRepository_KeepsRatePrecision(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	schedules := sqlite.NewScheduleRepository(db)

	schedule := referenceSchedule()
	schedule.PlatformFeeRate = decimal.RequireFromString("0.5")
	schedule.InvestorYieldRate = decimal.RequireFromString("0.49999999999")
	require.NoError(t, schedule.Validate())
	require.NoError(t, schedules.Create(ctx, schedule, domain.NewLedgerSnapshot(schedule.ID, start)))

	got, err := schedules.GetByID(ctx, schedule.ID)
	require.NoError(t, err)
	assert.True(t, got.InvestorYieldRate.Equal(schedule.InvestorYieldRate), "stored %s", got.InvestorYieldRate)
	assert.NoError(t, got.ValidateRates())
}
