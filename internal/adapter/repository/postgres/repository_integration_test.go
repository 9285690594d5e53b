//go:build integration

package postgres

import (
	"context"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simaogato/equityflow-backend/internal/domain"
	"github.com/simaogato/equityflow-backend/internal/usecase/financing"
)

var db *DB

// TestMain connects to the database named by DB_CONN_STR (or the DB_* variables)
// and applies the schema
func TestMain(m *testing.M) {
	var err error
	db, err = NewDB(getDBConnectionString())
	if err != nil {
		panic(fmt.Sprintf("Failed to connect to database: %v", err))
	}

	if err := db.Migrate(context.Background()); err != nil {
		panic(fmt.Sprintf("Failed to migrate database: %v", err))
	}

	code := m.Run()

	db.Close()
	os.Exit(code)
}

// getDBConnectionString returns the database connection string from environment or defaults
func getDBConnectionString() string {
	if connStr := os.Getenv("DB_CONN_STR"); connStr != "" {
		return connStr
	}

	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		envOr("DB_HOST", "localhost"),
		envOr("DB_PORT", "5432"),
		envOr("DB_USER", "postgres"),
		envOr("DB_PASSWORD", "postgres"),
		envOr("DB_NAME", "equityflow"),
	)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newService() *financing.FinancingService {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return financing.NewFinancingService(
		NewScheduleRepository(db),
		NewLedgerRepository(db),
		NewPaymentRepository(db),
		log,
	)
}

// TestEndToEndFlow posts the reference schedule through to payoff and reconciles it
func TestEndToEndFlow(t *testing.T) {
	ctx := context.Background()
	service := newService()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	schedule, err := service.CreateSchedule(ctx, financing.CreateScheduleInput{
		PropertyValue:      10_000_000,
		MonthlyInstallment: 300_000,
		PlatformFeeRate:    decimal.RequireFromString("0.05"),
		InvestorYieldRate:  decimal.RequireFromString("0.15"),
		Currency:           "NGN",
		StartDate:          start,
	})
	require.NoError(t, err)

	stored, err := NewScheduleRepository(db).GetByID(ctx, schedule.ID)
	require.NoError(t, err)
	assert.True(t, stored.EquityRate().Equal(decimal.RequireFromString("0.8")))

	first := uuid.New()
	for i := 0; i < 42; i++ {
		id := uuid.New()
		if i == 0 {
			id = first
		}
		_, err := service.RecordPayment(ctx, financing.RecordPaymentInput{
			PaymentID:  id,
			ScheduleID: schedule.ID,
			Amount:     300_000,
			ReceivedAt: start.AddDate(0, i, 0),
		})
		require.NoError(t, err, "payment %d", i+1)
	}

	position, err := service.GetPosition(ctx, schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LedgerStatePaidOff, position.State)
	assert.Equal(t, domain.Money(10_000_000), position.CumulativeEquityPaid)
	require.NotNil(t, position.MonthsToPayoff)
	assert.Equal(t, 0, *position.MonthsToPayoff)

	// Redelivery of the first payment is rejected
	_, err = service.RecordPayment(ctx, financing.RecordPaymentInput{
		PaymentID:  first,
		ScheduleID: schedule.ID,
		Amount:     300_000,
		ReceivedAt: start.AddDate(0, 43, 0),
	})
	assert.ErrorIs(t, err, domain.ErrDuplicatePayment)

	report, err := service.ReconcileLedger(ctx, schedule.ID)
	require.NoError(t, err)
	assert.True(t, report.Consistent, report.Mismatches)
}

func TestPaymentRepository_StaleLedger(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	schedule := &domain.InstallmentSchedule{
		ID:                 uuid.New(),
		PropertyValue:      1_000_000,
		MonthlyInstallment: 100_000,
		PlatformFeeRate:    decimal.Zero,
		InvestorYieldRate:  decimal.Zero,
		Currency:           "USD",
		StartDate:          now,
		CreatedAt:          now,
	}
	require.NoError(t, NewScheduleRepository(db).Create(ctx, schedule, domain.NewLedgerSnapshot(schedule.ID, now)))

	err := NewPaymentRepository(db).Post(ctx, &domain.Posting{
		Payment:    domain.Payment{ID: uuid.New(), ScheduleID: schedule.ID, Amount: 100_000, ReceivedAt: now},
		Allocation: domain.WaterfallAllocation{EquityPortion: 100_000},
		Ledger: domain.LedgerSnapshot{
			ScheduleID:           schedule.ID,
			CumulativeEquityPaid: 100_000,
			PaymentsReceived:     4,
			State:                domain.LedgerStateAccruing,
			UpdatedAt:            now,
		},
		PreviousPaymentsReceived: 3,
	})
	assert.ErrorIs(t, err, domain.ErrConcurrentUpdate)
}

func TestScheduleRepository_RatePrecision(t *testing.T) {
	ctx := context.Background()
	service := newService()

	schedule, err := service.CreateSchedule(ctx, financing.CreateScheduleInput{
		PropertyValue:      1_000_000,
		MonthlyInstallment: 100_000,
		PlatformFeeRate:    decimal.RequireFromString("0.5"),
		InvestorYieldRate:  decimal.RequireFromString("0.49999999999"),
		Currency:           "USD",
		StartDate:          time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	stored, err := NewScheduleRepository(db).GetByID(ctx, schedule.ID)
	require.NoError(t, err)
	assert.True(t, stored.InvestorYieldRate.Equal(schedule.InvestorYieldRate), "stored %s", stored.InvestorYieldRate)
	assert.NoError(t, stored.ValidateRates())

	_, err = service.RecordPayment(ctx, financing.RecordPaymentInput{
		PaymentID:  uuid.New(),
		ScheduleID: schedule.ID,
		Amount:     100_000,
		ReceivedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	assert.NoError(t, err)
}
