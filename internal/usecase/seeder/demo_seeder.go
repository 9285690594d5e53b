package seeder

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/simaogato/equityflow-backend/internal/domain"
)

// Fixed UUID for the reference schedule so repeated seeding is idempotent
var DEMO_REFERENCE_SCHEDULE = uuid.MustParse("00000000-0000-0000-0000-0000000000a1")

// DemoSeeder handles seeding of the reference financing schedule used by
// dashboards and smoke tests
type DemoSeeder struct {
	repo domain.ScheduleRepository
	now  func() time.Time
}

// NewDemoSeeder creates a new DemoSeeder instance
func NewDemoSeeder(repo domain.ScheduleRepository) *DemoSeeder {
	return &DemoSeeder{
		repo: repo,
		now:  time.Now,
	}
}

// ReferenceSchedule returns the seeded schedule:
// 10,000,000 property value, 300,000 installments, 5% platform fee, 15% investor yield
func ReferenceSchedule(createdAt time.Time) *domain.InstallmentSchedule {
	return &domain.InstallmentSchedule{
		ID:                 DEMO_REFERENCE_SCHEDULE,
		PropertyValue:      10_000_000,
		MonthlyInstallment: 300_000,
		PlatformFeeRate:    decimal.RequireFromString("0.05"),
		InvestorYieldRate:  decimal.RequireFromString("0.15"),
		Currency:           domain.DefaultCurrency,
		StartDate:          time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		CreatedAt:          createdAt,
	}
}

// Seed ensures the reference schedule exists in the database
// If it doesn't exist, it creates it with an empty ledger
func (s *DemoSeeder) Seed(ctx context.Context) error {
	_, err := s.repo.GetByID(ctx, DEMO_REFERENCE_SCHEDULE)
	if err == nil {
		// Already seeded, schedules are immutable
		return nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	now := s.now().UTC()
	schedule := ReferenceSchedule(now)

	// Validate before creating
	if err := schedule.Validate(); err != nil {
		return err
	}

	return s.repo.Create(ctx, schedule, domain.NewLedgerSnapshot(schedule.ID, now))
}
