package dashboard

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/simaogato/equityflow-backend/internal/domain"
)

// CurrencyTotals aggregates the schedules financed in one currency
type CurrencyTotals struct {
	Currency          string
	PropertyValue     domain.Money
	EquityPaid        domain.Money
	RemainingBalance  domain.Money
	EquityPercentage  decimal.Decimal
	SchedulesAccruing int
	SchedulesPaidOff  int
	PaymentsReceived  int
}

// PortfolioSummary represents the platform-wide ownership position
type PortfolioSummary struct {
	Schedules int
	Totals    []CurrencyTotals // Sorted by currency code
}

// DashboardService handles dashboard-related operations
type DashboardService struct {
	ScheduleRepo domain.ScheduleRepository
	LedgerRepo   domain.LedgerRepository
}

// NewDashboardService creates a new DashboardService instance
func NewDashboardService(scheduleRepo domain.ScheduleRepository, ledgerRepo domain.LedgerRepository) *DashboardService {
	return &DashboardService{
		ScheduleRepo: scheduleRepo,
		LedgerRepo:   ledgerRepo,
	}
}

// GetPortfolio sums property value and equity paid across all schedules
// Logic:
//   - Totals are kept per currency; amounts in different currencies are never added
//   - EquityPercentage: EquityPaid / PropertyValue for the currency
func (s *DashboardService) GetPortfolio(ctx context.Context) (*PortfolioSummary, error) {
	schedules, err := s.ScheduleRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}

	byCurrency := make(map[string]*CurrencyTotals)
	for _, schedule := range schedules {
		snapshot, err := s.LedgerRepo.GetByScheduleID(ctx, schedule.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to get ledger for schedule %s: %w", schedule.ID, err)
		}

		totals, ok := byCurrency[schedule.Currency]
		if !ok {
			totals = &CurrencyTotals{Currency: schedule.Currency}
			byCurrency[schedule.Currency] = totals
		}

		totals.PropertyValue += schedule.PropertyValue
		totals.EquityPaid += snapshot.CumulativeEquityPaid
		totals.PaymentsReceived += snapshot.PaymentsReceived
		if snapshot.State == domain.LedgerStatePaidOff {
			totals.SchedulesPaidOff++
		} else {
			totals.SchedulesAccruing++
		}
	}

	summary := &PortfolioSummary{Schedules: len(schedules)}
	for _, totals := range byCurrency {
		totals.RemainingBalance = totals.PropertyValue - totals.EquityPaid
		totals.EquityPercentage = decimal.Zero
		if totals.PropertyValue > 0 {
			totals.EquityPercentage = totals.EquityPaid.Decimal().Div(totals.PropertyValue.Decimal())
		}
		summary.Totals = append(summary.Totals, *totals)
	}
	sort.Slice(summary.Totals, func(i, j int) bool {
		return summary.Totals[i].Currency < summary.Totals[j].Currency
	})

	return summary, nil
}
