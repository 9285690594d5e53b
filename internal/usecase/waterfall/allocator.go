package waterfall

import (
	"errors"

	"github.com/simaogato/equityflow-backend/internal/domain"
)

// Allocate splits one received payment into platform fee, investor yield and
// equity portion.
// Logic:
//  1. Platform fee = amount * PlatformFeeRate, rounded half-up to a minor unit
//  2. Investor yield = amount * InvestorYieldRate, rounded half-up to a minor unit
//  3. Equity portion = amount - fee - yield
//
// The rounding residue of steps 1 and 2 always lands in the equity portion, so the
// fee and yield stay stable contractual fractions and the three shares sum to the
// amount exactly.
func Allocate(amount domain.Money, schedule *domain.InstallmentSchedule) (domain.WaterfallAllocation, error) {
	if amount <= 0 {
		return domain.WaterfallAllocation{}, domain.ErrNonPositiveAmount
	}
	if schedule == nil {
		return domain.WaterfallAllocation{}, errors.New("schedule is required")
	}
	if err := schedule.ValidateRates(); err != nil {
		return domain.WaterfallAllocation{}, err
	}

	allocation := domain.WaterfallAllocation{
		PlatformFee:   amount.MulRate(schedule.PlatformFeeRate),
		InvestorYield: amount.MulRate(schedule.InvestorYieldRate),
	}
	allocation.EquityPortion = amount - allocation.PlatformFee - allocation.InvestorYield

	// Rates summing below one keep the rounded shares within the amount, so a
	// negative remainder means the rate check above was bypassed.
	if allocation.EquityPortion < 0 {
		return domain.WaterfallAllocation{}, errors.New("fee and yield exceed payment amount")
	}

	// Safety check: Ensure the shares equal the payment exactly
	if allocation.Total() != amount {
		return domain.WaterfallAllocation{}, domain.ErrAllocationMismatch
	}

	return allocation, nil
}

// NominalEquityPortion is the equity portion of one contractual installment
func NominalEquityPortion(schedule *domain.InstallmentSchedule) (domain.Money, error) {
	allocation, err := Allocate(schedule.MonthlyInstallment, schedule)
	if err != nil {
		return 0, err
	}
	return allocation.EquityPortion, nil
}
