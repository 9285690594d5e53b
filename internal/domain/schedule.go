package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InstallmentSchedule holds the terms of one financing agreement.
// A schedule is immutable once created; renegotiation creates a new one.
type InstallmentSchedule struct {
	ID                 uuid.UUID
	PropertyValue      Money           // Total asset value being financed
	MonthlyInstallment Money           // Contractual recurring payment
	PlatformFeeRate    decimal.Decimal // Fraction in [0,1]
	InvestorYieldRate  decimal.Decimal // Fraction in [0,1]
	Currency           string
	StartDate          time.Time
	CreatedAt          time.Time
}

// Validate ensures the schedule adheres to domain rules
// Returns an *InvalidScheduleError naming the first offending field
func (s *InstallmentSchedule) Validate() error {
	if s.PropertyValue <= 0 {
		return &InvalidScheduleError{Field: "property_value", Reason: "must be positive"}
	}
	if s.MonthlyInstallment <= 0 {
		return &InvalidScheduleError{Field: "monthly_installment", Reason: "must be positive"}
	}
	if s.StartDate.IsZero() {
		return &InvalidScheduleError{Field: "start_date", Reason: "is required"}
	}
	return s.ValidateRates()
}

// ValidateRates checks the rate configuration on its own. The allocator calls it
// so a schedule built without Validate still fails closed.
func (s *InstallmentSchedule) ValidateRates() error {
	if !isFraction(s.PlatformFeeRate) {
		return &InvalidScheduleError{Field: "platform_fee_rate", Reason: "must be between 0 and 1"}
	}
	if !isFraction(s.InvestorYieldRate) {
		return &InvalidScheduleError{Field: "investor_yield_rate", Reason: "must be between 0 and 1"}
	}
	if s.PlatformFeeRate.Add(s.InvestorYieldRate).GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return &InvalidScheduleError{Field: "rates", Reason: "must sum to less than 1"}
	}
	return nil
}

// EquityRate is the nominal fraction of each payment that flows to equity
func (s *InstallmentSchedule) EquityRate() decimal.Decimal {
	return decimal.NewFromInt(1).Sub(s.PlatformFeeRate).Sub(s.InvestorYieldRate)
}

func isFraction(d decimal.Decimal) bool {
	return !d.IsNegative() && d.LessThanOrEqual(decimal.NewFromInt(1))
}
