package payoff

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/simaogato/equityflow-backend/internal/domain"
	"github.com/simaogato/equityflow-backend/internal/usecase/equity"
	"github.com/simaogato/equityflow-backend/internal/usecase/waterfall"
)

// ProjectMonthsToPayoff estimates how many more installments are needed for the
// ledger to reach 100% equity.
//
// The estimate assumes future payments keep the amount and rates observed so far;
// it is not a guarantee.
// Logic:
//   - PAID_OFF ledgers need 0 installments
//   - With payments recorded: ceil(remaining / (equityPaid / paymentsReceived))
//   - With no payments yet: ceil(remaining / nominal equity of one installment)
func ProjectMonthsToPayoff(ledger *equity.Ledger, schedule *domain.InstallmentSchedule) (int, error) {
	if ledger == nil || schedule == nil {
		return 0, errors.New("ledger and schedule are required")
	}
	if ledger.Schedule().ID != schedule.ID {
		return 0, errors.New("ledger does not belong to schedule")
	}
	if ledger.State() == domain.LedgerStatePaidOff {
		return 0, nil
	}

	remaining := ledger.RemainingBalance().Decimal()

	if ledger.PaymentsReceived() == 0 {
		nominal, err := waterfall.NominalEquityPortion(schedule)
		if err != nil {
			return 0, err
		}
		if nominal <= 0 {
			return 0, domain.ErrNoEquityProgress
		}
		return ceilDiv(remaining, nominal.Decimal()), nil
	}

	paid := ledger.CumulativeEquityPaid()
	if paid <= 0 {
		return 0, domain.ErrNoEquityProgress
	}

	// remaining / (paid / n) == remaining * n / paid, kept exact in integers
	count := decimal.NewFromInt(int64(ledger.PaymentsReceived()))
	return ceilDiv(remaining.Mul(count), paid.Decimal()), nil
}

func ceilDiv(numerator, denominator decimal.Decimal) int {
	quotient, remainder := numerator.QuoRem(denominator, 0)
	if remainder.IsPositive() {
		quotient = quotient.Add(decimal.NewFromInt(1))
	}
	return int(quotient.IntPart())
}
