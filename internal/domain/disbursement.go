package domain

import (
	"errors"

	"github.com/google/uuid"
)

// DisbursementKind names the party a share of a payment is paid out to
type DisbursementKind string

const (
	DisbursementPlatformFee   DisbursementKind = "PLATFORM_FEE"
	DisbursementInvestorYield DisbursementKind = "INVESTOR_YIELD"
	DisbursementEquity        DisbursementKind = "EQUITY"
	DisbursementRefund        DisbursementKind = "REFUND"
)

// Disbursement is a payout instruction derived from one posted payment
type Disbursement struct {
	ID         uuid.UUID
	PaymentID  uuid.UUID
	ScheduleID uuid.UUID
	Kind       DisbursementKind
	Amount     Money // Always positive; zero shares produce no instruction
}

// ValidateDisbursements ensures the instructions of one payment are well formed
// and sum exactly to the payment amount.
func ValidateDisbursements(amount Money, disbursements []Disbursement) error {
	if len(disbursements) == 0 {
		return errors.New("payment must produce at least one disbursement")
	}

	var total Money
	for _, d := range disbursements {
		switch d.Kind {
		case DisbursementPlatformFee, DisbursementInvestorYield, DisbursementEquity, DisbursementRefund:
		default:
			return errors.New("disbursement kind must be PLATFORM_FEE, INVESTOR_YIELD, EQUITY, or REFUND")
		}
		if d.Amount <= 0 {
			return errors.New("disbursement amount must be positive")
		}
		total += d.Amount
	}

	if total != amount {
		return ErrUnbalancedPayout
	}
	return nil
}
