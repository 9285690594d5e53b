package disbursement

import (
	"errors"

	"github.com/google/uuid"

	"github.com/simaogato/equityflow-backend/internal/domain"
)

// Generate turns a posted payment into payout instructions.
//
// Logic:
//   - Platform fee -> PLATFORM_FEE, investor yield -> INVESTOR_YIELD
//   - Equity portion the ledger absorbed -> EQUITY
//   - Equity portion the ledger capped off (overpaid) -> REFUND
//   - Zero shares produce no instruction
//
// Returns an error if overpaid exceeds the equity portion or the instructions do
// not sum to the payment amount.
func Generate(payment domain.Payment, allocation domain.WaterfallAllocation, overpaid domain.Money) ([]domain.Disbursement, error) {
	if overpaid < 0 || overpaid > allocation.EquityPortion {
		return nil, errors.New("overpaid amount must be within the equity portion")
	}
	if allocation.Total() != payment.Amount {
		return nil, domain.ErrAllocationMismatch
	}

	shares := []struct {
		kind   domain.DisbursementKind
		amount domain.Money
	}{
		{domain.DisbursementPlatformFee, allocation.PlatformFee},
		{domain.DisbursementInvestorYield, allocation.InvestorYield},
		{domain.DisbursementEquity, allocation.EquityPortion - overpaid},
		{domain.DisbursementRefund, overpaid},
	}

	disbursements := make([]domain.Disbursement, 0, len(shares))
	for _, share := range shares {
		if share.amount == 0 {
			continue
		}
		disbursements = append(disbursements, domain.Disbursement{
			ID:         uuid.New(),
			PaymentID:  payment.ID,
			ScheduleID: payment.ScheduleID,
			Kind:       share.kind,
			Amount:     share.amount,
		})
	}

	if err := domain.ValidateDisbursements(payment.Amount, disbursements); err != nil {
		return nil, err
	}
	return disbursements, nil
}
