package disbursement

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simaogato/equityflow-backend/internal/domain"
)

func newPayment(amount domain.Money) domain.Payment {
	return domain.Payment{
		ID:         uuid.New(),
		ScheduleID: uuid.New(),
		Amount:     amount,
		ReceivedAt: time.Now(),
	}
}

func amountsByKind(disbursements []domain.Disbursement) map[domain.DisbursementKind]domain.Money {
	out := make(map[domain.DisbursementKind]domain.Money)
	for _, d := range disbursements {
		out[d.Kind] += d.Amount
	}
	return out
}

func TestGenerate_RegularInstallment(t *testing.T) {
	payment := newPayment(300_000)
	allocation := domain.WaterfallAllocation{PlatformFee: 15_000, InvestorYield: 45_000, EquityPortion: 240_000}

	disbursements, err := Generate(payment, allocation, 0)

	require.NoError(t, err)
	assert.Len(t, disbursements, 3)
	byKind := amountsByKind(disbursements)
	assert.Equal(t, domain.Money(15_000), byKind[domain.DisbursementPlatformFee])
	assert.Equal(t, domain.Money(45_000), byKind[domain.DisbursementInvestorYield])
	assert.Equal(t, domain.Money(240_000), byKind[domain.DisbursementEquity])

	for _, d := range disbursements {
		assert.Equal(t, payment.ID, d.PaymentID)
		assert.Equal(t, payment.ScheduleID, d.ScheduleID)
	}
}

func TestGenerate_FinalInstallmentWithOverpayment(t *testing.T) {
	payment := newPayment(300_000)
	allocation := domain.WaterfallAllocation{PlatformFee: 15_000, InvestorYield: 45_000, EquityPortion: 240_000}

	disbursements, err := Generate(payment, allocation, 80_000)

	require.NoError(t, err)
	assert.Len(t, disbursements, 4)
	byKind := amountsByKind(disbursements)
	assert.Equal(t, domain.Money(160_000), byKind[domain.DisbursementEquity])
	assert.Equal(t, domain.Money(80_000), byKind[domain.DisbursementRefund])
}

func TestGenerate_FullRefundSkipsEquity(t *testing.T) {
	// Zero rates and the whole equity portion overpaid
	payment := newPayment(1_000)
	allocation := domain.WaterfallAllocation{EquityPortion: 1_000}

	disbursements, err := Generate(payment, allocation, 1_000)

	require.NoError(t, err)
	require.Len(t, disbursements, 1)
	assert.Equal(t, domain.DisbursementRefund, disbursements[0].Kind)
}

func TestGenerate_OverpaidBeyondEquity(t *testing.T) {
	payment := newPayment(300_000)
	allocation := domain.WaterfallAllocation{PlatformFee: 15_000, InvestorYield: 45_000, EquityPortion: 240_000}

	_, err := Generate(payment, allocation, 240_001)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "within the equity portion")
}

func TestGenerate_AllocationMismatch(t *testing.T) {
	payment := newPayment(300_000)
	allocation := domain.WaterfallAllocation{PlatformFee: 15_000, InvestorYield: 45_000, EquityPortion: 239_999}

	_, err := Generate(payment, allocation, 0)
	assert.ErrorIs(t, err, domain.ErrAllocationMismatch)
}
