package domain

import (
	"time"

	"github.com/google/uuid"
)

// Payment is one cleared installment. Payments are immutable and ordered by ReceivedAt.
type Payment struct {
	ID         uuid.UUID
	ScheduleID uuid.UUID
	Amount     Money
	ReceivedAt time.Time
}

// WaterfallAllocation is the split of one payment into ordered shares
type WaterfallAllocation struct {
	PlatformFee   Money
	InvestorYield Money
	EquityPortion Money
}

// Total returns the sum of the three shares
func (a WaterfallAllocation) Total() Money {
	return a.PlatformFee + a.InvestorYield + a.EquityPortion
}

// PostedPayment is a payment as stored alongside its allocation and the part of
// its equity portion the ledger could not absorb.
type PostedPayment struct {
	Payment    Payment
	Allocation WaterfallAllocation
	Overpaid   Money
	PostedAt   time.Time
}

// Posting is everything written atomically when a payment clears.
// PreviousPaymentsReceived is the ledger count the posting was computed from;
// the write fails with ErrConcurrentUpdate if the stored ledger moved on.
type Posting struct {
	Payment                  Payment
	Allocation               WaterfallAllocation
	Overpaid                 Money
	Disbursements            []Disbursement
	Ledger                   LedgerSnapshot
	PreviousPaymentsReceived int
}
