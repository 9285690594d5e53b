package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned by repositories when a row does not exist
	ErrNotFound = errors.New("not found")

	ErrNonPositiveAmount  = errors.New("payment amount must be positive")
	ErrMissingPaymentID   = errors.New("payment id is required")
	ErrMissingReceivedAt  = errors.New("payment received_at is required")
	ErrDuplicatePayment   = errors.New("payment already recorded")
	ErrOutOfOrderPayment  = errors.New("payment received before the last recorded payment")
	ErrScheduleMismatch   = errors.New("payment does not belong to schedule")
	ErrNoEquityProgress   = errors.New("no equity progress per payment, payoff cannot be projected")
	ErrConcurrentUpdate   = errors.New("ledger was updated concurrently")
	ErrUnbalancedPayout   = errors.New("disbursements do not sum to payment amount")
	ErrAllocationMismatch = errors.New("allocation does not sum to payment amount")
)

// InvalidScheduleError reports a malformed schedule. It is raised when a
// schedule is created and never reaches allocation time for stored schedules.
type InvalidScheduleError struct {
	Field  string
	Reason string
}

func (e *InvalidScheduleError) Error() string {
	return fmt.Sprintf("invalid schedule: %s %s", e.Field, e.Reason)
}

// OverpaymentError is returned by the ledger when an allocation pushes the
// cumulative equity past the property value. The ledger has already capped
// itself; the caller decides whether to refund or credit Overpaid.
type OverpaymentError struct {
	ScheduleID uuid.UUID
	Overpaid   Money
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("schedule %s overpaid by %d minor units", e.ScheduleID, e.Overpaid)
}

// AlreadyPaidOffError is returned when an allocation is appended to a ledger
// that already reached full ownership.
type AlreadyPaidOffError struct {
	ScheduleID uuid.UUID
}

func (e *AlreadyPaidOffError) Error() string {
	return fmt.Sprintf("schedule %s is already paid off", e.ScheduleID)
}
