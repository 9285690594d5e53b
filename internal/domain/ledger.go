package domain

import (
	"time"

	"github.com/google/uuid"
)

// LedgerState represents the ownership lifecycle of a schedule
type LedgerState string

const (
	LedgerStateAccruing LedgerState = "ACCRUING"
	LedgerStatePaidOff  LedgerState = "PAID_OFF" // Terminal
)

// LedgerSnapshot is the persisted point-in-time state of an equity ledger
type LedgerSnapshot struct {
	ScheduleID           uuid.UUID
	CumulativeEquityPaid Money
	PaymentsReceived     int
	State                LedgerState
	LastPaymentAt        *time.Time // NULL until the first payment
	UpdatedAt            time.Time
}

// NewLedgerSnapshot returns the empty snapshot stored when a schedule is created
func NewLedgerSnapshot(scheduleID uuid.UUID, now time.Time) LedgerSnapshot {
	return LedgerSnapshot{
		ScheduleID: scheduleID,
		State:      LedgerStateAccruing,
		UpdatedAt:  now,
	}
}
