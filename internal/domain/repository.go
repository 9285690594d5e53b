package domain

import (
	"context"

	"github.com/google/uuid"
)

// ScheduleRepository defines the interface for schedule persistence operations
type ScheduleRepository interface {
	// Create stores a new schedule together with its empty ledger snapshot
	Create(ctx context.Context, schedule *InstallmentSchedule, ledger LedgerSnapshot) error

	// GetByID retrieves a schedule by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*InstallmentSchedule, error)

	// List retrieves all schedules ordered by creation time
	List(ctx context.Context) ([]*InstallmentSchedule, error)
}

// LedgerRepository defines the interface for ledger snapshot reads.
// Snapshots are written through ScheduleRepository.Create and PaymentRepository.Post.
type LedgerRepository interface {
	GetByScheduleID(ctx context.Context, scheduleID uuid.UUID) (*LedgerSnapshot, error)
}

// PaymentRepository defines the interface for payment persistence operations
type PaymentRepository interface {
	// GetByID retrieves a posted payment by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*PostedPayment, error)

	// ListBySchedule retrieves every posted payment of a schedule in receipt order
	ListBySchedule(ctx context.Context, scheduleID uuid.UUID) ([]*PostedPayment, error)

	// Post writes the payment, its allocation, its disbursements and the new
	// ledger snapshot in a single database transaction
	Post(ctx context.Context, posting *Posting) error
}
