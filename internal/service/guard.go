package service

import (
	"context"
	"fmt"
	"time"

	"github.com/dukerupert/quill/internal/domain"
)

// Reservation is the result of Guard.Begin.
type Reservation int

const (
	// Fresh means this unit of work owns the event and must apply it.
	Fresh Reservation = iota + 1
	// AlreadyProcessed means another delivery of the event committed first.
	AlreadyProcessed
)

func (r Reservation) String() string {
	switch r {
	case Fresh:
		return "fresh"
	case AlreadyProcessed:
		return "already_processed"
	default:
		return "unknown"
	}
}

// Guard is the sole writer of processed-event records. Its reservation lives
// in the caller's unit of work, so a rollback releases it.
type Guard struct {
	now func() time.Time
}

// NewGuard creates an idempotency guard.
func NewGuard() *Guard {
	return &Guard{now: time.Now}
}

// Begin reserves eventID. Concurrent deliveries of one id are resolved by the
// store's uniqueness constraint: exactly one sees Fresh.
func (g *Guard) Begin(ctx context.Context, uow domain.UnitOfWork, eventID string) (Reservation, error) {
	created, err := uow.ReserveEvent(ctx, eventID, g.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("reserve event: %w", err)
	}
	if !created {
		return AlreadyProcessed, nil
	}
	return Fresh, nil
}

// Complete records the final outcome of a Fresh reservation.
func (g *Guard) Complete(ctx context.Context, uow domain.UnitOfWork, eventID string, outcome domain.ProcessedOutcome) error {
	if err := uow.CompleteEvent(ctx, eventID, outcome); err != nil {
		return fmt.Errorf("complete event: %w", err)
	}
	return nil
}
