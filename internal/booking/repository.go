package booking

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrBookingNotFound = errors.New("booking not found")
	ErrVersionConflict = errors.New("booking version conflict")
)

// Repository contains all DB interactions needed by the intent service and
// the reconciliation coordinator.
type Repository interface {
	GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error)

	// CreateBooking inserts a new booking in pending_scheduling at version 1.
	CreateBooking(ctx context.Context, b *Booking) (*Booking, error)

	// UpdateBookingVersioned persists b guarded by WHERE version = expected;
	// returns ErrVersionConflict when a concurrent writer got there first.
	UpdateBookingVersioned(ctx context.Context, b *Booking, expected int64) (*Booking, error)

	// Transition history
	InsertTransition(ctx context.Context, rec TransitionRecord) error
	ListTransitions(ctx context.Context, bookingID uuid.UUID) ([]TransitionRecord, error)
}
