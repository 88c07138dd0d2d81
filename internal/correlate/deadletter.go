package correlate

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/sessionlab/booking-engine/internal/booking"
)

var (
	ErrDeadLetterNotFound = errors.New("dead letter not found")
)

// DeadLetter holds an event that could not be safely auto-processed. The full
// payload is retained so an operator can investigate and attach it to the
// right booking by hand.
type DeadLetter struct {
	ID                uuid.UUID
	Provider          booking.Provider
	EventType         string
	DeliveryID        string
	Payload           []byte
	Reason            string
	ResolvedBookingID *uuid.UUID
	ResolvedAt        *time.Time
	CreatedAt         time.Time
}

type DeadLetterStore interface {
	// Insert files a dead letter. Inserting the same delivery twice is a
	// no-op so provider retries of an unresolvable event do not pile up rows.
	Insert(ctx context.Context, dl DeadLetter) error
	List(ctx context.Context, includeResolved bool, limit int) ([]DeadLetter, error)
	GetByID(ctx context.Context, id uuid.UUID) (*DeadLetter, error)

	// MarkResolved attaches a dead letter to a booking after manual
	// investigation. The row is kept for audit.
	MarkResolved(ctx context.Context, id, bookingID uuid.UUID) error
}
