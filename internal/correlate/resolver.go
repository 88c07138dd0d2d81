package correlate

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/sessionlab/booking-engine/internal/booking"
)

var (
	// ErrUnresolvable means the event carries no correlation token, or the
	// token does not match any booking. Such events are dead-lettered, never
	// dropped and never allowed to create a booking implicitly — a forged or
	// duplicated webhook must not spawn phantom bookings.
	ErrUnresolvable = errors.New("correlation token unresolvable")
)

// Resolver maps the opaque correlation token embedded in provider metadata
// back to the originating booking.
type Resolver struct {
	bookings booking.Repository
}

func NewResolver(bookings booking.Repository) *Resolver {
	return &Resolver{bookings: bookings}
}

func (r *Resolver) Resolve(ctx context.Context, token string) (*booking.Booking, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrUnresolvable)
	}

	id, err := uuid.Parse(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not a booking id", ErrUnresolvable, token)
	}

	b, err := r.bookings.GetBookingByID(ctx, id)
	if err != nil {
		if errors.Is(err, booking.ErrBookingNotFound) {
			return nil, fmt.Errorf("%w: no booking %s", ErrUnresolvable, id)
		}
		return nil, fmt.Errorf("load booking %s: %w", id, err)
	}

	return b, nil
}
