package correlate

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sessionlab/booking-engine/internal/booking"
)

type stubBookings struct {
	items map[uuid.UUID]*booking.Booking
}

func (s *stubBookings) GetBookingByID(_ context.Context, id uuid.UUID) (*booking.Booking, error) {
	if b, ok := s.items[id]; ok {
		return b, nil
	}
	return nil, booking.ErrBookingNotFound
}

func (s *stubBookings) CreateBooking(context.Context, *booking.Booking) (*booking.Booking, error) {
	panic("not used")
}

func (s *stubBookings) UpdateBookingVersioned(context.Context, *booking.Booking, int64) (*booking.Booking, error) {
	panic("not used")
}

func (s *stubBookings) InsertTransition(context.Context, booking.TransitionRecord) error {
	panic("not used")
}

func (s *stubBookings) ListTransitions(context.Context, uuid.UUID) ([]booking.TransitionRecord, error) {
	panic("not used")
}

func TestResolve_KnownToken(t *testing.T) {
	id := uuid.New()
	r := NewResolver(&stubBookings{items: map[uuid.UUID]*booking.Booking{
		id: {ID: id, Status: booking.StatusPendingScheduling},
	}})

	b, err := r.Resolve(context.Background(), id.String())

	require.NoError(t, err)
	assert.Equal(t, id, b.ID)
}

func TestResolve_EmptyToken(t *testing.T) {
	r := NewResolver(&stubBookings{})

	_, err := r.Resolve(context.Background(), "")

	assert.ErrorIs(t, err, ErrUnresolvable)
}

func TestResolve_MalformedToken(t *testing.T) {
	r := NewResolver(&stubBookings{})

	_, err := r.Resolve(context.Background(), "definitely-not-a-uuid")

	assert.ErrorIs(t, err, ErrUnresolvable)
}

func TestResolve_UnknownBooking(t *testing.T) {
	r := NewResolver(&stubBookings{items: map[uuid.UUID]*booking.Booking{}})

	_, err := r.Resolve(context.Background(), uuid.NewString())

	assert.ErrorIs(t, err, ErrUnresolvable)
}
