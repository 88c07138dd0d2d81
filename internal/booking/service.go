package booking

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// SchedulingLinker is the slice of the scheduling orchestrator the intent
// service needs: a single-use scheduling URL with the booking ID embedded as
// correlation metadata, so the later webhook can be matched back.
type SchedulingLinker interface {
	GenerateSchedulingLink(ctx context.Context, bookingID uuid.UUID, sessionTypeID, inviteeEmail string) (string, error)
}

type Service struct {
	repo   Repository
	linker SchedulingLinker
}

func NewService(repo Repository, linker SchedulingLinker) *Service {
	return &Service{repo: repo, linker: linker}
}

type CreateIntentParams struct {
	ClientID      string
	BuilderID     string
	SessionTypeID string
	PriceMinor    int64
	Currency      string
	InviteeEmail  string
}

// CreateIntent opens a new booking in pending_scheduling and hands back a
// scheduling link for the client to pick a slot. The booking row is created
// first so the correlation token embedded in the link always resolves.
func (s *Service) CreateIntent(ctx context.Context, p CreateIntentParams) (*Booking, string, error) {
	b := &Booking{
		ID:            uuid.New(),
		Status:        StatusPendingScheduling,
		ClientID:      p.ClientID,
		BuilderID:     p.BuilderID,
		SessionTypeID: p.SessionTypeID,
		PriceMinor:    p.PriceMinor,
		Currency:      p.Currency,
	}

	created, err := s.repo.CreateBooking(ctx, b)
	if err != nil {
		return nil, "", fmt.Errorf("create booking: %w", err)
	}

	url, err := s.linker.GenerateSchedulingLink(ctx, created.ID, p.SessionTypeID, p.InviteeEmail)
	if err != nil {
		// The booking stays pending_scheduling; the client can re-request a
		// link without losing the intent.
		log.Printf("generate scheduling link failed booking_id=%s: %v", created.ID, err)
		return nil, "", fmt.Errorf("generate scheduling link: %w", err)
	}

	rec := TransitionRecord{
		BookingID:  created.ID,
		FromStatus: "",
		ToStatus:   StatusPendingScheduling,
		EventType:  "booking.intent_created",
		CreatedAt:  time.Now(),
	}
	if err := s.repo.InsertTransition(ctx, rec); err != nil {
		log.Printf("failed to record intent transition for booking %s: %v", created.ID, err)
	}

	return created, url, nil
}

// GetBooking retrieves a booking by ID.
func (s *Service) GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	b, err := s.repo.GetBookingByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

// GetHistory retrieves the transition history for a booking.
func (s *Service) GetHistory(ctx context.Context, id uuid.UUID) ([]TransitionRecord, error) {
	recs, err := s.repo.ListTransitions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	return recs, nil
}
