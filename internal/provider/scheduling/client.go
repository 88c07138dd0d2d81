package scheduling

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sessionlab/booking-engine/internal/booking"
	"github.com/sessionlab/booking-engine/internal/provider"
)

// Client issues commands against the scheduling provider's REST API.
type Client struct {
	rest *provider.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		rest: provider.NewClient(booking.ProviderScheduling, baseURL, apiKey, timeout),
	}
}

type linkRequest struct {
	EventTypeID  string `json:"event_type_id"`
	InviteeEmail string `json:"invitee_email,omitempty"`
	// The booking ID travels in the tracking fields, which the provider
	// echoes back on invitee payloads. That echo is the correlation token.
	Tracking map[string]string `json:"tracking"`
}

type linkResponse struct {
	URL string `json:"booking_url"`
}

// GenerateSchedulingLink creates a single-use scheduling URL with the booking
// ID embedded as tracking metadata.
func (c *Client) GenerateSchedulingLink(ctx context.Context, bookingID uuid.UUID, sessionTypeID, inviteeEmail string) (string, error) {
	req := linkRequest{
		EventTypeID:  sessionTypeID,
		InviteeEmail: inviteeEmail,
		Tracking: map[string]string{
			"utm_content": bookingID.String(),
		},
	}

	var out linkResponse
	key := provider.IdempotencyKey("scheduling_link", bookingID.String())
	if err := c.rest.Do(ctx, http.MethodPost, "/scheduling_links", key, req, &out); err != nil {
		return "", err
	}
	return out.URL, nil
}

type cancelRequest struct {
	Reason string `json:"reason,omitempty"`
}

// CancelEvent releases a calendar hold, used when a booking dies on the
// payment side and the slot must be given back.
func (c *Client) CancelEvent(ctx context.Context, externalEventID, reason string) error {
	return c.rest.Do(ctx, http.MethodPost, "/scheduled_events/"+externalEventID+"/cancellation", "", cancelRequest{Reason: reason}, nil)
}
