package payment

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sessionlab/booking-engine/internal/booking"
	"github.com/sessionlab/booking-engine/internal/provider"
)

// Client issues commands against the payment provider's REST API. It never
// writes booking state; results flow back to the coordinator which applies
// them.
type Client struct {
	rest *provider.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		rest: provider.NewClient(booking.ProviderPayment, baseURL, apiKey, timeout),
	}
}

type CheckoutSession struct {
	SessionID   string `json:"id"`
	RedirectURL string `json:"url"`
}

type checkoutRequest struct {
	AmountMinor int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Metadata    map[string]string `json:"metadata"`
}

// CreateCheckoutSession opens a hosted checkout for the booking. The booking
// ID rides in the session metadata so the payment webhook can be correlated
// back, and the idempotency key makes a crash-retry reuse the same session.
func (c *Client) CreateCheckoutSession(ctx context.Context, bookingID uuid.UUID, amountMinor int64, currency string) (*CheckoutSession, error) {
	req := checkoutRequest{
		AmountMinor: amountMinor,
		Currency:    currency,
		Metadata: map[string]string{
			"booking_id": bookingID.String(),
		},
	}

	var out CheckoutSession
	key := provider.IdempotencyKey(string(booking.CmdCreateCheckoutSession), bookingID.String())
	if err := c.rest.Do(ctx, http.MethodPost, "/checkout/sessions", key, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type Refund struct {
	RefundID string `json:"id"`
}

type refundRequest struct {
	ChargeID    string `json:"charge"`
	AmountMinor int64  `json:"amount,omitempty"` // omitted = full refund
}

// CreateRefund refunds a charge, fully when amountMinor is zero, partially
// otherwise. One refund per booking: the idempotency key is derived from the
// booking, so a redelivered cancellation cannot refund twice.
func (c *Client) CreateRefund(ctx context.Context, bookingID uuid.UUID, chargeID string, amountMinor int64) (*Refund, error) {
	req := refundRequest{ChargeID: chargeID, AmountMinor: amountMinor}

	var out Refund
	key := provider.IdempotencyKey(string(booking.CmdIssueRefund), bookingID.String())
	if err := c.rest.Do(ctx, http.MethodPost, "/refunds", key, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VoidCheckoutSession expires a still-open checkout session after the
// calendar side canceled. Voiding an already-completed or already-expired
// session is reported as invalid_request by the provider; the caller treats
// that as done.
func (c *Client) VoidCheckoutSession(ctx context.Context, bookingID uuid.UUID, sessionID string) error {
	key := provider.IdempotencyKey(string(booking.CmdVoidCheckoutSession), bookingID.String())
	return c.rest.Do(ctx, http.MethodPost, "/checkout/sessions/"+sessionID+"/expire", key, nil, nil)
}

type SessionSnapshot struct {
	SessionID   string            `json:"id"`
	Status      string            `json:"status"`
	ChargeID    string            `json:"charge"`
	AmountMinor int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Metadata    map[string]string `json:"metadata"`
}

// RetrieveSession fetches the provider's view of a checkout session, used for
// backfill when a webhook was lost entirely.
func (c *Client) RetrieveSession(ctx context.Context, sessionID string) (*SessionSnapshot, error) {
	var out SessionSnapshot
	if err := c.rest.Do(ctx, http.MethodGet, "/checkout/sessions/"+sessionID, "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
