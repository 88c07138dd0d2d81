package reconcile

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sessionlab/booking-engine/internal/booking"
)

var (
	// ErrUnknownEventType marks provider event names with no normalized
	// mapping. They are acknowledged and skipped; the state machine never
	// sees them.
	ErrUnknownEventType = errors.New("unknown provider event type")
)

// DecodedEvent is a provider payload parsed into internal terms but not yet
// correlated: Token still has to be resolved to a booking.
type DecodedEvent struct {
	Provider     booking.Provider
	Type         booking.EventType
	EventName    string // provider-native name, kept for the ledger
	DeliveryID   string
	Token        string
	Raw          []byte // original payload, retained for ledger and dead letters
	OccurredAt   time.Time
	Scheduling   *booking.SchedulingRef
	Payment      *booking.PaymentEventDetail
	CancelReason string
	InitiatedBy  string
}

func (d *DecodedEvent) rawForLedger() []byte {
	return d.Raw
}

// normalized attaches the resolved booking ID, producing the event the state
// machine consumes.
func (d *DecodedEvent) normalized(bookingID uuid.UUID) booking.NormalizedEvent {
	return booking.NormalizedEvent{
		DeliveryID:   d.DeliveryID,
		Provider:     d.Provider,
		Type:         d.Type,
		BookingID:    bookingID,
		OccurredAt:   d.OccurredAt,
		Scheduling:   d.Scheduling,
		Payment:      d.Payment,
		CancelReason: d.CancelReason,
		InitiatedBy:  d.InitiatedBy,
	}
}

// Decode parses a verified raw payload. All provider-schema variability lives
// here; downstream only ever sees the closed EventType set.
func Decode(p booking.Provider, deliveryID string, raw []byte) (*DecodedEvent, error) {
	switch p {
	case booking.ProviderScheduling:
		return decodeScheduling(deliveryID, raw)
	case booking.ProviderPayment:
		return decodePayment(raw)
	default:
		return nil, fmt.Errorf("decode: unknown provider %q", p)
	}
}

// schedulingPayload mirrors the invitee webhook shape: the event name at the
// top, then event/invitee/tracking blocks. The correlation token is the
// booking ID echoed back through the tracking (UTM) fields set on the
// scheduling link.
type schedulingPayload struct {
	Event   string `json:"event"`
	Payload struct {
		Event struct {
			UUID      string    `json:"uuid"`
			StartTime time.Time `json:"start_time"`
			EndTime   time.Time `json:"end_time"`
		} `json:"event"`
		Invitee struct {
			UUID  string `json:"uuid"`
			Email string `json:"email"`
		} `json:"invitee"`
		Tracking struct {
			UTMContent string `json:"utm_content"`
		} `json:"tracking"`
		Cancellation struct {
			Reason     string `json:"reason"`
			CanceledBy string `json:"canceled_by"`
		} `json:"cancellation"`
	} `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

func decodeScheduling(deliveryID string, raw []byte) (*DecodedEvent, error) {
	var p schedulingPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode scheduling payload: %w", err)
	}

	var typ booking.EventType
	switch p.Event {
	case "invitee.created":
		typ = booking.EventSchedulingConfirmed
	case "invitee.canceled":
		typ = booking.EventSchedulingCanceled
	case "invitee.rescheduled":
		typ = booking.EventSchedulingRescheduled
	default:
		return nil, fmt.Errorf("%w: scheduling %q", ErrUnknownEventType, p.Event)
	}

	ev := &DecodedEvent{
		Provider:   booking.ProviderScheduling,
		Type:       typ,
		EventName:  p.Event,
		DeliveryID: deliveryID,
		Token:      p.Payload.Tracking.UTMContent,
		Raw:        raw,
		OccurredAt: p.CreatedAt,
	}

	switch typ {
	case booking.EventSchedulingConfirmed, booking.EventSchedulingRescheduled:
		ev.Scheduling = &booking.SchedulingRef{
			ExternalEventID:   p.Payload.Event.UUID,
			ExternalInviteeID: p.Payload.Invitee.UUID,
			StartTime:         p.Payload.Event.StartTime,
			EndTime:           p.Payload.Event.EndTime,
		}
	case booking.EventSchedulingCanceled:
		ev.CancelReason = p.Payload.Cancellation.Reason
		ev.InitiatedBy = p.Payload.Cancellation.CanceledBy
	}

	return ev, nil
}

// paymentPayload mirrors the payment provider's envelope: a top-level event
// ID and type, with the affected object under data.object. The correlation
// token is metadata.booking_id, set at checkout-session creation.
type paymentPayload struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object struct {
			ID            string            `json:"id"`
			Session       string            `json:"checkout_session"`
			Charge        string            `json:"charge"`
			AmountTotal   int64             `json:"amount_total"`
			Currency      string            `json:"currency"`
			FailureReason string            `json:"failure_message"`
			RefundID      string            `json:"refund"`
			Metadata      map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

func decodePayment(raw []byte) (*DecodedEvent, error) {
	var p paymentPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode payment payload: %w", err)
	}
	if p.ID == "" {
		return nil, errors.New("decode payment payload: missing event id")
	}

	var typ booking.EventType
	switch p.Type {
	case "checkout.session.completed":
		typ = booking.EventPaymentSucceeded
	case "checkout.session.payment_failed", "charge.failed":
		typ = booking.EventPaymentFailed
	case "charge.refunded":
		typ = booking.EventPaymentRefunded
	default:
		return nil, fmt.Errorf("%w: payment %q", ErrUnknownEventType, p.Type)
	}

	obj := p.Data.Object
	detail := &booking.PaymentEventDetail{
		SessionID:     obj.Session,
		ChargeID:      obj.Charge,
		RefundID:      obj.RefundID,
		AmountMinor:   obj.AmountTotal,
		Currency:      obj.Currency,
		FailureReason: obj.FailureReason,
	}
	if detail.SessionID == "" && typ == booking.EventPaymentSucceeded {
		// On session events the object itself is the session.
		detail.SessionID = obj.ID
	}

	return &DecodedEvent{
		Provider:   booking.ProviderPayment,
		Type:       typ,
		EventName:  p.Type,
		DeliveryID: p.ID,
		Token:      obj.Metadata["booking_id"],
		Raw:        raw,
		OccurredAt: time.Unix(p.Created, 0),
		Payment:    detail,
	}, nil
}
