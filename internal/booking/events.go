package booking

import (
	"time"

	"github.com/google/uuid"
)

type Provider string

const (
	ProviderScheduling Provider = "scheduling"
	ProviderPayment    Provider = "payment"
)

// EventType is the closed set of normalized event names the state machine
// understands. Provider-specific event names are mapped onto these during
// decoding; anything unmappable never reaches the machine.
type EventType string

const (
	EventSchedulingConfirmed   EventType = "scheduling.confirmed"
	EventSchedulingCanceled    EventType = "scheduling.canceled"
	EventSchedulingRescheduled EventType = "scheduling.rescheduled"
	EventPaymentSucceeded      EventType = "payment.succeeded"
	EventPaymentFailed         EventType = "payment.failed"
	EventPaymentRefunded       EventType = "payment.refunded"
)

// NormalizedEvent is a verified, decoded, correlated webhook event.
type NormalizedEvent struct {
	DeliveryID string
	Provider   Provider
	Type       EventType
	BookingID  uuid.UUID
	OccurredAt time.Time

	// Populated for scheduling.confirmed / scheduling.rescheduled.
	Scheduling *SchedulingRef

	// Populated for payment events.
	Payment *PaymentEventDetail

	// Populated for scheduling.canceled.
	CancelReason string
	InitiatedBy  string
}

type PaymentEventDetail struct {
	SessionID     string
	ChargeID      string
	RefundID      string
	AmountMinor   int64
	Currency      string
	FailureReason string
}
