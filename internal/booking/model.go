package booking

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPendingScheduling Status = "pending_scheduling"
	StatusPendingPayment    Status = "pending_payment"
	StatusConfirmed         Status = "confirmed"
	StatusCanceled          Status = "canceled"
	StatusRefunded          Status = "refunded"
	StatusFailed            Status = "failed"
)

// IsTerminal reports whether no further transition is permitted out of s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCanceled, StatusRefunded, StatusFailed:
		return true
	}
	return false
}

// SchedulingRef is the slot the scheduling provider confirmed. Immutable once
// set, except that a reschedule replaces StartTime/EndTime.
type SchedulingRef struct {
	ExternalEventID   string
	ExternalInviteeID string
	StartTime         time.Time
	EndTime           time.Time
}

type PaymentRef struct {
	ExternalSessionID string
	ExternalChargeID  string
	AmountMinor       int64
	Currency          string
	PaymentStatus     string
}

type Cancellation struct {
	Reason       string
	InitiatedBy  string
	RefundIssued bool
}

// Booking is the aggregate root. Version increases on every persisted
// transition and guards concurrent writers (optimistic concurrency).
type Booking struct {
	ID            uuid.UUID
	Status        Status
	ClientID      string
	BuilderID     string
	SessionTypeID string
	PriceMinor    int64
	Currency      string
	SchedulingRef *SchedulingRef
	PaymentRef    *PaymentRef
	Cancellation  *Cancellation
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TransitionRecord is one row of the booking's state-transition history.
type TransitionRecord struct {
	ID         int64
	BookingID  uuid.UUID
	FromStatus Status
	ToStatus   Status
	EventType  string
	DeliveryID string
	CreatedAt  time.Time
}
