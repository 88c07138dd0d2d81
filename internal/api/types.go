package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/sessionlab/booking-engine/internal/booking"
)

type CreateBookingRequest struct {
	ClientID      string `json:"client_id"`
	BuilderID     string `json:"builder_id"`
	SessionTypeID string `json:"session_type_id"`
	PriceMinor    int64  `json:"price_minor"`
	Currency      string `json:"currency"`
	InviteeEmail  string `json:"invitee_email"`
}

type CancelBookingRequest struct {
	Reason      string `json:"reason"`
	InitiatedBy string `json:"initiated_by"`
}

type SchedulingRefResponse struct {
	EventID   string    `json:"event_id"`
	InviteeID string    `json:"invitee_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

type PaymentRefResponse struct {
	SessionID   string `json:"session_id,omitempty"`
	ChargeID    string `json:"charge_id,omitempty"`
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
	Status      string `json:"status"`
}

type CancellationResponse struct {
	Reason       string `json:"reason"`
	InitiatedBy  string `json:"initiated_by"`
	RefundIssued bool   `json:"refund_issued"`
}

type BookingResponse struct {
	ID            uuid.UUID              `json:"id"`
	Status        string                 `json:"status"`
	ClientID      string                 `json:"client_id"`
	BuilderID     string                 `json:"builder_id"`
	SessionTypeID string                 `json:"session_type_id"`
	PriceMinor    int64                  `json:"price_minor"`
	Currency      string                 `json:"currency"`
	Scheduling    *SchedulingRefResponse `json:"scheduling,omitempty"`
	Payment       *PaymentRefResponse    `json:"payment,omitempty"`
	Cancellation  *CancellationResponse  `json:"cancellation,omitempty"`
	Version       int64                  `json:"version"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

type CreateBookingResponse struct {
	Booking       BookingResponse `json:"booking"`
	SchedulingURL string          `json:"scheduling_url"`
}

type TransitionResponse struct {
	FromStatus string    `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status"`
	EventType  string    `json:"event_type"`
	DeliveryID string    `json:"delivery_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type WebhookAck struct {
	Status  string `json:"status"`
	Outcome string `json:"outcome,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toBookingResponse(b *booking.Booking) BookingResponse {
	resp := BookingResponse{
		ID:            b.ID,
		Status:        string(b.Status),
		ClientID:      b.ClientID,
		BuilderID:     b.BuilderID,
		SessionTypeID: b.SessionTypeID,
		PriceMinor:    b.PriceMinor,
		Currency:      b.Currency,
		Version:       b.Version,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
	if b.SchedulingRef != nil {
		resp.Scheduling = &SchedulingRefResponse{
			EventID:   b.SchedulingRef.ExternalEventID,
			InviteeID: b.SchedulingRef.ExternalInviteeID,
			StartTime: b.SchedulingRef.StartTime,
			EndTime:   b.SchedulingRef.EndTime,
		}
	}
	if b.PaymentRef != nil {
		resp.Payment = &PaymentRefResponse{
			SessionID:   b.PaymentRef.ExternalSessionID,
			ChargeID:    b.PaymentRef.ExternalChargeID,
			AmountMinor: b.PaymentRef.AmountMinor,
			Currency:    b.PaymentRef.Currency,
			Status:      b.PaymentRef.PaymentStatus,
		}
	}
	if b.Cancellation != nil {
		resp.Cancellation = &CancellationResponse{
			Reason:       b.Cancellation.Reason,
			InitiatedBy:  b.Cancellation.InitiatedBy,
			RefundIssued: b.Cancellation.RefundIssued,
		}
	}
	return resp
}
