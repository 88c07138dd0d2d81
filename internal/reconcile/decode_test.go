package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sessionlab/booking-engine/internal/booking"
)

const inviteeCreatedPayload = `{
	"event": "invitee.created",
	"created_at": "2025-05-01T12:00:00Z",
	"payload": {
		"event": {
			"uuid": "evt_cal_123",
			"start_time": "2025-06-01T15:00:00Z",
			"end_time": "2025-06-01T15:30:00Z"
		},
		"invitee": {"uuid": "inv_456", "email": "client@example.com"},
		"tracking": {"utm_content": "7b8e31a0-0c6e-4b11-bb18-6a1a1db9b001"}
	}
}`

func TestDecode_SchedulingInviteeCreated(t *testing.T) {
	dec, err := Decode(booking.ProviderScheduling, "msg_1", []byte(inviteeCreatedPayload))

	require.NoError(t, err)
	assert.Equal(t, booking.EventSchedulingConfirmed, dec.Type)
	assert.Equal(t, "msg_1", dec.DeliveryID)
	assert.Equal(t, "7b8e31a0-0c6e-4b11-bb18-6a1a1db9b001", dec.Token)
	require.NotNil(t, dec.Scheduling)
	assert.Equal(t, "evt_cal_123", dec.Scheduling.ExternalEventID)
	assert.Equal(t, "inv_456", dec.Scheduling.ExternalInviteeID)
	assert.Equal(t, time.Date(2025, 6, 1, 15, 0, 0, 0, time.UTC), dec.Scheduling.StartTime)
}

func TestDecode_SchedulingInviteeCanceled(t *testing.T) {
	payload := `{
		"event": "invitee.canceled",
		"payload": {
			"tracking": {"utm_content": "7b8e31a0-0c6e-4b11-bb18-6a1a1db9b001"},
			"cancellation": {"reason": "conflict came up", "canceled_by": "invitee"}
		}
	}`

	dec, err := Decode(booking.ProviderScheduling, "msg_2", []byte(payload))

	require.NoError(t, err)
	assert.Equal(t, booking.EventSchedulingCanceled, dec.Type)
	assert.Equal(t, "conflict came up", dec.CancelReason)
	assert.Equal(t, "invitee", dec.InitiatedBy)
	assert.Nil(t, dec.Scheduling)
}

func TestDecode_SchedulingUnknownEvent(t *testing.T) {
	_, err := Decode(booking.ProviderScheduling, "msg_3", []byte(`{"event":"routing_form.submitted"}`))
	assert.ErrorIs(t, err, ErrUnknownEventType)
}

func TestDecode_PaymentCheckoutCompleted(t *testing.T) {
	payload := `{
		"id": "evt_pay_1",
		"type": "checkout.session.completed",
		"created": 1746100800,
		"data": {"object": {
			"id": "cs_123",
			"charge": "ch_42",
			"amount_total": 7500,
			"currency": "usd",
			"metadata": {"booking_id": "7b8e31a0-0c6e-4b11-bb18-6a1a1db9b001"}
		}}
	}`

	dec, err := Decode(booking.ProviderPayment, "", []byte(payload))

	require.NoError(t, err)
	assert.Equal(t, booking.EventPaymentSucceeded, dec.Type)
	// The payment delivery ID rides in the payload, not a header.
	assert.Equal(t, "evt_pay_1", dec.DeliveryID)
	assert.Equal(t, "7b8e31a0-0c6e-4b11-bb18-6a1a1db9b001", dec.Token)
	require.NotNil(t, dec.Payment)
	assert.Equal(t, "ch_42", dec.Payment.ChargeID)
	assert.Equal(t, "cs_123", dec.Payment.SessionID)
	assert.Equal(t, int64(7500), dec.Payment.AmountMinor)
}

func TestDecode_PaymentChargeFailed(t *testing.T) {
	payload := `{
		"id": "evt_pay_2",
		"type": "charge.failed",
		"data": {"object": {
			"id": "ch_43",
			"failure_message": "insufficient funds",
			"metadata": {"booking_id": "7b8e31a0-0c6e-4b11-bb18-6a1a1db9b001"}
		}}
	}`

	dec, err := Decode(booking.ProviderPayment, "", []byte(payload))

	require.NoError(t, err)
	assert.Equal(t, booking.EventPaymentFailed, dec.Type)
	assert.Equal(t, "insufficient funds", dec.Payment.FailureReason)
}

func TestDecode_PaymentMissingEventID(t *testing.T) {
	_, err := Decode(booking.ProviderPayment, "", []byte(`{"type":"charge.refunded"}`))
	assert.Error(t, err)
}

func TestDecode_PaymentMissingMetadataLeavesTokenEmpty(t *testing.T) {
	payload := `{
		"id": "evt_pay_4",
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_999"}}
	}`

	dec, err := Decode(booking.ProviderPayment, "", []byte(payload))

	require.NoError(t, err)
	assert.Empty(t, dec.Token)
}

func TestDecode_MalformedJSON(t *testing.T) {
	_, err := Decode(booking.ProviderScheduling, "msg_x", []byte(`{nope`))
	assert.Error(t, err)
	_, err = Decode(booking.ProviderPayment, "", []byte(`{nope`))
	assert.Error(t, err)
}
