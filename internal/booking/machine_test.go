package booking

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeBooking(status Status) Booking {
	return Booking{
		ID:            uuid.New(),
		Status:        status,
		ClientID:      "client_1",
		BuilderID:     "builder_1",
		SessionTypeID: "intro-call-30",
		PriceMinor:    7500,
		Currency:      "usd",
		Version:       3,
	}
}

func makeSchedulingRef() *SchedulingRef {
	start := time.Date(2025, 6, 1, 15, 0, 0, 0, time.UTC)
	return &SchedulingRef{
		ExternalEventID:   "evt_cal_123",
		ExternalInviteeID: "inv_456",
		StartTime:         start,
		EndTime:           start.Add(30 * time.Minute),
	}
}

func commandTypes(cmds []Command) []CommandType {
	types := make([]CommandType, 0, len(cmds))
	for _, c := range cmds {
		types = append(types, c.Type)
	}
	return types
}

func TestTransition_SchedulingConfirmed_MovesToPendingPayment(t *testing.T) {
	b := makeBooking(StatusPendingScheduling)
	ev := NormalizedEvent{
		Type:       EventSchedulingConfirmed,
		BookingID:  b.ID,
		Scheduling: makeSchedulingRef(),
	}

	out := Transition(b, ev)

	require.True(t, out.Changed)
	assert.Equal(t, StatusPendingPayment, out.Next.Status)
	require.NotNil(t, out.Next.SchedulingRef)
	assert.Equal(t, "evt_cal_123", out.Next.SchedulingRef.ExternalEventID)
	assert.Equal(t, []CommandType{CmdCreateCheckoutSession}, commandTypes(out.Commands))
}

func TestTransition_SchedulingCanceled_FromPendingScheduling(t *testing.T) {
	b := makeBooking(StatusPendingScheduling)
	ev := NormalizedEvent{
		Type:         EventSchedulingCanceled,
		Provider:     ProviderScheduling,
		BookingID:    b.ID,
		CancelReason: "changed my mind",
		InitiatedBy:  "invitee",
	}

	out := Transition(b, ev)

	require.True(t, out.Changed)
	assert.Equal(t, StatusCanceled, out.Next.Status)
	require.NotNil(t, out.Next.Cancellation)
	assert.Equal(t, "changed my mind", out.Next.Cancellation.Reason)
	assert.Equal(t, "invitee", out.Next.Cancellation.InitiatedBy)
	assert.False(t, out.Next.Cancellation.RefundIssued)
	assert.Empty(t, out.Commands)
}

func TestTransition_PaymentSucceeded_Confirms(t *testing.T) {
	b := makeBooking(StatusPendingPayment)
	b.SchedulingRef = makeSchedulingRef()
	b.PaymentRef = &PaymentRef{ExternalSessionID: "cs_1", PaymentStatus: "requires_payment"}

	ev := NormalizedEvent{
		Type:      EventPaymentSucceeded,
		BookingID: b.ID,
		Payment: &PaymentEventDetail{
			SessionID:   "cs_1",
			ChargeID:    "ch_42",
			AmountMinor: 7500,
			Currency:    "usd",
		},
	}

	out := Transition(b, ev)

	require.True(t, out.Changed)
	assert.Equal(t, StatusConfirmed, out.Next.Status)
	require.NotNil(t, out.Next.PaymentRef)
	assert.Equal(t, "ch_42", out.Next.PaymentRef.ExternalChargeID)
	assert.Equal(t, "cs_1", out.Next.PaymentRef.ExternalSessionID)
	assert.Equal(t, "succeeded", out.Next.PaymentRef.PaymentStatus)
	assert.Equal(t, []CommandType{CmdSendConfirmation}, commandTypes(out.Commands))
}

func TestTransition_PaymentFailed_StaysPendingPayment(t *testing.T) {
	b := makeBooking(StatusPendingPayment)
	ev := NormalizedEvent{
		Type:      EventPaymentFailed,
		BookingID: b.ID,
		Payment:   &PaymentEventDetail{FailureReason: "card_declined"},
	}

	out := Transition(b, ev)

	assert.False(t, out.Changed)
	assert.Equal(t, StatusPendingPayment, out.Next.Status)
	require.Len(t, out.Commands, 1)
	assert.Equal(t, CmdNotifyPaymentFailed, out.Commands[0].Type)
	assert.Equal(t, "card_declined", out.Commands[0].Reason)
}

func TestTransition_SchedulingCanceled_FromPendingPayment_VoidsOpenSession(t *testing.T) {
	b := makeBooking(StatusPendingPayment)
	b.PaymentRef = &PaymentRef{ExternalSessionID: "cs_open", PaymentStatus: "requires_payment"}

	ev := NormalizedEvent{Type: EventSchedulingCanceled, Provider: ProviderScheduling, BookingID: b.ID}
	out := Transition(b, ev)

	require.True(t, out.Changed)
	assert.Equal(t, StatusCanceled, out.Next.Status)
	require.Len(t, out.Commands, 1)
	assert.Equal(t, CmdVoidCheckoutSession, out.Commands[0].Type)
	assert.Equal(t, "cs_open", out.Commands[0].SessionID)
}

func TestTransition_SchedulingCanceled_FromConfirmed_IssuesRefundOnce(t *testing.T) {
	b := makeBooking(StatusConfirmed)
	b.PaymentRef = &PaymentRef{
		ExternalSessionID: "cs_1",
		ExternalChargeID:  "ch_42",
		AmountMinor:       7500,
		Currency:          "usd",
		PaymentStatus:     "succeeded",
	}

	ev := NormalizedEvent{Type: EventSchedulingCanceled, Provider: ProviderScheduling, BookingID: b.ID}
	out := Transition(b, ev)

	require.True(t, out.Changed)
	assert.Equal(t, StatusCanceled, out.Next.Status)
	require.NotNil(t, out.Next.Cancellation)
	assert.True(t, out.Next.Cancellation.RefundIssued)
	require.Len(t, out.Commands, 1)
	assert.Equal(t, CmdIssueRefund, out.Commands[0].Type)
	assert.Equal(t, "ch_42", out.Commands[0].ChargeID)
}

func TestTransition_SchedulingCanceled_FromConfirmed_NoChargeNoRefund(t *testing.T) {
	b := makeBooking(StatusConfirmed)

	ev := NormalizedEvent{Type: EventSchedulingCanceled, Provider: ProviderScheduling, BookingID: b.ID}
	out := Transition(b, ev)

	require.True(t, out.Changed)
	assert.Equal(t, StatusCanceled, out.Next.Status)
	assert.Empty(t, out.Commands)
	require.NotNil(t, out.Next.Cancellation)
	assert.False(t, out.Next.Cancellation.RefundIssued)
}

func TestTransition_PaymentRefunded_FromConfirmed(t *testing.T) {
	b := makeBooking(StatusConfirmed)
	b.PaymentRef = &PaymentRef{ExternalChargeID: "ch_42", PaymentStatus: "succeeded"}

	ev := NormalizedEvent{Type: EventPaymentRefunded, BookingID: b.ID}
	out := Transition(b, ev)

	require.True(t, out.Changed)
	assert.Equal(t, StatusRefunded, out.Next.Status)
	assert.Equal(t, "refunded", out.Next.PaymentRef.PaymentStatus)
	assert.Equal(t, []CommandType{CmdSendRefundNotice}, commandTypes(out.Commands))
}

func TestTransition_Rescheduled_ReplacesTimesOnly(t *testing.T) {
	b := makeBooking(StatusPendingPayment)
	b.SchedulingRef = makeSchedulingRef()

	newStart := time.Date(2025, 6, 8, 10, 0, 0, 0, time.UTC)
	ev := NormalizedEvent{
		Type:      EventSchedulingRescheduled,
		BookingID: b.ID,
		Scheduling: &SchedulingRef{
			ExternalEventID: "evt_cal_other",
			StartTime:       newStart,
			EndTime:         newStart.Add(30 * time.Minute),
		},
	}

	out := Transition(b, ev)

	require.True(t, out.Changed)
	assert.Equal(t, StatusPendingPayment, out.Next.Status)
	assert.Equal(t, newStart, out.Next.SchedulingRef.StartTime)
	// Event and invitee identity are immutable once set.
	assert.Equal(t, "evt_cal_123", out.Next.SchedulingRef.ExternalEventID)
	assert.Equal(t, "inv_456", out.Next.SchedulingRef.ExternalInviteeID)
	assert.Empty(t, out.Commands)
}

func TestTransition_Rescheduled_WithoutRefIsIgnored(t *testing.T) {
	b := makeBooking(StatusPendingScheduling)

	ev := NormalizedEvent{Type: EventSchedulingRescheduled, BookingID: b.ID, Scheduling: makeSchedulingRef()}
	out := Transition(b, ev)

	assert.False(t, out.Changed)
	require.Len(t, out.Commands, 1)
	assert.Equal(t, CmdLogIgnoredTransition, out.Commands[0].Type)
}

func allEvents() []EventType {
	return []EventType{
		EventSchedulingConfirmed,
		EventSchedulingCanceled,
		EventSchedulingRescheduled,
		EventPaymentSucceeded,
		EventPaymentFailed,
		EventPaymentRefunded,
	}
}

func TestTransition_TerminalStatesAbsorbEverything(t *testing.T) {
	for _, status := range []Status{StatusCanceled, StatusRefunded, StatusFailed} {
		for _, evType := range allEvents() {
			b := makeBooking(status)
			b.PaymentRef = &PaymentRef{ExternalChargeID: "ch_42"}
			b.SchedulingRef = makeSchedulingRef()

			out := Transition(b, NormalizedEvent{Type: evType, BookingID: b.ID, Scheduling: makeSchedulingRef()})

			assert.False(t, out.Changed, "%s + %s must not change", status, evType)
			assert.Equal(t, status, out.Next.Status, "%s + %s must stay put", status, evType)
			require.Len(t, out.Commands, 1, "%s + %s", status, evType)
			assert.Equal(t, CmdLogIgnoredTransition, out.Commands[0].Type)
		}
	}
}

// A late payment.succeeded after a cancellation-triggered refund must not
// re-confirm the booking.
func TestTransition_LatePaymentCannotResurrectCanceledBooking(t *testing.T) {
	b := makeBooking(StatusCanceled)
	b.Cancellation = &Cancellation{Reason: "builder unavailable", InitiatedBy: "builder", RefundIssued: true}

	out := Transition(b, NormalizedEvent{
		Type:    EventPaymentSucceeded,
		Payment: &PaymentEventDetail{ChargeID: "ch_late"},
	})

	assert.False(t, out.Changed)
	assert.Equal(t, StatusCanceled, out.Next.Status)
	assert.Nil(t, out.Next.PaymentRef)
}

// Every (status, event) pair has a defined outcome; nothing panics, and the
// result either moves along the table or degrades to a logged no-op.
func TestTransition_TableIsTotal(t *testing.T) {
	statuses := []Status{
		StatusPendingScheduling, StatusPendingPayment, StatusConfirmed,
		StatusCanceled, StatusRefunded, StatusFailed,
	}
	for _, status := range statuses {
		for _, evType := range allEvents() {
			b := makeBooking(status)
			out := Transition(b, NormalizedEvent{Type: evType, BookingID: b.ID, Scheduling: makeSchedulingRef()})
			assert.NotEmpty(t, out.Next.Status, "%s + %s", status, evType)
		}
	}
}

// Replaying an event against the state it produced is a safe no-op.
func TestTransition_ReplayAgainstResultIsNoOp(t *testing.T) {
	b := makeBooking(StatusPendingScheduling)
	ev := NormalizedEvent{Type: EventSchedulingConfirmed, BookingID: b.ID, Scheduling: makeSchedulingRef()}

	first := Transition(b, ev)
	require.True(t, first.Changed)

	second := Transition(first.Next, ev)
	assert.False(t, second.Changed)
	assert.Equal(t, first.Next.Status, second.Next.Status)
	require.Len(t, second.Commands, 1)
	assert.Equal(t, CmdLogIgnoredTransition, second.Commands[0].Type)
}

func TestTransition_DoesNotMutateInput(t *testing.T) {
	b := makeBooking(StatusPendingPayment)
	b.SchedulingRef = makeSchedulingRef()
	origStart := b.SchedulingRef.StartTime

	newStart := origStart.Add(48 * time.Hour)
	ev := NormalizedEvent{
		Type:       EventSchedulingRescheduled,
		Scheduling: &SchedulingRef{StartTime: newStart, EndTime: newStart.Add(time.Hour)},
	}
	out := Transition(b, ev)

	require.True(t, out.Changed)
	assert.Equal(t, origStart, b.SchedulingRef.StartTime, "input booking must stay untouched")
	assert.Equal(t, newStart, out.Next.SchedulingRef.StartTime)
}
