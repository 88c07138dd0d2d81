package reconcile

import (
	"context"
	"log"

	"github.com/sessionlab/booking-engine/internal/booking"
)

// LogNotifier writes notifications to the log. The real notification channel
// (email, push) is an external sink; this keeps the command path exercised
// without one.
type LogNotifier struct{}

func (LogNotifier) SendConfirmation(_ context.Context, b *booking.Booking) error {
	log.Printf("notify: booking confirmed booking_id=%s client_id=%s", b.ID, b.ClientID)
	return nil
}

func (LogNotifier) NotifyPaymentFailed(_ context.Context, b *booking.Booking, reason string) error {
	log.Printf("notify: payment failed booking_id=%s client_id=%s reason=%q", b.ID, b.ClientID, reason)
	return nil
}

func (LogNotifier) SendRefundNotice(_ context.Context, b *booking.Booking) error {
	log.Printf("notify: refund issued booking_id=%s client_id=%s", b.ID, b.ClientID)
	return nil
}
