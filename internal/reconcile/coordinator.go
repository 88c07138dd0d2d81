package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/sessionlab/booking-engine/internal/booking"
	"github.com/sessionlab/booking-engine/internal/correlate"
	"github.com/sessionlab/booking-engine/internal/ledger"
	"github.com/sessionlab/booking-engine/internal/provider"
	"github.com/sessionlab/booking-engine/internal/provider/payment"
	redisclient "github.com/sessionlab/booking-engine/internal/redis"
	"github.com/sessionlab/booking-engine/internal/webhook"
)

var (
	ErrBookingFinal = errors.New("booking already in terminal state")
)

// PaymentOrchestrator is the slice of the payment client the coordinator
// drives. Implementations own the call shape but never write booking state.
type PaymentOrchestrator interface {
	CreateCheckoutSession(ctx context.Context, bookingID uuid.UUID, amountMinor int64, currency string) (*payment.CheckoutSession, error)
	CreateRefund(ctx context.Context, bookingID uuid.UUID, chargeID string, amountMinor int64) (*payment.Refund, error)
	VoidCheckoutSession(ctx context.Context, bookingID uuid.UUID, sessionID string) error
}

type SchedulingOrchestrator interface {
	CancelEvent(ctx context.Context, externalEventID, reason string) error
}

// Notifier is the outbound notification sink. Notification failures are
// logged, never allowed to block or fail a state transition.
type Notifier interface {
	SendConfirmation(ctx context.Context, b *booking.Booking) error
	NotifyPaymentFailed(ctx context.Context, b *booking.Booking, reason string) error
	SendRefundNotice(ctx context.Context, b *booking.Booking) error
}

// RefundPolicy decides how much of the charge to give back on cancellation.
// Returning 0 means a full refund. Injected because the cancellation policy
// (full vs partial) is business configuration, not engine logic.
type RefundPolicy func(b *booking.Booking) int64

func FullRefund(*booking.Booking) int64 { return 0 }

func PercentRefund(percent int) RefundPolicy {
	return func(b *booking.Booking) int64 {
		if percent >= 100 {
			return 0
		}
		if b.PaymentRef == nil {
			return 0
		}
		return b.PaymentRef.AmountMinor * int64(percent) / 100
	}
}

// Result tells the HTTP layer how to answer the provider.
type Result struct {
	Outcome      ledger.Outcome
	BookingID    uuid.UUID
	Duplicate    bool // already handled, answered with the prior outcome
	Skipped      bool // unmapped event name, acknowledged without processing
	DeadLettered bool
	Retryable    bool // respond non-2xx so the provider retries
}

// Coordinator is the entry point for every inbound webhook and the only
// component that persists booking state.
type Coordinator struct {
	bookings    booking.Repository
	ledger      ledger.Repository
	resolver    *correlate.Resolver
	deadLetters correlate.DeadLetterStore
	payments    PaymentOrchestrator
	scheduling  SchedulingOrchestrator
	notifier    Notifier
	claimer     redisclient.Claimer
	refund      RefundPolicy

	pendingGrace time.Duration
	maxRetries   int
}

type Params struct {
	Bookings     booking.Repository
	Ledger       ledger.Repository
	Resolver     *correlate.Resolver
	DeadLetters  correlate.DeadLetterStore
	Payments     PaymentOrchestrator
	Scheduling   SchedulingOrchestrator
	Notifier     Notifier
	Claimer      redisclient.Claimer
	RefundPolicy RefundPolicy
	PendingGrace time.Duration
	MaxRetries   int
}

func NewCoordinator(p Params) *Coordinator {
	if p.RefundPolicy == nil {
		p.RefundPolicy = FullRefund
	}
	if p.MaxRetries <= 0 {
		p.MaxRetries = 5
	}
	if p.Notifier == nil {
		p.Notifier = LogNotifier{}
	}
	return &Coordinator{
		bookings:     p.Bookings,
		ledger:       p.Ledger,
		resolver:     p.Resolver,
		deadLetters:  p.DeadLetters,
		payments:     p.Payments,
		scheduling:   p.Scheduling,
		notifier:     p.Notifier,
		claimer:      p.Claimer,
		refund:       p.RefundPolicy,
		pendingGrace: p.PendingGrace,
		maxRetries:   p.MaxRetries,
	}
}

// HandleWebhook runs a verified delivery through decode, dedup, correlation,
// the state machine, command execution and the versioned write.
func (c *Coordinator) HandleWebhook(ctx context.Context, ve *webhook.VerifiedEvent) (Result, error) {
	dec, err := Decode(ve.Provider, ve.DeliveryID, ve.RawPayload)
	if err != nil {
		if errors.Is(err, ErrUnknownEventType) {
			log.Printf("skipping unmapped webhook event provider=%s: %v", ve.Provider, err)
			return Result{Skipped: true}, nil
		}
		return Result{}, err
	}
	if dec.DeliveryID == "" {
		return Result{}, fmt.Errorf("webhook delivery has no delivery id (provider=%s event=%s)", dec.Provider, dec.EventName)
	}

	var res Result
	claimErr := c.claimer.WithDeliveryClaim(ctx, dec.DeliveryID, func(ctx context.Context) error {
		var perr error
		res, perr = c.process(ctx, dec)
		return perr
	})
	if claimErr != nil {
		if errors.Is(claimErr, redisclient.ErrClaimHeld) {
			// A concurrent worker holds this exact delivery; from the
			// provider's perspective it is already being handled.
			return Result{Duplicate: true, Outcome: ledger.OutcomeIgnoredDuplicate}, nil
		}
		return res, claimErr
	}
	return res, nil
}

func (c *Coordinator) process(ctx context.Context, dec *DecodedEvent) (Result, error) {
	begin, err := c.ledger.BeginProcessing(ctx, ledger.Delivery{
		DeliveryID: dec.DeliveryID,
		Provider:   dec.Provider,
		EventType:  string(dec.Type),
		Payload:    dec.rawForLedger(),
	}, c.pendingGrace)
	if err != nil {
		return Result{Retryable: true}, fmt.Errorf("begin processing %s: %w", dec.DeliveryID, err)
	}
	if !begin.Proceed {
		return Result{Duplicate: true, Outcome: begin.Prior}, nil
	}

	return c.resolveAndApply(ctx, dec)
}

// resolveAndApply is steps 4-9, entered once the caller holds the delivery.
func (c *Coordinator) resolveAndApply(ctx context.Context, dec *DecodedEvent) (Result, error) {
	b, err := c.resolver.Resolve(ctx, dec.Token)
	if err != nil {
		if errors.Is(err, correlate.ErrUnresolvable) {
			return c.deadLetter(ctx, dec, err.Error()), nil
		}
		c.commit(ctx, dec.DeliveryID, ledger.OutcomeError)
		return Result{Retryable: true}, fmt.Errorf("resolve correlation: %w", err)
	}

	ev := dec.normalized(b.ID)
	return c.applyWithRetry(ctx, b, ev, dec)
}

// applyWithRetry is steps 5-9: compute the transition, execute its commands,
// persist under the version guard, and retry the whole computation from a
// fresh load when a concurrent writer wins the race.
func (c *Coordinator) applyWithRetry(ctx context.Context, b *booking.Booking, ev booking.NormalizedEvent, dec *DecodedEvent) (Result, error) {
	deliveryID := ""
	if dec != nil {
		deliveryID = dec.DeliveryID
	}

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		out := booking.Transition(*b, ev)
		next := out.Next
		fatal := false

		if err := c.execute(ctx, b, &next, out.Commands); err != nil {
			pe := provider.AsError(ev.Provider, err)
			if pe.Retryable() {
				// Abort without persisting: the provider's retry (or the
				// ledger sweep) re-attempts cleanly from the current state.
				c.commit(ctx, deliveryID, ledger.OutcomeError)
				return Result{Retryable: true, Outcome: ledger.OutcomeError, BookingID: b.ID},
					fmt.Errorf("command execution: %w", pe)
			}
			// Fatal provider error: the failure itself is the terminal
			// outcome for this booking.
			log.Printf("fatal provider error booking_id=%s: %v", b.ID, pe)
			next = *b
			next.Status = booking.StatusFailed
			out.Changed = true
			fatal = true
		}

		if out.Changed {
			updated, err := c.bookings.UpdateBookingVersioned(ctx, &next, b.Version)
			if err != nil {
				if errors.Is(err, booking.ErrVersionConflict) {
					reloaded, lerr := c.bookings.GetBookingByID(ctx, b.ID)
					if lerr != nil {
						c.commit(ctx, deliveryID, ledger.OutcomeError)
						return Result{Retryable: true}, fmt.Errorf("reload after conflict: %w", lerr)
					}
					b = reloaded
					continue
				}
				c.commit(ctx, deliveryID, ledger.OutcomeError)
				return Result{Retryable: true}, fmt.Errorf("persist booking %s: %w", b.ID, err)
			}

			rec := booking.TransitionRecord{
				BookingID:  b.ID,
				FromStatus: b.Status,
				ToStatus:   updated.Status,
				EventType:  string(ev.Type),
				DeliveryID: deliveryID,
			}
			if fatal {
				rec.EventType = string(ev.Type) + ":fatal_provider_error"
			}
			if err := c.bookings.InsertTransition(ctx, rec); err != nil {
				log.Printf("failed to record transition for booking %s: %v", b.ID, err)
			}
		}

		c.commit(ctx, deliveryID, ledger.OutcomeApplied)
		return Result{Outcome: ledger.OutcomeApplied, BookingID: b.ID}, nil
	}

	// Two providers fighting over one booking should settle well inside the
	// retry budget; past it, a human looks.
	if dec != nil {
		if err := c.deadLetters.Insert(ctx, correlate.DeadLetter{
			Provider:   dec.Provider,
			EventType:  dec.EventName,
			DeliveryID: dec.DeliveryID,
			Payload:    dec.rawForLedger(),
			Reason:     fmt.Sprintf("version conflict retries exhausted for booking %s", b.ID),
		}); err != nil {
			log.Printf("dead-letter insert failed delivery_id=%s: %v", dec.DeliveryID, err)
		}
	}
	c.commit(ctx, deliveryID, ledger.OutcomeError)
	return Result{DeadLettered: true, Outcome: ledger.OutcomeError, BookingID: b.ID}, nil
}

// execute runs the machine's commands. It may enrich next with command output
// (checkout session ref); it never touches the store.
func (c *Coordinator) execute(ctx context.Context, prev *booking.Booking, next *booking.Booking, cmds []booking.Command) error {
	for _, cmd := range cmds {
		switch cmd.Type {
		case booking.CmdCreateCheckoutSession:
			sess, err := c.payments.CreateCheckoutSession(ctx, next.ID, next.PriceMinor, next.Currency)
			if err != nil {
				return err
			}
			next.PaymentRef = &booking.PaymentRef{
				ExternalSessionID: sess.SessionID,
				AmountMinor:       next.PriceMinor,
				Currency:          next.Currency,
				PaymentStatus:     "requires_payment",
			}

		case booking.CmdVoidCheckoutSession:
			if err := c.payments.VoidCheckoutSession(ctx, next.ID, cmd.SessionID); err != nil {
				pe := provider.AsError(booking.ProviderPayment, err)
				if pe.Kind == provider.KindInvalidRequest {
					// Session already completed or expired; nothing to void.
					log.Printf("void skipped, session %s not open: %v", cmd.SessionID, pe)
					continue
				}
				return err
			}

		case booking.CmdIssueRefund:
			amount := c.refund(prev)
			ref, err := c.payments.CreateRefund(ctx, next.ID, cmd.ChargeID, amount)
			if err != nil {
				return err
			}
			log.Printf("refund issued booking_id=%s charge_id=%s refund_id=%s amount=%d",
				next.ID, cmd.ChargeID, ref.RefundID, amount)
			if next.PaymentRef != nil {
				pay := *next.PaymentRef
				pay.PaymentStatus = "refund_pending"
				next.PaymentRef = &pay
			}

		case booking.CmdSendConfirmation:
			if err := c.notifier.SendConfirmation(ctx, next); err != nil {
				log.Printf("send confirmation failed booking_id=%s: %v", next.ID, err)
			}

		case booking.CmdNotifyPaymentFailed:
			if err := c.notifier.NotifyPaymentFailed(ctx, next, cmd.Reason); err != nil {
				log.Printf("payment-failed notice failed booking_id=%s: %v", next.ID, err)
			}

		case booking.CmdSendRefundNotice:
			if err := c.notifier.SendRefundNotice(ctx, next); err != nil {
				log.Printf("refund notice failed booking_id=%s: %v", next.ID, err)
			}

		case booking.CmdLogIgnoredTransition:
			log.Printf("ignored transition booking_id=%s status=%s: %s", next.ID, next.Status, cmd.Reason)
		}
	}
	return nil
}

// CancelBooking is the operator/client-initiated cancellation path. When a
// calendar event exists the cancel goes through the scheduling provider and
// the resulting webhook drives the state change; otherwise the transition is
// applied directly.
func (c *Coordinator) CancelBooking(ctx context.Context, id uuid.UUID, reason, initiatedBy string) (*booking.Booking, error) {
	b, err := c.bookings.GetBookingByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status.IsTerminal() {
		return nil, ErrBookingFinal
	}

	if b.SchedulingRef != nil && b.SchedulingRef.ExternalEventID != "" {
		if err := c.scheduling.CancelEvent(ctx, b.SchedulingRef.ExternalEventID, reason); err != nil {
			return nil, provider.AsError(booking.ProviderScheduling, err)
		}
		// The provider confirms with an invitee.canceled webhook; state
		// changes there, not here.
		return b, nil
	}

	ev := booking.NormalizedEvent{
		Provider:     booking.ProviderScheduling,
		Type:         booking.EventSchedulingCanceled,
		BookingID:    b.ID,
		CancelReason: reason,
		InitiatedBy:  initiatedBy,
	}
	res, err := c.applyWithRetry(ctx, b, ev, nil)
	if err != nil {
		return nil, err
	}
	if res.DeadLettered {
		return nil, fmt.Errorf("cancel booking %s: version conflict retries exhausted", id)
	}
	return c.bookings.GetBookingByID(ctx, id)
}

// ReplayDelivery forces a specific delivery through processing again,
// bypassing the duplicate short-circuit. Operator-confirmed cases only; the
// ledger row is reset to pending, not deleted, so the audit trail survives.
func (c *Coordinator) ReplayDelivery(ctx context.Context, deliveryID string) (Result, error) {
	d, err := c.ledger.GetDelivery(ctx, deliveryID)
	if err != nil {
		return Result{}, err
	}

	dec, err := Decode(d.Provider, d.DeliveryID, d.Payload)
	if err != nil {
		return Result{}, fmt.Errorf("decode stored payload: %w", err)
	}

	if err := c.ledger.ForceReopen(ctx, deliveryID); err != nil {
		return Result{}, err
	}

	return c.resolveAndApply(ctx, dec)
}

// ResolveDeadLetter attaches a dead-lettered event to a booking after manual
// investigation and applies it.
func (c *Coordinator) ResolveDeadLetter(ctx context.Context, deadLetterID, bookingID uuid.UUID) (Result, error) {
	dl, err := c.deadLetters.GetByID(ctx, deadLetterID)
	if err != nil {
		return Result{}, err
	}
	if dl.ResolvedAt != nil {
		return Result{}, fmt.Errorf("dead letter %s already resolved", deadLetterID)
	}

	b, err := c.bookings.GetBookingByID(ctx, bookingID)
	if err != nil {
		return Result{}, err
	}

	dec, err := Decode(dl.Provider, dl.DeliveryID, dl.Payload)
	if err != nil {
		return Result{}, fmt.Errorf("decode dead-lettered payload: %w", err)
	}

	res, err := c.applyWithRetry(ctx, b, dec.normalized(b.ID), dec)
	if err != nil {
		return res, err
	}

	if err := c.deadLetters.MarkResolved(ctx, deadLetterID, bookingID); err != nil {
		return res, fmt.Errorf("mark dead letter resolved: %w", err)
	}
	return res, nil
}

func (c *Coordinator) deadLetter(ctx context.Context, dec *DecodedEvent, reason string) Result {
	if err := c.deadLetters.Insert(ctx, correlate.DeadLetter{
		Provider:   dec.Provider,
		EventType:  dec.EventName,
		DeliveryID: dec.DeliveryID,
		Payload:    dec.rawForLedger(),
		Reason:     reason,
	}); err != nil {
		log.Printf("dead-letter insert failed delivery_id=%s: %v", dec.DeliveryID, err)
	}
	c.commit(ctx, dec.DeliveryID, ledger.OutcomeError)
	return Result{DeadLettered: true, Outcome: ledger.OutcomeError}
}

func (c *Coordinator) commit(ctx context.Context, deliveryID string, outcome ledger.Outcome) {
	if deliveryID == "" {
		return
	}
	if err := c.ledger.Commit(ctx, deliveryID, outcome); err != nil {
		log.Printf("ledger commit failed delivery_id=%s outcome=%s: %v", deliveryID, outcome, err)
	}
}
