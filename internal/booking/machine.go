package booking

type CommandType string

const (
	CmdCreateCheckoutSession CommandType = "create_checkout_session"
	CmdVoidCheckoutSession   CommandType = "void_checkout_session"
	CmdIssueRefund           CommandType = "issue_refund"
	CmdSendConfirmation      CommandType = "send_confirmation"
	CmdNotifyPaymentFailed   CommandType = "notify_payment_failed"
	CmdSendRefundNotice      CommandType = "send_refund_notice"
	CmdLogIgnoredTransition  CommandType = "log_ignored_transition"
)

// Command is a side effect the coordinator must execute after a transition.
// The machine only describes the effect; it never performs it.
type Command struct {
	Type      CommandType
	SessionID string // void_checkout_session
	ChargeID  string // issue_refund
	Reason    string // notify_payment_failed, log_ignored_transition
}

// Outcome is the result of applying one event to one booking state.
// Changed reports whether Next differs from the input and must be persisted
// with a version bump; an unchanged outcome still carries commands (e.g. a
// payment failure notification) and is always recorded in the ledger.
type Outcome struct {
	Next     Booking
	Changed  bool
	Commands []Command
}

// Transition is the whole decision table of the engine: given the current
// booking and a normalized event it computes the next state and the side
// effects to issue. It is total — every (status, event) pair has a defined
// outcome, unknown pairs degrade to a logged no-op — and performs no I/O.
// Terminal states absorb every event, so a late payment.succeeded can never
// resurrect a canceled booking.
func Transition(current Booking, ev NormalizedEvent) Outcome {
	if current.Status.IsTerminal() {
		return ignored(current, "booking is in terminal state "+string(current.Status))
	}

	switch {
	case current.Status == StatusPendingScheduling && ev.Type == EventSchedulingConfirmed:
		next := current
		next.Status = StatusPendingPayment
		if ev.Scheduling != nil {
			ref := *ev.Scheduling
			next.SchedulingRef = &ref
		}
		return Outcome{Next: next, Changed: true, Commands: []Command{{Type: CmdCreateCheckoutSession}}}

	case current.Status == StatusPendingScheduling && ev.Type == EventSchedulingCanceled:
		next := canceled(current, ev, false)
		return Outcome{Next: next, Changed: true}

	case current.Status == StatusPendingPayment && ev.Type == EventPaymentSucceeded:
		next := current
		next.Status = StatusConfirmed
		pay := PaymentRef{
			AmountMinor:   current.PriceMinor,
			Currency:      current.Currency,
			PaymentStatus: "succeeded",
		}
		if current.PaymentRef != nil {
			pay.ExternalSessionID = current.PaymentRef.ExternalSessionID
		}
		if ev.Payment != nil {
			if ev.Payment.SessionID != "" {
				pay.ExternalSessionID = ev.Payment.SessionID
			}
			pay.ExternalChargeID = ev.Payment.ChargeID
			if ev.Payment.AmountMinor > 0 {
				pay.AmountMinor = ev.Payment.AmountMinor
			}
			if ev.Payment.Currency != "" {
				pay.Currency = ev.Payment.Currency
			}
		}
		next.PaymentRef = &pay
		return Outcome{Next: next, Changed: true, Commands: []Command{{Type: CmdSendConfirmation}}}

	case current.Status == StatusPendingPayment && ev.Type == EventPaymentFailed:
		reason := "payment failed"
		if ev.Payment != nil && ev.Payment.FailureReason != "" {
			reason = ev.Payment.FailureReason
		}
		// Retry is allowed: the checkout session stays open and the
		// booking does not move.
		return Outcome{Next: current, Changed: false, Commands: []Command{{Type: CmdNotifyPaymentFailed, Reason: reason}}}

	case current.Status == StatusPendingPayment && ev.Type == EventSchedulingCanceled:
		next := canceled(current, ev, false)
		var cmds []Command
		if current.PaymentRef != nil && current.PaymentRef.ExternalSessionID != "" {
			cmds = append(cmds, Command{Type: CmdVoidCheckoutSession, SessionID: current.PaymentRef.ExternalSessionID})
		}
		return Outcome{Next: next, Changed: true, Commands: cmds}

	case current.Status == StatusConfirmed && ev.Type == EventSchedulingCanceled:
		refund := current.PaymentRef != nil && current.PaymentRef.ExternalChargeID != ""
		next := canceled(current, ev, refund)
		var cmds []Command
		if refund {
			cmds = append(cmds, Command{Type: CmdIssueRefund, ChargeID: current.PaymentRef.ExternalChargeID})
		}
		return Outcome{Next: next, Changed: true, Commands: cmds}

	case current.Status == StatusConfirmed && ev.Type == EventPaymentRefunded:
		next := current
		next.Status = StatusRefunded
		if current.PaymentRef != nil {
			pay := *current.PaymentRef
			pay.PaymentStatus = "refunded"
			next.PaymentRef = &pay
		}
		return Outcome{Next: next, Changed: true, Commands: []Command{{Type: CmdSendRefundNotice}}}

	case (current.Status == StatusPendingScheduling || current.Status == StatusPendingPayment) &&
		ev.Type == EventSchedulingRescheduled:
		if current.SchedulingRef == nil || ev.Scheduling == nil {
			return ignored(current, "reschedule without an existing scheduling ref")
		}
		next := current
		ref := *current.SchedulingRef
		ref.StartTime = ev.Scheduling.StartTime
		ref.EndTime = ev.Scheduling.EndTime
		next.SchedulingRef = &ref
		return Outcome{Next: next, Changed: true}
	}

	return ignored(current, "no transition for "+string(ev.Type)+" in "+string(current.Status))
}

func canceled(current Booking, ev NormalizedEvent, refundIssued bool) Booking {
	next := current
	next.Status = StatusCanceled
	initiatedBy := ev.InitiatedBy
	if initiatedBy == "" {
		initiatedBy = string(ev.Provider)
	}
	next.Cancellation = &Cancellation{
		Reason:       ev.CancelReason,
		InitiatedBy:  initiatedBy,
		RefundIssued: refundIssued,
	}
	return next
}

func ignored(current Booking, reason string) Outcome {
	return Outcome{
		Next:     current,
		Changed:  false,
		Commands: []Command{{Type: CmdLogIgnoredTransition, Reason: reason}},
	}
}
