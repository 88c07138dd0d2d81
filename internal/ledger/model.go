package ledger

import (
	"time"

	"github.com/sessionlab/booking-engine/internal/booking"
)

type Outcome string

const (
	OutcomePending           Outcome = "pending"
	OutcomeApplied           Outcome = "applied"
	OutcomeIgnoredDuplicate  Outcome = "ignored_duplicate"
	OutcomeIgnoredStale      Outcome = "ignored_stale"
	OutcomeRejectedSignature Outcome = "rejected_signature"
	OutcomeError             Outcome = "error"
)

// Delivery is one inbound webhook delivery attempt. Rows are append-only:
// the ledger is the audit trail that makes handlers safe against redelivery,
// so nothing ever deletes from it.
type Delivery struct {
	DeliveryID  string // provider-assigned, natural key
	Provider    booking.Provider
	EventType   string
	Payload     []byte
	Outcome     Outcome
	ReceivedAt  time.Time
	ProcessedAt *time.Time
}

// BeginResult is the answer to "may I process this delivery?".
type BeginResult struct {
	// Proceed is true when the caller holds the delivery and must Commit a
	// final outcome when done.
	Proceed bool
	// Prior is the recorded outcome of an earlier attempt when Proceed is
	// false; the caller acknowledges with it instead of reprocessing.
	Prior Outcome
}
