package ledger

import (
	"context"
	"errors"
	"time"
)

var (
	ErrDeliveryNotFound = errors.New("delivery not found")
)

// Repository is the durable idempotency ledger. BeginProcessing is the single
// atomic, uniqueness-constrained write in the inbound path; the constraint
// itself arbitrates duplicates, no read-modify-write race exists.
type Repository interface {
	// BeginProcessing inserts a pending row for the delivery if absent.
	// On conflict the prior outcome decides: applied/ignored outcomes
	// short-circuit, an error outcome or a pending row older than grace is
	// atomically taken over so the retry reprocesses cleanly.
	BeginProcessing(ctx context.Context, d Delivery, grace time.Duration) (BeginResult, error)

	// Commit finalizes the outcome of a delivery this caller holds.
	Commit(ctx context.Context, deliveryID string, outcome Outcome) error

	GetDelivery(ctx context.Context, deliveryID string) (*Delivery, error)

	// SweepStuck flips pending rows older than the cutoff to error so the
	// provider's next retry is allowed through. Returns rows affected.
	SweepStuck(ctx context.Context, olderThan time.Time) (int64, error)

	// ForceReopen resets a delivery to pending regardless of its outcome.
	// Operator use only (replay-delivery).
	ForceReopen(ctx context.Context, deliveryID string) error
}
