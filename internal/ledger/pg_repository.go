package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) BeginProcessing(ctx context.Context, d Delivery, grace time.Duration) (BeginResult, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO webhook_deliveries (delivery_id, provider, event_type, payload, outcome, received_at)
		VALUES ($1, $2, $3, $4, 'pending', now())
		ON CONFLICT (delivery_id) DO NOTHING
	`, d.DeliveryID, d.Provider, d.EventType, d.Payload)
	if err != nil {
		return BeginResult{}, fmt.Errorf("insert delivery: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return BeginResult{Proceed: true}, nil
	}

	// Duplicate. Read the prior attempt and decide.
	var prior Outcome
	var receivedAt time.Time
	err = r.pool.QueryRow(ctx, `
		SELECT outcome, received_at
		FROM webhook_deliveries
		WHERE delivery_id = $1
	`, d.DeliveryID).Scan(&prior, &receivedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return BeginResult{}, ErrDeliveryNotFound
		}
		return BeginResult{}, fmt.Errorf("read prior delivery: %w", err)
	}

	retryable := prior == OutcomeError ||
		(prior == OutcomePending && time.Since(receivedAt) > grace)
	if !retryable {
		return BeginResult{Prior: prior}, nil
	}

	// Take over the row. The outcome guard keeps two concurrent retries
	// from both proceeding.
	tag, err = r.pool.Exec(ctx, `
		UPDATE webhook_deliveries
		SET outcome = 'pending',
		    received_at = now(),
		    processed_at = NULL
		WHERE delivery_id = $1
		  AND outcome = $2
		  AND received_at = $3
	`, d.DeliveryID, prior, receivedAt)
	if err != nil {
		return BeginResult{}, fmt.Errorf("reopen delivery: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return BeginResult{Prior: prior}, nil
	}

	return BeginResult{Proceed: true}, nil
}

func (r *PgRepository) Commit(ctx context.Context, deliveryID string, outcome Outcome) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE webhook_deliveries
		SET outcome = $2,
		    processed_at = now()
		WHERE delivery_id = $1
	`, deliveryID, outcome)
	if err != nil {
		return fmt.Errorf("commit delivery outcome: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDeliveryNotFound
	}
	return nil
}

func (r *PgRepository) GetDelivery(ctx context.Context, deliveryID string) (*Delivery, error) {
	var d Delivery
	var processedAt *time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT delivery_id, provider, event_type, payload, outcome, received_at, processed_at
		FROM webhook_deliveries
		WHERE delivery_id = $1
	`, deliveryID).Scan(&d.DeliveryID, &d.Provider, &d.EventType, &d.Payload, &d.Outcome, &d.ReceivedAt, &processedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDeliveryNotFound
		}
		return nil, err
	}
	d.ProcessedAt = processedAt
	return &d, nil
}

func (r *PgRepository) SweepStuck(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE webhook_deliveries
		SET outcome = 'error',
		    processed_at = now()
		WHERE outcome = 'pending'
		  AND received_at < $1
	`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("sweep stuck deliveries: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PgRepository) ForceReopen(ctx context.Context, deliveryID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE webhook_deliveries
		SET outcome = 'pending',
		    received_at = now(),
		    processed_at = NULL
		WHERE delivery_id = $1
	`, deliveryID)
	if err != nil {
		return fmt.Errorf("force reopen delivery: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDeliveryNotFound
	}
	return nil
}
