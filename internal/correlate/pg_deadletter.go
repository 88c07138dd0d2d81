package correlate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgDeadLetterStore struct {
	pool *pgxpool.Pool
}

func NewPgDeadLetterStore(pool *pgxpool.Pool) *PgDeadLetterStore {
	return &PgDeadLetterStore{pool: pool}
}

func scanDeadLetter(row pgx.Row) (*DeadLetter, error) {
	var dl DeadLetter
	var resolvedBookingID *uuid.UUID
	var resolvedAt *time.Time

	err := row.Scan(
		&dl.ID,
		&dl.Provider,
		&dl.EventType,
		&dl.DeliveryID,
		&dl.Payload,
		&dl.Reason,
		&resolvedBookingID,
		&resolvedAt,
		&dl.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDeadLetterNotFound
		}
		return nil, err
	}

	dl.ResolvedBookingID = resolvedBookingID
	dl.ResolvedAt = resolvedAt
	return &dl, nil
}

func (s *PgDeadLetterStore) Insert(ctx context.Context, dl DeadLetter) error {
	id := dl.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO dead_letters (id, provider, event_type, delivery_id, payload, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (delivery_id) WHERE delivery_id <> '' DO NOTHING
	`, id, dl.Provider, dl.EventType, dl.DeliveryID, dl.Payload, dl.Reason)
	if err != nil {
		return fmt.Errorf("insert dead letter: %w", err)
	}
	return nil
}

func (s *PgDeadLetterStore) List(ctx context.Context, includeResolved bool, limit int) ([]DeadLetter, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, provider, event_type, delivery_id, payload, reason, resolved_booking_id, resolved_at, created_at
		FROM dead_letters
		WHERE $1 OR resolved_at IS NULL
		ORDER BY created_at DESC
		LIMIT $2
	`, includeResolved, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []DeadLetter
	for rows.Next() {
		dl, err := scanDeadLetter(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *dl)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *PgDeadLetterStore) GetByID(ctx context.Context, id uuid.UUID) (*DeadLetter, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, provider, event_type, delivery_id, payload, reason, resolved_booking_id, resolved_at, created_at
		FROM dead_letters
		WHERE id = $1
	`, id)
	return scanDeadLetter(row)
}

func (s *PgDeadLetterStore) MarkResolved(ctx context.Context, id, bookingID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE dead_letters
		SET resolved_booking_id = $2,
		    resolved_at = now()
		WHERE id = $1
		  AND resolved_at IS NULL
	`, id, bookingID)
	if err != nil {
		return fmt.Errorf("resolve dead letter: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDeadLetterNotFound
	}
	return nil
}
