package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const bookingColumns = `
	id, status, client_id, builder_id, session_type_id, price_minor, currency,
	sched_event_id, sched_invitee_id, sched_start, sched_end,
	pay_session_id, pay_charge_id, pay_amount, pay_currency, pay_status,
	cancel_reason, cancel_initiated_by, cancel_refund_issued,
	version, created_at, updated_at`

// Helpers

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	var schedEventID, schedInviteeID *string
	var schedStart, schedEnd *time.Time
	var paySessionID, payChargeID, payCurrency, payStatus *string
	var payAmount *int64
	var cancelReason, cancelInitiatedBy *string
	var cancelRefundIssued *bool

	err := row.Scan(
		&b.ID,
		&b.Status,
		&b.ClientID,
		&b.BuilderID,
		&b.SessionTypeID,
		&b.PriceMinor,
		&b.Currency,
		&schedEventID,
		&schedInviteeID,
		&schedStart,
		&schedEnd,
		&paySessionID,
		&payChargeID,
		&payAmount,
		&payCurrency,
		&payStatus,
		&cancelReason,
		&cancelInitiatedBy,
		&cancelRefundIssued,
		&b.Version,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	if schedEventID != nil {
		ref := SchedulingRef{ExternalEventID: *schedEventID}
		if schedInviteeID != nil {
			ref.ExternalInviteeID = *schedInviteeID
		}
		if schedStart != nil {
			ref.StartTime = *schedStart
		}
		if schedEnd != nil {
			ref.EndTime = *schedEnd
		}
		b.SchedulingRef = &ref
	}

	if paySessionID != nil || payChargeID != nil {
		pay := PaymentRef{}
		if paySessionID != nil {
			pay.ExternalSessionID = *paySessionID
		}
		if payChargeID != nil {
			pay.ExternalChargeID = *payChargeID
		}
		if payAmount != nil {
			pay.AmountMinor = *payAmount
		}
		if payCurrency != nil {
			pay.Currency = *payCurrency
		}
		if payStatus != nil {
			pay.PaymentStatus = *payStatus
		}
		b.PaymentRef = &pay
	}

	if cancelReason != nil || cancelInitiatedBy != nil {
		c := Cancellation{}
		if cancelReason != nil {
			c.Reason = *cancelReason
		}
		if cancelInitiatedBy != nil {
			c.InitiatedBy = *cancelInitiatedBy
		}
		if cancelRefundIssued != nil {
			c.RefundIssued = *cancelRefundIssued
		}
		b.Cancellation = &c
	}

	return &b, nil
}

func bookingArgs(b *Booking) []any {
	var schedEventID, schedInviteeID *string
	var schedStart, schedEnd *time.Time
	if b.SchedulingRef != nil {
		schedEventID = &b.SchedulingRef.ExternalEventID
		schedInviteeID = &b.SchedulingRef.ExternalInviteeID
		schedStart = &b.SchedulingRef.StartTime
		schedEnd = &b.SchedulingRef.EndTime
	}

	var paySessionID, payChargeID, payCurrency, payStatus *string
	var payAmount *int64
	if b.PaymentRef != nil {
		paySessionID = &b.PaymentRef.ExternalSessionID
		payChargeID = &b.PaymentRef.ExternalChargeID
		payAmount = &b.PaymentRef.AmountMinor
		payCurrency = &b.PaymentRef.Currency
		payStatus = &b.PaymentRef.PaymentStatus
	}

	var cancelReason, cancelInitiatedBy *string
	var cancelRefundIssued *bool
	if b.Cancellation != nil {
		cancelReason = &b.Cancellation.Reason
		cancelInitiatedBy = &b.Cancellation.InitiatedBy
		cancelRefundIssued = &b.Cancellation.RefundIssued
	}

	return []any{
		b.Status, b.ClientID, b.BuilderID, b.SessionTypeID, b.PriceMinor, b.Currency,
		schedEventID, schedInviteeID, schedStart, schedEnd,
		paySessionID, payChargeID, payAmount, payCurrency, payStatus,
		cancelReason, cancelInitiatedBy, cancelRefundIssued,
	}
}

// Interface methods

func (r *PgRepository) GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1
	`, id)
	return scanBooking(row)
}

func (r *PgRepository) CreateBooking(ctx context.Context, b *Booking) (*Booking, error) {
	id := b.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	args := append([]any{id}, bookingArgs(b)...)
	row := r.pool.QueryRow(ctx, `
		INSERT INTO bookings (
			id, status, client_id, builder_id, session_type_id, price_minor, currency,
			sched_event_id, sched_invitee_id, sched_start, sched_end,
			pay_session_id, pay_charge_id, pay_amount, pay_currency, pay_status,
			cancel_reason, cancel_initiated_by, cancel_refund_issued,
			version, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, 1, now(), now())
		RETURNING `+bookingColumns+`
	`, args...)

	return scanBooking(row)
}

func (r *PgRepository) UpdateBookingVersioned(ctx context.Context, b *Booking, expected int64) (*Booking, error) {
	args := append([]any{b.ID, expected}, bookingArgs(b)...)
	row := r.pool.QueryRow(ctx, `
		UPDATE bookings
		SET status = $3,
		    client_id = $4,
		    builder_id = $5,
		    session_type_id = $6,
		    price_minor = $7,
		    currency = $8,
		    sched_event_id = $9,
		    sched_invitee_id = $10,
		    sched_start = $11,
		    sched_end = $12,
		    pay_session_id = $13,
		    pay_charge_id = $14,
		    pay_amount = $15,
		    pay_currency = $16,
		    pay_status = $17,
		    cancel_reason = $18,
		    cancel_initiated_by = $19,
		    cancel_refund_issued = $20,
		    version = version + 1,
		    updated_at = now()
		WHERE id = $1
		  AND version = $2
		RETURNING `+bookingColumns+`
	`, args...)

	updated, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			// Either the row is gone or a concurrent writer bumped the
			// version; the caller reloads and distinguishes the two.
			return nil, ErrVersionConflict
		}
		return nil, err
	}
	return updated, nil
}

func (r *PgRepository) InsertTransition(ctx context.Context, rec TransitionRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO booking_transitions (booking_id, from_status, to_status, event_type, delivery_id, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
	`, rec.BookingID, rec.FromStatus, rec.ToStatus, rec.EventType, rec.DeliveryID)
	if err != nil {
		return fmt.Errorf("insert booking transition: %w", err)
	}
	return nil
}

func (r *PgRepository) ListTransitions(ctx context.Context, bookingID uuid.UUID) ([]TransitionRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, booking_id, from_status, to_status, event_type, delivery_id, created_at
		FROM booking_transitions
		WHERE booking_id = $1
		ORDER BY id
	`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []TransitionRecord
	for rows.Next() {
		var rec TransitionRecord
		if err := rows.Scan(&rec.ID, &rec.BookingID, &rec.FromStatus, &rec.ToStatus, &rec.EventType, &rec.DeliveryID, &rec.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}
