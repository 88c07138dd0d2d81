package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sessionlab/booking-engine/internal/booking"
	"github.com/sessionlab/booking-engine/internal/reconcile"
	"github.com/sessionlab/booking-engine/internal/webhook"
)

// Webhook bodies are signed over the raw bytes, so handlers read the body
// unparsed before anything else touches it.
const maxWebhookBody = 1 << 20

func webhookHandler(verifier *webhook.Verifier, coord *reconcile.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable_body", "could not read request body")
			return
		}

		ve, err := verifier.Verify(body, r.Header)
		if err != nil {
			// Signature failures are permanent: a 400 stops the provider
			// retrying a payload that can never verify. No ledger entry is
			// written for them.
			log.Printf("webhook signature rejected path=%s: %v", r.URL.Path, err)
			writeError(w, http.StatusBadRequest, "invalid_signature", err.Error())
			return
		}

		res, err := coord.HandleWebhook(r.Context(), ve)
		if err != nil {
			if res.Retryable {
				// Non-2xx solicits the provider's own retry.
				log.Printf("webhook retryable failure delivery=%s: %v", ve.DeliveryID, err)
				writeError(w, http.StatusBadGateway, "retryable_failure", "temporary failure, please retry")
				return
			}
			writeError(w, http.StatusBadRequest, "invalid_payload", err.Error())
			return
		}

		ack := WebhookAck{Status: "ok", Outcome: string(res.Outcome)}
		switch {
		case res.Duplicate:
			ack.Status = "already_handled"
		case res.Skipped:
			ack.Status = "ignored"
		case res.DeadLettered:
			ack.Status = "dead_lettered"
		}
		writeJSON(w, http.StatusOK, ack)
	}
}

func createBookingHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateBookingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		if req.ClientID == "" || req.BuilderID == "" || req.SessionTypeID == "" {
			writeError(w, http.StatusBadRequest, "missing_fields", "client_id, builder_id and session_type_id are required")
			return
		}
		if req.PriceMinor < 0 {
			writeError(w, http.StatusBadRequest, "invalid_price", "price_minor must not be negative")
			return
		}

		b, url, err := svc.CreateIntent(r.Context(), booking.CreateIntentParams{
			ClientID:      req.ClientID,
			BuilderID:     req.BuilderID,
			SessionTypeID: req.SessionTypeID,
			PriceMinor:    req.PriceMinor,
			Currency:      req.Currency,
			InviteeEmail:  req.InviteeEmail,
		})
		if err != nil {
			writeError(w, http.StatusBadGateway, "intent_failed", err.Error())
			return
		}

		writeJSON(w, http.StatusCreated, CreateBookingResponse{
			Booking:       toBookingResponse(b),
			SchedulingURL: url,
		})
	}
}

func getBookingHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_booking_id", "id must be a valid UUID")
			return
		}

		b, err := svc.GetBooking(r.Context(), id)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toBookingResponse(b))
	}
}

func bookingHistoryHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_booking_id", "id must be a valid UUID")
			return
		}

		recs, err := svc.GetHistory(r.Context(), id)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		resp := make([]TransitionResponse, 0, len(recs))
		for _, rec := range recs {
			resp = append(resp, TransitionResponse{
				FromStatus: string(rec.FromStatus),
				ToStatus:   string(rec.ToStatus),
				EventType:  rec.EventType,
				DeliveryID: rec.DeliveryID,
				CreatedAt:  rec.CreatedAt,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func cancelBookingHandler(coord *reconcile.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_booking_id", "id must be a valid UUID")
			return
		}

		var req CancelBookingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if req.InitiatedBy == "" {
			req.InitiatedBy = "client"
		}

		b, err := coord.CancelBooking(r.Context(), id, req.Reason, req.InitiatedBy)
		if err != nil {
			switch {
			case errors.Is(err, booking.ErrBookingNotFound):
				writeError(w, http.StatusNotFound, "booking_not_found", err.Error())
			case errors.Is(err, reconcile.ErrBookingFinal):
				writeError(w, http.StatusConflict, "booking_final", err.Error())
			default:
				writeError(w, http.StatusBadGateway, "cancel_failed", err.Error())
			}
			return
		}

		writeJSON(w, http.StatusAccepted, toBookingResponse(b))
	}
}

func handleBookingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrBookingNotFound):
		writeError(w, http.StatusNotFound, "booking_not_found", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
