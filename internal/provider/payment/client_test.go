package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sessionlab/booking-engine/internal/provider"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, NewClient(srv.URL, "sk_test_key", 5*time.Second)
}

func TestCreateCheckoutSession_SendsCorrelationAndIdempotency(t *testing.T) {
	bookingID := uuid.New()
	var gotReq checkoutRequest
	var gotKey, gotAuth string

	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/checkout/sessions", r.URL.Path)
		gotKey = r.Header.Get("Idempotency-Key")
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		json.NewEncoder(w).Encode(CheckoutSession{
			SessionID:   "cs_123",
			RedirectURL: "https://pay.example.com/cs_123",
		})
	})

	sess, err := client.CreateCheckoutSession(context.Background(), bookingID, 15000, "usd")

	require.NoError(t, err)
	assert.Equal(t, "cs_123", sess.SessionID)
	assert.Equal(t, int64(15000), gotReq.AmountMinor)
	assert.Equal(t, bookingID.String(), gotReq.Metadata["booking_id"])
	assert.Equal(t, "create_checkout_session:"+bookingID.String(), gotKey)
	assert.Equal(t, "Bearer sk_test_key", gotAuth)
}

func TestCreateRefund_IdempotencyKeyPerBooking(t *testing.T) {
	bookingID := uuid.New()
	var gotKey string
	var gotReq refundRequest

	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/refunds", r.URL.Path)
		gotKey = r.Header.Get("Idempotency-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(Refund{RefundID: "re_1"})
	})

	ref, err := client.CreateRefund(context.Background(), bookingID, "ch_42", 0)

	require.NoError(t, err)
	assert.Equal(t, "re_1", ref.RefundID)
	assert.Equal(t, "ch_42", gotReq.ChargeID)
	assert.Zero(t, gotReq.AmountMinor)
	assert.Equal(t, "issue_refund:"+bookingID.String(), gotKey)
}

func TestErrorClassification(t *testing.T) {
	cases := []struct {
		name      string
		status    int
		body      string
		wantKind  provider.ErrorKind
		retryable bool
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"code":"invalid_api_key","message":"bad key"}}`,
			provider.KindAuthentication, false},
		{"rate limited", http.StatusTooManyRequests, `{"error":{"code":"rate_limit","message":"slow down"}}`,
			provider.KindRateLimit, true},
		{"card declined", http.StatusPaymentRequired, `{"error":{"code":"card_declined","message":"insufficient funds"}}`,
			provider.KindCardDeclined, false},
		{"bad request", http.StatusBadRequest, `{"error":{"code":"parameter_missing","message":"amount required"}}`,
			provider.KindInvalidRequest, false},
		{"server error", http.StatusInternalServerError, `{}`,
			provider.KindUnknown, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			})

			_, err := client.CreateCheckoutSession(context.Background(), uuid.New(), 100, "usd")

			require.Error(t, err)
			var pe *provider.Error
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tc.wantKind, pe.Kind)
			assert.Equal(t, tc.status, pe.Status)
			assert.Equal(t, tc.retryable, pe.Retryable())
		})
	}
}

func TestTransportFailure_IsRetryableUnknown(t *testing.T) {
	srv, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close()

	_, err := client.CreateCheckoutSession(context.Background(), uuid.New(), 100, "usd")

	require.Error(t, err)
	var pe *provider.Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, provider.KindUnknown, pe.Kind)
	assert.True(t, pe.Retryable())
}

func TestVoidCheckoutSession_HitsExpireEndpoint(t *testing.T) {
	var gotPath string
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	})

	err := client.VoidCheckoutSession(context.Background(), uuid.New(), "cs_123")

	require.NoError(t, err)
	assert.Equal(t, "/checkout/sessions/cs_123/expire", gotPath)
}

func TestRetrieveSession(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/checkout/sessions/cs_9", r.URL.Path)
		assert.Empty(t, r.Header.Get("Idempotency-Key"))
		json.NewEncoder(w).Encode(SessionSnapshot{
			SessionID: "cs_9",
			Status:    "complete",
			ChargeID:  "ch_7",
		})
	})

	snap, err := client.RetrieveSession(context.Background(), "cs_9")

	require.NoError(t, err)
	assert.Equal(t, "complete", snap.Status)
	assert.Equal(t, "ch_7", snap.ChargeID)
}
