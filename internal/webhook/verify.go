package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sessionlab/booking-engine/internal/booking"
)

var (
	ErrSignatureMissing  = errors.New("webhook signature headers missing")
	ErrSignatureMismatch = errors.New("webhook signature mismatch")
	ErrTimestampStale    = errors.New("webhook timestamp outside tolerance")
)

// VerifiedEvent is the output of signature verification. The payload is still
// raw bytes on purpose: decoding happens in a separate step so verification
// never depends on payload schema.
type VerifiedEvent struct {
	Provider   booking.Provider
	DeliveryID string
	Timestamp  time.Time
	RawPayload []byte
}

// Verifier checks that an inbound webhook body genuinely originated from the
// claimed provider. Several secrets may be valid at once so that secret
// rotation does not drop deliveries signed with the previous secret.
type Verifier struct {
	provider  booking.Provider
	secrets   []string
	tolerance time.Duration
	now       func() time.Time
}

func NewVerifier(provider booking.Provider, secrets []string, tolerance time.Duration) *Verifier {
	return &Verifier{
		provider:  provider,
		secrets:   secrets,
		tolerance: tolerance,
		now:       time.Now,
	}
}

// Verify validates the raw body against the provider's signature headers.
//
// The scheduling provider signs svix-style: headers webhook-id,
// webhook-timestamp and webhook-signature, where the signature header holds
// space-separated "v1,<base64>" candidates over "<id>.<timestamp>.<body>".
//
// The payment provider signs stripe-style: a single Signature header of the
// form "t=<unix>,v1=<hex>[,v1=<hex>...]" over "<timestamp>.<body>"; the
// delivery ID travels in the payload's top-level "id" and is supplied by the
// decoder, so here the event ID header is optional.
func (v *Verifier) Verify(body []byte, header http.Header) (*VerifiedEvent, error) {
	if len(v.secrets) == 0 {
		return nil, fmt.Errorf("no webhook secrets configured for provider %s", v.provider)
	}

	switch v.provider {
	case booking.ProviderScheduling:
		return v.verifyTripleHeader(body, header)
	case booking.ProviderPayment:
		return v.verifySignatureHeader(body, header)
	default:
		return nil, fmt.Errorf("unknown provider %q", v.provider)
	}
}

func (v *Verifier) verifyTripleHeader(body []byte, header http.Header) (*VerifiedEvent, error) {
	id := header.Get("webhook-id")
	tsRaw := header.Get("webhook-timestamp")
	sigRaw := header.Get("webhook-signature")
	if id == "" || tsRaw == "" || sigRaw == "" {
		return nil, ErrSignatureMissing
	}

	ts, err := parseUnix(tsRaw)
	if err != nil {
		return nil, fmt.Errorf("%w: bad timestamp %q", ErrSignatureMissing, tsRaw)
	}
	if err := v.checkTolerance(ts); err != nil {
		return nil, err
	}

	signed := fmt.Sprintf("%s.%s.%s", id, tsRaw, body)
	var candidates []string
	for _, part := range strings.Fields(sigRaw) {
		if rest, ok := strings.CutPrefix(part, "v1,"); ok {
			candidates = append(candidates, rest)
		}
	}
	if len(candidates) == 0 {
		return nil, ErrSignatureMissing
	}

	for _, secret := range v.secrets {
		expect := signBase64(secret, signed)
		for _, got := range candidates {
			if hmac.Equal([]byte(expect), []byte(got)) {
				return &VerifiedEvent{
					Provider:   v.provider,
					DeliveryID: id,
					Timestamp:  ts,
					RawPayload: body,
				}, nil
			}
		}
	}
	return nil, ErrSignatureMismatch
}

func (v *Verifier) verifySignatureHeader(body []byte, header http.Header) (*VerifiedEvent, error) {
	sigRaw := header.Get("Signature")
	if sigRaw == "" {
		return nil, ErrSignatureMissing
	}

	var tsRaw string
	var candidates []string
	for _, part := range strings.Split(sigRaw, ",") {
		k, val, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			tsRaw = val
		case "v1":
			candidates = append(candidates, val)
		}
	}
	if tsRaw == "" || len(candidates) == 0 {
		return nil, ErrSignatureMissing
	}

	ts, err := parseUnix(tsRaw)
	if err != nil {
		return nil, fmt.Errorf("%w: bad timestamp %q", ErrSignatureMissing, tsRaw)
	}
	if err := v.checkTolerance(ts); err != nil {
		return nil, err
	}

	signed := fmt.Sprintf("%s.%s", tsRaw, body)
	for _, secret := range v.secrets {
		expect := signHex(secret, signed)
		for _, got := range candidates {
			if hmac.Equal([]byte(expect), []byte(got)) {
				return &VerifiedEvent{
					Provider:   v.provider,
					DeliveryID: header.Get("Webhook-Event-Id"),
					Timestamp:  ts,
					RawPayload: body,
				}, nil
			}
		}
	}
	return nil, ErrSignatureMismatch
}

// checkTolerance rejects replayed captures and grossly future-dated
// timestamps alike.
func (v *Verifier) checkTolerance(ts time.Time) error {
	now := v.now()
	if now.Sub(ts) > v.tolerance || ts.Sub(now) > v.tolerance {
		return ErrTimestampStale
	}
	return nil
}

func parseUnix(raw string) (time.Time, error) {
	sec, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(sec, 0), nil
}

func signBase64(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func signHex(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
