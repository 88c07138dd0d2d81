// Package provider holds what the payment and scheduling clients share: the
// normalized error taxonomy and a thin JSON REST core. Provider SDK error
// shapes never cross this boundary — the coordinator decides retry-vs-fatal
// from the taxonomy alone.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sessionlab/booking-engine/internal/booking"
)

type ErrorKind string

const (
	KindAuthentication ErrorKind = "authentication"
	KindCardDeclined   ErrorKind = "card_declined"
	KindRateLimit      ErrorKind = "rate_limit"
	KindInvalidRequest ErrorKind = "invalid_request"
	KindUnknown        ErrorKind = "unknown"
)

// Error is a normalized provider failure.
type Error struct {
	Provider booking.Provider
	Kind     ErrorKind
	Status   int // HTTP status, 0 for transport failures
	Code     string
	Message  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s provider error (%s, status=%d, code=%s): %s",
		e.Provider, e.Kind, e.Status, e.Code, e.Message)
}

// Retryable reports whether the coordinator may abstain from persisting and
// let the provider's webhook retry re-drive the transition. A timed-out call
// is retryable; it is never "assume it succeeded".
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindRateLimit:
		return true
	case KindUnknown:
		return true
	}
	return false
}

// IdempotencyKey derives the client-generated key for a mutating call from
// (bookingID, commandType), so a coordinator-level retry after a crash cannot
// create two checkout sessions or two refunds for the same booking.
func IdempotencyKey(commandType string, bookingID string) string {
	return commandType + ":" + bookingID
}

// Client is the REST core both orchestrators build on.
type Client struct {
	Provider booking.Provider
	BaseURL  string
	APIKey   string
	HTTP     *http.Client
}

func NewClient(p booking.Provider, baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		Provider: p,
		BaseURL:  baseURL,
		APIKey:   apiKey,
		HTTP:     &http.Client{Timeout: timeout},
	}
}

type apiErrorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Do issues one JSON request. A non-empty idemKey is sent as the
// Idempotency-Key header. The out parameter may be nil for calls whose
// response body is irrelevant.
func (c *Client) Do(ctx context.Context, method, path, idemKey string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		// Transport failure or timeout: retryable, outcome unknown.
		return &Error{
			Provider: c.Provider,
			Kind:     KindUnknown,
			Message:  err.Error(),
		}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &Error{Provider: c.Provider, Kind: KindUnknown, Status: resp.StatusCode, Message: err.Error()}
	}

	if resp.StatusCode >= 400 {
		return c.classify(resp.StatusCode, raw)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return &Error{
				Provider: c.Provider,
				Kind:     KindUnknown,
				Status:   resp.StatusCode,
				Message:  fmt.Sprintf("decode response: %v", err),
			}
		}
	}
	return nil
}

func (c *Client) classify(status int, raw []byte) *Error {
	var parsed apiErrorBody
	_ = json.Unmarshal(raw, &parsed)

	e := &Error{
		Provider: c.Provider,
		Status:   status,
		Code:     parsed.Error.Code,
		Message:  parsed.Error.Message,
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.Kind = KindAuthentication
	case status == http.StatusTooManyRequests:
		e.Kind = KindRateLimit
	case parsed.Error.Code == "card_declined":
		e.Kind = KindCardDeclined
	case status >= 400 && status < 500:
		e.Kind = KindInvalidRequest
	default:
		e.Kind = KindUnknown
	}
	return e
}

// AsError unwraps any error into the normalized taxonomy, defaulting to an
// unknown (retryable) classification for unexpected failures.
func AsError(p booking.Provider, err error) *Error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	return &Error{Provider: p, Kind: KindUnknown, Message: err.Error()}
}
