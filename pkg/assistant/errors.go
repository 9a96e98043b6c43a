package assistant

import (
	"errors"
	"fmt"
)

// Sentinel errors for webhook delivery.
var (
	// ErrNoWebhook is returned when the client has no endpoint URL.
	ErrNoWebhook = errors.New("assistant: webhook URL required")

	// ErrNoAudio is returned by AudioBytes when the response carries
	// no audio payload.
	ErrNoAudio = errors.New("assistant: response has no audio")

	// ErrBlobAudio is returned when the audio response is a blob URI,
	// which only meant something inside the page that created it.
	ErrBlobAudio = errors.New("assistant: blob audio reference cannot be resolved")
)

// APIError is a non-2xx response from the webhook. Every APIError is
// terminal for the attempt: delivery is never retried automatically,
// the user resubmits by hand.
type APIError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("assistant: webhook returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("assistant: webhook returned %d", e.StatusCode)
}

// IsServerError returns true for HTTP 5xx responses.
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}
