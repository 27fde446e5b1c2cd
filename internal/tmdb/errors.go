package tmdb

import "errors"

// Failure taxonomy. Callers classify with errors.Is; each kind demands a
// different user action, so they must stay distinguishable.
var (
	// ErrAuth marks an invalid or expired credential (HTTP 401 with the
	// provider's invalid-key status code). Retrying cannot succeed until an
	// operator fixes configuration.
	ErrAuth = errors.New("metadata service rejected credentials")

	// ErrThrottled marks rate-limit exhaustion reported by the service
	// (HTTP 429) despite local throttling. Not auto-retried.
	ErrThrottled = errors.New("metadata service rate limit exhausted")

	// ErrTransport marks a network failure or any other non-2xx status.
	ErrTransport = errors.New("metadata service request failed")
)

// Abort causes. A request runs under a combined abort signal; the resulting
// error wraps exactly one of these so a timeout is never misreported as a
// user cancellation or vice versa.
var (
	ErrCallerCanceled = errors.New("metadata request canceled by caller")
	ErrRequestTimeout = errors.New("metadata request timed out")
	ErrInvalidated    = errors.New("metadata request aborted by invalidation")
)

// invalidKeyStatusCode is the provider error code signalling a bad API key.
const invalidKeyStatusCode = 7

// apiError models the TMDB error body.
type apiError struct {
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
	Success       bool   `json:"success"`
}
