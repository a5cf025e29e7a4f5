package source

import (
	"errors"
	"fmt"
)

// Common errors returned by source clients.
var (
	// ErrTransient indicates a network or server-side failure that is
	// eligible for a bounded retry.
	ErrTransient = errors.New("transient lookup error")

	// ErrRateLimited indicates the backend rejected the request with 429.
	ErrRateLimited = errors.New("backend rate limit exceeded")

	// ErrInvalidResponse indicates an unparseable backend response.
	ErrInvalidResponse = errors.New("invalid backend response")
)

// APIError carries the HTTP detail of a failed backend call.
type APIError struct {
	Source     string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Source, e.StatusCode, e.Message)
}

// IsTransient reports whether the error is worth one bounded retry:
// network failures, 5xx responses, and rate-limit rejections.
func IsTransient(err error) bool {
	if errors.Is(err, ErrTransient) || errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500 || apiErr.StatusCode == 429
	}
	return false
}
