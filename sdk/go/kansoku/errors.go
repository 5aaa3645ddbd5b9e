// Package kansoku provides a Go client for the Kansoku session viewer API.
package kansoku

import (
	"errors"
	"fmt"
)

// Error is a non-2xx response from the Kansoku API.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("kansoku: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

func statusIs(err error, code int) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode == code
	}
	return false
}

// IsNotFound returns true if the error is a 404.
func IsNotFound(err error) bool { return statusIs(err, 404) }

// IsUnauthorized returns true if the error is a 401.
func IsUnauthorized(err error) bool { return statusIs(err, 401) }

// IsForbidden returns true if the error is a 403. Refresh returns it for
// viewer-role tokens.
func IsForbidden(err error) bool { return statusIs(err, 403) }

// IsRateLimited returns true if the error is a 429 (Too Many Requests).
func IsRateLimited(err error) bool { return statusIs(err, 429) }

// IsUnavailable returns true if the error is a 503, which the server
// returns while no view has been polled yet.
func IsUnavailable(err error) bool { return statusIs(err, 503) }
