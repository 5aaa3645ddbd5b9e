package model

import "time"

// APIResponse is the standard response envelope for all HTTP API responses.
type APIResponse struct {
	Data any          `json:"data,omitempty"`
	Meta ResponseMeta `json:"meta"`
}

// ListResponse is the envelope for list endpoints. Total counts every
// matching item before Limit is applied.
type ListResponse struct {
	Data    any          `json:"data"`
	Total   int          `json:"total"`
	HasMore bool         `json:"has_more"`
	Limit   int          `json:"limit"`
	Meta    ResponseMeta `json:"meta"`
}

// APIError is the standard error response envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ResponseMeta contains request metadata included in every response.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Stale     bool      `json:"stale,omitempty"`
}

// ErrorDetail describes an API error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorCode constants for standard API error codes.
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeForbidden     = "FORBIDDEN"
	ErrCodeRateLimited   = "RATE_LIMITED"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeUnavailable   = "UNAVAILABLE"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status       string     `json:"status"` // healthy, degraded, starting
	Version      string     `json:"version"`
	Source       string     `json:"source"`
	LastPollAt   *time.Time `json:"last_poll_at,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
	PollFailures int64      `json:"poll_failures"`
	Subscribers  int        `json:"subscribers"`
	StateStore   string     `json:"state_store,omitempty"`
	Uptime       int64      `json:"uptime_seconds"`
}

// UIState is the persisted presentation state returned by GET /v1/ui/state.
type UIState struct {
	Expanded     []string `json:"expanded"`
	KnownTaskIDs []string `json:"known_task_ids"`
}
