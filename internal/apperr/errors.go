package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Sentinels for the error categories surfaced to clients.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrRateLimited  = errors.New("rate limited")
	ErrUpstream     = errors.New("upstream error")
	ErrStore        = errors.New("store error")
	ErrInternal     = errors.New("internal error")
)

// AppError is an error with a machine-checkable code and an HTTP status.
// Message is safe to show to clients; Err is kept for logs only.
type AppError struct {
	Code       string
	Message    string
	Status     int
	RetryAfter time.Duration
	// Limit and ResetAt describe the exhausted quota of a rate-limited call.
	Limit      int
	ResetAt    time.Time
	Err        error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// NotFound creates a 404 error.
func NotFound(message string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: message,
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// RateLimited creates a 429 error for a client that used up limit calls in a
// window ending at resetAt. retryAfter may be zero when unknown.
func RateLimited(limit int, resetAt time.Time, retryAfter time.Duration) *AppError {
	return &AppError{
		Code:       "RATE_LIMITED",
		Message:    "Too many requests, please try again later.",
		Status:     http.StatusTooManyRequests,
		RetryAfter: retryAfter,
		Limit:      limit,
		ResetAt:    resetAt,
		Err:        ErrRateLimited,
	}
}

// Upstream creates an error for a failed provider call. A provider status of
// 400 or above is passed through; anything else becomes 502.
func Upstream(provider string, status int, message string, cause error) *AppError {
	if status < http.StatusBadRequest {
		status = http.StatusBadGateway
	}
	if message == "" {
		message = provider + " request failed"
	}
	return &AppError{
		Code:    "UPSTREAM_ERROR",
		Message: message,
		Status:  status,
		Err:     fmt.Errorf("%w: %s: %w", ErrUpstream, provider, cause),
	}
}

// Store creates a 500 error for persistence failures.
func Store(cause error) *AppError {
	return &AppError{
		Code:    "STORE_ERROR",
		Message: "Failed to access ratings",
		Status:  http.StatusInternalServerError,
		Err:     fmt.Errorf("%w: %w", ErrStore, cause),
	}
}

// Internal creates a generic 500 error.
func Internal(cause error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "An internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     fmt.Errorf("%w: %w", ErrInternal, cause),
	}
}

// HTTPStatus returns the HTTP status code for err.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	switch {
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
