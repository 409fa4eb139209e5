package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConstructors_StatusAndSentinel(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		name     string
		err      *AppError
		status   int
		code     string
		sentinel error
	}{
		{"invalid input", InvalidInput("bad"), http.StatusBadRequest, "INVALID_INPUT", ErrInvalidInput},
		{"not found", NotFound("nothing"), http.StatusNotFound, "NOT_FOUND", ErrNotFound},
		{"rate limited", RateLimited(5, time.Time{}, time.Minute), http.StatusTooManyRequests, "RATE_LIMITED", ErrRateLimited},
		{"upstream passthrough", Upstream("geocoder", http.StatusForbidden, "denied", cause), http.StatusForbidden, "UPSTREAM_ERROR", ErrUpstream},
		{"upstream default", Upstream("directory", 0, "", cause), http.StatusBadGateway, "UPSTREAM_ERROR", ErrUpstream},
		{"store", Store(cause), http.StatusInternalServerError, "STORE_ERROR", ErrStore},
		{"internal", Internal(cause), http.StatusInternalServerError, "INTERNAL_ERROR", ErrInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.Status)
			assert.Equal(t, tt.code, tt.err.Code)
			assert.ErrorIs(t, tt.err, tt.sentinel)
			assert.NotEmpty(t, tt.err.Message)
		})
	}
}

func TestUpstream_KeepsCause(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := Upstream("directory", 0, "", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "directory request failed", err.Message)
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusTooManyRequests, HTTPStatus(fmt.Errorf("wrapped: %w", RateLimited(5, time.Time{}, 0))))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(fmt.Errorf("x: %w", ErrInvalidInput)))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(ErrNotFound))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(ErrUpstream))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("other")))
}
