package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/Clark-Hu/portion-finder/internal/apperr"
	"github.com/Clark-Hu/portion-finder/internal/logger"
	"github.com/Clark-Hu/portion-finder/internal/ratelimit"
)

const maxRequestBody = 1 << 20 // 1 MiB

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func (s *Server) log(r *http.Request) *slog.Logger {
	return logger.FromContext(r.Context(), s.logger)
}

func (s *Server) respondJSON(w http.ResponseWriter, r *http.Request, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			s.log(r).ErrorContext(r.Context(), "failed to encode response", slog.String("error", err.Error()))
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	s.respondJSON(w, r, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// respondAppError writes err using its AppError code and status. Anything
// else is reported as an opaque internal error.
func (s *Server) respondAppError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperr.AppError
	if !errors.As(err, &appErr) {
		s.log(r).ErrorContext(r.Context(), "unhandled error", slog.String("error", err.Error()))
		s.respondError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
		return
	}
	if appErr.Status >= http.StatusInternalServerError {
		s.log(r).ErrorContext(r.Context(), "request failed",
			slog.String("code", appErr.Code),
			slog.String("error", appErr.Error()),
		)
	}
	if appErr.Limit > 0 {
		setRateLimitHeaders(w, ratelimit.Decision{Count: appErr.Limit, Limit: appErr.Limit, ResetAt: appErr.ResetAt})
	}
	if appErr.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.FormatInt(int64(math.Ceil(appErr.RetryAfter.Seconds())), 10))
	}
	s.respondError(w, r, appErr.Status, appErr.Code, appErr.Message)
}

func (s *Server) respondDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	var syntaxError *json.SyntaxError
	var typeError *json.UnmarshalTypeError
	var maxBytesError *http.MaxBytesError
	switch {
	case errors.As(err, &syntaxError):
		s.respondError(w, r, http.StatusBadRequest, "INVALID_INPUT", "Malformed JSON payload")
	case errors.As(err, &typeError):
		s.respondError(w, r, http.StatusBadRequest, "INVALID_INPUT", fmt.Sprintf("Invalid value for field %s", typeError.Field))
	case errors.As(err, &maxBytesError):
		s.respondError(w, r, http.StatusRequestEntityTooLarge, "INVALID_INPUT", "Request body too large")
	case errors.Is(err, io.EOF):
		s.respondError(w, r, http.StatusBadRequest, "INVALID_INPUT", "Request body cannot be empty")
	default:
		s.respondError(w, r, http.StatusBadRequest, "INVALID_INPUT", "Unable to parse request body")
	}
}
