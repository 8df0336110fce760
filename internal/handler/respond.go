package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	appErrors "github.com/unclebandit/mailblast-backend/internal/errors"
	"github.com/unclebandit/mailblast-backend/internal/logger"
)

// WriteJSON writes v with the given status code
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// StatusFor maps a service error to the HTTP status callers see
func StatusFor(err error) int {
	var mismatch *appErrors.SchemaMismatchError
	switch {
	case appErrors.IsCampaignNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, appErrors.ErrCampaignAlreadyStarted),
		errors.Is(err, appErrors.ErrCampaignNotRunning):
		return http.StatusConflict
	case errors.Is(err, appErrors.ErrInvalidInput),
		errors.Is(err, appErrors.ErrDecode),
		errors.Is(err, appErrors.ErrMissingEmailColumn),
		errors.As(err, &mismatch):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes err as {"error": "..."}. Internal errors are logged and
// their details are not echoed back.
func WriteError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	status := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		if log != nil {
			log.Error().Err(err).Str("request_id", middleware.GetReqID(r.Context())).
				Str("path", r.URL.Path).Msg("❌ request failed")
		}
		msg = "internal server error"
	}
	WriteJSON(w, status, map[string]string{"error": msg})
}

// IDParam reads a positive integer URL parameter
func IDParam(r *http.Request, name string) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || id < 1 {
		return 0, appErrors.ErrInvalidInput
	}
	return id, nil
}

// QueryInt reads an integer query parameter, falling back to def
func QueryInt(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return def
	}
	return v
}

// RequestLogger logs one line per request with the chi request id
func RequestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			log.WithRequestID(middleware.GetReqID(r.Context())).Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}
