package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/liamcoop/warden/coerce"
	"github.com/liamcoop/warden/internal/logger"
)

// logRequests counts 4xx, 5xx and slow responses and logs every request
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		elapsed := time.Since(start)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", elapsed,
			"requestId", middleware.GetReqID(r.Context()),
		}

		switch {
		case status >= 500:
			logger.ErrorHttp5xx()
			logger.Logger.Error("request failed", attrs...)
		case status >= 400:
			logger.WarnHttp4xx(status)
			logger.Debug("request rejected", attrs...)
		default:
			logger.Debug("request served", attrs...)
		}

		if s.cfg.SlowRequestThreshold > 0 && elapsed > s.cfg.SlowRequestThreshold {
			logger.WarnSlowRequest()
			logger.Logger.Warn("slow request", attrs...)
		}
	})
}

// requireUUIDParam rejects requests whose URL parameter is not a UUID.
// Tenant and rule ids are UUID columns.
func requireUUIDParam(name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := uuid.Validate(chi.URLParam(r, name)); err != nil {
				respondError(w, http.StatusBadRequest, "invalid "+name, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Warn("failed to write response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := ErrorResponse{Error: message}
	if err != nil {
		response.Details = err.Error()
	}
	respondJSON(w, status, response)
}

// respondDecodeError reports facts that failed strict decoding, including where
func respondDecodeError(w http.ResponseWriter, err error) {
	response := ErrorResponse{
		Error:   "facts do not match the tenant schema",
		Details: err.Error(),
	}
	var mismatch *coerce.TypeMismatchError
	if errors.As(err, &mismatch) {
		response.Path = mismatch.Path
	}
	respondJSON(w, http.StatusBadRequest, response)
}
