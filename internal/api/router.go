package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

// History listing bounds.
const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// healthCheckTimeout bounds dependency checks made by /health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)

		r.Route("/history", func(r chi.Router) {
			r.Get("/events", s.handleListEvents)
			r.Get("/readings", s.handleListReadings)
		})

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth reports liveness, plus database health when one is attached.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":  "ok",
		"version": s.version,
	}
	status := http.StatusOK

	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := s.db.HealthCheck(ctx); err != nil {
			s.logger.Warn("database health check failed", "error", err)
			resp["status"] = "degraded"
			resp["database"] = "unavailable"
			status = http.StatusServiceUnavailable
		} else {
			resp["database"] = "ok"
		}
	}

	writeJSON(w, status, resp)
}

// handleStatus returns the latest connectivity snapshot.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.status.Status())
}

// handleListEvents returns recent connectivity events, newest first.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.historyRequest(w, r)
	if !ok {
		return
	}

	events, err := s.history.Events(r.Context(), limit)
	if err != nil {
		s.logger.Error("listing connectivity events failed", "error", err)
		writeInternalError(w, "failed to list events")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

// handleListReadings returns recent state publish attempts, newest first.
func (s *Server) handleListReadings(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.historyRequest(w, r)
	if !ok {
		return
	}

	readings, err := s.history.Readings(r.Context(), limit)
	if err != nil {
		s.logger.Error("listing readings failed", "error", err)
		writeInternalError(w, "failed to list readings")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"readings": readings,
		"count":    len(readings),
	})
}

// historyRequest validates the limit and history availability, writing the
// error response itself when the request cannot be served.
func (s *Server) historyRequest(w http.ResponseWriter, r *http.Request) (int, bool) {
	limit, err := parseHistoryLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return 0, false
	}
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "history unavailable")
		return 0, false
	}
	return limit, true
}

var errInvalidLimit = errors.New("invalid limit")

// parseHistoryLimit parses the limit query parameter with bounds enforcement.
func parseHistoryLimit(raw string) (int, error) {
	if raw == "" {
		return defaultHistoryLimit, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, errInvalidLimit
	}
	if limit > maxHistoryLimit {
		return 0, fmt.Errorf("limit exceeds maximum of %d", maxHistoryLimit)
	}
	return limit, nil
}
