// Package api exposes the monitoring engine's operations over HTTP. The
// surface is deliberately thin: routing and JSON envelopes only, with all
// validation and semantics delegated to the engine.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cad-sentinel/internal/monitor"
	"cad-sentinel/internal/schema"
	"cad-sentinel/internal/storage"

	"github.com/google/uuid"
)

// Engine is the slice of the monitoring service the API serves.
type Engine interface {
	LogEvent(ctx context.Context, event *schema.SecurityEvent) (uuid.UUID, error)
	GetEvents(ctx context.Context, filter storage.EventFilter, page storage.Page) (*storage.EventPage, error)
	ResolveEvent(ctx context.Context, id uuid.UUID, resolvedBy, note string) error
	GetSecurityMetrics(ctx context.Context, r monitor.Range) (*monitor.SecurityMetrics, error)
	DetectSuspiciousPatterns(ctx context.Context) (*monitor.PatternScan, error)
}

// Pinger reports datastore liveness for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// APIError is the structured error envelope.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Handler serves the monitoring API.
type Handler struct {
	engine Engine
	pinger Pinger
	logger *slog.Logger
}

// NewHandler creates a Handler. pinger may be nil; /healthz then only
// reports process liveness.
func NewHandler(engine Engine, pinger Pinger, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{engine: engine, pinger: pinger, logger: logger}
}

// RegisterRoutes attaches all endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/events", h.handleLogEvent)
	mux.HandleFunc("GET /api/v1/events", h.handleGetEvents)
	mux.HandleFunc("POST /api/v1/events/{id}/resolve", h.handleResolveEvent)
	mux.HandleFunc("GET /api/v1/metrics/security", h.handleSecurityMetrics)
	mux.HandleFunc("POST /api/v1/patterns/scan", h.handlePatternScan)
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

func (h *Handler) handleLogEvent(w http.ResponseWriter, r *http.Request) {
	var event schema.SecurityEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_json", "request body is not valid JSON")
		return
	}

	id, err := h.engine.LogEvent(r.Context(), &event)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id.String()})
}

func (h *Handler) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	filter, page, err := parseEventQuery(r.URL.Query())
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_filter", err.Error())
		return
	}

	result, err := h.engine.GetEvents(r.Context(), filter, page)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// resolveRequest is the body of a resolve call.
type resolveRequest struct {
	ResolvedBy string `json:"resolved_by"`
	Note       string `json:"note,omitempty"`
}

func (h *Handler) handleResolveEvent(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_id", "event id is not a valid UUID")
		return
	}

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_json", "request body is not valid JSON")
		return
	}

	if err := h.engine.ResolveEvent(r.Context(), id, req.ResolvedBy, req.Note); err != nil {
		h.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSecurityMetrics(w http.ResponseWriter, r *http.Request) {
	rng := monitor.Range(r.URL.Query().Get("range"))
	if rng == "" {
		rng = monitor.RangeDay
	}

	metrics, err := h.engine.GetSecurityMetrics(r.Context(), rng)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, metrics)
}

func (h *Handler) handlePatternScan(w http.ResponseWriter, r *http.Request) {
	scan, err := h.engine.DetectSuspiciousPatterns(r.Context())
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scan)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.pinger.Ping(ctx); err != nil {
			writeJSONError(w, http.StatusServiceUnavailable, "store_unavailable", "datastore ping failed")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeEngineError maps engine error kinds onto HTTP statuses. The response
// carries the coarse kind only; the cause chain goes to the log.
func (h *Handler) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, monitor.ErrValidation):
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, monitor.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "not_found", "event not found")
	default:
		h.logger.Error("request failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal", "operation failed")
	}
}

// parseEventQuery builds an event filter from URL query parameters.
func parseEventQuery(q map[string][]string) (storage.EventFilter, storage.Page, error) {
	var filter storage.EventFilter
	var page storage.Page

	get := func(key string) string {
		if vals := q[key]; len(vals) > 0 {
			return vals[0]
		}
		return ""
	}

	if v := get("severity"); v != "" {
		for _, s := range strings.Split(v, ",") {
			filter.Severities = append(filter.Severities, schema.Severity(strings.TrimSpace(s)))
		}
	}
	if v := get("event_type"); v != "" {
		for _, t := range strings.Split(v, ",") {
			filter.EventTypes = append(filter.EventTypes, strings.TrimSpace(t))
		}
	}
	if v := get("user_id"); v != "" {
		filter.UserID = &v
	}
	if v := get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, page, errors.New("from must be RFC 3339")
		}
		filter.From = &t
	}
	if v := get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, page, errors.New("to must be RFC 3339")
		}
		filter.To = &t
	}
	if v := get("resolved"); v != "" {
		resolved, err := strconv.ParseBool(v)
		if err != nil {
			return filter, page, errors.New("resolved must be a boolean")
		}
		filter.Resolved = &resolved
	}
	if v := get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			return filter, page, errors.New("limit must be a non-negative integer")
		}
		page.Limit = limit
	}
	if v := get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			return filter, page, errors.New("offset must be a non-negative integer")
		}
		page.Offset = offset
	}

	return filter, page, nil
}

// writeJSON writes a JSON response with proper error handling.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

// writeJSONError writes a structured JSON error response.
func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(APIError{Code: code, Message: message}); err != nil {
		slog.Error("failed to write error response", "error", err)
	}
}
