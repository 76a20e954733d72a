// Package api provides the HTTP surface of the Vercel integration: the
// webhook ingress route Vercel delivers to, and a read-mostly admin API over
// event types, registrations, received events and the dead letter queue.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/xraph/vercel/celebrate"
	"github.com/xraph/vercel/dlq"
	"github.com/xraph/vercel/store"
	"github.com/xraph/vercel/trigger"
)

// DefaultMaxBodyBytes caps webhook bodies read by the ingress route.
const DefaultMaxBodyBytes = 1 << 20

// Handler is the root HTTP handler.
type Handler struct {
	store        store.Store
	source       *trigger.Source
	dlqSvc       *dlq.Service
	logger       *slog.Logger
	mux          *http.ServeMux
	maxBodyBytes int64

	celebrateOpts []celebrate.Option
}

// NewHandler creates a new API handler.
func NewHandler(
	s store.Store,
	source *trigger.Source,
	dlqSvc *dlq.Service,
	logger *slog.Logger,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handler{
		store:        s,
		source:       source,
		dlqSvc:       dlqSvc,
		logger:       logger,
		mux:          http.NewServeMux(),
		maxBodyBytes: DefaultMaxBodyBytes,
	}

	h.registerRoutes()
	return h
}

func (h *Handler) registerRoutes() {
	// Ingress
	h.mux.HandleFunc("POST /hooks/{registrationID}", h.receiveWebhook)

	// Event types
	h.mux.HandleFunc("GET /event-types", h.listEventTypes)
	h.mux.HandleFunc("GET /event-types/{name}", h.getEventType)

	// Registrations
	h.mux.HandleFunc("GET /triggers", h.listTriggers)
	h.mux.HandleFunc("GET /triggers/{id}", h.getTrigger)

	// Events
	h.mux.HandleFunc("GET /events", h.listEvents)
	h.mux.HandleFunc("GET /events/{id}", h.getEvent)

	// DLQ
	h.mux.HandleFunc("GET /dlq", h.listDLQ)
	h.mux.HandleFunc("GET /dlq/{id}", h.getDLQ)
	h.mux.HandleFunc("POST /dlq/{id}/replay", h.replayDLQ)
	h.mux.HandleFunc("DELETE /dlq/{id}", h.deleteDLQ)
	h.mux.HandleFunc("POST /dlq/purge", h.purgeDLQ)

	// Stats
	h.mux.HandleFunc("GET /stats", h.getStats)

	// Confetti stream for dashboards
	h.mux.HandleFunc("GET /celebrate", h.streamCelebration)
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.withMiddleware(h.mux).ServeHTTP(w, r)
}

func (h *Handler) withMiddleware(next http.Handler) http.Handler {
	return h.panicRecovery(h.logging(next))
}

// logging writes one line per request. Ingress lines carry the registration
// id, and the level follows the response class so rejected deliveries stand
// out from admin traffic.
func (h *Handler) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if regID := r.PathValue("registrationID"); regID != "" {
			attrs = append(attrs, "registration_id", regID)
		}

		level := slog.LevelDebug
		switch {
		case rw.status >= 500:
			level = slog.LevelError
		case rw.status >= 400:
			level = slog.LevelWarn
		case strings.HasPrefix(r.URL.Path, "/hooks/"):
			level = slog.LevelInfo
		}
		h.logger.Log(r.Context(), level, "api request", attrs...)
	})
}

func (h *Handler) panicRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				h.logger.Error("panic recovered",
					"path", r.URL.Path,
					"error", rec,
					"stack", string(debug.Stack()),
				)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *statusRecorder) Unwrap() http.ResponseWriter { return rw.ResponseWriter }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best effort
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func queryParam(r *http.Request, key string) string {
	return r.URL.Query().Get(key)
}

// maxPageSize bounds the limit query parameter of list routes.
const maxPageSize = 500

// page reads offset and limit. Bad or negative values fall back to the
// defaults and limit is capped at maxPageSize.
func page(r *http.Request) (offset, limit int) {
	offset = queryInt(r, "offset", 0)
	limit = queryInt(r, "limit", 50)
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return offset, limit
}

func queryInt(r *http.Request, key string, defaultVal int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n < 0 {
		return defaultVal
	}
	return n
}
