package httpserver

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/freightplan/planningserver/internal/auth"
	"github.com/freightplan/planningserver/internal/telemetry"
)

// RequestLogger logs one structured line per completed HTTP call, grounded
// on the teacher's statusWriter + slog middleware pattern, and records the
// call in the Prometheus request counter and duration histogram.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			duration := time.Since(start)

			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			telemetry.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).Inc()
			telemetry.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(duration.Seconds())

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", duration.Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			}
			if id := auth.FromContext(r.Context()); id != nil {
				attrs = append(attrs, "username", id.Username)
			}

			switch {
			case ww.Status() >= 500:
				logger.Error("request completed", attrs...)
			case ww.Status() >= 400:
				logger.Warn("request completed", attrs...)
			default:
				logger.Info("request completed", attrs...)
			}
		})
	}
}

// RequestRecorder persists a RequestRecord entity (spec §3) for every
// completed API call, so admins can audit traffic independently of the
// action-oriented AuditLog.
type RequestRecorder interface {
	RecordRequest(rec RequestRecord)
}

// RequestRecord mirrors spec §3's RequestRecord entity.
type RequestRecord struct {
	Method       string
	Path         string
	Query        string
	Username     string
	ClientIP     string
	StatusCode   int
	ResponseMS   int64
	Error        string
	CreatedAt    time.Time
}

// RecordRequests hands a RequestRecord to recorder after every call (spec
// §4.3 step 7). It wraps the ResponseWriter itself to capture the status, so
// it does not depend on RequestLogger and can wrap the whole router.
func RecordRequests(recorder RequestRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			rec := RequestRecord{
				Method:     r.Method,
				Path:       r.URL.Path,
				Query:      r.URL.RawQuery,
				ClientIP:   r.RemoteAddr,
				StatusCode: ww.Status(),
				ResponseMS: time.Since(start).Milliseconds(),
				CreatedAt:  start.UTC(),
			}
			if id := auth.FromContext(r.Context()); id != nil {
				rec.Username = id.Username
			}
			recorder.RecordRequest(rec)
		})
	}
}
