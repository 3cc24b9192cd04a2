// Package middleware provides HTTP middleware for the web server.
package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/tabimport/internal/logging"
)

// Logger writes one structured line per request after the handler returns.
// Server errors log at error level and client errors at warn. The line
// carries the matched route pattern and, for session routes, the session id.
//
// Log fields:
//   - method, path, route: request line and chi route pattern
//   - status, bytes: response status code and body size
//   - duration_ms: time spent in the handler chain
//   - ip: client address as resolved by TrustedRealIP
//   - user_agent: client user agent string
//   - session: session id from /api/sessions/{id}/...
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(ww, r)

		args := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.status,
			"bytes", ww.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", ClientIP(r),
			"user_agent", r.UserAgent(),
		}
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			route := rctx.RoutePattern()
			if route != "" {
				args = append(args, "route", route)
			}
			if strings.HasPrefix(route, "/api/sessions/{id}") {
				args = append(args, "session", rctx.URLParam("id"))
			}
		}

		logger := logging.FromContext(r.Context())
		switch {
		case ww.status >= http.StatusInternalServerError:
			logger.Error("request", args...)
		case ww.status >= http.StatusBadRequest:
			logger.Warn("request", args...)
		default:
			logger.Info("request", args...)
		}
	})
}

// responseWriter records the status code and body size. Only the first
// WriteHeader reaches the client.
type responseWriter struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (w *responseWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.status = status
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
