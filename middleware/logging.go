// Package middleware contains the shared HTTP middleware: request
// correlation IDs, structured access logs, panic recovery, CORS, and
// dashboard authentication.
package middleware

import (
	"context"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// requestIDHeader propagates the correlation ID
	requestIDHeader = "X-Request-ID"
	// maxQueryLogLength caps the logged query string
	maxQueryLogLength = 2048
)

type contextKey int

const (
	ctxKeyRequestID contextKey = iota
	ctxKeyUsername
)

// RequestID attaches or propagates a correlation identifier per request. An
// incoming X-Request-ID is reused; otherwise a new UUID is generated. Placed
// first in the chain so every log line and error body can carry the ID.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, rid)
		ctx := context.WithValue(r.Context(), ctxKeyRequestID, rid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the correlation ID attached by RequestID, or ""
func GetRequestID(r *http.Request) string {
	if rid, ok := r.Context().Value(ctxKeyRequestID).(string); ok {
		return rid
	}
	return ""
}

// statusRecorder captures the response status and size for access logging.
// Flush passes through so streaming responses keep working behind it.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (rec *statusRecorder) WriteHeader(code int) {
	if rec.status == 0 {
		rec.status = code
	}
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	if rec.status == 0 {
		rec.status = http.StatusOK
	}
	n, err := rec.ResponseWriter.Write(b)
	rec.bytes += n
	return n, err
}

func (rec *statusRecorder) Flush() {
	if f, ok := rec.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Logger writes one structured access log line per request. Level follows the
// outcome: error for 5xx, warn for 4xx, info otherwise.
func Logger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}

			next.ServeHTTP(rec, r)

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}

			event := logger.With().
				Str("request_id", GetRequestID(r)).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("query", truncate(r.URL.RawQuery, maxQueryLogLength)).
				Str("remote_ip", ClientIP(r)).
				Str("user_agent", r.UserAgent()).
				Int("status", status).
				Int("bytes_out", rec.bytes).
				Dur("latency", time.Since(start)).
				Logger()

			switch {
			case status >= 500:
				event.Error().Msg("request")
			case status >= 400:
				event.Warn().Msg("request")
			default:
				event.Info().Msg("request")
			}
		})
	}
}

// Recovery converts handler panics into JSON 500 responses and logs the stack
func Recovery(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error().
						Interface("panic", rec).
						Bytes("stack", debug.Stack()).
						Str("request_id", GetRequestID(r)).
						Str("path", r.URL.Path).
						Msg("panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_, _ = w.Write([]byte(`{"error":"Internal Server Error","message":"internal server error","code":500}`))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP extracts the originating client address, honoring the usual proxy
// headers before falling back to the socket peer.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return real
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
