// Package middleware holds the HTTP middleware that is not tied to
// authentication: request logging and per-client rate limiting.
//
// Every middleware here has the chi shape func(http.Handler) http.Handler,
// so it can sit on the whole router (Logger) or on single routes via
// r.With(...) (RateLimiter.Middleware).
package middleware

import (
	"log/slog"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// QuietPaths are logged at Debug instead of Info when they succeed, so load
// balancer probes don't drown out real traffic.
var QuietPaths = map[string]bool{
	"/healthz": true,
}

// statusRecorder remembers the status code and body size a handler wrote.
// http.ResponseWriter offers no way to read them back afterwards.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	bytes       int64
	wroteHeader bool
}

// WriteHeader records the first status only, as net/http does.
func (sr *statusRecorder) WriteHeader(code int) {
	if sr.wroteHeader {
		return
	}
	sr.wroteHeader = true
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.wroteHeader {
		sr.WriteHeader(http.StatusOK)
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

// Logger logs one line per request after the handler returns.
//
// The line carries the chi request id, method, path, client address, status,
// duration and bytes written. 5xx responses are logged at Error and 4xx at
// Warn. Successful requests to QuietPaths drop to Debug.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			logger.LogAttrs(r.Context(), levelFor(r.URL.Path, rec.status), "request completed",
				slog.String("requestID", chimiddleware.GetReqID(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote", r.RemoteAddr),
				slog.Int("status", rec.status),
				slog.Duration("duration", time.Since(start)),
				slog.Int64("bytes", rec.bytes),
			)
		})
	}
}

func levelFor(path string, status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	case QuietPaths[path]:
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
