package middleware

import (
	"net/http"
	"strings"
	"time"

	"tagfiler/internal/logging"
)

// loggingResponseWriter wraps http.ResponseWriter to capture the status code
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *loggingResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// LoggingConfig holds configuration for the logging middleware
type LoggingConfig struct {
	// LogHealthChecks controls whether health endpoints are logged
	LogHealthChecks bool
}

// DefaultLoggingConfig returns the default logging configuration
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{LogHealthChecks: false}
}

// Logger returns a middleware that logs each request with its status and
// duration.
func Logger(config LoggingConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !config.LogHealthChecks && isHealthPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			wrapped := &loggingResponseWriter{w, http.StatusOK}
			start := time.Now()

			next.ServeHTTP(wrapped, r)

			logging.Info("%s %s %d %v", r.Method, r.URL.Path, wrapped.statusCode, time.Since(start))
		})
	}
}

func isHealthPath(path string) bool {
	for _, p := range []string{"/health", "/healthz", "/livez", "/readyz"} {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
