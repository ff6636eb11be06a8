// Package middleware provides reusable HTTP middleware for request IDs,
// Prometheus metrics, request timeouts and per-client rate limits.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/metrics"
)

// Metrics counts requests by method, route and status, observes their
// latency and tracks how many are in flight. A nil m disables recording.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.HTTPRequestsInFlight.Inc()
			defer m.HTTPRequestsInFlight.Dec()

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			route := normalizePath(r.URL.Path)
			m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
			m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.Status())).Inc()
		})
	}
}

// statusRecorder remembers the first status written through it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

// Status is the written status, 200 when the handler wrote nothing.
func (s *statusRecorder) Status() int {
	if s.status == 0 {
		return http.StatusOK
	}
	return s.status
}

// pathParams names the segment following each collection under /api/v1.
var pathParams = map[string]string{
	"fields":  "{field}",
	"rails":   "{field}",
	"corpora": "{name}",
}

// normalizePath maps a request path to its route so label cardinality stays
// bounded: path parameters are replaced by their names and anything outside
// /api/v1 and /health collapses to "/other".
func normalizePath(path string) string {
	if strings.HasPrefix(path, "/health/") {
		return path
	}
	rest, ok := strings.CutPrefix(path, "/api/v1/")
	if !ok {
		return "/other"
	}
	parts := strings.Split(rest, "/")
	if name, ok := pathParams[parts[0]]; ok && len(parts) > 1 && parts[1] != "" {
		parts[1] = name
	}
	return "/api/v1/" + strings.Join(parts, "/")
}
