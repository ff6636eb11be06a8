package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/ratelimit"
)

func TestQueryCost(t *testing.T) {
	tests := map[string]float64{
		"/health/ready":                 0,
		"/api/v1/fields/text/graph":     4,
		"/api/v1/fields/text/cooc":      2,
		"/api/v1/rails/text/rebuild":    2,
		"/api/v1/fields/text/terms":     1,
		"/api/v1/corpora/novels":        1,
		"/api/v1/fields/text/graph/x/y": 1,
	}
	for path, want := range tests {
		assert.Equal(t, want, QueryCost(httptest.NewRequest(http.MethodGet, path, nil)), path)
	}
}

func TestRateLimitRejectsOverBudgetClients(t *testing.T) {
	l := ratelimit.New(4, time.Minute)
	t.Cleanup(l.Close)
	h := RateLimit(l, QueryCost)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	serve := func(path, forwarded string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if forwarded != "" {
			req.Header.Set("X-Forwarded-For", forwarded)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, serve("/api/v1/fields/text/graph", "").Code)

	rec := serve("/api/v1/fields/text/terms", "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "15", rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, rec.Body.String())

	assert.Equal(t, http.StatusOK, serve("/health/live", "").Code, "probes are exempt")
	assert.Equal(t, http.StatusOK, serve("/api/v1/fields/text/terms", "203.0.113.7, 10.0.0.1").Code)
}

func TestRateLimitNilLimiterPassesThrough(t *testing.T) {
	called := false
	h := RateLimit(nil, QueryCost)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, called)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.2:5555"
	assert.Equal(t, "198.51.100.2", ClientIP(req))

	req.Header.Set("X-Forwarded-For", " 203.0.113.9 ,198.51.100.2")
	assert.Equal(t, "203.0.113.9", ClientIP(req))

	req.Header.Del("X-Forwarded-For")
	req.RemoteAddr = "unix"
	assert.Equal(t, "unix", ClientIP(req))
}
