package middleware

import (
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/ratelimit"
)

// RequestCost prices a request in rate-limit tokens. Zero exempts it.
type RequestCost func(r *http.Request) float64

// QueryCost exempts health probes and charges graph and cooccurrence
// queries more than plain lookups.
func QueryCost(r *http.Request) float64 {
	p := r.URL.Path
	switch {
	case strings.HasPrefix(p, "/health/"):
		return 0
	case strings.HasSuffix(p, "/graph"):
		return 4
	case strings.HasSuffix(p, "/cooc"), strings.HasSuffix(p, "/rebuild"):
		return 2
	}
	return 1
}

// RateLimit rejects requests with 429 once the client has spent its
// tokens. A nil limiter disables limiting.
func RateLimit(l *ratelimit.Limiter, cost RequestCost) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c := cost(r)
			if c <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			client := ClientIP(r)
			if !l.Allow(client, c) {
				wait := l.RetryAfter(client, c)
				logger.FromContext(r.Context()).Warn("rate limit exceeded",
					"client", client,
					"path", r.URL.Path,
					"retry_after", wait,
				)
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				fmt.Fprintf(w, "{\"error\":%q}\n", apperrors.ErrRateLimited.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP is the first X-Forwarded-For hop, else the remote host.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
