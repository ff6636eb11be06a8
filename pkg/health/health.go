// Package health aggregates component probes into the liveness and
// readiness reports served to the orchestrator. Probes run concurrently, each
// under its own deadline, and the report takes the worst status.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

type Status string

const (
	StatusUp       Status = "up"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

func (s Status) worse(o Status) bool { return rank(s) > rank(o) }

func rank(s Status) int {
	switch s {
	case StatusDown:
		return 2
	case StatusDegraded:
		return 1
	}
	return 0
}

// Check probes one component.
type Check func(ctx context.Context) ComponentHealth

type ComponentHealth struct {
	Status    Status `json:"status"`
	Message   string `json:"message,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// Pinger is any dependency that can be probed with a round trip.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck probes p. A nil p or a failed ping reports down for required
// dependencies and degraded for optional ones, such as the result cache.
func PingCheck(p Pinger, required bool) Check {
	if p == nil {
		return ErrCheck(func() error { return errNotConfigured }, required)
	}
	return func(ctx context.Context) ComponentHealth {
		return fromErr(p.Ping(ctx), required)
	}
}

// ErrCheck reports the error last seen by a background component, such as
// the generation consumer.
func ErrCheck(lastErr func() error, required bool) Check {
	return func(context.Context) ComponentHealth {
		return fromErr(lastErr(), required)
	}
}

var errNotConfigured = errors.New("not configured")

func fromErr(err error, required bool) ComponentHealth {
	switch {
	case err == nil:
		return ComponentHealth{Status: StatusUp}
	case required:
		return ComponentHealth{Status: StatusDown, Message: err.Error()}
	}
	return ComponentHealth{Status: StatusDegraded, Message: err.Error()}
}

type Report struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  time.Time                  `json:"timestamp"`
}

// Names lists the components of r in order.
func (r Report) Names() []string {
	names := make([]string, 0, len(r.Components))
	for n := range r.Components {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

type Checker struct {
	mu      sync.RWMutex
	checks  map[string]Check
	timeout time.Duration
}

// NewChecker returns a Checker whose probes each get at most timeout; zero
// means two seconds.
func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Checker{checks: make(map[string]Check), timeout: timeout}
}

func (c *Checker) Register(name string, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Run probes every component. A probe still running at its deadline is
// reported down.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	checks := make(map[string]Check, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	report := Report{
		Status:     StatusUp,
		Components: make(map[string]ComponentHealth, len(checks)),
		Timestamp:  time.Now().UTC(),
	}
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for name, check := range checks {
		g.Go(func() error {
			result := c.probe(ctx, check)
			mu.Lock()
			report.Components[name] = result
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	for _, comp := range report.Components {
		if comp.Status.worse(report.Status) {
			report.Status = comp.Status
		}
	}
	return report
}

func (c *Checker) probe(ctx context.Context, check Check) ComponentHealth {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	start := time.Now()
	done := make(chan ComponentHealth, 1)
	go func() { done <- check(ctx) }()

	var result ComponentHealth
	select {
	case result = <-done:
	case <-ctx.Done():
		result = ComponentHealth{Status: StatusDown, Message: "probe timed out"}
	}
	result.LatencyMS = time.Since(start).Milliseconds()
	return result
}

// LiveHandler answers as long as the process serves HTTP.
func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
	}
}

// ReadyHandler runs every probe. A degraded service still serves queries,
// so only down answers 503.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := c.Run(r.Context())
		status := http.StatusOK
		if report.Status == StatusDown {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, report)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
