// Package tracing provides lightweight in-process spans that follow a request
// through context. A query opens a root span and each stage (extract, score,
// rank) hangs a child off it; the finished tree is written to slog.
package tracing

import (
	"context"
	"hash/fnv"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/logger"
)

type contextKey struct{}

// threshold is the sampled fraction of the 32-bit trace hash space; 0 turns
// span logging off.
var threshold atomic.Uint64

func init() { threshold.Store(math.MaxUint32 + 1) }

// Configure sets whether span trees are logged and for which fraction of
// traces. A trace is either logged whole or not at all.
func Configure(enabled bool, sampleRate float64) {
	switch {
	case !enabled || sampleRate <= 0:
		threshold.Store(0)
	case sampleRate >= 1:
		threshold.Store(math.MaxUint32 + 1)
	default:
		threshold.Store(uint64(sampleRate * (math.MaxUint32 + 1)))
	}
}

func sampled(traceID string) bool {
	h := fnv.New32a()
	h.Write([]byte(traceID))
	return uint64(h.Sum32()) < threshold.Load()
}

// Span represents a timed operation within a trace.
type Span struct {
	Name     string
	TraceID  string
	Start    time.Time
	Duration time.Duration
	Children []*Span
	Attrs    map[string]any
	mu       sync.Mutex
}

// StartSpan opens a span. It becomes a child of the span already in ctx, or a
// root whose trace id is the request id when there is none.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	span := &Span{
		Name:  name,
		Start: time.Now(),
		Attrs: make(map[string]any),
	}
	if parent := SpanFromContext(ctx); parent != nil {
		span.TraceID = parent.TraceID
		parent.mu.Lock()
		parent.Children = append(parent.Children, span)
		parent.mu.Unlock()
	} else {
		span.TraceID = logger.RequestID(ctx)
	}
	return context.WithValue(ctx, contextKey{}, span), span
}

// End records the span's duration.
func (s *Span) End() {
	s.mu.Lock()
	s.Duration = time.Since(s.Start)
	s.mu.Unlock()
}

// SetAttr attaches a key-value attribute to the span.
func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.Attrs[key] = value
	s.mu.Unlock()
}

// SpanFromContext extracts the current Span from ctx, or nil if none.
func SpanFromContext(ctx context.Context) *Span {
	if span, ok := ctx.Value(contextKey{}).(*Span); ok {
		return span
	}
	return nil
}

// Log writes the span tree to l at debug level when its trace is sampled.
func (s *Span) Log(l *slog.Logger) {
	if !sampled(s.TraceID) {
		return
	}
	if l == nil {
		l = slog.Default()
	}
	s.log(l, 0)
}

func (s *Span) log(l *slog.Logger, depth int) {
	s.mu.Lock()
	attrs := []any{
		"trace_id", s.TraceID,
		"span", s.Name,
		"duration_ms", float64(s.Duration.Microseconds()) / 1000,
		"depth", depth,
	}
	for k, v := range s.Attrs {
		attrs = append(attrs, k, v)
	}
	children := append([]*Span(nil), s.Children...)
	s.mu.Unlock()
	l.Debug("span", attrs...)

	for _, child := range children {
		child.log(l, depth+1)
	}
}
