// Package tracing provides a minimal span tracer used when full OpenTelemetry
// export isn't configured, plus the context helpers the logging and events
// packages use to correlate records with an in-flight trace.
package tracing

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

// SpanContext identifies a span within a trace.
type SpanContext struct {
	TraceID      string
	SpanID       string
	ParentSpanID string
	Start        time.Time
	End          time.Time
}

// Span is a single unit of traced work.
type Span interface {
	SetAttribute(key string, value any)
	End()
	IsEnded() bool
	Context() SpanContext
}

type ctxKey struct{}

// Tracer creates spans. When disabled it returns spans that do no
// bookkeeping beyond satisfying the interface, so call sites never need to
// branch on whether tracing is enabled.
type Tracer struct {
	enabled bool
}

// NewTracer returns a Tracer. When enabled is false, StartSpan returns noop
// spans cheaply.
func NewTracer(enabled bool) *Tracer { return &Tracer{enabled: enabled} }

// Noop reports whether this tracer performs no real span bookkeeping.
func (t *Tracer) Noop() bool { return !t.enabled }

// StartSpan begins a span, inheriting trace/parent IDs from ctx when present.
func (t *Tracer) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	if !t.enabled {
		sp := &span{sc: SpanContext{Start: time.Now()}}
		return ctx, sp
	}
	parentTraceID, parentSpanID := ExtractIDs(ctx)
	sc := SpanContext{
		TraceID:      parentTraceID,
		ParentSpanID: parentSpanID,
		SpanID:       newID(),
		Start:        time.Now(),
	}
	if sc.TraceID == "" {
		sc.TraceID = newID()
	}
	sp := &span{sc: sc, name: name}
	return context.WithValue(ctx, ctxKey{}, sc), sp
}

type span struct {
	mu    sync.Mutex
	sc    SpanContext
	name  string
	attrs map[string]any
	ended bool
}

func (s *span) SetAttribute(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attrs == nil {
		s.attrs = make(map[string]any)
	}
	s.attrs[key] = value
}

func (s *span) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.ended = true
	s.sc.End = time.Now()
}

func (s *span) IsEnded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

func (s *span) Context() SpanContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sc
}

// ExtractIDs pulls the trace/span IDs off ctx, if any, for log/event
// correlation. Both return values are empty when ctx carries no span.
func ExtractIDs(ctx context.Context) (traceID, spanID string) {
	sc, ok := ctx.Value(ctxKey{}).(SpanContext)
	if !ok {
		return "", ""
	}
	return sc.TraceID, sc.SpanID
}

func newID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
