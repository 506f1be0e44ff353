// Package health implements the Health Supervisor: the teacher's TTL-cached
// probe/evaluator facade (packages/engine/telemetry/health), re-pointed from
// static subsystem probes at one synthetic probe per kit, classifying each
// as online/stale/offline from its last_seen timestamp.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/fieldwatch/aegis/internal/models"
	"github.com/fieldwatch/aegis/internal/telemetry/events"
)

// Status enumerates health states, unified with models.HealthStatus plus the
// "unknown" state used before any classification has run.
type Status string

const (
	StatusUnknown Status = "unknown"
	StatusOnline  Status = "online"
	StatusStale   Status = "stale"
	StatusOffline Status = "offline"
)

func fromModel(s models.HealthStatus) Status { return Status(s) }

// ProbeResult is one kit's classification at a point in time.
type ProbeResult struct {
	KitID     string    `json:"kit_id"`
	Status    Status    `json:"status"`
	LastSeen  time.Time `json:"last_seen,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Snapshot aggregates every kit's classification and an overall rollup.
type Snapshot struct {
	Overall   Status        `json:"overall"`
	Kits      []ProbeResult `json:"kits"`
	Generated time.Time     `json:"generated"`
	TTL       time.Duration `json:"ttl"`
}

// Thresholds controls the boundaries between online, stale, and offline.
// A kit is online if seen within Online, stale if seen within Stale, and
// offline beyond that.
type Thresholds struct {
	Online time.Duration
	Stale  time.Duration
}

// DefaultThresholds matches the boundary spec.md §4.2 documents: online
// within 30 seconds, stale within 120 seconds, offline beyond that.
func DefaultThresholds() Thresholds {
	return Thresholds{Online: 30 * time.Second, Stale: 120 * time.Second}
}

// Classify returns the status for a kit last seen at lastSeen, evaluated at now.
func (t Thresholds) Classify(lastSeen, now time.Time) Status {
	if lastSeen.IsZero() {
		return StatusUnknown
	}
	age := now.Sub(lastSeen)
	switch {
	case age <= t.Online:
		return StatusOnline
	case age <= t.Stale:
		return StatusStale
	default:
		return StatusOffline
	}
}

// KitSource supplies the current kit snapshot the supervisor classifies.
// The registry implements this.
type KitSource interface {
	Kits() []models.Kit
}

// Supervisor is the Health Supervisor: it re-derives kit health on a TTL and
// publishes a transition event whenever a kit's status changes.
type Supervisor struct {
	source     KitSource
	thresholds Thresholds
	ttl        time.Duration
	bus        events.Bus

	mu       sync.Mutex
	cached   Snapshot
	lastSeen map[string]Status
}

// NewSupervisor constructs a Supervisor. ttl caches Evaluate results so
// frequent HTTP health-endpoint polling doesn't re-walk the kit list on
// every call; bus may be nil to disable transition events.
func NewSupervisor(source KitSource, thresholds Thresholds, ttl time.Duration, bus events.Bus) *Supervisor {
	if ttl <= 0 {
		ttl = 2 * time.Second
	}
	return &Supervisor{source: source, thresholds: thresholds, ttl: ttl, bus: bus, lastSeen: make(map[string]Status)}
}

// Evaluate returns a cached snapshot if within TTL, otherwise re-classifies
// every kit and publishes transition events for any status change.
func (s *Supervisor) Evaluate(ctx context.Context) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if s.cached.Generated.Add(s.ttl).After(now) {
		return s.cached
	}
	kits := s.source.Kits()
	results := make([]ProbeResult, 0, len(kits))
	overall := StatusOnline
	for _, k := range kits {
		st := s.thresholds.Classify(k.LastSeen, now)
		results = append(results, ProbeResult{KitID: k.ID, Status: st, LastSeen: k.LastSeen, CheckedAt: now})
		s.maybePublishTransition(ctx, k.ID, st)
		overall = worse(overall, st)
	}
	if len(results) == 0 {
		overall = StatusUnknown
	}
	snap := Snapshot{Overall: overall, Kits: results, Generated: now, TTL: s.ttl}
	s.cached = snap
	return snap
}

// StatusFor returns a single kit's last-classified status without forcing a
// full re-evaluation, falling back to classifying fresh if never cached.
func (s *Supervisor) StatusFor(ctx context.Context, kitID string) Status {
	snap := s.Evaluate(ctx)
	for _, r := range snap.Kits {
		if r.KitID == kitID {
			return r.Status
		}
	}
	return StatusUnknown
}

// ForceInvalidate clears the cached snapshot, forcing the next Evaluate to
// recompute.
func (s *Supervisor) ForceInvalidate() {
	s.mu.Lock()
	s.cached.Generated = time.Time{}
	s.mu.Unlock()
}

func (s *Supervisor) maybePublishTransition(ctx context.Context, kitID string, st Status) {
	prev, ok := s.lastSeen[kitID]
	s.lastSeen[kitID] = st
	if !ok || prev == st || s.bus == nil {
		return
	}
	_ = s.bus.PublishCtx(ctx, events.Event{
		Category: events.CategoryHealth,
		Type:     events.TypeHealthTransition,
		KitID:    kitID,
		Fields:   map[string]interface{}{"from": string(prev), "to": string(st)},
	})
}

func worse(a, b Status) Status {
	rank := map[Status]int{StatusUnknown: 0, StatusOnline: 1, StatusStale: 2, StatusOffline: 3}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
