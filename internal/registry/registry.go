// Package registry implements the Kit Registry: an in-memory, copy-on-write
// map of known kits, loaded from a YAML file at startup and kept current by
// admin CRUD calls, MQTT/HTTP auto-registration, and an fsnotify watch on the
// kit file (adapted from the teacher's HotReloadSystem,
// packages/engine/config/runtime.go, stripped of its A/B-testing and
// version-history machinery — the Kit Registry only needs "reload on write
// and diff against what's running").
package registry

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/fieldwatch/aegis/internal/config"
	"github.com/fieldwatch/aegis/internal/models"
	"github.com/fieldwatch/aegis/internal/telemetry/events"
	"github.com/fieldwatch/aegis/internal/telemetry/logging"
)

// Registry holds the current kit fleet as a read-mostly snapshot. Reads
// never block; every mutation (file reload, admin CRUD, auto-registration)
// goes through mu so concurrent writers serialize instead of racing on a
// read-modify-write of the map.
type Registry struct {
	kitFilePath string
	snapshot    atomic.Pointer[map[string]models.Kit]
	mu          sync.Mutex
	bus         events.Bus
	log         logging.Logger
	httpClient  *http.Client
	watcher     *fsnotify.Watcher
}

// New constructs a Registry and performs the initial load from kitFilePath.
func New(kitFilePath string, bus events.Bus, log logging.Logger) (*Registry, error) {
	if log == nil {
		log = logging.NewNop()
	}
	r := &Registry{kitFilePath: kitFilePath, bus: bus, log: log, httpClient: &http.Client{Timeout: 5 * time.Second}}
	empty := map[string]models.Kit{}
	r.snapshot.Store(&empty)
	if err := r.reloadFromFile(); err != nil {
		return nil, err
	}
	return r, nil
}

// Kits returns a snapshot slice of every known kit, satisfying
// health.KitSource.
func (r *Registry) Kits() []models.Kit {
	m := *r.snapshot.Load()
	out := make([]models.Kit, 0, len(m))
	for _, k := range m {
		out = append(out, k)
	}
	return out
}

// Get returns a single kit by ID.
func (r *Registry) Get(id string) (models.Kit, bool) {
	m := *r.snapshot.Load()
	k, ok := m[id]
	return k, ok
}

// WatchFile starts an fsnotify watch on the kit file's directory and
// reloads whenever the file itself is written. It runs until ctx is done.
func (r *Registry) WatchFile(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create kit file watcher: %w", err)
	}
	r.watcher = w
	dir := dirOf(r.kitFilePath)
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch kit file dir %s: %w", dir, err)
	}
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Name != r.kitFilePath {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					if err := r.reloadFromFile(); err != nil {
						r.log.ErrorCtx(ctx, "kit file reload failed")
					}
				}
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

func (r *Registry) reloadFromFile() error {
	kits, err := config.LoadKitFile(r.kitFilePath)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	current := *r.snapshot.Load()
	next := make(map[string]models.Kit, len(current))
	for k, v := range current {
		next[k] = v
	}
	for _, fileKit := range kits {
		existing, ok := next[fileKit.ID]
		if !ok {
			fileKit.CreatedAt = time.Now()
			fileKit.UpdatedAt = fileKit.CreatedAt
			next[fileKit.ID] = fileKit
			continue
		}
		// File is the source of truth for operator-editable fields; runtime
		// state (LastSeen, Source, ConsecutiveFail) survives the reload.
		existing.Name = fileKit.Name
		existing.Lat = fileKit.Lat
		existing.Lon = fileKit.Lon
		existing.HTTPBaseURL = fileKit.HTTPBaseURL
		existing.DisabledByAdmin = fileKit.DisabledByAdmin
		existing.UpdatedAt = time.Now()
		next[fileKit.ID] = existing
	}
	r.snapshot.Store(&next)
	return nil
}

// Upsert creates or replaces a kit via the admin API.
func (r *Registry) Upsert(ctx context.Context, k models.Kit) models.Kit {
	r.mu.Lock()
	defer r.mu.Unlock()
	current := *r.snapshot.Load()
	next := cloneMap(current)
	now := time.Now()
	if existing, ok := next[k.ID]; ok {
		k.CreatedAt = existing.CreatedAt
		k.Source = models.MergeSource(existing.Source, k.Source)
		k.LastSeen = existing.LastSeen
	} else {
		k.CreatedAt = now
	}
	k.UpdatedAt = now
	next[k.ID] = k
	r.snapshot.Store(&next)
	return k
}

// Delete removes a kit from the registry.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current := *r.snapshot.Load()
	if _, ok := current[id]; !ok {
		return
	}
	next := cloneMap(current)
	delete(next, id)
	r.snapshot.Store(&next)
}

// SetDisabled toggles disabled_by_admin without touching any other field.
func (r *Registry) SetDisabled(ctx context.Context, id string, disabled bool) (models.Kit, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current := *r.snapshot.Load()
	k, ok := current[id]
	if !ok {
		return models.Kit{}, false
	}
	k.DisabledByAdmin = disabled
	k.UpdatedAt = time.Now()
	next := cloneMap(current)
	next[id] = k
	r.snapshot.Store(&next)
	if disabled && r.bus != nil {
		_ = r.bus.PublishCtx(ctx, events.Event{Category: events.CategoryRegistry, Type: events.TypeKitDisabled, KitID: id})
	}
	return k, true
}

// AutoRegister records an observation from an ingestion path for a kit ID
// not yet known to the registry, creating it with AutoRegistered=true. If
// the kit already exists, its Source lattice is merged and LastSeen bumped.
func (r *Registry) AutoRegister(ctx context.Context, id string, source models.Source, observedAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current := *r.snapshot.Load()
	next := cloneMap(current)
	now := time.Now()
	if existing, ok := next[id]; ok {
		existing.Source = models.MergeSource(existing.Source, source)
		if observedAt.After(existing.LastSeen) {
			existing.LastSeen = observedAt
		}
		existing.UpdatedAt = now
		next[id] = existing
		r.snapshot.Store(&next)
		return
	}
	k := models.Kit{ID: id, Name: id, Source: source, AutoRegistered: true, LastSeen: observedAt, CreatedAt: now, UpdatedAt: now}
	next[id] = k
	r.snapshot.Store(&next)
	if r.bus != nil {
		_ = r.bus.PublishCtx(ctx, events.Event{Category: events.CategoryRegistry, Type: events.TypeAutoRegistered, KitID: id})
	}
}

// Touch bumps LastSeen and merges Source for an already-registered kit,
// resetting ConsecutiveFail on a successful observation.
func (r *Registry) Touch(id string, source models.Source, observedAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current := *r.snapshot.Load()
	k, ok := current[id]
	if !ok {
		return
	}
	k.Source = models.MergeSource(k.Source, source)
	if observedAt.After(k.LastSeen) {
		k.LastSeen = observedAt
	}
	k.ConsecutiveFail = 0
	k.UpdatedAt = time.Now()
	next := cloneMap(current)
	next[id] = k
	r.snapshot.Store(&next)
}

// RecordFailure increments a kit's consecutive-failure counter, used by the
// HTTP collector's backoff derivation.
func (r *Registry) RecordFailure(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current := *r.snapshot.Load()
	k, ok := current[id]
	if !ok {
		return
	}
	k.ConsecutiveFail++
	next := cloneMap(current)
	next[id] = k
	r.snapshot.Store(&next)
}

// ProbeKit performs the admin connection-test: a single HTTP GET against the
// kit's base URL, returning the measured latency. It
// is independently testable because it never mutates registry state itself.
func (r *Registry) ProbeKit(ctx context.Context, id string) (time.Duration, error) {
	k, ok := r.Get(id)
	if !ok {
		return 0, fmt.Errorf("kit %s not found", id)
	}
	if k.HTTPBaseURL == "" {
		return 0, fmt.Errorf("kit %s has no http_base_url to probe", id)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.HTTPBaseURL, nil)
	if err != nil {
		return 0, fmt.Errorf("build probe request: %w", err)
	}
	start := time.Now()
	resp, err := r.httpClient.Do(req)
	latency := time.Since(start)
	if err != nil {
		return latency, fmt.Errorf("probe kit %s: %w", id, err)
	}
	defer resp.Body.Close()
	if r.bus != nil {
		_ = r.bus.PublishCtx(ctx, events.Event{Category: events.CategoryRegistry, Type: events.TypeKitConnectionTested, KitID: id, Fields: map[string]interface{}{"latency_ms": latency.Milliseconds(), "status": resp.StatusCode}})
	}
	return latency, nil
}

func cloneMap(m map[string]models.Kit) map[string]models.Kit {
	next := make(map[string]models.Kit, len(m)+1)
	for k, v := range m {
		next[k] = v
	}
	return next
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}
