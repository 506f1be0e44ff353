// Package httpapi implements the Read HTTP API: a go-chi router exposing
// kit, track, signal, pattern, and estimator endpoints, in the style of the
// teacher's engine/adapters/telemetryhttp handlers (thin http.HandlerFunc
// wrappers over a facade, JSON envelopes, error mapping at the edge).
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/fieldwatch/aegis/internal/apperr"
	"github.com/fieldwatch/aegis/internal/health"
	"github.com/fieldwatch/aegis/internal/models"
	"github.com/fieldwatch/aegis/internal/query"
	"github.com/fieldwatch/aegis/internal/telemetry/logging"
	"github.com/fieldwatch/aegis/internal/telemetry/metrics"
)

// KitStore is the admin-facing subset of the registry the API drives.
type KitStore interface {
	Kits() []models.Kit
	Get(id string) (models.Kit, bool)
	Upsert(ctx context.Context, k models.Kit) models.Kit
	Delete(id string)
	SetDisabled(ctx context.Context, id string, disabled bool) (models.Kit, bool)
	ProbeKit(ctx context.Context, id string) (time.Duration, error)
}

// DataStore is the subset of the Persistence Writer the admin delete path
// needs for delete_data=true.
type DataStore interface {
	DeleteKit(ctx context.Context, id string, purgeData bool) error
}

// HealthSource supplies the Health Supervisor snapshot for /health and
// /api/kits status enrichment.
type HealthSource interface {
	Evaluate(ctx context.Context) health.Snapshot
	StatusFor(ctx context.Context, kitID string) health.Status
}

// Config wires every dependency the router needs.
type Config struct {
	Kits           KitStore
	Data           DataStore
	HealthSource   HealthSource
	Repository     query.Repository
	Metrics        metrics.Provider
	Log            logging.Logger
	AllowedOrigins []string
}

// App is the bound set of handler dependencies, analogous to the teacher's
// Engine facade passed into its adapter handlers.
type App struct {
	cfg Config
}

// NewRouter builds the chi router for every endpoint in spec.md §6.
func NewRouter(cfg Config) http.Handler {
	if cfg.Log == nil {
		cfg.Log = logging.NewNop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoopProvider()
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	app := &App{cfg: cfg}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", app.handleHealth)
	r.Get("/api/kits", app.handleListKits)
	r.Get("/api/drones", app.handleQueryTracks)
	r.Get("/api/drones/{id}/track", app.handleTrackHistory)
	r.Get("/api/signals", app.handleQuerySignals)
	r.Get("/api/export/csv", app.handleExportCSV)

	r.Post("/api/admin/kits", app.handleCreateKit)
	r.Put("/api/admin/kits/{id}", app.handleUpdateKit)
	r.Delete("/api/admin/kits/{id}", app.handleDeleteKit)
	r.Post("/api/admin/kits/test", app.handleTestKit)

	r.Get("/api/patterns/repeated-drones", app.handleRepeatedContacts)
	r.Get("/api/patterns/coordinated", app.handleCoordinated)
	r.Get("/api/patterns/pilot-reuse", app.handlePilotReuse)
	r.Get("/api/patterns/anomalies", app.handleAnomalies)
	r.Get("/api/patterns/multi-kit", app.handleMultiKit)
	r.Get("/api/patterns/security-alerts", app.handleSecurityAlerts)
	r.Get("/api/patterns/loitering", app.handleLoitering)
	r.Get("/api/patterns/rapid-descent", app.handleRapidDescent)
	r.Get("/api/patterns/night-activity", app.handleNightActivity)

	r.Get("/api/analysis/estimate-location/{drone_id}", app.handleEstimateLocation)

	mh := metricsHandler(cfg.Metrics)
	if mh != nil {
		r.Get("/metrics", mh.ServeHTTP)
	}
	return r
}

func metricsHandler(p metrics.Provider) http.Handler {
	if h, ok := p.(interface{ MetricsHandler() http.Handler }); ok {
		return h.MetricsHandler()
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	writeJSON(w, status, map[string]string{"detail": apperr.Detail(err)})
}

func parseTrackFilter(r *http.Request) (query.TrackFilter, error) {
	now := time.Now()
	tr, err := query.ParseTimeRange(r.URL.Query().Get("time_range"), now)
	if err != nil {
		return query.TrackFilter{}, err
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, convErr := parseIntParam(raw); convErr == nil {
			limit = n
		} else {
			return query.TrackFilter{}, apperr.UserError("httpapi", convErr)
		}
	}
	return query.TrackFilter{
		Range:       tr,
		KitIDs:      query.ParseKitIDs(r.URL.Query().Get("kit_id")),
		RIDMake:     r.URL.Query().Get("rid_make"),
		TrackType:   r.URL.Query().Get("track_type"),
		Limit:       limit,
		Deduplicate: r.URL.Query().Get("deduplicate") == "true",
	}, nil
}

func parseIntParam(raw string) (int, error) {
	return strconv.Atoi(raw)
}

func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
