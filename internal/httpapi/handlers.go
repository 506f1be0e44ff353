package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fieldwatch/aegis/internal/apperr"
	"github.com/fieldwatch/aegis/internal/models"
	"github.com/fieldwatch/aegis/internal/query"
)

type kitStatus struct {
	models.Kit
	Status string `json:"status"`
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	if a.cfg.HealthSource == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
		return
	}
	snap := a.cfg.HealthSource.Evaluate(r.Context())
	if snap.Overall == "offline" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (a *App) handleListKits(w http.ResponseWriter, r *http.Request) {
	kits := a.cfg.Kits.Kits()
	out := make([]kitStatus, 0, len(kits))
	for _, k := range kits {
		status := "unknown"
		if a.cfg.HealthSource != nil {
			status = string(a.cfg.HealthSource.StatusFor(r.Context(), k.ID))
		}
		out = append(out, kitStatus{Kit: k, Status: status})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"count": len(out), "kits": out})
}

func (a *App) handleQueryTracks(w http.ResponseWriter, r *http.Request) {
	filter, err := parseTrackFilter(r)
	if err != nil {
		writeError(w, err)
		return
	}
	tracks, err := a.cfg.Repository.QueryTracks(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"count": len(tracks), "tracks": tracks})
}

func (a *App) handleQuerySignals(w http.ResponseWriter, r *http.Request) {
	filter, err := parseTrackFilter(r)
	if err != nil {
		writeError(w, err)
		return
	}
	signals, err := a.cfg.Repository.QuerySignals(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"count": len(signals), "signals": signals})
}

func (a *App) handleTrackHistory(w http.ResponseWriter, r *http.Request) {
	droneID := chi.URLParam(r, "id")
	tr, err := query.ParseTimeRange(r.URL.Query().Get("time_range"), time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, convErr := strconv.Atoi(raw); convErr == nil {
			limit = n
		}
	}
	tracks, err := a.cfg.Repository.DroneTrackHistory(r.Context(), droneID, tr, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"drone_id": droneID, "count": len(tracks), "points": tracks})
}

func (a *App) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	filter, err := parseTrackFilter(r)
	if err != nil {
		writeError(w, err)
		return
	}
	tracks, err := a.cfg.Repository.QueryTracks(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.WriteHeader(http.StatusOK)
	_ = query.WriteTracksCSV(w, tracks)
}

type kitRequest struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	HTTPBaseURL string  `json:"http_base_url"`
}

func (a *App) handleCreateKit(w http.ResponseWriter, r *http.Request) {
	var req kitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, apperr.UserError("httpapi", err))
		return
	}
	if req.ID == "" {
		writeError(w, apperr.UserError("httpapi", errMissing("id")))
		return
	}
	if _, exists := a.cfg.Kits.Get(req.ID); exists {
		writeError(w, apperr.ConflictError("httpapi", errDuplicateKit(req.ID)))
		return
	}
	k := a.cfg.Kits.Upsert(r.Context(), models.Kit{ID: req.ID, Name: req.Name, Lat: req.Lat, Lon: req.Lon, HTTPBaseURL: req.HTTPBaseURL, Source: models.SourceHTTP})
	writeJSON(w, http.StatusCreated, k)
}

func (a *App) handleUpdateKit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	existing, ok := a.cfg.Kits.Get(id)
	if !ok {
		writeError(w, apperr.NotFoundError("httpapi", errNotFound("kit", id)))
		return
	}
	var req kitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, apperr.UserError("httpapi", err))
		return
	}
	if req.Name != "" {
		existing.Name = req.Name
	}
	if req.Lat != 0 {
		existing.Lat = req.Lat
	}
	if req.Lon != 0 {
		existing.Lon = req.Lon
	}
	if req.HTTPBaseURL != "" {
		existing.HTTPBaseURL = req.HTTPBaseURL
	}
	k := a.cfg.Kits.Upsert(r.Context(), existing)
	writeJSON(w, http.StatusOK, k)
}

func (a *App) handleDeleteKit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	purge := r.URL.Query().Get("delete_data") == "true"
	if _, ok := a.cfg.Kits.Get(id); !ok {
		writeError(w, apperr.NotFoundError("httpapi", errNotFound("kit", id)))
		return
	}
	if a.cfg.Data != nil {
		if err := a.cfg.Data.DeleteKit(r.Context(), id, purge); err != nil {
			writeError(w, err)
			return
		}
	}
	a.cfg.Kits.Delete(id)
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) handleTestKit(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("api_url")
	if id == "" {
		id = r.URL.Query().Get("kit_id")
	}
	latency, err := a.cfg.Kits.ProbeKit(r.Context(), id)
	if err != nil {
		writeError(w, apperr.UserError("httpapi", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"latency_ms": latency.Milliseconds()})
}

type missingFieldErr string

func (e missingFieldErr) Error() string { return "missing required field: " + string(e) }
func errMissing(field string) error     { return missingFieldErr(field) }

type duplicateKitErr string

func (e duplicateKitErr) Error() string { return "kit already exists: " + string(e) }
func errDuplicateKit(id string) error   { return duplicateKitErr(id) }

type notFoundErr struct{ kind, id string }

func (e notFoundErr) Error() string { return e.kind + " not found: " + e.id }
func errNotFound(kind, id string) error { return notFoundErr{kind: kind, id: id} }
