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

func queryFloat(r *http.Request, name string, def float64) float64 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return v
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func (a *App) fetchWindowTracks(r *http.Request) (query.TrackFilter, []models.Track, error) {
	tr, err := query.ParseTimeRange(r.URL.Query().Get("time_range"), time.Now())
	if err != nil {
		return query.TrackFilter{}, nil, err
	}
	filter := query.TrackFilter{Range: tr, Limit: 10000}
	tracks, err := a.cfg.Repository.QueryTracks(r.Context(), filter)
	if err != nil {
		return filter, nil, err
	}
	return filter, tracks, nil
}

func (a *App) handleRepeatedContacts(w http.ResponseWriter, r *http.Request) {
	_, tracks, err := a.fetchWindowTracks(r)
	if err != nil {
		writeError(w, err)
		return
	}
	minAppearances := queryInt(r, "min_appearances", 2)
	out := query.RepeatedContacts(tracks, minAppearances)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":           len(out),
		"min_appearances": minAppearances,
		"results":         out,
	})
}

func (a *App) handleCoordinated(w http.ResponseWriter, r *http.Request) {
	_, tracks, err := a.fetchWindowTracks(r)
	if err != nil {
		writeError(w, err)
		return
	}
	distance := queryFloat(r, "distance_m", 500)
	windowMin := queryInt(r, "window_min", 60)
	out := query.CoordinatedActivity(tracks, distance, time.Duration(windowMin)*time.Minute)
	writeJSON(w, http.StatusOK, map[string]interface{}{"count": len(out), "distance_m": distance, "results": out})
}

func (a *App) handlePilotReuse(w http.ResponseWriter, r *http.Request) {
	_, tracks, err := a.fetchWindowTracks(r)
	if err != nil {
		writeError(w, err)
		return
	}
	threshold := queryFloat(r, "spatial_threshold_m", 50)
	out := query.PilotReuse(tracks, threshold)
	writeJSON(w, http.StatusOK, map[string]interface{}{"count": len(out), "spatial_threshold_m": threshold, "results": out})
}

func (a *App) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	_, tracks, err := a.fetchWindowTracks(r)
	if err != nil {
		writeError(w, err)
		return
	}
	out := query.Anomalies(tracks)
	writeJSON(w, http.StatusOK, map[string]interface{}{"count": len(out), "results": out})
}

func (a *App) handleMultiKit(w http.ResponseWriter, r *http.Request) {
	_, tracks, err := a.fetchWindowTracks(r)
	if err != nil {
		writeError(w, err)
		return
	}
	out := query.MultiKitCorrelate(tracks)
	writeJSON(w, http.StatusOK, map[string]interface{}{"count": len(out), "results": out})
}

func (a *App) handleSecurityAlerts(w http.ResponseWriter, r *http.Request) {
	tr, err := query.ParseTimeRange("4h", time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	tracks, err := a.cfg.Repository.QueryTracks(r.Context(), query.TrackFilter{Range: tr, Limit: 10000})
	if err != nil {
		writeError(w, err)
		return
	}
	descents := query.RapidDescent(tracks, 20, 5)
	nightStart := queryInt(r, "night_start", 22)
	nightEnd := queryInt(r, "night_end", 5)
	out := query.SecurityAlerts(tracks, descents, nightStart, nightEnd, time.UTC)
	writeJSON(w, http.StatusOK, map[string]interface{}{"count": len(out), "results": out})
}

func (a *App) handleLoitering(w http.ResponseWriter, r *http.Request) {
	_, tracks, err := a.fetchWindowTracks(r)
	if err != nil {
		writeError(w, err)
		return
	}
	centerLat := queryFloat(r, "center_lat", 0)
	centerLon := queryFloat(r, "center_lon", 0)
	radius := queryFloat(r, "radius_m", 500)
	minDuration := queryInt(r, "min_duration_min", 10)
	out := query.Loitering(tracks, centerLat, centerLon, radius, time.Duration(minDuration)*time.Minute)
	writeJSON(w, http.StatusOK, map[string]interface{}{"count": len(out), "results": out})
}

func (a *App) handleRapidDescent(w http.ResponseWriter, r *http.Request) {
	_, tracks, err := a.fetchWindowTracks(r)
	if err != nil {
		writeError(w, err)
		return
	}
	minDescent := queryFloat(r, "min_descent_m", 20)
	minRate := queryFloat(r, "min_descent_rate_mps", 5)
	out := query.RapidDescent(tracks, minDescent, minRate)
	writeJSON(w, http.StatusOK, map[string]interface{}{"count": len(out), "results": out})
}

func (a *App) handleNightActivity(w http.ResponseWriter, r *http.Request) {
	_, tracks, err := a.fetchWindowTracks(r)
	if err != nil {
		writeError(w, err)
		return
	}
	nightStart := queryInt(r, "night_start", 22)
	nightEnd := queryInt(r, "night_end", 5)
	out := query.NightActivity(tracks, nightStart, nightEnd, time.UTC)
	writeJSON(w, http.StatusOK, map[string]interface{}{"count": len(out), "results": out})
}

func (a *App) handleEstimateLocation(w http.ResponseWriter, r *http.Request) {
	droneID := chi.URLParam(r, "drone_id")
	atRaw := r.URL.Query().Get("at")
	at := time.Now()
	if atRaw != "" {
		parsed, err := time.Parse(time.RFC3339, atRaw)
		if err != nil {
			writeError(w, apperr.UserError("httpapi", err))
			return
		}
		at = parsed
	}
	params := query.DefaultEstimatorParams()
	est, err := query.EstimateLocation(r.Context(), a.cfg.Repository, droneID, at, params)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, est)
}
