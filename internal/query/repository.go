package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldwatch/aegis/internal/models"
)

// Repository is the read side of the store: filtered scans over tracks,
// signals, and kit positions, used by both the query-parameter API and the
// pattern detectors.
type Repository interface {
	QueryTracks(ctx context.Context, f TrackFilter) ([]models.Track, error)
	QuerySignals(ctx context.Context, f TrackFilter) ([]models.Signal, error)
	DroneTrackHistory(ctx context.Context, droneID string, r TimeRange, limit int) ([]models.Track, error)
	KitPositionsInWindow(ctx context.Context, r TimeRange) (map[string]KitPosition, error)
	TracksWithRSSIInWindow(ctx context.Context, droneID string, r TimeRange) ([]models.Track, error)
}

// KitPosition is a kit's location as of its most recent health sample with
// an observer position inside a window, used by the RSSI estimator.
type KitPosition struct {
	KitID string
	Lat   float64
	Lon   float64
	At    time.Time
}

type pgxRepository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a Repository backed by an existing pgx pool (shared
// with the Writer, per the concurrency model's single storage pool).
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool}
}

func (r *pgxRepository) QueryTracks(ctx context.Context, f TrackFilter) ([]models.Track, error) {
	query, args := buildTrackQuery(f)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tracks: %w", err)
	}
	defer rows.Close()

	tracks, err := scanTracks(rows)
	if err != nil {
		return nil, err
	}
	if f.Deduplicate {
		tracks = DedupeByDrone(tracks)
	}
	return tracks, nil
}

// trackColumns is the full track row projection, shared by every query that
// scans into models.Track via scanTracks.
const trackColumns = `kit_id, drone_id, pilot_id, operator_id, caa_id, rid_make, rid_model, rid_source, track_type,
	lat, lon, altitude_m, speed_ms, vspeed_ms, heading_deg, height_m, direction_deg,
	pilot_lat, pilot_lon, home_lat, home_lon, rssi, observed_at, ingested_at`

func buildTrackQuery(f TrackFilter) (string, []interface{}) {
	var b strings.Builder
	b.WriteString(`SELECT ` + trackColumns + `
		FROM tracks WHERE observed_at >= $1 AND observed_at < $2`)
	args := []interface{}{f.Range.Start, f.Range.End}

	if len(f.KitIDs) > 0 {
		args = append(args, f.KitIDs)
		b.WriteString(fmt.Sprintf(" AND kit_id = ANY($%d)", len(args)))
	}
	if f.TrackType != "" {
		args = append(args, f.TrackType)
		b.WriteString(fmt.Sprintf(" AND track_type = $%d", len(args)))
	}
	if f.RIDMake != "" {
		args = append(args, f.RIDMake)
		b.WriteString(fmt.Sprintf(" AND rid_make = $%d", len(args)))
	}
	b.WriteString(" ORDER BY observed_at DESC")
	limit := NormalizeLimit(f.Limit)
	args = append(args, limit)
	b.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))
	return b.String(), args
}

func scanTracks(rows pgx.Rows) ([]models.Track, error) {
	var out []models.Track
	for rows.Next() {
		var t models.Track
		var pilotID, operatorID, caaID, ridMake, ridModel, ridSource *string
		var vspeed, height, direction, pilotLat, pilotLon, homeLat, homeLon *float64
		if err := rows.Scan(
			&t.KitID, &t.DroneID, &pilotID, &operatorID, &caaID, &ridMake, &ridModel, &ridSource, &t.TrackType,
			&t.Lat, &t.Lon, &t.AltitudeM, &t.SpeedMS, &vspeed, &t.HeadingDeg, &height, &direction,
			&pilotLat, &pilotLon, &homeLat, &homeLon, &t.RSSI, &t.ObservedAt, &t.IngestedAt,
		); err != nil {
			return nil, fmt.Errorf("scan track: %w", err)
		}
		if pilotID != nil {
			t.PilotID = *pilotID
		}
		if operatorID != nil {
			t.OperatorID = *operatorID
		}
		if caaID != nil {
			t.CAAID = *caaID
		}
		if ridMake != nil {
			t.RIDMake = *ridMake
		}
		if ridModel != nil {
			t.RIDModel = *ridModel
		}
		if ridSource != nil {
			t.RIDSource = *ridSource
		}
		if vspeed != nil {
			t.VSpeedMS = *vspeed
		}
		if height != nil {
			t.HeightM = *height
		}
		if direction != nil {
			t.DirectionDeg = *direction
		}
		if pilotLat != nil {
			t.PilotLat = *pilotLat
		}
		if pilotLon != nil {
			t.PilotLon = *pilotLon
		}
		if homeLat != nil {
			t.HomeLat = *homeLat
		}
		if homeLon != nil {
			t.HomeLon = *homeLon
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *pgxRepository) QuerySignals(ctx context.Context, f TrackFilter) ([]models.Signal, error) {
	var b strings.Builder
	b.WriteString(`SELECT kit_id, drone_id, freq_mhz, rssi, power_dbm, bandwidth_mhz, observer_lat, observer_lon,
			protocol, detection_type, source_stage, pal_confidence, ntsc_confidence, observed_at, ingested_at
		FROM signals WHERE observed_at >= $1 AND observed_at < $2`)
	args := []interface{}{f.Range.Start, f.Range.End}
	if len(f.KitIDs) > 0 {
		args = append(args, f.KitIDs)
		b.WriteString(fmt.Sprintf(" AND kit_id = ANY($%d)", len(args)))
	}
	b.WriteString(" ORDER BY observed_at DESC")
	limit := NormalizeLimit(f.Limit)
	args = append(args, limit)
	b.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))

	rows, err := r.pool.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	var out []models.Signal
	for rows.Next() {
		var s models.Signal
		var droneID, protocol, detectionType, sourceStage *string
		var powerDBM, bandwidthMHz, observerLat, observerLon, palConfidence, ntscConfidence *float64
		if err := rows.Scan(
			&s.KitID, &droneID, &s.FreqMHz, &s.RSSI, &powerDBM, &bandwidthMHz, &observerLat, &observerLon,
			&protocol, &detectionType, &sourceStage, &palConfidence, &ntscConfidence, &s.ObservedAt, &s.IngestedAt,
		); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		if droneID != nil {
			s.DroneID = *droneID
		}
		if protocol != nil {
			s.Protocol = *protocol
		}
		if detectionType != nil {
			s.DetectionType = *detectionType
		}
		if sourceStage != nil {
			s.SourceStage = *sourceStage
		}
		if powerDBM != nil {
			s.PowerDBM = *powerDBM
		}
		if bandwidthMHz != nil {
			s.BandwidthMHz = *bandwidthMHz
		}
		if observerLat != nil {
			s.ObserverLat = *observerLat
		}
		if observerLon != nil {
			s.ObserverLon = *observerLon
		}
		if palConfidence != nil {
			s.PALConfidence = *palConfidence
		}
		if ntscConfidence != nil {
			s.NTSCConfidence = *ntscConfidence
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *pgxRepository) DroneTrackHistory(ctx context.Context, droneID string, tr TimeRange, limit int) ([]models.Track, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+trackColumns+`
		FROM tracks
		WHERE drone_id = $1 AND observed_at >= $2 AND observed_at < $3
		ORDER BY observed_at ASC
		LIMIT $4`, droneID, tr.Start, tr.End, NormalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query track history: %w", err)
	}
	defer rows.Close()
	return scanTracks(rows)
}

func (r *pgxRepository) KitPositionsInWindow(ctx context.Context, tr TimeRange) (map[string]KitPosition, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT ON (kit_id) kit_id, observer_lat, observer_lon, observed_at
		FROM health_samples
		WHERE observed_at >= $1 AND observed_at < $2
			AND observer_lat IS NOT NULL AND observer_lon IS NOT NULL
		ORDER BY kit_id, observed_at DESC`, tr.Start, tr.End)
	if err != nil {
		return nil, fmt.Errorf("query kit positions: %w", err)
	}
	defer rows.Close()
	out := make(map[string]KitPosition)
	for rows.Next() {
		var p KitPosition
		if err := rows.Scan(&p.KitID, &p.Lat, &p.Lon, &p.At); err != nil {
			return nil, fmt.Errorf("scan kit position: %w", err)
		}
		out[p.KitID] = p
	}
	return out, rows.Err()
}

func (r *pgxRepository) TracksWithRSSIInWindow(ctx context.Context, droneID string, tr TimeRange) ([]models.Track, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+trackColumns+`
		FROM tracks
		WHERE drone_id = $1 AND observed_at >= $2 AND observed_at < $3 AND rssi IS NOT NULL
		ORDER BY observed_at ASC`, droneID, tr.Start, tr.End)
	if err != nil {
		return nil, fmt.Errorf("query tracks with rssi: %w", err)
	}
	defer rows.Close()
	return scanTracks(rows)
}

// DedupeByDrone keeps only the most recent row per drone_id, per the
// deduplicate=true query switch (argmax observed_at).
func DedupeByDrone(tracks []models.Track) []models.Track {
	latest := make(map[string]models.Track, len(tracks))
	for _, t := range tracks {
		cur, ok := latest[t.DroneID]
		if !ok || t.ObservedAt.After(cur.ObservedAt) {
			latest[t.DroneID] = t
		}
	}
	out := make([]models.Track, 0, len(latest))
	for _, t := range latest {
		out = append(out, t)
	}
	return out
}
