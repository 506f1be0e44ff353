package store

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldwatch/aegis/internal/apperr"
	"github.com/fieldwatch/aegis/internal/backoff"
	"github.com/fieldwatch/aegis/internal/models"
	"github.com/fieldwatch/aegis/internal/telemetry/logging"
	"github.com/fieldwatch/aegis/internal/telemetry/metrics"
)

// Writer is the Persistence Writer: it batches inserts/upserts through a
// pgx connection pool, retrying transient failures with the shared
// exponential backoff helper and counting (never aborting on) malformed or
// constraint-violating rows.
type Writer struct {
	pool       *pgxpool.Pool
	maxRetries int
	backoffCfg backoff.Config
	log        logging.Logger

	queued  atomic.Int64
	written metrics.Counter
	rejects metrics.Counter
	retries metrics.Counter
	batchMs metrics.Histogram
}

// NewWriter opens a pgx pool against dsn with the given pool size.
func NewWriter(ctx context.Context, dsn string, maxConns int32, maxRetries int, log logging.Logger, provider metrics.Provider) (*Writer, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = maxConns
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if log == nil {
		log = logging.NewNop()
	}
	if provider == nil {
		provider = metrics.NewNoopProvider()
	}
	w := &Writer{pool: pool, maxRetries: maxRetries, backoffCfg: backoff.DefaultConfig(), log: log}
	w.written = provider.NewCounter(metrics.CounterOpts{CommonOpts: metrics.CommonOpts{Namespace: "aegis", Subsystem: "store", Name: "rows_written_total", Help: "Rows successfully written", Labels: []string{"table"}}})
	w.rejects = provider.NewCounter(metrics.CounterOpts{CommonOpts: metrics.CommonOpts{Namespace: "aegis", Subsystem: "store", Name: "rows_rejected_total", Help: "Rows rejected as malformed or constraint-violating", Labels: []string{"table"}}})
	w.retries = provider.NewCounter(metrics.CounterOpts{CommonOpts: metrics.CommonOpts{Namespace: "aegis", Subsystem: "store", Name: "batch_retries_total", Help: "Batch retries due to transient errors"}})
	w.batchMs = provider.NewHistogram(metrics.HistogramOpts{CommonOpts: metrics.CommonOpts{Namespace: "aegis", Subsystem: "store", Name: "batch_duration_seconds", Help: "Batch insert duration"}})
	return w, nil
}

// Close releases the underlying pool.
func (w *Writer) Close() { w.pool.Close() }

// Pool exposes the underlying connection pool so the read-side Repository
// can share it instead of opening a second one against the same database.
func (w *Writer) Pool() *pgxpool.Pool { return w.pool }

// QueueDepth reports the number of records accepted but not yet flushed,
// used by ingest loops for the high/low water-mark backpressure check.
func (w *Writer) QueueDepth() int { return int(w.queued.Load()) }

// InsertTracks idempotently upserts a batch of track rows, ignoring
// duplicate (kit_id, drone_id, observed_at) keys.
func (w *Writer) InsertTracks(ctx context.Context, rows []models.Track) error {
	w.queued.Add(int64(len(rows)))
	defer w.queued.Add(-int64(len(rows)))
	return w.withRetry(ctx, "tracks", func(ctx context.Context) error {
		batch := &pgx.Batch{}
		for _, t := range rows {
			batch.Queue(`INSERT INTO tracks (
					kit_id, drone_id, pilot_id, operator_id, caa_id, track_type, rid_make, rid_model, rid_source,
					lat, lon, altitude_m, speed_ms, vspeed_ms, heading_deg, height_m, direction_deg,
					pilot_lat, pilot_lon, home_lat, home_lon, rssi, observed_at, ingested_at)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,now())
				ON CONFLICT (kit_id, drone_id, observed_at) DO NOTHING`,
				t.KitID, t.DroneID, nullableStr(t.PilotID), nullableStr(t.OperatorID), nullableStr(t.CAAID),
				trackTypeOrDefault(t.TrackType), nullableStr(t.RIDMake), nullableStr(t.RIDModel), nullableStr(t.RIDSource),
				t.Lat, t.Lon, t.AltitudeM, t.SpeedMS, t.VSpeedMS, t.HeadingDeg, t.HeightM, t.DirectionDeg,
				t.PilotLat, t.PilotLon, t.HomeLat, t.HomeLon, t.RSSI, t.ObservedAt)
		}
		return w.runBatch(ctx, "tracks", batch, len(rows))
	})
}

// InsertSignals idempotently upserts a batch of signal rows.
func (w *Writer) InsertSignals(ctx context.Context, rows []models.Signal) error {
	w.queued.Add(int64(len(rows)))
	defer w.queued.Add(-int64(len(rows)))
	return w.withRetry(ctx, "signals", func(ctx context.Context) error {
		batch := &pgx.Batch{}
		for _, s := range rows {
			batch.Queue(`INSERT INTO signals (
					kit_id, drone_id, freq_mhz, rssi, power_dbm, bandwidth_mhz, observer_lat, observer_lon,
					protocol, detection_type, source_stage, pal_confidence, ntsc_confidence, observed_at, ingested_at)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,now())
				ON CONFLICT (kit_id, freq_mhz, observed_at) DO NOTHING`,
				s.KitID, nullableStr(s.DroneID), s.FreqMHz, s.RSSI, s.PowerDBM, s.BandwidthMHz, s.ObserverLat, s.ObserverLon,
				nullableStr(s.Protocol), nullableStr(s.DetectionType), nullableStr(s.SourceStage), s.PALConfidence, s.NTSCConfidence, s.ObservedAt)
		}
		return w.runBatch(ctx, "signals", batch, len(rows))
	})
}

// InsertHealth idempotently upserts a batch of health sample rows.
func (w *Writer) InsertHealth(ctx context.Context, rows []models.HealthSample) error {
	w.queued.Add(int64(len(rows)))
	defer w.queued.Add(-int64(len(rows)))
	return w.withRetry(ctx, "health_samples", func(ctx context.Context) error {
		batch := &pgx.Batch{}
		for _, h := range rows {
			batch.Queue(`INSERT INTO health_samples (
					kit_id, observer_lat, observer_lon, cpu_percent, memory_percent, disk_free_gb, disk_percent,
					uptime_s, uptime_hours, cpu_temp_c, gpu_temp_c, sdr_temp_c, gps_speed_ms, gps_track_deg, gps_fix,
					observed_at, ingested_at)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,now())
				ON CONFLICT (kit_id, observed_at) DO NOTHING`,
				h.KitID, h.ObserverLat, h.ObserverLon, h.CPUPercent, h.MemoryPercent, h.DiskFreeGB, h.DiskPercent,
				h.UptimeS, h.UptimeHours, h.CPUTempC, h.GPUTempC, h.SDRTempC, h.GPSSpeedMS, h.GPSTrackDeg, h.GPSFix,
				h.ObservedAt)
		}
		return w.runBatch(ctx, "health_samples", batch, len(rows))
	})
}

// UpsertKit writes a kit row, merging Source with whatever is already
// stored per the monotone source lattice (models.MergeSource).
func (w *Writer) UpsertKit(ctx context.Context, k models.Kit) error {
	return w.withRetry(ctx, "kits", func(ctx context.Context) error {
		_, err := w.pool.Exec(ctx, `
			INSERT INTO kits (id, name, lat, lon, http_base_url, source, disabled_by_admin, auto_registered, last_seen, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,now(),now())
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				lat = EXCLUDED.lat,
				lon = EXCLUDED.lon,
				http_base_url = EXCLUDED.http_base_url,
				source = CASE
					WHEN kits.source = EXCLUDED.source THEN kits.source
					ELSE 'both'
				END,
				disabled_by_admin = EXCLUDED.disabled_by_admin,
				last_seen = GREATEST(kits.last_seen, EXCLUDED.last_seen),
				updated_at = now()`,
			k.ID, k.Name, k.Lat, k.Lon, nullableStr(k.HTTPBaseURL), string(k.Source), k.DisabledByAdmin, k.AutoRegistered, k.LastSeen)
		if err != nil {
			return classifyPgError("kits", err)
		}
		return nil
	})
}

// DeleteKit removes a kit row and, when purgeData is set, every track,
// signal, and health row attributed to it (the admin
// delete_data=true path).
func (w *Writer) DeleteKit(ctx context.Context, id string, purgeData bool) error {
	return w.withRetry(ctx, "kits", func(ctx context.Context) error {
		if purgeData {
			if _, err := w.pool.Exec(ctx, `DELETE FROM tracks WHERE kit_id = $1`, id); err != nil {
				return classifyPgError("tracks", err)
			}
			if _, err := w.pool.Exec(ctx, `DELETE FROM signals WHERE kit_id = $1`, id); err != nil {
				return classifyPgError("signals", err)
			}
			if _, err := w.pool.Exec(ctx, `DELETE FROM health_samples WHERE kit_id = $1`, id); err != nil {
				return classifyPgError("health_samples", err)
			}
		}
		if _, err := w.pool.Exec(ctx, `DELETE FROM kits WHERE id = $1`, id); err != nil {
			return classifyPgError("kits", err)
		}
		return nil
	})
}

// TouchKit bumps a kit's last_seen and source without a full upsert.
func (w *Writer) TouchKit(ctx context.Context, id string, source models.Source, observedAt time.Time) error {
	return w.withRetry(ctx, "kits", func(ctx context.Context) error {
		_, err := w.pool.Exec(ctx, `
			UPDATE kits SET
				source = CASE WHEN source = $2 THEN source ELSE 'both' END,
				last_seen = GREATEST(last_seen, $3),
				updated_at = now()
			WHERE id = $1`, id, string(source), observedAt)
		if err != nil {
			return classifyPgError("kits", err)
		}
		return nil
	})
}

func (w *Writer) runBatch(ctx context.Context, table string, batch *pgx.Batch, n int) error {
	start := time.Now()
	br := w.pool.SendBatch(ctx, batch)
	defer br.Close()
	var rejected int
	for i := 0; i < n; i++ {
		if _, err := br.Exec(); err != nil {
			if isTransientPgError(err) {
				return apperr.Transient("store", err)
			}
			rejected++
		}
	}
	if w.batchMs != nil {
		w.batchMs.Observe(time.Since(start).Seconds())
	}
	if rejected > 0 && w.rejects != nil {
		w.rejects.Inc(float64(rejected), table)
	}
	if written := n - rejected; written > 0 && w.written != nil {
		w.written.Inc(float64(written), table)
	}
	return nil
}

func (w *Writer) withRetry(ctx context.Context, table string, fn func(ctx context.Context) error) error {
	b := backoff.New(w.backoffCfg)
	var lastErr error
	for attempt := 0; attempt <= w.maxRetries; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !apperr.IsTransient(err) {
			return err
		}
		if w.retries != nil {
			w.retries.Inc(1)
		}
		w.log.WarnCtx(ctx, "store: retrying after transient error")
		if !backoff.SleepWithContext(ctx.Done(), b.Delay()) {
			return ctx.Err()
		}
		b.RecordFailure()
	}
	return fmt.Errorf("store: %s: exhausted retries: %w", table, lastErr)
}

func classifyPgError(component string, err error) error {
	if isTransientPgError(err) {
		return apperr.Transient(component, err)
	}
	return apperr.DataError(component, err)
}

func isTransientPgError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "53300", "57P03", "08006", "08001", "08004":
			return true
		}
		return false
	}
	// connection-level errors without a PgError code (timeouts, resets) are
	// treated as transient.
	return true
}

func nullableStr(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func trackTypeOrDefault(t string) string {
	if t == "" {
		return models.TrackTypeDrone
	}
	return t
}
