package query

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/fieldwatch/aegis/internal/apperr"
	"github.com/fieldwatch/aegis/internal/geoloc"
)

// LatLon is a plain coordinate pair used in the estimator response envelope.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// KitObservation is one contributing kit's reading in the estimator result.
type KitObservation struct {
	KitID            string  `json:"kit_id"`
	RSSI             float64 `json:"rssi"`
	EstimatedDistanceM float64 `json:"estimated_distance_m"`
}

// LocationEstimate is the full §4.5.8 response envelope.
type LocationEstimate struct {
	Algorithm          string           `json:"algorithm"`
	Observations       []KitObservation `json:"observations"`
	Estimated          LatLon           `json:"estimated"`
	Actual             *LatLon          `json:"actual"`
	ErrorMeters        *float64         `json:"error_meters"`
	ConfidenceRadiusM  float64          `json:"confidence_radius_m"`
	SpoofingScore      *float64         `json:"spoofing_score"`
	SpoofingSuspected  *bool            `json:"spoofing_suspected"`
	SpoofingReason     *string          `json:"spoofing_reason"`
}

// EstimatorParams carries the per-request-overridable path-loss parameters
// (spec.md §4.5.8 "configurable per request (future-compatible query
// params)").
type EstimatorParams struct {
	TimeWindow   time.Duration
	PathLoss     geoloc.PathLossModel
	MaxIterations int
}

// DefaultEstimatorParams matches the documented defaults: ±30s window,
// TxPower 0 dBm, exponent 2.5.
func DefaultEstimatorParams() EstimatorParams {
	return EstimatorParams{TimeWindow: 30 * time.Second, PathLoss: geoloc.DefaultPathLossModel(), MaxIterations: 100}
}

// EstimateLocation resolves drone's position at targetTime from kit RSSI
// observations in the surrounding window, per spec.md §4.5.8.
func EstimateLocation(ctx context.Context, repo Repository, droneID string, targetTime time.Time, params EstimatorParams) (LocationEstimate, error) {
	window := TimeRange{Start: targetTime.Add(-params.TimeWindow), End: targetTime.Add(params.TimeWindow)}

	tracks, err := repo.TracksWithRSSIInWindow(ctx, droneID, window)
	if err != nil {
		return LocationEstimate{}, fmt.Errorf("fetch rssi tracks: %w", err)
	}
	positions, err := repo.KitPositionsInWindow(ctx, window)
	if err != nil {
		return LocationEstimate{}, fmt.Errorf("fetch kit positions: %w", err)
	}

	var obs []geoloc.Observation
	var actual *LatLon
	for _, t := range tracks {
		if t.RSSI == nil {
			continue
		}
		pos, ok := positions[t.KitID]
		if !ok {
			continue
		}
		obs = append(obs, geoloc.Observation{KitID: t.KitID, Lat: pos.Lat, Lon: pos.Lon, RSSI: *t.RSSI})
		if actual == nil && t.Lat != 0 && t.Lon != 0 {
			actual = &LatLon{Lat: t.Lat, Lon: t.Lon}
		}
	}
	if len(obs) == 0 {
		return LocationEstimate{}, apperr.NotFoundError("query", fmt.Errorf("no RSSI observations with known kit position for drone %q near %s", droneID, targetTime))
	}

	estimator := geoloc.NewEstimator(params.PathLoss, params.MaxIterations)
	est, ok := estimator.Estimate(obs)
	if !ok {
		return LocationEstimate{}, apperr.NotFoundError("query", fmt.Errorf("no estimate produced for drone %q", droneID))
	}

	result := LocationEstimate{
		Algorithm:         est.Method,
		Estimated:         LatLon{Lat: est.Lat, Lon: est.Lon},
		ConfidenceRadiusM: est.ConfidenceM,
	}
	for _, o := range obs {
		result.Observations = append(result.Observations, KitObservation{
			KitID:              o.KitID,
			RSSI:               o.RSSI,
			EstimatedDistanceM: params.PathLoss.EstimateDistance(o.RSSI),
		})
	}

	if actual != nil {
		result.Actual = actual
		errM := geoloc.HaversineMeters(est.Lat, est.Lon, actual.Lat, actual.Lon)
		result.ErrorMeters = &errM
		score := spoofingScore(errM, est.ConfidenceM)
		result.SpoofingScore = &score
		suspected := score >= 0.5
		result.SpoofingSuspected = &suspected
		if suspected {
			reason := fmt.Sprintf("Position error (%.0fm) is %.1fx the expected accuracy (%.0fm)", errM, errM/math.Max(est.ConfidenceM, 1), est.ConfidenceM)
			result.SpoofingReason = &reason
		}
	}

	return result, nil
}

// spoofingScore implements the saturating-curve mapping of §4.5.8 step 4:
// the normalized ratio r = error/confidence is piecewise-mapped onto
// [0,1] with the documented monotone, stable boundaries.
func spoofingScore(errorM, confidenceM float64) float64 {
	r := errorM / math.Max(confidenceM, 1)
	switch {
	case r <= 1:
		return clamp(0.3*r, 0, 0.3)
	case r <= 3:
		// Held just under 0.5 so that r == 3 itself is not flagged.
		return math.Min(0.3+0.2*((r-1)/2), math.Nextafter(0.5, 0))
	case r <= 6:
		return 0.5 + 0.2*((r-3)/3)
	default:
		// Asymptotically approach 1 without ever reaching it for finite r,
		// staying inside the documented 0.7..1.0 band.
		return clamp(0.7+0.3*(1-1/(1+(r-6)/6)), 0.7, 1.0)
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
