package httpcollector

import (
	"time"

	"github.com/fieldwatch/aegis/internal/apperr"
	"github.com/fieldwatch/aegis/internal/models"
)

func normalizeDrones(kitID string, reports []rawDroneReport, fallback time.Time) ([]models.Track, error) {
	out := make([]models.Track, 0, len(reports))
	for _, r := range reports {
		if r.DroneID == "" {
			return nil, apperr.DataError("httpcollector", errMissingDroneID)
		}
		observed := fallback
		if r.ObservedAt != "" {
			if t, err := time.Parse(time.RFC3339, r.ObservedAt); err == nil {
				observed = t
			}
		}
		out = append(out, models.Track{
			KitID:        kitID,
			DroneID:      r.DroneID,
			PilotID:      r.PilotID,
			OperatorID:   r.OperatorID,
			CAAID:        r.CAAID,
			RIDMake:      r.RIDMake,
			RIDModel:     r.RIDModel,
			RIDSource:    r.RIDSource,
			TrackType:    models.TrackTypeDrone,
			Lat:          r.Lat,
			Lon:          r.Lon,
			AltitudeM:    r.AltitudeM,
			SpeedMS:      r.SpeedMS,
			VSpeedMS:     r.VSpeedMS,
			HeadingDeg:   r.HeadingDeg,
			HeightM:      r.HeightM,
			DirectionDeg: r.DirectionDeg,
			PilotLat:     r.PilotLat,
			PilotLon:     r.PilotLon,
			HomeLat:      r.HomeLat,
			HomeLon:      r.HomeLon,
			RSSI:         r.RSSI,
			ObservedAt:   observed,
			IngestedAt:   time.Now(),
		})
	}
	return out, nil
}

func normalizeSignals(kitID string, reports []rawSignalReport, fallback time.Time) []models.Signal {
	out := make([]models.Signal, 0, len(reports))
	for _, r := range reports {
		observed := fallback
		if r.ObservedAt != "" {
			if t, err := time.Parse(time.RFC3339, r.ObservedAt); err == nil {
				observed = t
			}
		}
		out = append(out, models.Signal{
			KitID:          kitID,
			DroneID:        r.DroneID,
			FreqMHz:        r.FreqMHz,
			RSSI:           r.RSSI,
			PowerDBM:       r.PowerDBM,
			BandwidthMHz:   r.BandwidthMHz,
			ObserverLat:    r.ObserverLat,
			ObserverLon:    r.ObserverLon,
			Protocol:       r.Protocol,
			DetectionType:  r.DetectionType,
			SourceStage:    r.SourceStage,
			PALConfidence:  r.PALConfidence,
			NTSCConfidence: r.NTSCConfidence,
			ObservedAt:     observed,
			IngestedAt:     time.Now(),
		})
	}
	return out
}

func normalizeStatus(kitID string, r rawStatusReport, fallback time.Time) models.HealthSample {
	observed := fallback
	if r.ObservedAt != "" {
		if t, err := time.Parse(time.RFC3339, r.ObservedAt); err == nil {
			observed = t
		}
	}
	return models.HealthSample{
		KitID:         kitID,
		ObserverLat:   r.ObserverLat,
		ObserverLon:   r.ObserverLon,
		CPUPercent:    r.CPUPercent,
		MemoryPercent: r.MemoryPercent,
		DiskFreeGB:    r.DiskFreeGB,
		DiskPercent:   r.DiskPercent,
		UptimeS:       r.UptimeS,
		UptimeHours:   r.UptimeHours,
		CPUTempC:      r.CPUTempC,
		GPUTempC:      r.GPUTempC,
		SDRTempC:      r.SDRTempC,
		GPSSpeedMS:    r.GPSSpeedMS,
		GPSTrackDeg:   r.GPSTrackDeg,
		GPSFix:        r.GPSFix,
		ObservedAt:    observed,
		IngestedAt:    time.Now(),
	}
}

var errMissingDroneID = missingFieldError("drone_id")

type missingFieldError string

func (e missingFieldError) Error() string { return "missing required field: " + string(e) }
