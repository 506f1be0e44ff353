// Package bus implements the Bus Subscriber: an MQTT consumer over
// eclipse/paho.mqtt.golang that normalizes each wardragon/* topic's payload
// shape into the shared Track/Signal/HealthSample records, per the
// field-remap table in spec.md §4.3.
package bus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fieldwatch/aegis/internal/models"
)

// wardragonDrone is the payload shape published on wardragon/drones,
// wardragon/drone/+, and wardragon/aircraft. Kits broadcast either the
// internal field names or the documented bus names for position fields;
// both are accepted, and the internal name wins whenever both are present.
type wardragonDrone struct {
	ID         string   `json:"id"`
	Pilot      string   `json:"pilot_id"`
	Lat        *float64 `json:"lat"`
	Lon        *float64 `json:"lon"`
	AltM       *float64 `json:"alt_m"`
	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`
	HAE        *float64 `json:"hae"`
	Speed      float64  `json:"speed_mps"`
	VSpeed     float64  `json:"vspeed_mps"`
	Heading    float64  `json:"heading"`
	Height     float64  `json:"height_m"`
	Direction  float64  `json:"direction_deg"`
	OperatorID string   `json:"operator_id"`
	CAAID      string   `json:"caa_id"`
	RIDModel   string   `json:"rid_model"`
	RIDSource  string   `json:"rid_source"`
	PilotLat   float64  `json:"pilot_lat"`
	PilotLon   float64  `json:"pilot_lon"`
	HomeLat    float64  `json:"home_lat"`
	HomeLon    float64  `json:"home_lon"`
	RSSI       *float64 `json:"rssi_dbm"`
	Timestamp  float64  `json:"timestamp"` // unix epoch seconds
	SeenBy     string   `json:"seen_by"`
	KitID      string   `json:"kit_id"`
}

// wardragonSignal is the payload shape published on wardragon/signals.
type wardragonSignal struct {
	DroneID        string  `json:"drone_id"`
	Freq           float64 `json:"freq_mhz"`
	RSSI           float64 `json:"rssi_dbm"`
	Power          float64 `json:"power_dbm"`
	Bandwidth      float64 `json:"bandwidth_mhz"`
	ObserverLat    float64 `json:"observer_lat"`
	ObserverLon    float64 `json:"observer_lon"`
	Proto          string  `json:"protocol"`
	DetectionType  string  `json:"detection_type"`
	SourceStage    string  `json:"source_stage"`
	PALConfidence  float64 `json:"pal_confidence"`
	NTSCConfidence float64 `json:"ntsc_confidence"`
	Timestamp      float64 `json:"timestamp"`
	SeenBy         string  `json:"seen_by"`
	KitID          string  `json:"kit_id"`
}

// wardragonSystemAttrs is the payload shape published on
// wardragon/system/attrs, using the documented bus field names: raw
// cpu_usage/memory/disk/uptime readings the subscriber derives percentages
// and hours from per spec.md §4.3's remap table.
type wardragonSystemAttrs struct {
	CPUUsage          float64 `json:"cpu_usage"`
	MemoryTotalMB     float64 `json:"memory_total_mb"`
	MemoryAvailableMB float64 `json:"memory_available_mb"`
	DiskTotalMB       float64 `json:"disk_total_mb"`
	DiskUsedMB        float64 `json:"disk_used_mb"`
	DiskFreeGB        float64 `json:"disk_free_gb"`
	UptimeS           float64 `json:"uptime_s"`
	Temperature       float64 `json:"temperature"`
	GPUTempC          float64 `json:"gpu_temp_c"`
	SDRTempC          float64 `json:"sdr_temp_c"`
	ObserverLat       float64 `json:"observer_lat"`
	ObserverLon       float64 `json:"observer_lon"`
	GPSSpeedMS        float64 `json:"gps_speed_ms"`
	GPSTrackDeg       float64 `json:"gps_track_deg"`
	GPSFix            bool    `json:"gps_fix"`
	Timestamp         float64 `json:"timestamp"`
	SeenBy            string  `json:"seen_by"`
	KitID             string  `json:"kit_id"`
}

func epochToTime(sec float64) time.Time {
	if sec == 0 {
		return time.Now()
	}
	return time.Unix(0, int64(sec*float64(time.Second)))
}

// preferFloat returns internal when non-nil, else bus, else 0. Used for the
// drone position fields that arrive under both the internal and bus naming
// conventions; spec.md §4.3 requires the internal name to win when both are
// present.
func preferFloat(internal, bus *float64) float64 {
	if internal != nil {
		return *internal
	}
	if bus != nil {
		return *bus
	}
	return 0
}

// resolveKitID prefers the kit ID carried by the topic itself (e.g. a
// per-kit topic suffix), falling back to the payload's seen_by then kit_id
// fields for shared topics. Every wardragon/* payload carries one of these
// per spec.md §4.3; returns an error if all three are empty.
func resolveKitID(topicKitID, seenBy, kitID string) (string, error) {
	switch {
	case topicKitID != "":
		return topicKitID, nil
	case seenBy != "":
		return seenBy, nil
	case kitID != "":
		return kitID, nil
	default:
		return "", fmt.Errorf("wardragon payload missing seen_by/kit_id and topic carries no kit id")
	}
}

// RemapDrone parses a wardragon/drones, wardragon/drone/+, or
// wardragon/aircraft payload into a Track attributed to the resolved kit.
// topicKitID is the kit ID carried by the topic itself (empty for the
// shared topics, where it's resolved from the payload's seen_by/kit_id
// fields instead). trackType distinguishes Remote-ID drone reports from
// ADS-B aircraft reports.
func RemapDrone(topicKitID, trackType string, payload []byte) (models.Track, error) {
	var d wardragonDrone
	if err := json.Unmarshal(payload, &d); err != nil {
		return models.Track{}, fmt.Errorf("decode wardragon drone payload: %w", err)
	}
	if d.ID == "" {
		return models.Track{}, fmt.Errorf("wardragon drone payload missing id")
	}
	kitID, err := resolveKitID(topicKitID, d.SeenBy, d.KitID)
	if err != nil {
		return models.Track{}, err
	}
	if trackType == "" {
		trackType = models.TrackTypeDrone
	}
	now := time.Now()
	return models.Track{
		KitID:        kitID,
		DroneID:      d.ID,
		PilotID:      d.Pilot,
		OperatorID:   d.OperatorID,
		CAAID:        d.CAAID,
		RIDModel:     d.RIDModel,
		RIDSource:    d.RIDSource,
		TrackType:    trackType,
		Lat:          preferFloat(d.Lat, d.Latitude),
		Lon:          preferFloat(d.Lon, d.Longitude),
		AltitudeM:    preferFloat(d.AltM, d.HAE),
		SpeedMS:      d.Speed,
		VSpeedMS:     d.VSpeed,
		HeadingDeg:   d.Heading,
		HeightM:      d.Height,
		DirectionDeg: d.Direction,
		PilotLat:     d.PilotLat,
		PilotLon:     d.PilotLon,
		HomeLat:      d.HomeLat,
		HomeLon:      d.HomeLon,
		RSSI:         d.RSSI,
		ObservedAt:   epochToTime(d.Timestamp),
		IngestedAt:   now,
	}, nil
}

// RemapSignal parses a wardragon/signals payload into a Signal.
func RemapSignal(topicKitID string, payload []byte) (models.Signal, error) {
	var s wardragonSignal
	if err := json.Unmarshal(payload, &s); err != nil {
		return models.Signal{}, fmt.Errorf("decode wardragon signal payload: %w", err)
	}
	kitID, err := resolveKitID(topicKitID, s.SeenBy, s.KitID)
	if err != nil {
		return models.Signal{}, err
	}
	now := time.Now()
	return models.Signal{
		KitID:          kitID,
		DroneID:        s.DroneID,
		FreqMHz:        s.Freq,
		RSSI:           s.RSSI,
		PowerDBM:       s.Power,
		BandwidthMHz:   s.Bandwidth,
		ObserverLat:    s.ObserverLat,
		ObserverLon:    s.ObserverLon,
		Protocol:       s.Proto,
		DetectionType:  s.DetectionType,
		SourceStage:    s.SourceStage,
		PALConfidence:  s.PALConfidence,
		NTSCConfidence: s.NTSCConfidence,
		ObservedAt:     epochToTime(s.Timestamp),
		IngestedAt:     now,
	}, nil
}

// RemapSystemAttrs parses a wardragon/system/attrs payload into a
// HealthSample, deriving memory_percent, disk_percent, and uptime_hours
// from the raw readings per spec.md §4.3's remap table. topicKitID falls
// back to the payload's seen_by then kit_id fields when the topic itself
// doesn't carry one.
func RemapSystemAttrs(topicKitID string, payload []byte) (models.HealthSample, error) {
	var a wardragonSystemAttrs
	if err := json.Unmarshal(payload, &a); err != nil {
		return models.HealthSample{}, fmt.Errorf("decode wardragon system attrs payload: %w", err)
	}
	kitID, err := resolveKitID(topicKitID, a.SeenBy, a.KitID)
	if err != nil {
		return models.HealthSample{}, err
	}
	var memPct float64
	if a.MemoryTotalMB > 0 {
		memPct = (a.MemoryTotalMB - a.MemoryAvailableMB) / a.MemoryTotalMB * 100
	}
	var diskPct float64
	if a.DiskTotalMB > 0 {
		diskPct = a.DiskUsedMB / a.DiskTotalMB * 100
	}
	return models.HealthSample{
		KitID:         kitID,
		ObserverLat:   a.ObserverLat,
		ObserverLon:   a.ObserverLon,
		CPUPercent:    a.CPUUsage,
		MemoryPercent: memPct,
		DiskFreeGB:    a.DiskFreeGB,
		DiskPercent:   diskPct,
		UptimeS:       a.UptimeS,
		UptimeHours:   a.UptimeS / 3600,
		CPUTempC:      a.Temperature,
		GPUTempC:      a.GPUTempC,
		SDRTempC:      a.SDRTempC,
		GPSSpeedMS:    a.GPSSpeedMS,
		GPSTrackDeg:   a.GPSTrackDeg,
		GPSFix:        a.GPSFix,
		ObservedAt:    epochToTime(a.Timestamp),
		IngestedAt:    time.Now(),
	}, nil
}
