package models

import "time"

// RIDSourceBLE, RIDSourceWiFi, and RIDSourceDJI are the recognized
// Remote-ID broadcast transports a drone's RID fields were recovered from.
const (
	RIDSourceBLE  = "ble"
	RIDSourceWiFi = "wifi"
	RIDSourceDJI  = "dji"
)

// Track is a single aircraft/drone position report attributed to the kit
// that observed it. Pilot/home position, kinematics beyond speed/heading,
// and full Remote-ID attribution are all optional: most come from a
// Remote-ID broadcast a kit may or may not have decoded for any given
// observation.
type Track struct {
	KitID        string    `json:"kit_id"`
	DroneID      string    `json:"drone_id"`
	PilotID      string    `json:"pilot_id,omitempty"`
	OperatorID   string    `json:"operator_id,omitempty"`
	CAAID        string    `json:"caa_id,omitempty"`
	RIDMake      string    `json:"rid_make,omitempty"`
	RIDModel     string    `json:"rid_model,omitempty"`
	RIDSource    string    `json:"rid_source,omitempty"` // ble | wifi | dji
	TrackType    string    `json:"track_type"`           // "drone" or "aircraft"
	Lat          float64   `json:"lat"`
	Lon          float64   `json:"lon"`
	AltitudeM    float64   `json:"altitude_m"`
	SpeedMS      float64   `json:"speed_ms,omitempty"`
	VSpeedMS     float64   `json:"vspeed_ms,omitempty"`
	HeadingDeg   float64   `json:"heading_deg,omitempty"`
	HeightM      float64   `json:"height_m,omitempty"` // height above takeoff, distinct from altitude_m (AMSL)
	DirectionDeg float64   `json:"direction_deg,omitempty"`
	PilotLat     float64   `json:"pilot_lat,omitempty"`
	PilotLon     float64   `json:"pilot_lon,omitempty"`
	HomeLat      float64   `json:"home_lat,omitempty"`
	HomeLon      float64   `json:"home_lon,omitempty"`
	RSSI         *float64  `json:"rssi,omitempty"`
	ObservedAt   time.Time `json:"observed_at"`
	IngestedAt   time.Time `json:"ingested_at"`
}

// TrackTypeDrone and TrackTypeAircraft are the recognized track_type values.
const (
	TrackTypeDrone    = "drone"
	TrackTypeAircraft = "aircraft"
)

// DetectionTypeAnalog/DetectionTypeDJI are the recognized Signal
// detection_type values; SourceStageGuard/SourceStageConfirm are the
// recognized source-pipeline stages a detection was classified at.
const (
	DetectionTypeAnalog = "analog"
	DetectionTypeDJI    = "dji"
	SourceStageGuard    = "guard"
	SourceStageConfirm  = "confirm"
)

// Signal is an RF detection not resolved to a positioned track (or a
// supplementary detection alongside one).
type Signal struct {
	KitID          string    `json:"kit_id"`
	DroneID        string    `json:"drone_id,omitempty"`
	FreqMHz        float64   `json:"freq_mhz"`
	RSSI           float64   `json:"rssi"`
	PowerDBM       float64   `json:"power_dbm,omitempty"`
	BandwidthMHz   float64   `json:"bandwidth_mhz,omitempty"`
	ObserverLat    float64   `json:"observer_lat,omitempty"`
	ObserverLon    float64   `json:"observer_lon,omitempty"`
	Protocol       string    `json:"protocol,omitempty"`
	DetectionType  string    `json:"detection_type,omitempty"` // analog | dji
	SourceStage    string    `json:"source_stage,omitempty"`   // guard | confirm
	PALConfidence  float64   `json:"pal_confidence,omitempty"`
	NTSCConfidence float64   `json:"ntsc_confidence,omitempty"`
	ObservedAt     time.Time `json:"observed_at"`
	IngestedAt     time.Time `json:"ingested_at"`
}

// HealthSample is a single status report from a kit (CPU/memory/disk,
// uptime, temperatures, and the kit's own GPS fix), independent of the
// derived HealthStatus classification.
type HealthSample struct {
	KitID         string    `json:"kit_id"`
	ObserverLat   float64   `json:"observer_lat,omitempty"`
	ObserverLon   float64   `json:"observer_lon,omitempty"`
	CPUPercent    float64   `json:"cpu_percent,omitempty"`
	MemoryPercent float64   `json:"memory_percent,omitempty"`
	DiskFreeGB    float64   `json:"disk_free_gb,omitempty"`
	DiskPercent   float64   `json:"disk_percent,omitempty"`
	UptimeS       float64   `json:"uptime_s,omitempty"`
	UptimeHours   float64   `json:"uptime_hours,omitempty"`
	CPUTempC      float64   `json:"cpu_temp_c,omitempty"`
	GPUTempC      float64   `json:"gpu_temp_c,omitempty"`
	SDRTempC      float64   `json:"sdr_temp_c,omitempty"`
	GPSSpeedMS    float64   `json:"gps_speed_ms,omitempty"`
	GPSTrackDeg   float64   `json:"gps_track_deg,omitempty"`
	GPSFix        bool      `json:"gps_fix,omitempty"`
	ObservedAt    time.Time `json:"observed_at"`
	IngestedAt    time.Time `json:"ingested_at"`
}

// HourlyRollup is the pre-aggregated per-kit, per-hour summary used to keep
// dashboards and pattern queries off the raw fact tables for long ranges.
type HourlyRollup struct {
	KitID        string    `json:"kit_id"`
	HourStart    time.Time `json:"hour_start"`
	TrackCount   int       `json:"track_count"`
	SignalCount  int       `json:"signal_count"`
	UniqueDrones int       `json:"unique_drones"`
	AvgRSSI      float64   `json:"avg_rssi,omitempty"`
}
