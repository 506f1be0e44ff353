// Package httpcollector implements the HTTP Collector: one polling goroutine
// per enabled HTTP-source kit, adapted from the teacher's one-worker-per-
// domain pipeline stage (engine/internal/pipeline.go's extractionWorker)
// generalized to one-loop-per-kit.
package httpcollector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// rawDroneReport is the JSON shape a kit's /drones endpoint returns.
type rawDroneReport struct {
	DroneID      string   `json:"drone_id"`
	PilotID      string   `json:"pilot_id"`
	OperatorID   string   `json:"operator_id"`
	CAAID        string   `json:"caa_id"`
	RIDMake      string   `json:"rid_make"`
	RIDModel     string   `json:"rid_model"`
	RIDSource    string   `json:"rid_source"`
	Lat          float64  `json:"lat"`
	Lon          float64  `json:"lon"`
	AltitudeM    float64  `json:"altitude_m"`
	SpeedMS      float64  `json:"speed_ms"`
	VSpeedMS     float64  `json:"vspeed_ms"`
	HeadingDeg   float64  `json:"heading_deg"`
	HeightM      float64  `json:"height_m"`
	DirectionDeg float64  `json:"direction_deg"`
	PilotLat     float64  `json:"pilot_lat"`
	PilotLon     float64  `json:"pilot_lon"`
	HomeLat      float64  `json:"home_lat"`
	HomeLon      float64  `json:"home_lon"`
	RSSI         *float64 `json:"rssi"`
	ObservedAt   string   `json:"observed_at"`
}

type rawSignalReport struct {
	DroneID        string  `json:"drone_id"`
	FreqMHz        float64 `json:"freq_mhz"`
	RSSI           float64 `json:"rssi"`
	PowerDBM       float64 `json:"power_dbm"`
	BandwidthMHz   float64 `json:"bandwidth_mhz"`
	ObserverLat    float64 `json:"observer_lat"`
	ObserverLon    float64 `json:"observer_lon"`
	Protocol       string  `json:"protocol"`
	DetectionType  string  `json:"detection_type"`
	SourceStage    string  `json:"source_stage"`
	PALConfidence  float64 `json:"pal_confidence"`
	NTSCConfidence float64 `json:"ntsc_confidence"`
	ObservedAt     string  `json:"observed_at"`
}

type rawStatusReport struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	DiskFreeGB    float64 `json:"disk_free_gb"`
	DiskPercent   float64 `json:"disk_percent"`
	UptimeS       float64 `json:"uptime_s"`
	UptimeHours   float64 `json:"uptime_hours"`
	CPUTempC      float64 `json:"cpu_temp_c"`
	GPUTempC      float64 `json:"gpu_temp_c"`
	SDRTempC      float64 `json:"sdr_temp_c"`
	ObserverLat   float64 `json:"observer_lat"`
	ObserverLon   float64 `json:"observer_lon"`
	GPSSpeedMS    float64 `json:"gps_speed_ms"`
	GPSTrackDeg   float64 `json:"gps_track_deg"`
	GPSFix        bool    `json:"gps_fix"`
	ObservedAt    string  `json:"observed_at"`
}

// Client fetches and decodes a kit's endpoints over HTTP.
type Client struct {
	http *http.Client
}

// NewClient builds a Client with the given per-request timeout.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{http: &http.Client{Timeout: timeout}}
}

func (c *Client) fetchJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

// FetchDrones retrieves the kit's current drone/aircraft track reports.
func (c *Client) FetchDrones(ctx context.Context, baseURL string) ([]rawDroneReport, error) {
	var out []rawDroneReport
	err := c.fetchJSON(ctx, baseURL+"/drones", &out)
	return out, err
}

// FetchSignals retrieves the kit's current unresolved RF detections.
func (c *Client) FetchSignals(ctx context.Context, baseURL string) ([]rawSignalReport, error) {
	var out []rawSignalReport
	err := c.fetchJSON(ctx, baseURL+"/signals", &out)
	return out, err
}

// FetchStatus retrieves the kit's health/status report.
func (c *Client) FetchStatus(ctx context.Context, baseURL string) (rawStatusReport, error) {
	var out rawStatusReport
	err := c.fetchJSON(ctx, baseURL+"/status", &out)
	return out, err
}
