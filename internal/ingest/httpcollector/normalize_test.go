package httpcollector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDronesRequiresDroneID(t *testing.T) {
	_, err := normalizeDrones("k1", []rawDroneReport{{Lat: 1, Lon: 2}}, time.Now())
	require.Error(t, err)
}

func TestNormalizeDronesFallsBackObservedAt(t *testing.T) {
	fallback := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tracks, err := normalizeDrones("k1", []rawDroneReport{{DroneID: "d1", Lat: 1, Lon: 2}}, fallback)
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	assert.Equal(t, fallback, tracks[0].ObservedAt)
	assert.Equal(t, "k1", tracks[0].KitID)
}

func TestNormalizeDronesParsesRFC3339(t *testing.T) {
	tracks, err := normalizeDrones("k1", []rawDroneReport{{DroneID: "d1", ObservedAt: "2026-02-01T12:00:00Z"}}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 2026, tracks[0].ObservedAt.Year())
}

func TestNormalizeSignals(t *testing.T) {
	signals := normalizeSignals("k1", []rawSignalReport{{FreqMHz: 915.0, RSSI: -70}}, time.Now())
	require.Len(t, signals, 1)
	assert.Equal(t, 915.0, signals[0].FreqMHz)
}

func TestNormalizeStatus(t *testing.T) {
	h := normalizeStatus("k1", rawStatusReport{CPUPercent: 50}, time.Now())
	assert.Equal(t, "k1", h.KitID)
	assert.Equal(t, 50.0, h.CPUPercent)
}
