package query

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldwatch/aegis/internal/models"
)

func TestParseTimeRangeHours(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r, err := ParseTimeRange("6h", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-6*time.Hour), r.Start)
	assert.Equal(t, now, r.End)
}

func TestParseTimeRangeDays(t *testing.T) {
	now := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	r, err := ParseTimeRange("7d", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-7*24*time.Hour), r.Start)
}

func TestParseTimeRangeCustom(t *testing.T) {
	r, err := ParseTimeRange("custom:2026-01-01T00:00:00Z,2026-01-02T00:00:00Z", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 2026, r.Start.Year())
	assert.True(t, r.End.After(r.Start))
}

func TestParseTimeRangeRejectsGarbage(t *testing.T) {
	_, err := ParseTimeRange("nonsense", time.Now())
	require.Error(t, err)
}

func TestParseTimeRangeDefaultsTo24h(t *testing.T) {
	now := time.Now()
	r, err := ParseTimeRange("", now)
	require.NoError(t, err)
	assert.WithinDuration(t, now.Add(-24*time.Hour), r.Start, time.Second)
}

func TestWriteTracksCSVEmptyIsHeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTracksCSV(&buf, nil))
	lines := bytes.Count(buf.Bytes(), []byte("\n"))
	assert.Equal(t, 1, lines)
}

func TestWriteTracksCSVWritesRows(t *testing.T) {
	var buf bytes.Buffer
	now := time.Now()
	rssi := -70.0
	tracks := []models.Track{{KitID: "k1", DroneID: "d1", RSSI: &rssi, ObservedAt: now, IngestedAt: now}}
	require.NoError(t, WriteTracksCSV(&buf, tracks))
	lines := bytes.Count(buf.Bytes(), []byte("\n"))
	assert.Equal(t, 2, lines)
}
