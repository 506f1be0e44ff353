package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemapDroneRequiresID(t *testing.T) {
	_, err := RemapDrone("k1", "", []byte(`{"lat":1,"lon":2}`))
	require.Error(t, err)
}

func TestRemapDroneParsesInternalFieldNames(t *testing.T) {
	track, err := RemapDrone("k1", "", []byte(`{"id":"d1","pilot_id":"p1","lat":1.5,"lon":2.5,"rssi_dbm":-60}`))
	require.NoError(t, err)
	assert.Equal(t, "k1", track.KitID)
	assert.Equal(t, "d1", track.DroneID)
	assert.Equal(t, "p1", track.PilotID)
	assert.Equal(t, "drone", track.TrackType)
	assert.Equal(t, 1.5, track.Lat)
	assert.Equal(t, 2.5, track.Lon)
	require.NotNil(t, track.RSSI)
	assert.Equal(t, -60.0, *track.RSSI)
}

func TestRemapDroneParsesBusFieldNames(t *testing.T) {
	track, err := RemapDrone("k1", "", []byte(`{"id":"d1","latitude":10,"longitude":20,"hae":100}`))
	require.NoError(t, err)
	assert.Equal(t, 10.0, track.Lat)
	assert.Equal(t, 20.0, track.Lon)
	assert.Equal(t, 100.0, track.AltitudeM)
}

func TestRemapDronePrefersInternalFieldNamesWhenBothPresent(t *testing.T) {
	track, err := RemapDrone("k1", "", []byte(`{"id":"d1","lat":1,"lon":2,"alt_m":50,"latitude":99,"longitude":99,"hae":999}`))
	require.NoError(t, err)
	assert.Equal(t, 1.0, track.Lat)
	assert.Equal(t, 2.0, track.Lon)
	assert.Equal(t, 50.0, track.AltitudeM)
}

func TestRemapDroneUsesGivenTrackType(t *testing.T) {
	track, err := RemapDrone("k1", "aircraft", []byte(`{"id":"a1"}`))
	require.NoError(t, err)
	assert.Equal(t, "aircraft", track.TrackType)
}

func TestRemapDroneResolvesKitIDFromSeenBy(t *testing.T) {
	track, err := RemapDrone("", "", []byte(`{"id":"d1","seen_by":"k9"}`))
	require.NoError(t, err)
	assert.Equal(t, "k9", track.KitID)
}

func TestRemapDroneResolvesKitIDFromPayloadKitID(t *testing.T) {
	track, err := RemapDrone("", "", []byte(`{"id":"d1","kit_id":"k9"}`))
	require.NoError(t, err)
	assert.Equal(t, "k9", track.KitID)
}

func TestRemapDroneTopicKitIDWinsOverPayload(t *testing.T) {
	track, err := RemapDrone("k1", "", []byte(`{"id":"d1","seen_by":"k9"}`))
	require.NoError(t, err)
	assert.Equal(t, "k1", track.KitID)
}

func TestRemapDroneRequiresKitID(t *testing.T) {
	_, err := RemapDrone("", "", []byte(`{"id":"d1"}`))
	require.Error(t, err)
}

func TestRemapSignalParsesPayload(t *testing.T) {
	signal, err := RemapSignal("k1", []byte(`{"drone_id":"d1","freq_mhz":915,"rssi_dbm":-70,"protocol":"ocusync"}`))
	require.NoError(t, err)
	assert.Equal(t, "k1", signal.KitID)
	assert.Equal(t, 915.0, signal.FreqMHz)
	assert.Equal(t, "ocusync", signal.Protocol)
}

func TestRemapSignalResolvesKitIDFromSeenBy(t *testing.T) {
	signal, err := RemapSignal("", []byte(`{"freq_mhz":915,"rssi_dbm":-70,"seen_by":"k9"}`))
	require.NoError(t, err)
	assert.Equal(t, "k9", signal.KitID)
}

func TestRemapSignalRequiresKitID(t *testing.T) {
	_, err := RemapSignal("", []byte(`{"freq_mhz":915}`))
	require.Error(t, err)
}

func TestRemapSystemAttrsUsesTopicKitIDFirst(t *testing.T) {
	sample, err := RemapSystemAttrs("k1", []byte(`{"kit_id":"k2","cpu_usage":40}`))
	require.NoError(t, err)
	assert.Equal(t, "k1", sample.KitID)
}

func TestRemapSystemAttrsFallsBackToPayloadKitID(t *testing.T) {
	sample, err := RemapSystemAttrs("", []byte(`{"kit_id":"k2","cpu_usage":40}`))
	require.NoError(t, err)
	assert.Equal(t, "k2", sample.KitID)
}

func TestRemapSystemAttrsFallsBackToSeenByBeforePayloadKitID(t *testing.T) {
	sample, err := RemapSystemAttrs("", []byte(`{"seen_by":"k3","kit_id":"k2","cpu_usage":40}`))
	require.NoError(t, err)
	assert.Equal(t, "k3", sample.KitID)
}

func TestRemapSystemAttrsRequiresKitID(t *testing.T) {
	_, err := RemapSystemAttrs("", []byte(`{"cpu_usage":40}`))
	require.Error(t, err)
}

func TestRemapSystemAttrsDerivesMemoryPercent(t *testing.T) {
	sample, err := RemapSystemAttrs("k1", []byte(`{"memory_total_mb":1000,"memory_available_mb":250}`))
	require.NoError(t, err)
	assert.InDelta(t, 75.0, sample.MemoryPercent, 0.001)
}

func TestRemapSystemAttrsDerivesDiskPercent(t *testing.T) {
	sample, err := RemapSystemAttrs("k1", []byte(`{"disk_total_mb":1000,"disk_used_mb":400}`))
	require.NoError(t, err)
	assert.InDelta(t, 40.0, sample.DiskPercent, 0.001)
}

func TestRemapSystemAttrsDerivesUptimeHours(t *testing.T) {
	sample, err := RemapSystemAttrs("k1", []byte(`{"uptime_s":7200}`))
	require.NoError(t, err)
	assert.InDelta(t, 2.0, sample.UptimeHours, 0.001)
}

func TestRemapSystemAttrsCopiesTemperatureToCPUTemp(t *testing.T) {
	sample, err := RemapSystemAttrs("k1", []byte(`{"temperature":55.5}`))
	require.NoError(t, err)
	assert.Equal(t, 55.5, sample.CPUTempC)
}

func TestEpochToTimeZeroFallsBackToNow(t *testing.T) {
	got := epochToTime(0)
	assert.False(t, got.IsZero())
}
