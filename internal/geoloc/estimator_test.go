package geoloc

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHaversineKnownDistance(t *testing.T) {
	// Roughly London to Paris, ~344km.
	d := HaversineMeters(51.5074, -0.1278, 48.8566, 2.3522)
	assert.InDelta(t, 344000, d, 5000)
}

func TestHaversineZeroForSamePoint(t *testing.T) {
	assert.Equal(t, 0.0, HaversineMeters(10, 10, 10, 10))
}

func TestPathLossModelMonotonic(t *testing.T) {
	m := DefaultPathLossModel()
	near := m.EstimateDistance(-40)
	far := m.EstimateDistance(-80)
	assert.Less(t, near, far, "weaker RSSI should estimate a longer distance")
}

func TestEstimatorSingleKit(t *testing.T) {
	e := NewEstimator(DefaultPathLossModel(), 0)
	est, ok := e.Estimate([]Observation{{KitID: "a", Lat: 1, Lon: 1, RSSI: -60}})
	require.True(t, ok)
	assert.Equal(t, "single_kit", est.Method)
	assert.Equal(t, 1.0, est.Lat)
	assert.Greater(t, est.ConfidenceM, 0.0)
}

func TestEstimatorTwoKitWeightedFavorsStrongerSignal(t *testing.T) {
	e := NewEstimator(DefaultPathLossModel(), 0)
	est, ok := e.Estimate([]Observation{
		{KitID: "a", Lat: 0, Lon: 0, RSSI: -40}, // strong, close
		{KitID: "b", Lat: 0, Lon: 1, RSSI: -90}, // weak, far
	})
	require.True(t, ok)
	assert.Equal(t, "two_kit_weighted", est.Method)
	assert.Less(t, est.Lon, 0.5, "estimate should sit closer to the stronger-signal kit")
}

func TestEstimatorTrilaterationConvergesNearTruth(t *testing.T) {
	model := DefaultPathLossModel()
	truth := struct{ lat, lon float64 }{lat: 40.0, lon: -75.0}
	kits := []Observation{
		{KitID: "a", Lat: 40.01, Lon: -75.00},
		{KitID: "b", Lat: 39.99, Lon: -75.01},
		{KitID: "c", Lat: 40.00, Lon: -74.98},
	}
	for i := range kits {
		d := HaversineMeters(truth.lat, truth.lon, kits[i].Lat, kits[i].Lon)
		kits[i].RSSI = model.ReferenceRSSI - 10*model.PathLossExponent*math.Log10(math.Max(d, 1))
	}
	e := NewEstimator(model, 0)
	est, ok := e.Estimate(kits)
	require.True(t, ok)
	assert.Equal(t, "trilateration", est.Method)
	assert.InDelta(t, truth.lat, est.Lat, 0.05)
	assert.InDelta(t, truth.lon, est.Lon, 0.05)
	assert.Less(t, est.ConfidenceM, 50.0)
}

func TestEstimatorNoObservations(t *testing.T) {
	e := NewEstimator(DefaultPathLossModel(), 0)
	_, ok := e.Estimate(nil)
	assert.False(t, ok)
}
