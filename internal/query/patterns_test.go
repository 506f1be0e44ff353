package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldwatch/aegis/internal/models"
)

func track(drone, kit string, lat, lon float64, at time.Time) models.Track {
	return models.Track{KitID: kit, DroneID: drone, TrackType: models.TrackTypeDrone, Lat: lat, Lon: lon, ObservedAt: at, IngestedAt: at}
}

func TestRepeatedContactsFiltersAndOrders(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tracks := []models.Track{
		track("d1", "k1", 0, 0, base),
		track("d1", "k2", 0, 0, base.Add(time.Minute)),
		track("d1", "k1", 0, 0, base.Add(2*time.Minute)),
		track("d2", "k1", 0, 0, base),
	}
	out := RepeatedContacts(tracks, 2)
	require.Len(t, out, 1)
	assert.Equal(t, "d1", out[0].DroneID)
	assert.Equal(t, 3, out[0].AppearanceCount)
	assert.Equal(t, 2, out[0].DistinctKits)
}

func TestCoordinatedActivityGroupsClosePairs(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tracks := []models.Track{
		track("d1", "k1", 40.0, -75.0, now),
		track("d2", "k1", 40.001, -75.0, now.Add(time.Minute)),
		track("d3", "k1", 40.002, -75.0, now.Add(2*time.Minute)),
	}
	out := CoordinatedActivity(tracks, 500, 60*time.Minute)
	require.NotEmpty(t, out)
	for _, g := range out {
		assert.NotEmpty(t, g.NeighbourDrones)
	}
}

func TestAnomaliesFlagsSpeedAndAltitude(t *testing.T) {
	now := time.Now()
	tracks := []models.Track{
		{DroneID: "d1", KitID: "k1", TrackType: models.TrackTypeDrone, SpeedMS: 45, AltitudeM: 460, ObservedAt: now},
	}
	out := Anomalies(tracks)
	require.Len(t, out, 2)
}

func TestRapidDescentFlagsSteepDrop(t *testing.T) {
	now := time.Now()
	tracks := []models.Track{
		{DroneID: "d1", AltitudeM: 200, SpeedMS: 1, ObservedAt: now},
		{DroneID: "d1", AltitudeM: 100, SpeedMS: 1, ObservedAt: now.Add(10 * time.Second)},
	}
	out := RapidDescent(tracks, 50, 5)
	require.Len(t, out, 1)
	assert.True(t, out[0].PossiblePayloadDrop)
}

func TestLoiteringFlagsStationaryDrone(t *testing.T) {
	now := time.Now()
	tracks := []models.Track{
		track("d1", "k1", 10.0, 10.0, now),
		track("d1", "k1", 10.0001, 10.0001, now.Add(20*time.Minute)),
	}
	out := Loitering(tracks, 10.0, 10.0, 100, 15*time.Minute)
	require.Len(t, out, 1)
	assert.Equal(t, "high", out[0].ThreatLevel)
}

func TestSecurityAlertsScoresHighSpeed(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tracks := []models.Track{{DroneID: "d1", KitID: "k1", SpeedMS: 30, ObservedAt: now}}
	out := SecurityAlerts(tracks, nil, 22, 5, time.UTC)
	require.Len(t, out, 1)
	assert.Equal(t, "medium", out[0].Level)
}

func TestPilotReuseGroupsByOperatorID(t *testing.T) {
	now := time.Now()
	tracks := []models.Track{
		{DroneID: "d1", KitID: "k1", OperatorID: "p1", ObservedAt: now},
		{DroneID: "d2", KitID: "k1", OperatorID: "p1", ObservedAt: now},
	}
	out := PilotReuse(tracks, 200)
	require.Len(t, out, 1)
	assert.Equal(t, "operator_id", out[0].Method)
	assert.ElementsMatch(t, []string{"d1", "d2"}, out[0].Drones)
}

func TestPilotReuseClustersByPilotPositionNotDronePosition(t *testing.T) {
	now := time.Now()
	tracks := []models.Track{
		{DroneID: "d1", KitID: "k1", Lat: 10, Lon: 10, PilotLat: 40.0, PilotLon: -75.0, ObservedAt: now},
		{DroneID: "d2", KitID: "k1", Lat: 50, Lon: 50, PilotLat: 40.0001, PilotLon: -75.0, ObservedAt: now},
	}
	out := PilotReuse(tracks, 50)
	require.Len(t, out, 1)
	assert.Equal(t, "spatial", out[0].Method)
}

func TestPilotReuseIgnoresRowsWithoutPilotPosition(t *testing.T) {
	now := time.Now()
	tracks := []models.Track{
		{DroneID: "d1", KitID: "k1", Lat: 10, Lon: 10, ObservedAt: now},
		{DroneID: "d2", KitID: "k1", Lat: 10.0001, Lon: 10.0001, ObservedAt: now},
	}
	out := PilotReuse(tracks, 50)
	assert.Empty(t, out)
}

func TestDedupeByDroneKeepsLatest(t *testing.T) {
	now := time.Now()
	tracks := []models.Track{
		track("d1", "k1", 0, 0, now.Add(-time.Minute)),
		track("d1", "k2", 1, 1, now),
	}
	out := DedupeByDrone(tracks)
	require.Len(t, out, 1)
	assert.Equal(t, "k2", out[0].KitID)
}
