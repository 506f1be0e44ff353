package query

import (
	"math"
	"sort"
	"time"

	"github.com/fieldwatch/aegis/internal/geoloc"
	"github.com/fieldwatch/aegis/internal/models"
)

// RepeatedContact is one drone's appearance summary for §4.5.1.
type RepeatedContact struct {
	DroneID         string    `json:"drone_id"`
	AppearanceCount int       `json:"appearance_count"`
	DistinctKits    int       `json:"distinct_kits"`
	LastSeen        time.Time `json:"last_seen"`
}

// RepeatedContacts groups tracks by drone_id and keeps those with at least
// minAppearances appearances, sorted by appearance count desc then
// last-seen desc.
func RepeatedContacts(tracks []models.Track, minAppearances int) []RepeatedContact {
	if minAppearances <= 0 {
		minAppearances = 2
	}
	type acc struct {
		count    int
		kits     map[string]struct{}
		lastSeen time.Time
	}
	byDrone := map[string]*acc{}
	for _, t := range tracks {
		a, ok := byDrone[t.DroneID]
		if !ok {
			a = &acc{kits: map[string]struct{}{}}
			byDrone[t.DroneID] = a
		}
		a.count++
		a.kits[t.KitID] = struct{}{}
		if t.ObservedAt.After(a.lastSeen) {
			a.lastSeen = t.ObservedAt
		}
	}

	out := make([]RepeatedContact, 0, len(byDrone))
	for droneID, a := range byDrone {
		if a.count < minAppearances {
			continue
		}
		out = append(out, RepeatedContact{
			DroneID:         droneID,
			AppearanceCount: a.count,
			DistinctKits:    len(a.kits),
			LastSeen:        a.lastSeen,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AppearanceCount != out[j].AppearanceCount {
			return out[i].AppearanceCount > out[j].AppearanceCount
		}
		return out[i].LastSeen.After(out[j].LastSeen)
	})
	return out
}

// CoordinatedGroup is one anchor drone and its paired neighbours for §4.5.2.
type CoordinatedGroup struct {
	AnchorDroneID    string   `json:"anchor_drone_id"`
	NeighbourDrones  []string `json:"neighbour_drones"`
	CorrelationScore string   `json:"correlation_score"`
}

// CoordinatedActivity implements the single-link pairing described in
// §4.5.2: candidate pairs within distanceThresholdM and timeWindow of each
// other, grouped by anchor with a simple pair-count-derived score. This is
// a deliberate approximation (no transitive closure); see spec §4.5.2.
func CoordinatedActivity(tracks []models.Track, distanceThresholdM float64, timeWindow time.Duration) []CoordinatedGroup {
	latest := DedupeByDrone(tracks)
	sort.Slice(latest, func(i, j int) bool { return latest[i].DroneID < latest[j].DroneID })

	neighbours := map[string]map[string]struct{}{}
	for i := 0; i < len(latest); i++ {
		for j := i + 1; j < len(latest); j++ {
			a, b := latest[i], latest[j]
			dist := geoloc.HaversineMeters(a.Lat, a.Lon, b.Lat, b.Lon)
			dt := a.ObservedAt.Sub(b.ObservedAt)
			if dt < 0 {
				dt = -dt
			}
			if dist <= distanceThresholdM && dt <= timeWindow {
				addNeighbour(neighbours, a.DroneID, b.DroneID)
				addNeighbour(neighbours, b.DroneID, a.DroneID)
			}
		}
	}

	out := make([]CoordinatedGroup, 0, len(neighbours))
	for anchor, peers := range neighbours {
		if len(peers) < 1 {
			continue
		}
		list := make([]string, 0, len(peers))
		for p := range peers {
			list = append(list, p)
		}
		sort.Strings(list)
		out = append(out, CoordinatedGroup{
			AnchorDroneID:    anchor,
			NeighbourDrones:  list,
			CorrelationScore: coordinationScore(len(list)),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AnchorDroneID < out[j].AnchorDroneID })
	return out
}

func addNeighbour(m map[string]map[string]struct{}, anchor, peer string) {
	set, ok := m[anchor]
	if !ok {
		set = map[string]struct{}{}
		m[anchor] = set
	}
	set[peer] = struct{}{}
}

func coordinationScore(pairCount int) string {
	switch {
	case pairCount >= 4:
		return "high"
	case pairCount >= 2:
		return "medium"
	default:
		return "low"
	}
}

// PilotReuseGroup lists drones sharing a pilot, by exact operator ID match
// or by spatial clustering of reported pilot position (§4.5.3).
type PilotReuseGroup struct {
	PilotID string   `json:"pilot_id"`
	Drones  []string `json:"drones"`
	Method  string   `json:"method"` // "operator_id" | "spatial"
}

// hasPilotPosition reports whether a track carries a usable pilot_lat/lon,
// treating the origin as "unset" the way the rest of the lat/lon fields do.
func hasPilotPosition(t models.Track) bool {
	return t.PilotLat != 0 || t.PilotLon != 0
}

// PilotReuse unions exact-operator-ID groups with spatially-clustered
// groups for rows whose OperatorID is blank but whose pilot_lat/pilot_lon is
// known, clustering on the reported pilot position itself rather than the
// drone's own position.
func PilotReuse(tracks []models.Track, spatialThresholdM float64) []PilotReuseGroup {
	byPilot := map[string]map[string]struct{}{}
	var unattributed []models.Track
	for _, t := range tracks {
		if t.OperatorID == "" {
			if hasPilotPosition(t) {
				unattributed = append(unattributed, t)
			}
			continue
		}
		set, ok := byPilot[t.OperatorID]
		if !ok {
			set = map[string]struct{}{}
			byPilot[t.OperatorID] = set
		}
		set[t.DroneID] = struct{}{}
	}

	out := make([]PilotReuseGroup, 0, len(byPilot))
	for pilot, drones := range byPilot {
		if len(drones) < 2 {
			continue
		}
		out = append(out, PilotReuseGroup{PilotID: pilot, Drones: sortedKeys(drones), Method: "operator_id"})
	}

	latest := DedupeByDrone(unattributed)
	sort.Slice(latest, func(i, j int) bool { return latest[i].DroneID < latest[j].DroneID })
	visited := map[string]bool{}
	clusterIdx := 0
	for i := range latest {
		if visited[latest[i].DroneID] {
			continue
		}
		cluster := map[string]struct{}{latest[i].DroneID: {}}
		for j := range latest {
			if i == j || visited[latest[j].DroneID] {
				continue
			}
			if geoloc.HaversineMeters(latest[i].PilotLat, latest[i].PilotLon, latest[j].PilotLat, latest[j].PilotLon) <= spatialThresholdM {
				cluster[latest[j].DroneID] = struct{}{}
				visited[latest[j].DroneID] = true
			}
		}
		visited[latest[i].DroneID] = true
		if len(cluster) >= 2 {
			clusterIdx++
			out = append(out, PilotReuseGroup{
				PilotID: spatialClusterID(clusterIdx),
				Drones:  sortedKeys(cluster),
				Method:  "spatial",
			})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].PilotID < out[j].PilotID })
	return out
}

func spatialClusterID(n int) string {
	return "spatial-cluster-" + itoa(n)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Anomaly is one flagged track row for §4.5.4.
type Anomaly struct {
	DroneID   string    `json:"drone_id"`
	KitID     string    `json:"kit_id"`
	Type      string    `json:"type"` // "speed" | "altitude" | "rapid_altitude_change"
	Severity  string    `json:"severity"`
	Value     float64   `json:"value"`
	ObservedAt time.Time `json:"observed_at"`
}

// Anomalies flags speed, altitude, and rapid-altitude-change outliers.
func Anomalies(tracks []models.Track) []Anomaly {
	var out []Anomaly
	for _, t := range tracks {
		if sev := severity(t.SpeedMS, 30, 40, 50); sev != "" {
			out = append(out, Anomaly{DroneID: t.DroneID, KitID: t.KitID, Type: "speed", Severity: sev, Value: t.SpeedMS, ObservedAt: t.ObservedAt})
		}
		if t.TrackType == models.TrackTypeDrone {
			if sev := severity(t.AltitudeM, 400, 450, 500); sev != "" {
				out = append(out, Anomaly{DroneID: t.DroneID, KitID: t.KitID, Type: "altitude", Severity: sev, Value: t.AltitudeM, ObservedAt: t.ObservedAt})
			}
		}
	}
	out = append(out, rapidAltitudeChanges(tracks)...)
	sort.Slice(out, func(i, j int) bool { return out[i].ObservedAt.Before(out[j].ObservedAt) })
	return out
}

func severity(v, medium, high, critical float64) string {
	switch {
	case v > critical:
		return "critical"
	case v > high:
		return "high"
	case v > medium:
		return "medium"
	default:
		return ""
	}
}

func rapidAltitudeChanges(tracks []models.Track) []Anomaly {
	byDrone := map[string][]models.Track{}
	for _, t := range tracks {
		byDrone[t.DroneID] = append(byDrone[t.DroneID], t)
	}
	var out []Anomaly
	for droneID, rows := range byDrone {
		sort.Slice(rows, func(i, j int) bool { return rows[i].ObservedAt.Before(rows[j].ObservedAt) })
		for i := 1; i < len(rows); i++ {
			dt := rows[i].ObservedAt.Sub(rows[i-1].ObservedAt).Seconds()
			if dt < 10 {
				continue
			}
			rate := math.Abs(rows[i].AltitudeM-rows[i-1].AltitudeM) / dt
			if sev := severity(rate, 5, 7.5, 10); sev != "" {
				out = append(out, Anomaly{DroneID: droneID, KitID: rows[i].KitID, Type: "rapid_altitude_change", Severity: sev, Value: rate, ObservedAt: rows[i].ObservedAt})
			}
		}
	}
	return out
}

// MultiKitObservation is one kit's detail within a multi-kit correlation
// slot, ordered strongest-signal-first.
type MultiKitObservation struct {
	KitID      string    `json:"kit_id"`
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	RSSI       float64   `json:"rssi"`
	FreqMHz    float64   `json:"freq_mhz,omitempty"`
	ObservedAt time.Time `json:"observed_at"`
}

// MultiKitCorrelation is one 1-minute slot where a drone was seen by ≥2
// kits (§4.5.5).
type MultiKitCorrelation struct {
	DroneID                string                 `json:"drone_id"`
	SlotStart              time.Time              `json:"slot_start"`
	Kits                   []MultiKitObservation  `json:"kits"`
	TriangulationPossible  bool                   `json:"triangulation_possible"`
}

// MultiKitCorrelate buckets tracks into 1-minute slots per drone and keeps
// slots seen by at least two distinct kits.
func MultiKitCorrelate(tracks []models.Track) []MultiKitCorrelation {
	type key struct {
		drone string
		slot  time.Time
	}
	buckets := map[key][]models.Track{}
	for _, t := range tracks {
		if t.RSSI == nil {
			continue
		}
		slot := t.ObservedAt.Truncate(time.Minute)
		k := key{drone: t.DroneID, slot: slot}
		buckets[k] = append(buckets[k], t)
	}

	out := make([]MultiKitCorrelation, 0, len(buckets))
	for k, rows := range buckets {
		distinctKits := map[string]struct{}{}
		for _, r := range rows {
			distinctKits[r.KitID] = struct{}{}
		}
		if len(distinctKits) < 2 {
			continue
		}
		obs := make([]MultiKitObservation, 0, len(rows))
		for _, r := range rows {
			obs = append(obs, MultiKitObservation{KitID: r.KitID, Lat: r.Lat, Lon: r.Lon, RSSI: *r.RSSI, ObservedAt: r.ObservedAt})
		}
		sort.Slice(obs, func(i, j int) bool { return obs[i].RSSI > obs[j].RSSI })
		out = append(out, MultiKitCorrelation{
			DroneID:               k.drone,
			SlotStart:             k.slot,
			Kits:                  obs,
			TriangulationPossible: len(distinctKits) >= 3,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SlotStart.Before(out[j].SlotStart) })
	return out
}

// LoiterEvent is a drone that stayed within radiusM of a center point for
// at least minDuration (§4.5.6 loitering).
type LoiterEvent struct {
	DroneID     string        `json:"drone_id"`
	DurationMin float64       `json:"duration_min"`
	ThreatLevel string        `json:"threat_level"`
	FirstSeen   time.Time     `json:"first_seen"`
	LastSeen    time.Time     `json:"last_seen"`
}

// Loitering finds drones whose positions stayed within radiusM of
// (centerLat, centerLon) for at least minDuration.
func Loitering(tracks []models.Track, centerLat, centerLon, radiusM float64, minDuration time.Duration) []LoiterEvent {
	byDrone := map[string][]models.Track{}
	for _, t := range tracks {
		if geoloc.HaversineMeters(t.Lat, t.Lon, centerLat, centerLon) <= radiusM {
			byDrone[t.DroneID] = append(byDrone[t.DroneID], t)
		}
	}
	var out []LoiterEvent
	for droneID, rows := range byDrone {
		sort.Slice(rows, func(i, j int) bool { return rows[i].ObservedAt.Before(rows[j].ObservedAt) })
		first, last := rows[0].ObservedAt, rows[len(rows)-1].ObservedAt
		duration := last.Sub(first)
		if duration < minDuration {
			continue
		}
		minutes := duration.Minutes()
		out = append(out, LoiterEvent{
			DroneID:     droneID,
			DurationMin: minutes,
			ThreatLevel: loiterThreat(minutes),
			FirstSeen:   first,
			LastSeen:    last,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DurationMin > out[j].DurationMin })
	return out
}

func loiterThreat(minutes float64) string {
	switch {
	case minutes > 30:
		return "critical"
	case minutes > 15:
		return "high"
	case minutes > 10:
		return "medium"
	default:
		return "low"
	}
}

// RapidDescentEvent is one detected rapid-descent sample pair (§4.5.6).
type RapidDescentEvent struct {
	DroneID             string    `json:"drone_id"`
	ObservedAt          time.Time `json:"observed_at"`
	DescentM            float64   `json:"descent_m"`
	DescentRateMS       float64   `json:"descent_rate_mps"`
	PossiblePayloadDrop bool      `json:"possible_payload_drop"`
}

// RapidDescent scans consecutive per-drone samples for descent events.
func RapidDescent(tracks []models.Track, minDescentM, minDescentRateMS float64) []RapidDescentEvent {
	byDrone := map[string][]models.Track{}
	for _, t := range tracks {
		byDrone[t.DroneID] = append(byDrone[t.DroneID], t)
	}
	var out []RapidDescentEvent
	for droneID, rows := range byDrone {
		sort.Slice(rows, func(i, j int) bool { return rows[i].ObservedAt.Before(rows[j].ObservedAt) })
		for i := 1; i < len(rows); i++ {
			dt := rows[i].ObservedAt.Sub(rows[i-1].ObservedAt).Seconds()
			if dt <= 0 {
				continue
			}
			descent := rows[i-1].AltitudeM - rows[i].AltitudeM
			if descent < minDescentM {
				continue
			}
			rate := descent / dt
			if rate < minDescentRateMS {
				continue
			}
			out = append(out, RapidDescentEvent{
				DroneID:             droneID,
				ObservedAt:          rows[i].ObservedAt,
				DescentM:            descent,
				DescentRateMS:       rate,
				PossiblePayloadDrop: rate > 8 && rows[i].SpeedMS < 5,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ObservedAt.Before(out[j].ObservedAt) })
	return out
}

// NightActivityEvent aggregates one drone's night-hours detections
// (§4.5.6).
type NightActivityEvent struct {
	DroneID        string `json:"drone_id"`
	DetectionCount int    `json:"detection_count"`
	RiskLevel      string `json:"risk_level"`
}

// NightActivity filters tracks by local hour in [nightStart,24) ∪ [0,nightEnd]
// and aggregates per drone.
func NightActivity(tracks []models.Track, nightStartHour, nightEndHour int, loc *time.Location) []NightActivityEvent {
	if loc == nil {
		loc = time.UTC
	}
	counts := map[string]int{}
	for _, t := range tracks {
		h := t.ObservedAt.In(loc).Hour()
		if h >= nightStartHour || h <= nightEndHour {
			counts[t.DroneID]++
		}
	}
	out := make([]NightActivityEvent, 0, len(counts))
	for droneID, n := range counts {
		out = append(out, NightActivityEvent{DroneID: droneID, DetectionCount: n, RiskLevel: nightRisk(n)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DetectionCount > out[j].DetectionCount })
	return out
}

func nightRisk(count int) string {
	switch {
	case count > 10:
		return "critical"
	case count > 5:
		return "high"
	case count > 2:
		return "medium"
	default:
		return "low"
	}
}

// SecurityAlert is a consolidated weighted-score alert for one observation
// (§4.5.7).
type SecurityAlert struct {
	DroneID    string    `json:"drone_id"`
	KitID      string    `json:"kit_id"`
	ObservedAt time.Time `json:"observed_at"`
	Score      int       `json:"score"`
	Level      string    `json:"level"`
}

// SecurityAlerts computes the weighted consolidated score per track row:
// rapid descent +3, night +2, low-and-slow +2, high-speed +1.
func SecurityAlerts(tracks []models.Track, rapidDescents []RapidDescentEvent, nightStartHour, nightEndHour int, loc *time.Location) []SecurityAlert {
	if loc == nil {
		loc = time.UTC
	}
	rapidSet := map[string]struct{}{}
	for _, r := range rapidDescents {
		rapidSet[r.DroneID+"|"+r.ObservedAt.String()] = struct{}{}
	}

	var out []SecurityAlert
	for _, t := range tracks {
		score := 0
		if _, ok := rapidSet[t.DroneID+"|"+t.ObservedAt.String()]; ok {
			score += 3
		}
		h := t.ObservedAt.In(loc).Hour()
		if h >= nightStartHour || h <= nightEndHour {
			score += 2
		}
		if t.AltitudeM < 50 && t.SpeedMS > 0 && t.SpeedMS < 5 {
			score += 2
		}
		if t.SpeedMS > 25 {
			score += 1
		}
		level := alertLevel(score)
		if level == "none" {
			continue
		}
		out = append(out, SecurityAlert{DroneID: t.DroneID, KitID: t.KitID, ObservedAt: t.ObservedAt, Score: score, Level: level})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func alertLevel(score int) string {
	switch {
	case score >= 5:
		return "critical"
	case score >= 3:
		return "high"
	case score >= 1:
		return "medium"
	default:
		return "none"
	}
}
