// Package geoloc implements the RSSI-based location estimator (spec.md
// §4.5.8): haversine distance, a log-distance path-loss model converting
// RSSI to estimated range, and single-kit, two-kit-weighted, and
// multi-kit trilateration position estimates. The GPS-spoofing score built
// on these estimates lives in package query.
package geoloc

import "math"

const earthRadiusM = 6371000.0

// HaversineMeters returns the great-circle distance between two WGS84
// coordinates in meters.
func HaversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusM * c
}

// Destination computes the WGS84 coordinate reached by travelling
// distanceM meters from (lat, lon) along bearingDeg degrees from true
// north.
func Destination(lat, lon, bearingDeg, distanceM float64) (float64, float64) {
	phi1 := lat * math.Pi / 180
	lambda1 := lon * math.Pi / 180
	theta := bearingDeg * math.Pi / 180
	delta := distanceM / earthRadiusM

	phi2 := math.Asin(math.Sin(phi1)*math.Cos(delta) + math.Cos(phi1)*math.Sin(delta)*math.Cos(theta))
	lambda2 := lambda1 + math.Atan2(
		math.Sin(theta)*math.Sin(delta)*math.Cos(phi1),
		math.Cos(delta)-math.Sin(phi1)*math.Sin(phi2))

	return phi2 * 180 / math.Pi, lambda2 * 180 / math.Pi
}
