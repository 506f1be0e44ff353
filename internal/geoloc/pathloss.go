package geoloc

import "math"

// PathLossModel is the log-distance path-loss model parameters: measured
// RSSI (dBm) at a 1-meter reference distance, and the path-loss exponent
// (2 for free space, 2.7-3.5 for cluttered ground-level RF propagation).
type PathLossModel struct {
	ReferenceRSSI    float64 // dBm at 1m
	PathLossExponent float64
}

// DefaultPathLossModel matches the estimator's documented defaults:
// TxPower 0 dBm at the 1m reference, path-loss exponent 2.5.
func DefaultPathLossModel() PathLossModel {
	return PathLossModel{ReferenceRSSI: 0, PathLossExponent: 2.5}
}

// EstimateDistance converts an observed RSSI (dBm) to an estimated range in
// meters via the log-distance model: RSSI = ReferenceRSSI - 10*n*log10(d).
func (m PathLossModel) EstimateDistance(rssi float64) float64 {
	n := m.PathLossExponent
	if n <= 0 {
		n = DefaultPathLossModel().PathLossExponent
	}
	exponent := (m.ReferenceRSSI - rssi) / (10 * n)
	return math.Pow(10, exponent)
}
