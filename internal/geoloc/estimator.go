package geoloc

import "math"

// Observation is one kit's RSSI reading of a target, used as input to every
// estimation method below.
type Observation struct {
	KitID string
	Lat   float64
	Lon   float64
	RSSI  float64
}

// Estimate is a resolved position with a confidence radius and the method
// that produced it.
type Estimate struct {
	Lat              float64
	Lon              float64
	ConfidenceM      float64
	Method           string
	ContributingKits int
}

// defaultMaxIterations and convergenceToleranceM match spec.md §4.5.8 step
// 3's documented trilateration defaults: bounded iterations (100) and a 1 m
// shift convergence tolerance.
const (
	defaultMaxIterations  = 100
	convergenceToleranceM = 1.0
)

// Estimator resolves a target position from one or more kit RSSI
// observations, escalating from a single-kit radius estimate to weighted
// and trilaterated positions as more observations become available.
type Estimator struct {
	model         PathLossModel
	maxIterations int
}

// NewEstimator builds an Estimator using model for RSSI-to-distance
// conversion. maxIterations bounds trilateration's gradient descent; <= 0
// falls back to defaultMaxIterations.
func NewEstimator(model PathLossModel, maxIterations int) *Estimator {
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}
	return &Estimator{model: model, maxIterations: maxIterations}
}

// Estimate dispatches to the appropriate method based on how many kits
// observed the target: one kit yields a simple radius estimate centered on
// that kit, two kits yield a distance-weighted midpoint, and three or more
// run gradient-descent trilateration.
func (e *Estimator) Estimate(obs []Observation) (Estimate, bool) {
	switch len(obs) {
	case 0:
		return Estimate{}, false
	case 1:
		return e.singleKit(obs[0]), true
	case 2:
		return e.twoKitWeighted(obs[0], obs[1]), true
	default:
		return e.trilaterate(obs), true
	}
}

// singleKit places the estimate at the observing kit's own location with a
// confidence radius equal to the estimated range — the best than can be
// said with one bearing-less RSSI reading is "somewhere within this ring".
func (e *Estimator) singleKit(o Observation) Estimate {
	d := e.model.EstimateDistance(o.RSSI)
	return Estimate{Lat: o.Lat, Lon: o.Lon, ConfidenceM: d, Method: "single_kit", ContributingKits: 1}
}

// twoKitWeighted places the estimate along the line between both kits,
// weighted inversely by each one's estimated distance: the kit reporting
// the stronger signal pulls the estimate closer to itself.
func (e *Estimator) twoKitWeighted(a, b Observation) Estimate {
	da := e.model.EstimateDistance(a.RSSI)
	db := e.model.EstimateDistance(b.RSSI)
	total := da + db
	if total == 0 {
		total = 1
	}
	// Weight toward the closer kit: weight of b's contribution is da/(da+db).
	wb := da / total
	lat := a.Lat + (b.Lat-a.Lat)*wb
	lon := a.Lon + (b.Lon-a.Lon)*wb
	confidence := (da + db) / 2
	return Estimate{Lat: lat, Lon: lon, ConfidenceM: confidence, Method: "two_kit_weighted", ContributingKits: 2}
}

// trilaterate runs gradient descent to find the position minimizing the
// sum of squared residuals between each kit's haversine distance to the
// candidate point and its RSSI-estimated distance.
func (e *Estimator) trilaterate(obs []Observation) Estimate {
	lat, lon := centroid(obs)
	distances := make([]float64, len(obs))
	for i, o := range obs {
		distances[i] = e.model.EstimateDistance(o.RSSI)
	}

	n := float64(len(obs))
	for iter := 0; iter < e.maxIterations; iter++ {
		var gradLat, gradLon float64
		for i, o := range obs {
			d := HaversineMeters(lat, lon, o.Lat, o.Lon)
			if d == 0 {
				continue
			}
			residual := d - distances[i]
			// Numerical partials via small coordinate perturbation; a closed
			// form exists but the discrete form is easier to keep correct
			// across the haversine's spherical trig.
			const eps = 1e-6
			dLat := (HaversineMeters(lat+eps, lon, o.Lat, o.Lon) - d) / eps
			dLon := (HaversineMeters(lat, lon+eps, o.Lat, o.Lon) - d) / eps
			gradLat += 2 * residual * dLat
			gradLon += 2 * residual * dLon
		}
		// The gradient is in m²/degree. Dividing it by 2·n times the squared
		// meters-per-degree scale at the current point gives a step in
		// degrees equal to the mean residual projected onto each axis.
		mLat := HaversineMeters(lat, lon, lat+1e-6, lon) / 1e-6
		mLon := HaversineMeters(lat, lon, lat, lon+1e-6) / 1e-6
		newLat := lat - gradLat/(2*n*mLat*mLat)
		newLon := lon - gradLon/(2*n*mLon*mLon)
		shift := HaversineMeters(lat, lon, newLat, newLon)
		lat, lon = newLat, newLon
		if shift < convergenceToleranceM {
			break
		}
	}

	sumSq := 0.0
	for i, o := range obs {
		d := HaversineMeters(lat, lon, o.Lat, o.Lon)
		diff := d - distances[i]
		sumSq += diff * diff
	}
	confidence := math.Sqrt(sumSq / float64(len(obs)))
	return Estimate{Lat: lat, Lon: lon, ConfidenceM: confidence, Method: "trilateration", ContributingKits: len(obs)}
}

func centroid(obs []Observation) (float64, float64) {
	var lat, lon float64
	for _, o := range obs {
		lat += o.Lat
		lon += o.Lon
	}
	n := float64(len(obs))
	return lat / n, lon / n
}
