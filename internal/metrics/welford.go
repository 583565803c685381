package metrics

import "math"

// Running holds running statistics using Welford's online algorithm, so a
// summary of a large fixture can be built without keeping every value.
type Running struct {
	Count int     // number of observations
	Mean  float64 // running mean
	M2    float64 // sum of squared differences from mean
	Min   float64
	Max   float64
}

// Update adds one observation
func (r *Running) Update(v float64) {
	r.Count++
	if r.Count == 1 {
		r.Min, r.Max = v, v
	} else {
		r.Min = math.Min(r.Min, v)
		r.Max = math.Max(r.Max, v)
	}
	delta := v - r.Mean
	r.Mean += delta / float64(r.Count)
	r.M2 += delta * (v - r.Mean)
}

// StdDev returns the population standard deviation, 0 with fewer than 2 observations
func (r *Running) StdDev() float64 {
	if r.Count < 2 {
		return 0
	}
	return math.Sqrt(r.M2 / float64(r.Count))
}
