package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunning(t *testing.T) {
	var r Running
	assert.Zero(t, r.StdDev())

	for _, v := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
		r.Update(v)
	}

	assert.Equal(t, 8, r.Count)
	assert.InDelta(t, 5.0, r.Mean, 1e-9)
	assert.InDelta(t, 2.0, r.StdDev(), 1e-9)
	assert.Equal(t, 2.0, r.Min)
	assert.Equal(t, 9.0, r.Max)
}

func TestRunning_SingleObservation(t *testing.T) {
	var r Running
	r.Update(42)

	assert.Equal(t, 42.0, r.Mean)
	assert.Equal(t, 42.0, r.Min)
	assert.Equal(t, 42.0, r.Max)
	assert.Zero(t, r.StdDev())
}
