package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalCDF(t *testing.T) {
	tests := []struct {
		z    float64
		want float64
	}{
		{0, 0.5},
		{1.0, 0.8413},
		{1.96, 0.9750},
		{2.576, 0.9950},
		{3.0, 0.99865},
		{-1.0, 0.1587},
		{-1.96, 0.0250},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, NormalCDF(tt.z), 0.0005, "z=%v", tt.z)
	}
}

func TestNormalCDF_Symmetry(t *testing.T) {
	for _, z := range []float64{0.3, 1.1, 2.4, 4.0} {
		assert.InDelta(t, 1.0, NormalCDF(z)+NormalCDF(-z), 1e-9, "z=%v", z)
	}
}

func TestCriticalZ_TableValues(t *testing.T) {
	assert.Equal(t, 1.96, CriticalZ(0.95))
	assert.Equal(t, 2.576, CriticalZ(0.99))
	assert.Equal(t, 1.645, CriticalZ(0.90))
}

func TestCriticalZ_Approximated(t *testing.T) {
	// Levels off the table go through the inverse CDF.
	assert.InDelta(t, 1.2816, CriticalZ(0.80), 0.005)
	assert.InDelta(t, 2.2414, CriticalZ(0.975), 0.005)
	assert.InDelta(t, 3.2905, CriticalZ(0.999), 0.005)
}

func TestCriticalZ_Monotonic(t *testing.T) {
	levels := []float64{0.5, 0.8, 0.9, 0.95, 0.99, 0.999}
	for i := 1; i < len(levels); i++ {
		assert.Less(t, CriticalZ(levels[i-1]), CriticalZ(levels[i]))
	}
}

func TestInverseNormalCDF_RoundTrip(t *testing.T) {
	// The inverse should undo the CDF within approximation error.
	for _, p := range []float64{0.01, 0.1, 0.5, 0.9, 0.975, 0.999} {
		z := inverseNormalCDF(p)
		assert.InDelta(t, p, NormalCDF(z), 0.0005, "p=%v", p)
	}
}
