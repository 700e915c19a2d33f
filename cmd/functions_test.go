package cmd

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simforcing/forcing/forcing"
)

func TestResolveFunction_Catalogue(t *testing.T) {
	tests := []struct {
		name   string
		params forcing.AnalyticParams
		t      float64
		want   float64
	}{
		{"constant", forcing.AnalyticParams{"value": "3"}, 100, 3},
		{"ramp", forcing.AnalyticParams{"slope": 0.5, "intercept": -1}, 4, 1},
		{"sine", forcing.AnalyticParams{"amplitude": 2, "period": 4}, 1, 2},
		{"diurnal_cycle", forcing.AnalyticParams{"mean": 10, "amplitude": 5, "peak_hour": 14}, 14 * 3600, 15},
		{"SINE", nil, math.Pi / 2, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fn, err := resolveFunction(tc.name, tc.params)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, fn(tc.t), 1e-12)
		})
	}
}

func TestResolveFunction_Errors(t *testing.T) {
	_, err := resolveFunction("gauss", nil)
	assert.ErrorContains(t, err, "constant, diurnal_cycle, ramp, sine")

	_, err = resolveFunction("sine", forcing.AnalyticParams{"period": 0})
	assert.Error(t, err)

	_, err = resolveFunction("ramp", forcing.AnalyticParams{"slope": "steep"})
	assert.Error(t, err)
}

func TestScaled_UsesFirstNumericArg(t *testing.T) {
	fn, err := resolveFunction("constant", forcing.AnalyticParams{"value": 2})
	require.NoError(t, err)
	assert.Equal(t, 6.0, fn(0, 3))
	assert.Equal(t, 6.0, fn(0, "3"))
	// non-numeric context is ignored
	assert.Equal(t, 2.0, fn(0, struct{}{}))
}
