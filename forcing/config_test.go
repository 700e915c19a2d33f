package forcing

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRunConfig = `
reference_date: "2000-01-01"
t_start: 0
cache_capacity: 8
target: [[0.5], [1.5]]
inputs:
  - name: temperature
    function:
      name: constant
      params: {value: "21.5"}
  - name: tide
    series:
      times: [0, 10, 20]
      values: [1, 3, 5]
    method: nearest
    boundary: {kind: flat}
  - name: wind
    file: wind.nc
    variables: [u, v]
    compose: sum
    scale: 2
    boundary: {kind: periodic}
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadRunConfig_ParsesAndValidates(t *testing.T) {
	cfg, err := LoadRunConfig(writeConfig(t, testRunConfig))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8, cfg.CacheCapacity)
	require.Len(t, cfg.Inputs, 3)
	assert.Equal(t, "constant", cfg.Inputs[0].Function.Name)
	assert.Equal(t, []string{"u", "v"}, cfg.Inputs[2].Variables)
	assert.Equal(t, 2.0, *cfg.Inputs[2].Scale)

	m, err := cfg.Inputs[1].BuildMethod()
	require.NoError(t, err)
	assert.Equal(t, NearestNeighbor{Extrapolation: Flat{}}, m)
}

func TestLoadRunConfig_RejectsUnknownFields(t *testing.T) {
	_, err := LoadRunConfig(writeConfig(t, "reference_date: \"2000-01-01\"\nrefrence_date: typo\n"))
	assert.Error(t, err)
}

func TestRunConfig_ValidateErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad reference date", "reference_date: someday\ninputs: [{name: a, function: {name: constant}}]"},
		{"no inputs", "reference_date: \"2000-01-01\""},
		{"two variants", "reference_date: \"2000-01-01\"\ninputs: [{name: a, function: {name: constant}, series: {times: [0], values: [1]}}]"},
		{"duplicate names", "reference_date: \"2000-01-01\"\ninputs: [{name: a, function: {name: c}}, {name: a, function: {name: c}}]"},
		{"file without target", "reference_date: \"2000-01-01\"\ninputs: [{name: a, file: x.nc, variables: [u]}]"},
		{"variables without compose", "reference_date: \"2000-01-01\"\ntarget: [[0]]\ninputs: [{name: a, file: x.nc, variables: [u, v]}]"},
		{"period without repeat date", "reference_date: \"2000-01-01\"\ninputs: [{name: a, series: {times: [0, 1], values: [1, 2]}, boundary: {kind: periodic, period: 1M}}]"},
		{"unknown method", "reference_date: \"2000-01-01\"\ninputs: [{name: a, series: {times: [0], values: [1]}, method: cubic}]"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := LoadRunConfig(writeConfig(t, tc.body))
			require.NoError(t, err)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestBuildInput_AllVariants(t *testing.T) {
	// GIVEN a run config with analytic, series and file inputs
	cfg, err := LoadRunConfig(writeConfig(t, testRunConfig))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	src := newFakeSource(daily(refDate, 3), 2)
	src.values["v"] = func(i, j int) float64 { return 1 }
	var openedPath string
	env := BuildEnv{
		ReferenceDate: refDate,
		CacheCapacity: cfg.CacheCapacity,
		DataDir:       "/data",
		Registry: NewSourceRegistry(func(path string) (DataSource, error) {
			openedPath = path
			return src, nil
		}),
		Resampler: &identityResampler{},
		Functions: func(name string, p AnalyticParams) (AnalyticFunc, error) {
			if name != "constant" {
				return nil, fmt.Errorf("unknown %s", name)
			}
			v, err := p.Float("value", 0)
			if err != nil {
				return nil, err
			}
			return func(float64, ...any) float64 { return v }, nil
		},
	}

	// WHEN every input is built and evaluated at t = 10
	dest := make([]float64, 2)
	var got [][]float64
	for _, ic := range cfg.Inputs {
		in, err := BuildInput(ic, env)
		require.NoError(t, err, ic.Name)
		require.NoError(t, in.Evaluate(dest, 10))
		got = append(got, append([]float64(nil), dest...))
		require.NoError(t, in.Close())
	}

	// THEN each variant produced its value
	assert.Equal(t, []float64{21.5, 21.5}, got[0])
	assert.Equal(t, []float64{3, 3}, got[1])
	// wind at t=10s is close to day 0: 2*u + 2*v, blended slightly toward day 1
	assert.InDelta(t, 2.0, got[2][0], 0.01)
	assert.InDelta(t, 4.0, got[2][1], 0.01)
	assert.Equal(t, filepath.Join("/data", "wind.nc"), openedPath)
	assert.Equal(t, 1, src.closed)
}

func TestBuildInput_GriddedErrorReleasesHandle(t *testing.T) {
	// GIVEN an unevenly spaced file and an inferred periodic boundary
	src := newFakeSource([]time.Time{refDate, refDate.AddDate(0, 0, 1), refDate.AddDate(0, 0, 3)}, 1)
	reg := NewSourceRegistry(func(string) (DataSource, error) { return src, nil })
	ic := InputConfig{Name: "x", File: "x.nc", Variables: []string{"u"}, Boundary: BoundaryConfig{Kind: "periodic"}}

	// WHEN building fails
	_, err := BuildInput(ic, BuildEnv{ReferenceDate: refDate, Registry: reg, Resampler: &identityResampler{}})

	// THEN the shared source was released
	var cfgErr *ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, 0, reg.Len())
	assert.Equal(t, 1, src.closed)
}

func TestBuildInput_ShiftYearsAcrossLeapDay(t *testing.T) {
	// GIVEN daily data around 29 Feb 2000
	src := newFakeSource(daily(time.Date(2000, 2, 27, 0, 0, 0, 0, time.UTC), 4), 1)
	reg := NewSourceRegistry(func(string) (DataSource, error) { return src, nil })
	ic := InputConfig{Name: "x", File: "x.nc", Variables: []string{"u"}, ShiftYears: 1}
	env := BuildEnv{ReferenceDate: refDate, Registry: reg, Resampler: &identityResampler{}}

	// WHEN shifted into 2001, where 29 Feb becomes 1 Mar
	_, err := BuildInput(ic, env)

	// THEN the duplicate 1 Mar is rejected and the source released
	assert.ErrorContains(t, err, "not strictly increasing")
	assert.ErrorContains(t, err, "2001-03-01")
	assert.Equal(t, 1, src.closed)

	// AND a shift that stays off the leap day builds
	src = newFakeSource(daily(time.Date(2000, 3, 1, 0, 0, 0, 0, time.UTC), 4), 1)
	reg = NewSourceRegistry(func(string) (DataSource, error) { return src, nil })
	env.Registry = reg
	in, err := BuildInput(ic, env)
	require.NoError(t, err)
	require.NoError(t, in.Close())
}

func TestComposeByName(t *testing.T) {
	for name, want := range map[string]float64{"sum": 6, "mean": 2, "product": 6, "max": 3, "min": 1} {
		fn, err := ComposeByName(name)
		require.NoError(t, err)
		assert.Equal(t, want, fn(1, 2, 3), name)
	}
	_, err := ComposeByName("median")
	assert.Error(t, err)
}

func TestParseDate(t *testing.T) {
	for _, s := range []string{"1993-11-01", "1993-11-01T00:00:00Z", "1993-11-01 00:00:00"} {
		d, err := ParseDate(s)
		require.NoError(t, err, s)
		assert.Equal(t, date(1993, 11, 1), d)
	}
	_, err := ParseDate("11/01/1993")
	assert.Error(t, err)
}

func TestAnalyticParams_Float(t *testing.T) {
	p := AnalyticParams{"a": 2, "b": "3.5", "c": "x"}
	v, err := p.Float("a", 0)
	require.NoError(t, err)
	assert.Equal(t, 2.0, v)
	v, err = p.Float("b", 0)
	require.NoError(t, err)
	assert.Equal(t, 3.5, v)
	v, err = p.Float("missing", 9)
	require.NoError(t, err)
	assert.Equal(t, 9.0, v)
	_, err = p.Float("c", 0)
	assert.Error(t, err)
}
