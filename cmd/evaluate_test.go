package cmd

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simforcing/forcing/forcing"
)

func TestEvaluateRun_WritesOneRowPerTimeAndInput(t *testing.T) {
	// GIVEN a config with an analytic and a series input
	cfg := &forcing.RunConfig{
		ReferenceDate: "2000-01-01",
		Inputs: []forcing.InputConfig{
			{Name: "level", Function: &forcing.FunctionConfig{Name: "ramp", Params: map[string]any{"slope": 2, "intercept": 1}}},
			{Name: "tide", Series: &forcing.SeriesConfig{Times: []float64{0, 10}, Values: []float64{0, 100}}},
		},
	}
	var buf bytes.Buffer

	// WHEN evaluated at 0 and 5 seconds
	require.NoError(t, evaluateRun(cfg, []float64{0, 5}, &buf))

	// THEN the CSV has a header and four rows
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, []string{"time", "date", "input", "p0"}, rows[0])
	assert.Equal(t, []string{"0", "2000-01-01T00:00:00Z", "level", "1"}, rows[1])
	assert.Equal(t, []string{"5", "2000-01-01T00:00:05Z", "level", "11"}, rows[3])
	assert.Equal(t, []string{"5", "2000-01-01T00:00:05Z", "tide", "50"}, rows[4])
}

func TestEvaluateRun_ForwardsArgsToAnalyticInputs(t *testing.T) {
	cfg := &forcing.RunConfig{
		ReferenceDate: "2000-01-01",
		Inputs: []forcing.InputConfig{
			{Name: "c", Function: &forcing.FunctionConfig{Name: "constant", Params: map[string]any{"value": 4}}},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, evaluateRun(cfg, []float64{0}, &buf, 0.5))
	assert.Contains(t, buf.String(), ",c,2\n")
}

func TestEvaluateRun_PropagatesDomainError(t *testing.T) {
	cfg := &forcing.RunConfig{
		ReferenceDate: "2000-01-01",
		Inputs: []forcing.InputConfig{
			{Name: "tide", Series: &forcing.SeriesConfig{Times: []float64{0, 10}, Values: []float64{0, 1}}},
		},
	}
	err := evaluateRun(cfg, []float64{11}, &bytes.Buffer{})
	var domErr *forcing.DomainError
	assert.ErrorAs(t, err, &domErr)
	assert.ErrorContains(t, err, `input "tide"`)
}

func TestEvaluateRun_UnknownFunction(t *testing.T) {
	cfg := &forcing.RunConfig{
		ReferenceDate: "2000-01-01",
		Inputs:        []forcing.InputConfig{{Name: "x", Function: &forcing.FunctionConfig{Name: "gauss"}}},
	}
	err := evaluateRun(cfg, []float64{0}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "unknown function")
}

func TestRunEvaluate_ReturnsErrorsInsteadOfExiting(t *testing.T) {
	// GIVEN a config whose only series ends at t=10 and an output base directory
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "run.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte(`
reference_date: "2000-01-01"
inputs:
  - name: tide
    series:
      times: [0, 10]
      values: [0, 1]
`), 0o644))
	base := filepath.Join(dir, "out")
	configPath, evalTimes, outBase = cfgFile, []float64{11}, base
	t.Cleanup(func() { configPath, evalTimes, outBase = "run.yaml", nil, "" })

	// WHEN evaluated past the end of the series
	err := runEvaluate(evaluateCmd, nil)

	// THEN the domain error comes back to the caller and the output file was created
	var domErr *forcing.DomainError
	assert.ErrorAs(t, err, &domErr)
	created, globErr := filepath.Glob(filepath.Join(base, "*", valuesFile))
	require.NoError(t, globErr)
	assert.NotEmpty(t, created)

	// AND a missing config is reported the same way
	configPath = filepath.Join(dir, "missing.yaml")
	assert.Error(t, runEvaluate(evaluateCmd, nil))
}

func TestEvaluationTimes(t *testing.T) {
	times, err := evaluationTimes(nil, 0, 10, 2.5)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 2.5, 5, 7.5, 10}, times)

	times, err = evaluationTimes([]float64{3, 1}, 0, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 1}, times)

	_, err = evaluationTimes(nil, 0, 10, 0)
	assert.Error(t, err)
	_, err = evaluationTimes(nil, 10, 0, 1)
	assert.Error(t, err)
}

func TestListDates(t *testing.T) {
	// GIVEN dates every 10 days in late 1993 and a monthly window
	var dates []time.Time
	for d := time.Date(1993, 10, 20, 0, 0, 0, 0, time.UTC); d.Before(time.Date(1994, 1, 1, 0, 0, 0, 0, time.UTC)); d = d.AddDate(0, 0, 10) {
		dates = append(dates, d)
	}
	datesRefDate, datesTStart, datesPeriod, datesRepeatDate = "1993-10-20", 0, "1M", "1993-11-15"
	t.Cleanup(func() { datesRefDate, datesPeriod, datesRepeatDate = "", "", "" })

	// WHEN listed
	var buf bytes.Buffer
	require.NoError(t, listDates(&buf, dates))

	// THEN every date carries its simulation time and the window is reported
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, "1993-10-20T00:00:00Z\t0", lines[0])
	assert.Equal(t, "1993-10-30T00:00:00Z\t864000", lines[1])
	assert.Equal(t, "repeated 1M window: 1993-11-09T00:00:00Z .. 1993-11-29T00:00:00Z", lines[len(lines)-1])
}

func TestListDates_Static(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, listDates(&buf, nil))
	assert.Equal(t, "static (no time axis)\n", buf.String())
}
