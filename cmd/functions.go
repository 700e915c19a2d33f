package cmd

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/spf13/cast"

	"github.com/simforcing/forcing/forcing"
)

const secondsPerDay = 86400.0

// functionBuilder turns parameters into an analytic function.
type functionBuilder func(p forcing.AnalyticParams) (forcing.AnalyticFunc, error)

// functionCatalogue holds the analytic functions selectable from a run config.
// Every function multiplies its result by a float passed as the first extra argument,
// when one is given, so callers can thread a scaling state through Evaluate.
var functionCatalogue = map[string]functionBuilder{
	"constant": func(p forcing.AnalyticParams) (forcing.AnalyticFunc, error) {
		v, err := p.Float("value", 0)
		if err != nil {
			return nil, err
		}
		return scaled(func(float64) float64 { return v }), nil
	},
	"ramp": func(p forcing.AnalyticParams) (forcing.AnalyticFunc, error) {
		slope, err := p.Float("slope", 1)
		if err != nil {
			return nil, err
		}
		intercept, err := p.Float("intercept", 0)
		if err != nil {
			return nil, err
		}
		return scaled(func(t float64) float64 { return intercept + slope*t }), nil
	},
	"sine": func(p forcing.AnalyticParams) (forcing.AnalyticFunc, error) {
		amplitude, err := p.Float("amplitude", 1)
		if err != nil {
			return nil, err
		}
		period, err := p.Float("period", 2*math.Pi)
		if err != nil {
			return nil, err
		}
		if period <= 0 {
			return nil, fmt.Errorf("sine period must be positive, got %g", period)
		}
		phase, err := p.Float("phase", 0)
		if err != nil {
			return nil, err
		}
		offset, err := p.Float("offset", 0)
		if err != nil {
			return nil, err
		}
		return scaled(func(t float64) float64 {
			return offset + amplitude*math.Sin(2*math.Pi*t/period+phase)
		}), nil
	},
	// diurnal_cycle peaks at peak_hour (seconds since reference are taken as UTC time of day)
	"diurnal_cycle": func(p forcing.AnalyticParams) (forcing.AnalyticFunc, error) {
		mean, err := p.Float("mean", 0)
		if err != nil {
			return nil, err
		}
		amplitude, err := p.Float("amplitude", 1)
		if err != nil {
			return nil, err
		}
		peak, err := p.Float("peak_hour", 12)
		if err != nil {
			return nil, err
		}
		return scaled(func(t float64) float64 {
			return mean + amplitude*math.Cos(2*math.Pi*(t/secondsPerDay-peak/24))
		}), nil
	},
}

func scaled(f func(t float64) float64) forcing.AnalyticFunc {
	return func(t float64, args ...any) float64 {
		v := f(t)
		if len(args) > 0 {
			if s, err := cast.ToFloat64E(args[0]); err == nil {
				v *= s
			}
		}
		return v
	}
}

// resolveFunction implements forcing.FunctionResolver over functionCatalogue.
func resolveFunction(name string, params forcing.AnalyticParams) (forcing.AnalyticFunc, error) {
	build, ok := functionCatalogue[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown function %q; valid: %s", name, strings.Join(functionNames(), ", "))
	}
	return build(params)
}

func functionNames() []string {
	names := make([]string, 0, len(functionCatalogue))
	for n := range functionCatalogue {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
