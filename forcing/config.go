package forcing

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// RunConfig is the YAML description of a set of inputs evaluated against one
// simulation clock and one target space.
type RunConfig struct {
	ReferenceDate string        `yaml:"reference_date"`
	TStart        float64       `yaml:"t_start"`
	CacheCapacity int           `yaml:"cache_capacity,omitempty"` // 0 = DefaultCacheCapacity
	Regridder     string        `yaml:"regridder_type,omitempty"` // default "multilinear"
	DataDir       string        `yaml:"data_dir,omitempty"`       // relative file paths resolve against it
	Target        [][]float64   `yaml:"target"`
	Inputs        []InputConfig `yaml:"inputs"`
}

// InputConfig selects exactly one variant: Function, Series or File.
//
// ShiftYears moves every file date by whole years with time.AddDate, so 29 Feb lands
// on 1 Mar of a non-leap year. Daily data spanning a leap day then has two 1 Mar dates
// and is rejected as not strictly increasing.
type InputConfig struct {
	Name       string          `yaml:"name"`
	Function   *FunctionConfig `yaml:"function,omitempty"`
	Series     *SeriesConfig   `yaml:"series,omitempty"`
	File       string          `yaml:"file,omitempty"`
	Variables  []string        `yaml:"variables,omitempty"`
	Compose    string          `yaml:"compose,omitempty"` // sum, mean, product, max, min
	Scale      *float64        `yaml:"scale,omitempty"`   // multiplies raw data before composing
	ShiftYears int             `yaml:"shift_years,omitempty"`
	Method     string          `yaml:"method,omitempty"` // nearest, linear (default)
	Boundary   BoundaryConfig  `yaml:"boundary,omitempty"`
}

// FunctionConfig names an analytic function and its parameters. Parameter values may
// be numbers or numeric strings.
type FunctionConfig struct {
	Name   string         `yaml:"name"`
	Params map[string]any `yaml:"params,omitempty"`
}

// SeriesConfig is an inline time series.
type SeriesConfig struct {
	Times  []float64 `yaml:"times"`
	Values []float64 `yaml:"values"`
}

// BoundaryConfig selects a boundary policy.
type BoundaryConfig struct {
	Kind       string `yaml:"kind,omitempty"` // throw (default), flat, periodic
	Period     string `yaml:"period,omitempty"`
	RepeatDate string `yaml:"repeat_date,omitempty"`
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate parses a date in RFC 3339 or "YYYY-MM-DD[ hh:mm:ss]" form, in UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse date %q; use YYYY-MM-DD or RFC 3339", s)
}

// LoadRunConfig reads and strictly decodes a YAML run configuration.
func LoadRunConfig(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading run config: %w", err)
	}
	var cfg RunConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing run config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the fields that do not need any data to be opened.
func (c *RunConfig) Validate() error {
	if _, err := ParseDate(c.ReferenceDate); err != nil {
		return fmt.Errorf("reference_date: %w", err)
	}
	if c.CacheCapacity < 0 {
		return fmt.Errorf("cache_capacity must be >= 0, got %d", c.CacheCapacity)
	}
	if len(c.Inputs) == 0 {
		return fmt.Errorf("at least one input required")
	}
	seen := make(map[string]bool)
	for i := range c.Inputs {
		in := &c.Inputs[i]
		if in.Name == "" {
			return fmt.Errorf("inputs[%d]: name required", i)
		}
		if seen[in.Name] {
			return fmt.Errorf("inputs[%d]: duplicate name %q", i, in.Name)
		}
		seen[in.Name] = true
		if err := in.validate(); err != nil {
			return fmt.Errorf("input %q: %w", in.Name, err)
		}
		if in.File != "" && len(c.Target) == 0 {
			return fmt.Errorf("input %q: file inputs need target points", in.Name)
		}
	}
	return nil
}

func (in *InputConfig) validate() error {
	variants := 0
	if in.Function != nil {
		variants++
	}
	if in.Series != nil {
		variants++
	}
	if in.File != "" {
		variants++
	}
	if variants != 1 {
		return fmt.Errorf("exactly one of function, series or file required, got %d", variants)
	}
	if in.File != "" && len(in.Variables) == 0 {
		return fmt.Errorf("file input needs variables")
	}
	if len(in.Variables) > 1 && in.Compose == "" {
		return fmt.Errorf("%d variables need a compose function", len(in.Variables))
	}
	if in.Compose != "" {
		if _, err := ComposeByName(in.Compose); err != nil {
			return err
		}
	}
	if _, err := in.BuildMethod(); err != nil {
		return err
	}
	return nil
}

// BuildMethod turns Method and Boundary into a Method value.
func (in *InputConfig) BuildMethod() (Method, error) {
	var boundary BoundaryPolicy
	switch strings.ToLower(in.Boundary.Kind) {
	case "", "throw":
		boundary = Throw{}
	case "flat":
		boundary = Flat{}
	case "periodic", "periodic_calendar":
		period, err := ParsePeriod(in.Boundary.Period)
		if err != nil {
			return nil, err
		}
		pc := PeriodicCalendar{Period: period}
		if in.Boundary.RepeatDate != "" {
			d, err := ParseDate(in.Boundary.RepeatDate)
			if err != nil {
				return nil, fmt.Errorf("repeat_date: %w", err)
			}
			pc.RepeatDate = d
		}
		if err := pc.validate(); err != nil {
			return nil, err
		}
		boundary = pc
	default:
		return nil, fmt.Errorf("unknown boundary %q; valid: throw, flat, periodic", in.Boundary.Kind)
	}

	switch strings.ToLower(in.Method) {
	case "", "linear":
		return LinearInterpolation{Extrapolation: boundary}, nil
	case "nearest", "nearest_neighbor":
		return NearestNeighbor{Extrapolation: boundary}, nil
	}
	return nil, fmt.Errorf("unknown method %q; valid: nearest, linear", in.Method)
}

// ComposeByName returns one of the built-in compose functions.
func ComposeByName(name string) (ComposeFunc, error) {
	switch strings.ToLower(name) {
	case "sum":
		return func(vs ...float64) float64 {
			s := 0.0
			for _, v := range vs {
				s += v
			}
			return s
		}, nil
	case "mean":
		return func(vs ...float64) float64 {
			s := 0.0
			for _, v := range vs {
				s += v
			}
			return s / float64(len(vs))
		}, nil
	case "product":
		return func(vs ...float64) float64 {
			p := 1.0
			for _, v := range vs {
				p *= v
			}
			return p
		}, nil
	case "max":
		return func(vs ...float64) float64 {
			m := vs[0]
			for _, v := range vs[1:] {
				m = max(m, v)
			}
			return m
		}, nil
	case "min":
		return func(vs ...float64) float64 {
			m := vs[0]
			for _, v := range vs[1:] {
				m = min(m, v)
			}
			return m
		}, nil
	}
	return nil, fmt.Errorf("unknown compose function %q; valid: sum, mean, product, max, min", name)
}

// AnalyticParams gives typed access to the parameters of a FunctionConfig.
type AnalyticParams map[string]any

// Float returns params[key] as a float64, or def when absent.
func (p AnalyticParams) Float(key string, def float64) (float64, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, fmt.Errorf("parameter %q: %w", key, err)
	}
	return f, nil
}

// FunctionResolver looks up a named analytic function.
type FunctionResolver func(name string, params AnalyticParams) (AnalyticFunc, error)

// BuildEnv carries what BuildInput needs beyond the InputConfig itself.
type BuildEnv struct {
	ReferenceDate time.Time
	TStart        float64
	CacheCapacity int
	DataDir       string
	Registry      *SourceRegistry
	Resampler     Resampler
	Functions     FunctionResolver
}

// BuildInput constructs the TimeVaryingInput described by cfg.
func BuildInput(cfg InputConfig, env BuildEnv) (TimeVaryingInput, error) {
	switch {
	case cfg.Function != nil:
		if env.Functions == nil {
			return nil, fmt.Errorf("input %q: no function catalogue configured", cfg.Name)
		}
		fn, err := env.Functions(cfg.Function.Name, AnalyticParams(cfg.Function.Params))
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", cfg.Name, err)
		}
		var method Method
		if cfg.Method != "" || cfg.Boundary.Kind != "" {
			if method, err = cfg.BuildMethod(); err != nil {
				return nil, fmt.Errorf("input %q: %w", cfg.Name, err)
			}
		}
		return NewTimeVaryingInput(fn, method)

	case cfg.Series != nil:
		method, err := cfg.BuildMethod()
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", cfg.Name, err)
		}
		in, err := NewTimeVaryingInput(Series{Times: cfg.Series.Times, Values: cfg.Series.Values}, method)
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", cfg.Name, err)
		}
		return in, nil

	default:
		return buildGridded(cfg, env)
	}
}

func buildGridded(cfg InputConfig, env BuildEnv) (TimeVaryingInput, error) {
	if env.Registry == nil || env.Resampler == nil {
		return nil, fmt.Errorf("input %q: file inputs need a source registry and a resampler", cfg.Name)
	}
	method, err := cfg.BuildMethod()
	if err != nil {
		return nil, fmt.Errorf("input %q: %w", cfg.Name, err)
	}
	pcfg := ProviderConfig{
		Variables:     cfg.Variables,
		ReferenceDate: env.ReferenceDate,
		TStart:        env.TStart,
		CacheCapacity: env.CacheCapacity,
	}
	if cfg.Compose != "" {
		if pcfg.Compose, err = ComposeByName(cfg.Compose); err != nil {
			return nil, fmt.Errorf("input %q: %w", cfg.Name, err)
		}
	}
	if cfg.Scale != nil {
		scale := *cfg.Scale
		pcfg.Preprocess = func(x float64) float64 { return x * scale }
	}
	if cfg.ShiftYears != 0 {
		years := cfg.ShiftYears
		pcfg.ShiftBy = func(d time.Time) time.Time { return d.AddDate(years, 0, 0) }
	}

	path := cfg.File
	if env.DataDir != "" && !filepath.IsAbs(path) {
		path = filepath.Join(env.DataDir, path)
	}
	handle, err := env.Registry.Acquire(path)
	if err != nil {
		return nil, fmt.Errorf("input %q: %w", cfg.Name, err)
	}
	provider, err := NewSnapshotProvider(handle, env.Resampler, pcfg)
	if err != nil {
		_ = handle.Close()
		return nil, fmt.Errorf("input %q: %w", cfg.Name, err)
	}
	in, err := NewGriddedInput(provider, method)
	if err != nil {
		_ = provider.Close()
		return nil, fmt.Errorf("input %q: %w", cfg.Name, err)
	}
	return in, nil
}
