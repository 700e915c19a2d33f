// Package ncsource reads gridded variables from NetCDF files with a CF time axis.
package ncsource

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/fhs/go-netcdf/netcdf"
	"github.com/sirupsen/logrus"

	"github.com/simforcing/forcing/forcing"
)

// DefaultTimeVar is the name of the time coordinate variable and dimension.
const DefaultTimeVar = "time"

// Source is an open NetCDF file. It implements forcing.DataSource.
// The underlying C library is not thread safe; a Source must be used from one goroutine.
type Source struct {
	path    string
	ds      netcdf.Dataset
	timeVar string
	dates   []time.Time
	index   map[time.Time]int
	coords  map[string][]float64 // coordinate values by dimension name
	closed  bool
}

// Options tunes Open.
type Options struct {
	TimeVar string // defaults to DefaultTimeVar
}

// Open opens path read-only and decodes its time axis, if any.
func Open(path string) (*Source, error) {
	return OpenWithOptions(path, Options{})
}

// OpenWithOptions is Open with explicit options.
func OpenWithOptions(path string, opts Options) (*Source, error) {
	if opts.TimeVar == "" {
		opts.TimeVar = DefaultTimeVar
	}
	ds, err := netcdf.OpenFile(path, netcdf.NOWRITE)
	if err != nil {
		return nil, fmt.Errorf("opening NetCDF file %s: %w", path, err)
	}
	s := &Source{
		path:    path,
		ds:      ds,
		timeVar: opts.TimeVar,
		index:   make(map[time.Time]int),
		coords:  make(map[string][]float64),
	}
	if err := s.loadTimeAxis(); err != nil {
		_ = ds.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	logrus.Debugf("opened %s with %d dates", path, len(s.dates))
	return s, nil
}

func (s *Source) loadTimeAxis() error {
	v, err := s.ds.Var(s.timeVar)
	if err != nil {
		// no time variable: static file
		return nil
	}
	offsets, err := readFloat64Var(v)
	if err != nil {
		return fmt.Errorf("reading %s: %w", s.timeVar, err)
	}
	units, err := attrString(v, "units")
	if err != nil {
		return fmt.Errorf("reading %s units: %w", s.timeVar, err)
	}
	axis, err := parseTimeUnits(units)
	if err != nil {
		return err
	}
	if cal, err := attrString(v, "calendar"); err == nil {
		if err := checkCalendar(cal); err != nil {
			return err
		}
	}
	s.dates = make([]time.Time, len(offsets))
	for i, off := range offsets {
		s.dates[i] = axis.date(off)
		s.index[s.dates[i]] = i
	}
	if !sort.SliceIsSorted(s.dates, func(i, j int) bool { return s.dates[i].Before(s.dates[j]) }) {
		return fmt.Errorf("%s is not sorted", s.timeVar)
	}
	return nil
}

// Path returns the file path.
func (s *Source) Path() string { return s.path }

func (s *Source) AvailableDates() []time.Time { return s.dates }

// Read returns variable at date. Variables without a time dimension ignore date.
// Scale factors and offsets are applied; fill values become NaN.
func (s *Source) Read(variable string, date time.Time) (forcing.RawArray, error) {
	if s.closed {
		return forcing.RawArray{}, fmt.Errorf("%s is closed", s.path)
	}
	v, err := s.ds.Var(variable)
	if err != nil {
		return forcing.RawArray{}, fmt.Errorf("variable %s not in %s: %w", variable, s.path, err)
	}
	dims, err := v.Dims()
	if err != nil {
		return forcing.RawArray{}, fmt.Errorf("dimensions of %s: %w", variable, err)
	}

	start := make([]uint64, len(dims))
	count := make([]uint64, len(dims))
	raw := forcing.RawArray{}
	for i, d := range dims {
		name, err := d.Name()
		if err != nil {
			return forcing.RawArray{}, err
		}
		n, err := d.Len()
		if err != nil {
			return forcing.RawArray{}, err
		}
		if name == s.timeVar {
			idx, ok := s.index[date]
			if !ok {
				return forcing.RawArray{}, fmt.Errorf("%s has no %s at %s", s.path, variable, date.Format(time.RFC3339))
			}
			start[i], count[i] = uint64(idx), 1
			continue
		}
		start[i], count[i] = 0, n
		coords, err := s.coordinate(name, int(n))
		if err != nil {
			return forcing.RawArray{}, err
		}
		raw.Shape = append(raw.Shape, int(n))
		raw.Dims = append(raw.Dims, coords)
	}

	total := 1
	for _, c := range count {
		total *= int(c)
	}
	raw.Data, err = readSlice(v, start, count, total)
	if err != nil {
		return forcing.RawArray{}, fmt.Errorf("reading %s: %w", variable, err)
	}
	unpack(v, raw.Data)
	return raw, nil
}

// coordinate returns the values of the coordinate variable named like the dimension,
// or 0..n-1 if there is none.
func (s *Source) coordinate(dim string, n int) ([]float64, error) {
	if c, ok := s.coords[dim]; ok {
		return c, nil
	}
	var c []float64
	if v, err := s.ds.Var(dim); err == nil {
		if c, err = readFloat64Var(v); err != nil {
			return nil, fmt.Errorf("coordinate %s: %w", dim, err)
		}
	} else {
		c = make([]float64, n)
		for i := range c {
			c[i] = float64(i)
		}
	}
	if len(c) != n {
		return nil, fmt.Errorf("coordinate %s has %d values, dimension has %d", dim, len(c), n)
	}
	s.coords[dim] = c
	return c, nil
}

// Close closes the file. Closing twice is a no-op.
func (s *Source) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.ds.Close()
}

func readSlice(v netcdf.Var, start, count []uint64, total int) ([]float64, error) {
	t, err := v.Type()
	if err != nil {
		return nil, err
	}
	out := make([]float64, total)
	switch t {
	case netcdf.DOUBLE:
		err = v.ReadFloat64Slice(out, start, count)
	case netcdf.FLOAT:
		tmp := make([]float32, total)
		if err = v.ReadFloat32Slice(tmp, start, count); err == nil {
			for i, x := range tmp {
				out[i] = float64(x)
			}
		}
	case netcdf.INT:
		tmp := make([]int32, total)
		if err = v.ReadInt32Slice(tmp, start, count); err == nil {
			for i, x := range tmp {
				out[i] = float64(x)
			}
		}
	case netcdf.SHORT:
		tmp := make([]int16, total)
		if err = v.ReadInt16Slice(tmp, start, count); err == nil {
			for i, x := range tmp {
				out[i] = float64(x)
			}
		}
	default:
		return nil, fmt.Errorf("unsupported var type: %v", t)
	}
	return out, err
}

// readFloat64Var reads a whole 1D variable as float64.
func readFloat64Var(v netcdf.Var) ([]float64, error) {
	dims, err := v.Dims()
	if err != nil {
		return nil, fmt.Errorf("failed to get dimensions: %w", err)
	}
	if len(dims) != 1 {
		return nil, fmt.Errorf("expected 1D variable, got %dD", len(dims))
	}
	n, err := dims[0].Len()
	if err != nil {
		return nil, err
	}
	return readSlice(v, []uint64{0}, []uint64{n}, int(n))
}

// packing holds the CF packing attributes of a variable.
type packing struct {
	fill    float64
	hasFill bool
	scale   float64
	offset  float64
}

// unpack applies scale_factor/add_offset and maps _FillValue/missing_value to NaN.
func unpack(v netcdf.Var, data []float64) {
	var p packing
	p.fill, p.hasFill = attrFloat(v, "_FillValue")
	if !p.hasFill {
		p.fill, p.hasFill = attrFloat(v, "missing_value")
	}
	scale, hasScale := attrFloat(v, "scale_factor")
	offset, hasOffset := attrFloat(v, "add_offset")
	if !p.hasFill && !hasScale && !hasOffset {
		return
	}
	p.scale = 1
	if hasScale {
		p.scale = scale
	}
	p.offset = offset
	applyPacking(data, p)
}

// applyPacking rewrites data in place as x*scale + offset, with fill values as NaN.
// Fill is compared against the packed value.
func applyPacking(data []float64, p packing) {
	for i, x := range data {
		if p.hasFill && x == p.fill {
			data[i] = math.NaN()
			continue
		}
		data[i] = x*p.scale + p.offset
	}
}

func attrFloat(v netcdf.Var, name string) (float64, bool) {
	a := v.Attr(name)
	if n, err := a.Len(); err != nil || n == 0 {
		return 0, false
	}
	buf64 := make([]float64, 1)
	if err := a.ReadFloat64s(buf64); err == nil {
		return buf64[0], true
	}
	buf32 := make([]float32, 1)
	if err := a.ReadFloat32s(buf32); err == nil {
		return float64(buf32[0]), true
	}
	bufi := make([]int32, 1)
	if err := a.ReadInt32s(bufi); err == nil {
		return float64(bufi[0]), true
	}
	bufs := make([]int16, 1)
	if err := a.ReadInt16s(bufs); err == nil {
		return float64(bufs[0]), true
	}
	return 0, false
}

func attrString(v netcdf.Var, name string) (string, error) {
	a := v.Attr(name)
	n, err := a.Len()
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if err := a.ReadBytes(buf); err != nil {
		return "", err
	}
	// C strings may carry a trailing NUL
	for len(buf) > 0 && buf[len(buf)-1] == 0 {
		buf = buf[:len(buf)-1]
	}
	return string(buf), nil
}
