package forcing

import (
	"time"

	"github.com/sirupsen/logrus"
)

// TimeVaryingInput produces the value of an external input at a simulation time.
// The implementations are AnalyticInput, PointwiseInput and GriddedInput; the set is closed.
//
// Evaluate writes the value at time t into dest. Scalar-valued inputs fill every
// element of dest. args are forwarded verbatim to analytic functions and ignored by
// the other variants.
type TimeVaryingInput interface {
	Evaluate(dest []float64, t float64, args ...any) error
	Close() error
	isTimeVaryingInput()
}

// AnalyticFunc is a pure function of time. args carries whatever context the caller
// threads through Evaluate.
type AnalyticFunc func(t float64, args ...any) float64

// Series is an in-memory time series: strictly increasing Times with matching Values.
type Series struct {
	Times  []float64
	Values []float64
}

// NewTimeVaryingInput picks the variant from the kind of src:
//   - AnalyticFunc (or a func with the same signature) → *AnalyticInput
//   - Series → *PointwiseInput
//   - *SnapshotProvider → *GriddedInput, which takes ownership of the provider
//
// A file path alone is rejected: a gridded input also needs variable names, a
// reference date and a resampler, so paths are resolved by BuildInput from an
// InputConfig.
//
// method may be nil for analytic inputs; for the others nil means
// LinearInterpolation with the Throw boundary.
func NewTimeVaryingInput(src any, method Method) (TimeVaryingInput, error) {
	switch s := src.(type) {
	case AnalyticFunc:
		return newAnalytic(s, method)
	case func(t float64, args ...any) float64:
		return newAnalytic(s, method)
	case Series:
		return NewPointwiseInput(s.Times, s.Values, methodOrDefault(method))
	case *SnapshotProvider:
		return NewGriddedInput(s, methodOrDefault(method))
	case string:
		return nil, configErrorf("cannot build a time-varying input from path %q without variables; use BuildInput", s)
	default:
		return nil, configErrorf("cannot build a time-varying input from %T", src)
	}
}

func methodOrDefault(m Method) Method {
	if m == nil {
		return LinearInterpolation{Extrapolation: Throw{}}
	}
	return m
}

func newAnalytic(fn AnalyticFunc, method Method) (*AnalyticInput, error) {
	if method != nil {
		logrus.Warnf("interpolation method %s ignored for analytic inputs", method)
	}
	return NewAnalyticInput(fn)
}

// AnalyticInput evaluates a function of time.
type AnalyticInput struct {
	fn AnalyticFunc
}

// NewAnalyticInput wraps fn.
func NewAnalyticInput(fn AnalyticFunc) (*AnalyticInput, error) {
	if fn == nil {
		return nil, configErrorf("analytic input needs a function")
	}
	return &AnalyticInput{fn: fn}, nil
}

func (in *AnalyticInput) Evaluate(dest []float64, t float64, args ...any) error {
	fill(dest, in.fn(t, args...))
	return nil
}

// Close is a no-op.
func (in *AnalyticInput) Close() error { return nil }

// PointwiseInput interpolates a small series held in memory.
type PointwiseInput struct {
	times  []float64
	values []float64
	method Method
	cyc    cycle
}

// NewPointwiseInput validates the series and method. The slices are copied.
func NewPointwiseInput(times, values []float64, method Method) (*PointwiseInput, error) {
	if method == nil {
		return nil, configErrorf("pointwise input needs an interpolation method")
	}
	if err := validateSeries(times, values); err != nil {
		return nil, err
	}
	cyc, err := seriesCycle(times, method)
	if err != nil {
		return nil, err
	}
	return &PointwiseInput{
		times:  append([]float64(nil), times...),
		values: append([]float64(nil), values...),
		method: method,
		cyc:    cyc,
	}, nil
}

// Method returns the interpolation method.
func (in *PointwiseInput) Method() Method { return in.method }

// Range returns the first and last sample times.
func (in *PointwiseInput) Range() (float64, float64) {
	return in.times[0], in.times[len(in.times)-1]
}

func (in *PointwiseInput) Evaluate(dest []float64, t float64, _ ...any) error {
	v, err := interpolateValidated(in.times, in.values, t, in.method, in.cyc)
	if err != nil {
		return err
	}
	fill(dest, v)
	return nil
}

// Close is a no-op.
func (in *PointwiseInput) Close() error { return nil }

// GriddedInput interpolates between resampled snapshots served by a SnapshotProvider.
// It owns the provider. Not safe for concurrent use.
type GriddedInput struct {
	provider *SnapshotProvider
	method   Method
	cyc      cycle
	tMin     float64
	tMax     float64

	// reused across calls; sized on first use
	buf0 Field
	buf1 Field
}

// NewGriddedInput validates method against the provider's dates and takes ownership
// of provider. On error the provider is left open for the caller to close.
func NewGriddedInput(provider *SnapshotProvider, method Method) (*GriddedInput, error) {
	if provider == nil {
		return nil, configErrorf("gridded input needs a snapshot provider")
	}
	if method == nil {
		return nil, configErrorf("gridded input needs an interpolation method")
	}
	in := &GriddedInput{provider: provider, method: method}
	if provider.IsStatic() {
		logrus.Infof("%v is static; %s ignored", provider.Variables(), method)
		return in, nil
	}

	times := provider.AvailableTimes()
	in.tMin, in.tMax = times[0], times[len(times)-1]
	switch b := method.Boundary().(type) {
	case Throw, Flat:
	case PeriodicCalendar:
		if err := b.validate(); err != nil {
			return nil, err
		}
		cyc, err := griddedCycle(provider, b)
		if err != nil {
			return nil, err
		}
		in.cyc = cyc
		in.tMin, in.tMax = times[cyc.first], times[cyc.last]
	default:
		return nil, configErrorf("unsupported boundary policy %v", b)
	}
	return in, nil
}

func griddedCycle(provider *SnapshotProvider, b PeriodicCalendar) (cycle, error) {
	if !b.calendarAnchored() {
		if _, err := provider.Dt(); err != nil {
			return cycle{}, err
		}
		return inferredCycle(provider.AvailableTimes())
	}
	dates := provider.AvailableDates()
	first, last, err := BoundingDates(dates, b.RepeatDate, b.Period)
	if err != nil {
		return cycle{}, err
	}
	i0, _ := provider.dateIndex(first)
	i1, _ := provider.dateIndex(last)
	return cycle{first: i0, last: i1, dt: periodSeam(last, b.Period)}, nil
}

// Provider returns the underlying provider.
func (in *GriddedInput) Provider() *SnapshotProvider { return in.provider }

// Method returns the interpolation method.
func (in *GriddedInput) Method() Method { return in.method }

// Range returns the time range the input is defined on. For a calendar-anchored
// periodic boundary this is the repeated sub-range, not the whole dataset.
func (in *GriddedInput) Range() (float64, float64) { return in.tMin, in.tMax }

func (in *GriddedInput) Evaluate(dest []float64, t float64, _ ...any) error {
	p := in.provider
	if p.IsStatic() {
		return p.SnapshotInto(dest, StaticDate)
	}
	br, err := locate(p.AvailableTimes(), t, in.method, in.cyc)
	if err != nil {
		return err
	}
	dates := p.AvailableDates()
	if br.single() {
		return p.SnapshotInto(dest, dates[br.lo])
	}

	if err := in.loadBuffer(&in.buf0, dates[br.lo], len(dest)); err != nil {
		return err
	}
	if err := in.loadBuffer(&in.buf1, dates[br.hi], len(dest)); err != nil {
		return err
	}
	for i := range dest {
		dest[i] = lerp(in.buf0[i], in.buf1[i], br.coeff)
	}
	return nil
}

func (in *GriddedInput) loadBuffer(buf *Field, date time.Time, n int) error {
	if len(*buf) != n {
		*buf = make(Field, n)
	}
	return in.provider.SnapshotInto(*buf, date)
}

// Close closes the provider.
func (in *GriddedInput) Close() error {
	return in.provider.Close()
}

func (*AnalyticInput) isTimeVaryingInput()  {}
func (*PointwiseInput) isTimeVaryingInput() {}
func (*GriddedInput) isTimeVaryingInput()   {}

func fill(dest []float64, v float64) {
	for i := range dest {
		dest[i] = v
	}
}
