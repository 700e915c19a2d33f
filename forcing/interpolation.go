package forcing

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// uniformSpacingTol is the relative tolerance used when a periodic policy infers its
// cycle step from the sample spacing.
const uniformSpacingTol = 1e-8

// BoundaryPolicy decides what happens to queries outside the sampled range.
// Implementations: Throw, Flat, PeriodicCalendar.
type BoundaryPolicy interface {
	isBoundaryPolicy()
	String() string
}

// Throw rejects any query outside [t_min, t_max] with a *DomainError.
type Throw struct{}

// Flat clamps queries outside [t_min, t_max] to the boundary sample.
type Flat struct{}

// PeriodicCalendar repeats the data, identifying t_max + dt with t_min.
//
// With Period == NoPeriod the whole span is one cycle and dt is the (uniform) sample
// spacing. With Period set, only the dates inside the calendar bucket containing
// RepeatDate form the cycle, and dt is the distance from the last of them to the
// start of the next bucket.
type PeriodicCalendar struct {
	Period     Period
	RepeatDate time.Time
}

func (Throw) isBoundaryPolicy()            {}
func (Flat) isBoundaryPolicy()             {}
func (PeriodicCalendar) isBoundaryPolicy() {}

func (Throw) String() string { return "Throw" }
func (Flat) String() string  { return "Flat" }
func (p PeriodicCalendar) String() string {
	if p.Period == NoPeriod {
		return "PeriodicCalendar"
	}
	return fmt.Sprintf("PeriodicCalendar(%s, %s)", p.Period, p.RepeatDate.Format("2006-01-02"))
}

// calendarAnchored reports whether the policy names an explicit calendar bucket.
func (p PeriodicCalendar) calendarAnchored() bool {
	return p.Period != NoPeriod
}

func (p PeriodicCalendar) validate() error {
	if (p.Period == NoPeriod) != p.RepeatDate.IsZero() {
		return configErrorf("PeriodicCalendar needs both period and repeat date, or neither (got period=%s, repeat date set=%t)",
			p.Period, !p.RepeatDate.IsZero())
	}
	return nil
}

// Method is an interpolation method. Implementations: NearestNeighbor, LinearInterpolation.
type Method interface {
	Boundary() BoundaryPolicy
	isMethod()
	String() string
}

// NearestNeighbor returns the sample closest in time; ties go to the earlier sample.
// A nil Extrapolation means Throw.
type NearestNeighbor struct {
	Extrapolation BoundaryPolicy
}

// LinearInterpolation blends the two bracketing samples.
// A nil Extrapolation means Throw.
type LinearInterpolation struct {
	Extrapolation BoundaryPolicy
}

func (m NearestNeighbor) Boundary() BoundaryPolicy     { return boundaryOrThrow(m.Extrapolation) }
func (m LinearInterpolation) Boundary() BoundaryPolicy { return boundaryOrThrow(m.Extrapolation) }
func (NearestNeighbor) isMethod()                      {}
func (LinearInterpolation) isMethod()                  {}

func (m NearestNeighbor) String() string {
	return "NearestNeighbor(" + m.Boundary().String() + ")"
}

func (m LinearInterpolation) String() string {
	return "LinearInterpolation(" + m.Boundary().String() + ")"
}

func boundaryOrThrow(b BoundaryPolicy) BoundaryPolicy {
	if b == nil {
		return Throw{}
	}
	return b
}

// cycle describes the periodic window: samples first..last (inclusive indices)
// followed by a seam of width dt that leads back to first.
type cycle struct {
	first, last int
	dt          float64
}

// inferredCycle builds the cycle for a PeriodicCalendar without a calendar period.
func inferredCycle(times []float64) (cycle, error) {
	if len(times) < 2 {
		return cycle{}, configErrorf("periodic boundary needs at least 2 samples, got %d", len(times))
	}
	if !IsUniformlySpaced(times, uniformSpacingTol) {
		return cycle{}, configErrorf("periodic boundary without a calendar period needs uniformly spaced samples")
	}
	return cycle{first: 0, last: len(times) - 1, dt: times[1] - times[0]}, nil
}

// bracket selects the samples to combine: value = v[lo] + (v[hi]-v[lo])*coeff.
type bracket struct {
	lo, hi int
	coeff  float64
}

func (b bracket) single() bool {
	return b.lo == b.hi || b.coeff == 0
}

// locate finds the bracket for query t in the sorted times under method. cyc is only
// consulted for PeriodicCalendar boundaries.
func locate(times []float64, t float64, method Method, cyc cycle) (bracket, error) {
	n := len(times)
	if n == 0 {
		return bracket{}, configErrorf("no samples to interpolate")
	}
	// no boundary policy can place NaN or ±Inf
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return bracket{}, timeOutOfRange(t, times[0], times[n-1])
	}
	_, linear := method.(LinearInterpolation)

	switch b := method.Boundary().(type) {
	case Throw:
		if t < times[0] || t > times[n-1] {
			return bracket{}, timeOutOfRange(t, times[0], times[n-1])
		}
	case Flat:
		if t <= times[0] {
			return bracket{lo: 0, hi: 0}, nil
		}
		if t >= times[n-1] {
			return bracket{lo: n - 1, hi: n - 1}, nil
		}
	case PeriodicCalendar:
		lo, hi := times[cyc.first], times[cyc.last]
		t = WrapTime(t, lo, hi+cyc.dt)
		if t > hi {
			off := t - hi
			if linear {
				return bracket{lo: cyc.last, hi: cyc.first, coeff: off / cyc.dt}, nil
			}
			// ties on the half-seam go to the later sample, i.e. the start of the next cycle
			if off < cyc.dt/2 {
				return bracket{lo: cyc.last, hi: cyc.last}, nil
			}
			return bracket{lo: cyc.first, hi: cyc.first}, nil
		}
	default:
		return bracket{}, configErrorf("unsupported boundary policy %v", b)
	}

	i := sort.SearchFloat64s(times, t)
	if i < n && times[i] == t {
		return bracket{lo: i, hi: i}, nil
	}
	lo, hi := i-1, i
	if linear {
		return bracket{lo: lo, hi: hi, coeff: (t - times[lo]) / (times[hi] - times[lo])}, nil
	}
	if t-times[lo] <= times[hi]-t {
		return bracket{lo: lo, hi: lo}, nil
	}
	return bracket{lo: hi, hi: hi}, nil
}

// lerp returns v0 + (v1-v0)*coeff.
func lerp(v0, v1, coeff float64) float64 {
	return v0 + (v1-v0)*coeff
}

// validateSeries checks that times is strictly increasing and matches values in length.
func validateSeries(times, values []float64) error {
	if len(times) != len(values) {
		return configErrorf("times and values differ in length (%d vs %d)", len(times), len(values))
	}
	if len(times) == 0 {
		return configErrorf("series needs at least one sample")
	}
	for i := 1; i < len(times); i++ {
		if !(times[i] > times[i-1]) {
			return configErrorf("times must be strictly increasing (times[%d]=%g, times[%d]=%g)",
				i-1, times[i-1], i, times[i])
		}
	}
	return nil
}

// seriesCycle validates method against an in-memory series and returns the periodic
// cycle it implies (zero for non-periodic boundaries).
func seriesCycle(times []float64, method Method) (cycle, error) {
	switch b := method.Boundary().(type) {
	case Throw, Flat:
		return cycle{}, nil
	case PeriodicCalendar:
		if err := b.validate(); err != nil {
			return cycle{}, err
		}
		if b.calendarAnchored() {
			return cycle{}, configErrorf("%s needs calendar dates, which an in-memory series does not have", b)
		}
		return inferredCycle(times)
	default:
		return cycle{}, configErrorf("unsupported boundary policy %v", b)
	}
}

// Interpolate evaluates the series (times, values) at t using method.
// times must be strictly increasing. PeriodicCalendar with an explicit calendar
// period is rejected since the series carries no dates.
func Interpolate(times, values []float64, t float64, method Method) (float64, error) {
	if err := validateSeries(times, values); err != nil {
		return 0, err
	}
	cyc, err := seriesCycle(times, method)
	if err != nil {
		return 0, err
	}
	return interpolateValidated(times, values, t, method, cyc)
}

func interpolateValidated(times, values []float64, t float64, method Method, cyc cycle) (float64, error) {
	br, err := locate(times, t, method, cyc)
	if err != nil {
		return 0, err
	}
	if br.single() {
		return values[br.lo], nil
	}
	return lerp(values[br.lo], values[br.hi], br.coeff), nil
}
