package forcing

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jinzhu/now"
)

// Period is a calendar bucket used by periodic boundary policies.
type Period int

const (
	// NoPeriod means the cycle is inferred from the whole data span.
	NoPeriod Period = iota
	Year
	Month
	Week
	Day
)

func (p Period) String() string {
	switch p {
	case Year:
		return "1Y"
	case Month:
		return "1M"
	case Week:
		return "1W"
	case Day:
		return "1D"
	default:
		return "none"
	}
}

// ParsePeriod accepts "1Y", "1M", "1W", "1D" and the names year, month, week, day
// (case-insensitive). The empty string parses to NoPeriod.
func ParsePeriod(s string) (Period, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return NoPeriod, nil
	case "1y", "year":
		return Year, nil
	case "1m", "month":
		return Month, nil
	case "1w", "week":
		return Week, nil
	case "1d", "day":
		return Day, nil
	}
	return NoPeriod, fmt.Errorf("unknown calendar period %q; valid: 1Y, 1M, 1W, 1D", s)
}

// weeks start on Monday
var mondayWeeks = &now.Config{WeekStartDay: time.Monday}

// BeginningOfPeriod returns the first instant of the calendar bucket containing t.
// Panics on NoPeriod or an unknown period.
func BeginningOfPeriod(t time.Time, p Period) time.Time {
	n := mondayWeeks.With(t)
	switch p {
	case Year:
		return n.BeginningOfYear()
	case Month:
		return n.BeginningOfMonth()
	case Week:
		return n.BeginningOfWeek()
	case Day:
		return n.BeginningOfDay()
	}
	panic(fmt.Sprintf("BeginningOfPeriod: unsupported period %v", p))
}

// EndOfPeriod returns the last whole second of the calendar bucket containing t,
// one second before the next bucket begins.
func EndOfPeriod(t time.Time, p Period) time.Time {
	n := mondayWeeks.With(t)
	var end time.Time
	switch p {
	case Year:
		end = n.EndOfYear()
	case Month:
		end = n.EndOfMonth()
	case Week:
		end = n.EndOfWeek()
	case Day:
		end = n.EndOfDay()
	default:
		panic(fmt.Sprintf("EndOfPeriod: unsupported period %v", p))
	}
	return end.Truncate(time.Second)
}

// BoundingDates returns the first and last of the sorted dates that fall in the same
// calendar bucket as target. At least two such dates are required.
func BoundingDates(dates []time.Time, target time.Time, p Period) (time.Time, time.Time, error) {
	bucket := BeginningOfPeriod(target, p)
	var matches []time.Time
	for _, d := range dates {
		if BeginningOfPeriod(d, p).Equal(bucket) {
			matches = append(matches, d)
		}
	}
	if len(matches) < 2 {
		return time.Time{}, time.Time{}, configErrorf(
			"need at least 2 dates in period %s containing %s, found %d",
			p, target.Format(time.RFC3339), len(matches))
	}
	return matches[0], matches[len(matches)-1], nil
}

// WrapTime maps t into [lo, hi) as lo + ((t - lo) mod (hi - lo)).
func WrapTime(t, lo, hi float64) float64 {
	span := hi - lo
	r := math.Mod(t-lo, span)
	if r < 0 {
		r += span
	}
	// r can round up to span for tiny negative inputs
	if r >= span {
		r = 0
	}
	return lo + r
}

// IsUniformlySpaced reports whether consecutive differences of xs all match the first
// one within a relative tolerance. Sequences with fewer than three elements are uniform.
func IsUniformlySpaced(xs []float64, tol float64) bool {
	if len(xs) < 3 {
		return true
	}
	d0 := xs[1] - xs[0]
	for i := 2; i < len(xs); i++ {
		if math.Abs((xs[i]-xs[i-1])-d0) > tol*math.Abs(d0) {
			return false
		}
	}
	return true
}

// periodSeam is the width in seconds of the gap between last and the start of the
// next calendar bucket.
func periodSeam(last time.Time, p Period) float64 {
	next := EndOfPeriod(last, p).Add(time.Second)
	return next.Sub(last).Seconds()
}
