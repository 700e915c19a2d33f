package ncsource

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// timeAxis decodes CF "<unit> since <epoch>" time coordinates.
type timeAxis struct {
	unit  time.Duration
	epoch time.Time
}

var epochLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05Z",
	"2006-1-2 15:4:5",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006-1-2",
}

// parseTimeUnits parses a CF units attribute such as "days since 1970-01-01 00:00:00".
func parseTimeUnits(units string) (timeAxis, error) {
	parts := strings.SplitN(strings.TrimSpace(units), " since ", 2)
	if len(parts) != 2 {
		return timeAxis{}, fmt.Errorf("time units %q: expected \"<unit> since <date>\"", units)
	}
	var unit time.Duration
	switch strings.ToLower(strings.TrimSpace(parts[0])) {
	case "seconds", "second", "secs", "sec", "s":
		unit = time.Second
	case "minutes", "minute", "mins", "min":
		unit = time.Minute
	case "hours", "hour", "hrs", "hr", "h":
		unit = time.Hour
	case "days", "day", "d":
		unit = 24 * time.Hour
	default:
		return timeAxis{}, fmt.Errorf("time units %q: unsupported unit %q", units, parts[0])
	}

	ref := strings.TrimSpace(parts[1])
	// drop a trailing numeric zone like "+00:00" or " UTC"
	ref = strings.TrimSuffix(ref, " UTC")
	ref = strings.TrimSuffix(ref, " +00:00")
	ref = strings.TrimSuffix(ref, "+00:00")
	// fractional seconds: "00:00:00.0"
	if i := strings.LastIndex(ref, "."); i > strings.LastIndex(ref, ":") && strings.Contains(ref, ":") {
		ref = ref[:i]
	}
	for _, layout := range epochLayouts {
		if t, err := time.ParseInLocation(layout, ref, time.UTC); err == nil {
			return timeAxis{unit: unit, epoch: t}, nil
		}
	}
	return timeAxis{}, fmt.Errorf("time units %q: cannot parse reference date %q", units, parts[1])
}

// date converts an offset in axis units to a date, rounded to the millisecond.
func (a timeAxis) date(offset float64) time.Time {
	ms := math.Round(offset * float64(a.unit/time.Millisecond))
	return a.epoch.Add(time.Duration(ms) * time.Millisecond)
}

// checkCalendar rejects calendars that do not map onto time.Time.
func checkCalendar(calendar string) error {
	switch strings.ToLower(strings.TrimSpace(calendar)) {
	case "", "standard", "gregorian", "proleptic_gregorian":
		return nil
	}
	return fmt.Errorf("unsupported calendar %q", calendar)
}
