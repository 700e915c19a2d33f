package forcing

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultCacheCapacity is the number of resampled snapshots a provider keeps by default.
const DefaultCacheCapacity = 128

// ComposeFunc combines the values of several variables at one grid element.
// It receives one value per variable, in the order of ProviderConfig.Variables.
type ComposeFunc func(values ...float64) float64

// ProviderConfig configures a SnapshotProvider.
type ProviderConfig struct {
	// Variables read from the source. More than one requires Compose.
	Variables []string
	// ReferenceDate is the calendar date of simulation time zero.
	ReferenceDate time.Time
	// TStart is the simulation start time in seconds after ReferenceDate.
	TStart float64
	// CacheCapacity bounds the number of cached snapshots. Zero means DefaultCacheCapacity.
	CacheCapacity int
	// Compose merges the raw variables element by element before resampling.
	Compose ComposeFunc
	// Preprocess is applied to every raw element before composing. Optional.
	Preprocess func(float64) float64
	// ShiftBy moves every available date, e.g. to reuse one year's data for another. Optional.
	ShiftBy func(time.Time) time.Time
}

// CacheStats counts snapshot cache activity.
type CacheStats struct {
	Hits      int
	Misses    int
	Evictions int
}

// SnapshotProvider reads snapshots from a DataSource, resamples them onto the target
// space and memoizes the results in an LRU cache keyed by date.
//
// A provider owns its source and must be closed. It is not safe for concurrent use.
type SnapshotProvider struct {
	source    DataSource
	resampler Resampler
	cfg       ProviderConfig

	// dates are the (shifted) dates as the rest of the provider sees them; rawDates are
	// the corresponding dates to request from the source.
	dates    []time.Time
	rawDates []time.Time
	times    []float64

	cache  *LRUCache[time.Time, Field]
	stats  CacheStats
	closed bool
}

// NewSnapshotProvider builds a provider over source. The dates reported by the source
// must be strictly increasing.
func NewSnapshotProvider(source DataSource, resampler Resampler, cfg ProviderConfig) (*SnapshotProvider, error) {
	if source == nil {
		return nil, configErrorf("snapshot provider needs a data source")
	}
	if resampler == nil {
		return nil, configErrorf("snapshot provider needs a resampler")
	}
	if len(cfg.Variables) == 0 {
		return nil, configErrorf("snapshot provider needs at least one variable")
	}
	if len(cfg.Variables) > 1 && cfg.Compose == nil {
		return nil, configErrorf("reading %d variables %v needs a compose function", len(cfg.Variables), cfg.Variables)
	}
	if cfg.CacheCapacity < 0 {
		return nil, configErrorf("cache capacity must be >= 0, got %d", cfg.CacheCapacity)
	}
	if cfg.CacheCapacity == 0 {
		cfg.CacheCapacity = DefaultCacheCapacity
	}

	p := &SnapshotProvider{
		source:    source,
		resampler: resampler,
		cfg:       cfg,
		cache:     NewLRUCache[time.Time, Field](cfg.CacheCapacity),
	}
	p.cache.OnEvict(func(date time.Time, _ Field) {
		p.stats.Evictions++
		logrus.Debugf("evicted snapshot %s of %v", date.Format(time.RFC3339), cfg.Variables)
	})

	p.rawDates = source.AvailableDates()
	p.dates = make([]time.Time, len(p.rawDates))
	p.times = make([]float64, len(p.rawDates))
	for i, d := range p.rawDates {
		if cfg.ShiftBy != nil {
			d = cfg.ShiftBy(d)
		}
		p.dates[i] = d
		p.times[i] = p.DateToTime(d)
		if i > 0 && !p.dates[i].After(p.dates[i-1]) {
			return nil, fmt.Errorf("data source dates are not strictly increasing at index %d (%s after %s)",
				i, p.dates[i].Format(time.RFC3339), p.dates[i-1].Format(time.RFC3339))
		}
	}

	logrus.Infof("snapshot provider for %v: %d dates, cache capacity %d", cfg.Variables, len(p.dates), cfg.CacheCapacity)
	return p, nil
}

// Variables returns the variables read by the provider.
func (p *SnapshotProvider) Variables() []string { return p.cfg.Variables }

// IsStatic reports whether the source has no time axis.
func (p *SnapshotProvider) IsStatic() bool { return len(p.dates) == 0 }

// AvailableDates returns the sorted dates with data. Callers must not modify the slice.
func (p *SnapshotProvider) AvailableDates() []time.Time { return p.dates }

// AvailableTimes returns the simulation times matching AvailableDates.
// Callers must not modify the slice.
func (p *SnapshotProvider) AvailableTimes() []float64 { return p.times }

// CacheStats returns hit/miss/eviction counts since construction.
func (p *SnapshotProvider) CacheStats() CacheStats { return p.stats }

// CachedDates returns the dates currently cached, least recently used first.
func (p *SnapshotProvider) CachedDates() []time.Time { return p.cache.Keys() }

// TimeToDate converts simulation seconds to a calendar date (millisecond resolution).
func (p *SnapshotProvider) TimeToDate(t float64) time.Time {
	ms := math.Round((p.cfg.TStart + t) * 1e3)
	return p.cfg.ReferenceDate.Add(time.Duration(ms) * time.Millisecond)
}

// DateToTime converts a calendar date to simulation seconds.
func (p *SnapshotProvider) DateToTime(date time.Time) float64 {
	return date.Sub(p.cfg.ReferenceDate).Seconds() - p.cfg.TStart
}

// Dt returns the uniform spacing of the available times in seconds.
func (p *SnapshotProvider) Dt() (float64, error) {
	if len(p.times) < 2 {
		return 0, configErrorf("need at least 2 dates to define a time step, have %d", len(p.times))
	}
	if !IsUniformlySpaced(p.times, uniformSpacingTol) {
		return 0, configErrorf("available dates of %v are not uniformly spaced", p.cfg.Variables)
	}
	return p.times[1] - p.times[0], nil
}

// dateIndex returns the index of date in the available dates.
func (p *SnapshotProvider) dateIndex(date time.Time) (int, bool) {
	i := sort.Search(len(p.dates), func(i int) bool { return !p.dates[i].Before(date) })
	return i, i < len(p.dates) && p.dates[i].Equal(date)
}

// SnapshotAt returns the resampled snapshot for date, reading and resampling it on a
// cache miss. date must be one of AvailableDates, or StaticDate for a static source.
// The returned Field is shared with the cache and must not be modified.
func (p *SnapshotProvider) SnapshotAt(date time.Time) (Field, error) {
	if p.closed {
		return nil, fmt.Errorf("snapshot of %v at %s: provider is closed", p.cfg.Variables, date.Format(time.RFC3339))
	}
	var key, rawDate time.Time
	if p.IsStatic() {
		if !date.Equal(StaticDate) {
			return nil, dateUnavailable(date, nil)
		}
		key, rawDate = StaticDate, StaticDate
	} else {
		i, ok := p.dateIndex(date)
		if !ok {
			return nil, dateUnavailable(date, p.dates)
		}
		key, rawDate = p.dates[i], p.rawDates[i]
	}

	hit := true
	field, err := p.cache.GetOrInsertErr(key, func() (Field, error) {
		hit = false
		return p.load(rawDate)
	})
	if err != nil {
		return nil, err
	}
	if hit {
		p.stats.Hits++
	} else {
		p.stats.Misses++
	}
	return field, nil
}

// SnapshotAtTime is SnapshotAt for a simulation time. For a static source every
// time maps to the single snapshot.
func (p *SnapshotProvider) SnapshotAtTime(t float64) (Field, error) {
	if p.IsStatic() {
		return p.SnapshotAt(StaticDate)
	}
	return p.SnapshotAt(p.TimeToDate(t))
}

// SnapshotInto copies the snapshot for date into dest, which must have the snapshot's length.
func (p *SnapshotProvider) SnapshotInto(dest []float64, date time.Time) error {
	field, err := p.SnapshotAt(date)
	if err != nil {
		return err
	}
	if len(dest) != len(field) {
		return fmt.Errorf("destination has %d elements, snapshot of %v has %d", len(dest), p.cfg.Variables, len(field))
	}
	copy(dest, field)
	return nil
}

// load reads every variable at date, composes them and resamples the result.
func (p *SnapshotProvider) load(date time.Time) (Field, error) {
	logrus.Debugf("cache miss: reading %v at %s", p.cfg.Variables, date.Format(time.RFC3339))
	raws := make([]RawArray, len(p.cfg.Variables))
	for i, v := range p.cfg.Variables {
		raw, err := p.source.Read(v, date)
		if err != nil {
			return nil, fmt.Errorf("reading %s at %s: %w", v, date.Format(time.RFC3339), err)
		}
		if err := raw.Validate(); err != nil {
			return nil, fmt.Errorf("reading %s at %s: %w", v, date.Format(time.RFC3339), err)
		}
		if p.cfg.Preprocess != nil {
			data := make([]float64, len(raw.Data))
			for j, x := range raw.Data {
				data[j] = p.cfg.Preprocess(x)
			}
			raw.Data = data
		}
		raws[i] = raw
	}

	raw := raws[0]
	if len(raws) > 1 {
		composed, err := compose(raws, p.cfg.Compose)
		if err != nil {
			return nil, fmt.Errorf("composing %v: %w", p.cfg.Variables, err)
		}
		raw = composed
	}

	field, err := p.resampler.Resample(raw)
	if err != nil {
		return nil, fmt.Errorf("resampling %v at %s: %w", p.cfg.Variables, date.Format(time.RFC3339), err)
	}
	return field, nil
}

func compose(raws []RawArray, fn ComposeFunc) (RawArray, error) {
	n := len(raws[0].Data)
	for i, r := range raws[1:] {
		if len(r.Data) != n {
			return RawArray{}, fmt.Errorf("variable %d has %d elements, variable 0 has %d", i+1, len(r.Data), n)
		}
	}
	out := RawArray{Data: make([]float64, n), Shape: raws[0].Shape, Dims: raws[0].Dims}
	args := make([]float64, len(raws))
	for j := 0; j < n; j++ {
		for i, r := range raws {
			args[i] = r.Data[j]
		}
		out.Data[j] = fn(args...)
	}
	return out, nil
}

// PreviousTime returns the latest available time <= t.
func (p *SnapshotProvider) PreviousTime(t float64) (float64, error) {
	i := sort.SearchFloat64s(p.times, t)
	if i < len(p.times) && p.times[i] == t {
		return t, nil
	}
	if i == 0 {
		return 0, &DomainError{Query: fmt.Sprintf("time %g", t), Valid: p.timeRange() + " (no previous time)"}
	}
	return p.times[i-1], nil
}

// NextTime returns the earliest available time > t.
func (p *SnapshotProvider) NextTime(t float64) (float64, error) {
	i := sort.SearchFloat64s(p.times, t)
	if i < len(p.times) && p.times[i] == t {
		i++
	}
	if i >= len(p.times) {
		return 0, &DomainError{Query: fmt.Sprintf("time %g", t), Valid: p.timeRange() + " (no next time)"}
	}
	return p.times[i], nil
}

// PreviousDate returns the latest available date <= date.
func (p *SnapshotProvider) PreviousDate(date time.Time) (time.Time, error) {
	i, ok := p.dateIndex(date)
	if ok {
		return p.dates[i], nil
	}
	if i == 0 {
		return time.Time{}, &DomainError{Query: "date " + date.Format(time.RFC3339), Valid: p.dateRange() + " (no previous date)"}
	}
	return p.dates[i-1], nil
}

// NextDate returns the earliest available date after date.
func (p *SnapshotProvider) NextDate(date time.Time) (time.Time, error) {
	i, ok := p.dateIndex(date)
	if ok {
		i++
	}
	if i >= len(p.dates) {
		return time.Time{}, &DomainError{Query: "date " + date.Format(time.RFC3339), Valid: p.dateRange() + " (no next date)"}
	}
	return p.dates[i], nil
}

func (p *SnapshotProvider) timeRange() string {
	if len(p.times) == 0 {
		return "(static source)"
	}
	return fmt.Sprintf("[%g, %g]", p.times[0], p.times[len(p.times)-1])
}

func (p *SnapshotProvider) dateRange() string {
	if len(p.dates) == 0 {
		return "(static source)"
	}
	return fmt.Sprintf("[%s, %s]", p.dates[0].Format(time.RFC3339), p.dates[len(p.dates)-1].Format(time.RFC3339))
}

// Close drops the cache and closes the data source. Closing twice is a no-op.
func (p *SnapshotProvider) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.cache.Clear()
	if err := p.source.Close(); err != nil {
		return fmt.Errorf("closing source of %v: %w", p.cfg.Variables, err)
	}
	return nil
}
