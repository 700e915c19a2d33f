package forcing

import (
	"fmt"
	"time"
)

// fakeSource serves 1D arrays of length width per variable and date. The value of
// element j of variable v at date index i is values[v](i, j).
type fakeSource struct {
	dates  []time.Time
	width  int
	values map[string]func(i, j int) float64
	reads  int
	closed int
}

func newFakeSource(dates []time.Time, width int) *fakeSource {
	return &fakeSource{
		dates: dates,
		width: width,
		values: map[string]func(i, j int) float64{
			"u": func(i, j int) float64 { return float64(10*i + j) },
		},
	}
}

func (s *fakeSource) AvailableDates() []time.Time { return s.dates }

func (s *fakeSource) Read(variable string, date time.Time) (RawArray, error) {
	s.reads++
	f, ok := s.values[variable]
	if !ok {
		return RawArray{}, fmt.Errorf("no variable %s", variable)
	}
	idx := -1
	if len(s.dates) == 0 {
		if !date.Equal(StaticDate) {
			return RawArray{}, fmt.Errorf("static source read at %s", date)
		}
		idx = 0
	}
	for i, d := range s.dates {
		if d.Equal(date) {
			idx = i
		}
	}
	if idx < 0 {
		return RawArray{}, fmt.Errorf("no data at %s", date)
	}
	raw := RawArray{Data: make([]float64, s.width), Shape: []int{s.width}, Dims: [][]float64{make([]float64, s.width)}}
	for j := 0; j < s.width; j++ {
		raw.Data[j] = f(idx, j)
		raw.Dims[0][j] = float64(j)
	}
	return raw, nil
}

func (s *fakeSource) Close() error {
	s.closed++
	return nil
}

// identityResampler returns the raw data unchanged.
type identityResampler struct{ calls int }

func (r *identityResampler) Resample(raw RawArray) (Field, error) {
	r.calls++
	return append(Field(nil), raw.Data...), nil
}

var refDate = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// daily returns n consecutive days starting at start.
func daily(start time.Time, n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = start.AddDate(0, 0, i)
	}
	return out
}

func newTestProvider(src DataSource, capacity int) (*SnapshotProvider, error) {
	return NewSnapshotProvider(src, &identityResampler{}, ProviderConfig{
		Variables:     []string{"u"},
		ReferenceDate: refDate,
		CacheCapacity: capacity,
	})
}
