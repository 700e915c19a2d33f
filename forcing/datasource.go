package forcing

import (
	"fmt"
	"time"
)

// StaticDate is the sentinel date under which the single snapshot of a static
// (non-temporal) source is read and cached.
var StaticDate = time.Time{}

// RawArray is one N-dimensional slice read from a data source, stored row-major
// (last axis varies fastest).
type RawArray struct {
	Data  []float64
	Shape []int
	// Dims holds the coordinate values along each axis; len(Dims[i]) == Shape[i].
	Dims [][]float64
}

// Size returns the number of elements implied by Shape.
func (a RawArray) Size() int {
	n := 1
	for _, s := range a.Shape {
		n *= s
	}
	return n
}

// Validate checks that Data, Shape and Dims agree.
func (a RawArray) Validate() error {
	if len(a.Data) != a.Size() {
		return fmt.Errorf("raw array has %d elements, shape %v implies %d", len(a.Data), a.Shape, a.Size())
	}
	if len(a.Dims) != len(a.Shape) {
		return fmt.Errorf("raw array has %d coordinate axes for %d dimensions", len(a.Dims), len(a.Shape))
	}
	for i, d := range a.Dims {
		if len(d) != a.Shape[i] {
			return fmt.Errorf("coordinate axis %d has %d values, shape says %d", i, len(d), a.Shape[i])
		}
	}
	return nil
}

// Field is a resampled snapshot: one value per point of the target space.
type Field []float64

// DataSource is the file reader collaborator. Dates must be strictly increasing.
// An empty date list marks a static source, read with StaticDate.
type DataSource interface {
	AvailableDates() []time.Time
	Read(variable string, date time.Time) (RawArray, error)
	Close() error
}

// Resampler maps a raw array onto the target space it was constructed for.
// It must be deterministic for identical inputs.
type Resampler interface {
	Resample(raw RawArray) (Field, error)
}

// OpenSourceFunc opens a data source by path. Set by sub-packages via init()
// (forcing/ncsource registers the NetCDF reader).
var OpenSourceFunc func(path string) (DataSource, error)

// NewResamplerFunc builds a named resampler onto the given target points. Set by
// forcing/regrid via init().
var NewResamplerFunc func(kind string, points [][]float64) (Resampler, error)
