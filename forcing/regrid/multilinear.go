// Package regrid resamples rectilinear source grids onto a fixed list of target
// points. Interpolation weights depend only on the source coordinates, so they are
// computed once per grid layout and reused for every snapshot.
package regrid

import (
	"fmt"
	"sort"

	"github.com/simforcing/forcing/forcing"
)

// stencil holds, for one target point, the flat source indices and weights to combine.
type stencil struct {
	indices []int
	weights []float64
}

// Multilinear interpolates N-dimensional rectilinear data onto target points, blending
// the 2^N surrounding grid nodes. Points outside the grid are clamped to its edge.
type Multilinear struct {
	points  [][]float64
	weights *weightCache
}

// NewMultilinear creates a resampler onto points. Every point must have as many
// coordinates as the source arrays have dimensions, in the same axis order.
func NewMultilinear(points [][]float64) *Multilinear {
	return &Multilinear{points: clonePoints(points), weights: newWeightCache()}
}

// Points returns the number of target points.
func (m *Multilinear) Points() int { return len(m.points) }

func (m *Multilinear) Resample(raw forcing.RawArray) (forcing.Field, error) {
	stencils, err := m.weights.getOrCompute(raw, func() ([]stencil, error) {
		return buildStencils(m.points, raw, multilinearAxis)
	})
	if err != nil {
		return nil, err
	}
	return apply(stencils, raw.Data), nil
}

// Nearest picks the closest source node along every axis.
type Nearest struct {
	points  [][]float64
	weights *weightCache
}

// NewNearest creates a nearest-node resampler onto points.
func NewNearest(points [][]float64) *Nearest {
	return &Nearest{points: clonePoints(points), weights: newWeightCache()}
}

// Points returns the number of target points.
func (n *Nearest) Points() int { return len(n.points) }

func (n *Nearest) Resample(raw forcing.RawArray) (forcing.Field, error) {
	stencils, err := n.weights.getOrCompute(raw, func() ([]stencil, error) {
		return buildStencils(n.points, raw, nearestAxis)
	})
	if err != nil {
		return nil, err
	}
	return apply(stencils, raw.Data), nil
}

func clonePoints(points [][]float64) [][]float64 {
	out := make([][]float64, len(points))
	for i, p := range points {
		out[i] = append([]float64(nil), p...)
	}
	return out
}

func apply(stencils []stencil, data []float64) forcing.Field {
	out := make(forcing.Field, len(stencils))
	for i, s := range stencils {
		v := 0.0
		for k, idx := range s.indices {
			v += s.weights[k] * data[idx]
		}
		out[i] = v
	}
	return out
}

// axisWeights are the (index, weight) pairs along a single axis.
type axisWeights struct {
	idx []int
	w   []float64
}

type axisFunc func(coords []float64, x float64) axisWeights

// multilinearAxis brackets x in coords (ascending or descending) and returns linear weights.
func multilinearAxis(coords []float64, x float64) axisWeights {
	n := len(coords)
	if n == 1 {
		return axisWeights{idx: []int{0}, w: []float64{1}}
	}
	lo, hi := bracketAxis(coords, x)
	if lo == hi {
		return axisWeights{idx: []int{lo}, w: []float64{1}}
	}
	c := (x - coords[lo]) / (coords[hi] - coords[lo])
	return axisWeights{idx: []int{lo, hi}, w: []float64{1 - c, c}}
}

func nearestAxis(coords []float64, x float64) axisWeights {
	if len(coords) == 1 {
		return axisWeights{idx: []int{0}, w: []float64{1}}
	}
	lo, hi := bracketAxis(coords, x)
	best := lo
	if abs(coords[hi]-x) < abs(coords[lo]-x) {
		best = hi
	}
	return axisWeights{idx: []int{best}, w: []float64{1}}
}

// bracketAxis returns neighbouring indices lo, hi with x between coords[lo] and
// coords[hi]; both are the edge index when x is outside the axis.
func bracketAxis(coords []float64, x float64) (int, int) {
	n := len(coords)
	descending := coords[n-1] < coords[0]
	i := sort.Search(n, func(i int) bool {
		if descending {
			return coords[i] <= x
		}
		return coords[i] >= x
	})
	switch {
	case i == 0:
		return 0, 0
	case i == n:
		return n - 1, n - 1
	case coords[i] == x:
		return i, i
	}
	return i - 1, i
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func buildStencils(points [][]float64, raw forcing.RawArray, axis axisFunc) ([]stencil, error) {
	ndim := len(raw.Shape)
	strides := make([]int, ndim)
	stride := 1
	for d := ndim - 1; d >= 0; d-- {
		strides[d] = stride
		stride *= raw.Shape[d]
	}

	stencils := make([]stencil, len(points))
	perAxis := make([]axisWeights, ndim)
	for i, p := range points {
		if len(p) != ndim {
			return nil, fmt.Errorf("target point %d has %d coordinates, source data has %d dimensions", i, len(p), ndim)
		}
		for d := 0; d < ndim; d++ {
			perAxis[d] = axis(raw.Dims[d], p[d])
		}
		stencils[i] = combine(perAxis, strides)
	}
	return stencils, nil
}

// combine forms the tensor product of per-axis weights into flat indices.
func combine(perAxis []axisWeights, strides []int) stencil {
	s := stencil{indices: []int{0}, weights: []float64{1}}
	for d, aw := range perAxis {
		next := stencil{
			indices: make([]int, 0, len(s.indices)*len(aw.idx)),
			weights: make([]float64, 0, len(s.weights)*len(aw.w)),
		}
		for k := range s.indices {
			for j := range aw.idx {
				next.indices = append(next.indices, s.indices[k]+aw.idx[j]*strides[d])
				next.weights = append(next.weights, s.weights[k]*aw.w[j])
			}
		}
		s = next
	}
	return s
}
