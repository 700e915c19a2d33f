// register.go wires the regrid constructors into forcing.NewResamplerFunc. Importing
// this package (usually for side effects) makes the resamplers selectable by name.
package regrid

import (
	"fmt"

	"github.com/simforcing/forcing/forcing"
)

func init() {
	forcing.NewResamplerFunc = New
}

// New returns the resampler registered under kind: "multilinear" (default) or "nearest".
func New(kind string, points [][]float64) (forcing.Resampler, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("resampler needs at least one target point")
	}
	switch kind {
	case "", "multilinear", "linear":
		return NewMultilinear(points), nil
	case "nearest":
		return NewNearest(points), nil
	}
	return nil, fmt.Errorf("unknown regridder type %q; valid: multilinear, nearest", kind)
}
