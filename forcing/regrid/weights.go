package regrid

import (
	"fmt"
	"strings"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/simforcing/forcing/forcing"
)

// weightCache memoizes stencils by grid layout: the coordinate axes (lengths and end
// points) plus the array shape. Entries never expire; a run only sees a few layouts.
type weightCache struct {
	c *cache.Cache
}

func newWeightCache() *weightCache {
	return &weightCache{c: cache.New(cache.NoExpiration, 0)}
}

func layoutKey(raw forcing.RawArray) string {
	var b strings.Builder
	fmt.Fprintf(&b, "shape=%v", raw.Shape)
	for i, d := range raw.Dims {
		if len(d) == 0 {
			fmt.Fprintf(&b, "|%d:empty", i)
			continue
		}
		fmt.Fprintf(&b, "|%d:%d:%g:%g", i, len(d), d[0], d[len(d)-1])
	}
	return b.String()
}

func (w *weightCache) getOrCompute(raw forcing.RawArray, compute func() ([]stencil, error)) ([]stencil, error) {
	if err := raw.Validate(); err != nil {
		return nil, err
	}
	key := layoutKey(raw)
	if v, ok := w.c.Get(key); ok {
		return v.([]stencil), nil
	}
	stencils, err := compute()
	if err != nil {
		return nil, err
	}
	w.c.Set(key, stencils, cache.NoExpiration)
	logrus.Debugf("computed resampling weights for layout %s", key)
	return stencils, nil
}

// Len returns the number of cached layouts.
func (w *weightCache) Len() int {
	return w.c.ItemCount()
}
