package forcing

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// SourceRegistry shares one opened DataSource per path among every provider that
// reads from it. Each Acquire hands out a handle; the underlying source is closed when
// the last handle is closed.
//
// The registry is safe for concurrent use. The sources it hands out are not.
type SourceRegistry struct {
	mu      sync.Mutex
	open    func(path string) (DataSource, error)
	entries map[string]*sharedSource
}

type sharedSource struct {
	src  DataSource
	refs int
}

// NewSourceRegistry creates a registry that opens sources with open.
// Panics if open is nil.
func NewSourceRegistry(open func(path string) (DataSource, error)) *SourceRegistry {
	if open == nil {
		panic("SourceRegistry: open func must not be nil")
	}
	return &SourceRegistry{open: open, entries: make(map[string]*sharedSource)}
}

// Acquire returns a handle on the source at path, opening it on first use.
func (r *SourceRegistry) Acquire(path string) (*SourceHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[path]
	if !ok {
		src, err := r.open(path)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", path, err)
		}
		entry = &sharedSource{src: src}
		r.entries[path] = entry
		logrus.Debugf("opened data source %s", path)
	}
	entry.refs++
	return &SourceHandle{registry: r, path: path, src: entry.src}, nil
}

// RefCount returns the number of open handles on path.
func (r *SourceRegistry) RefCount(path string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[path]; ok {
		return e.refs
	}
	return 0
}

// Len returns the number of distinct open sources.
func (r *SourceRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *SourceRegistry) release(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[path]
	if !ok {
		return nil
	}
	entry.refs--
	if entry.refs > 0 {
		return nil
	}
	delete(r.entries, path)
	logrus.Debugf("closing data source %s", path)
	if err := entry.src.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return nil
}

// SourceHandle is one reference on a shared DataSource. It implements DataSource;
// Close drops this reference and is idempotent.
type SourceHandle struct {
	registry *SourceRegistry
	path     string
	src      DataSource
	closed   bool
}

// Path returns the path the handle was acquired for.
func (h *SourceHandle) Path() string { return h.path }

func (h *SourceHandle) AvailableDates() []time.Time {
	return h.src.AvailableDates()
}

func (h *SourceHandle) Read(variable string, date time.Time) (RawArray, error) {
	if h.closed {
		return RawArray{}, fmt.Errorf("reading %s from %s: handle is closed", variable, h.path)
	}
	return h.src.Read(variable, date)
}

func (h *SourceHandle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	return h.registry.release(h.path)
}
