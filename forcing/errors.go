package forcing

import (
	"errors"
	"fmt"
	"time"
)

// ErrKeyNotFound is returned by LRUCache.Get and LRUCache.Delete when the key is absent.
var ErrKeyNotFound = errors.New("key not found in cache")

// ErrMergeUnsupported is returned by LRUCache.Merge. A cache belongs to exactly one
// data source, so merging two caches would mix keys that mean different things.
var ErrMergeUnsupported = errors.New("merging LRU caches is not supported")

// DomainError reports a query outside the range an input or provider can answer:
// a time outside [min, max] under the Throw policy, or a date that is not available.
type DomainError struct {
	Query string // offending time or date, formatted
	Valid string // description of what would have been accepted
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s is outside the valid domain %s", e.Query, e.Valid)
}

func timeOutOfRange(t, lo, hi float64) *DomainError {
	return &DomainError{
		Query: fmt.Sprintf("time %g", t),
		Valid: fmt.Sprintf("[%g, %g]", lo, hi),
	}
}

func dateUnavailable(date time.Time, dates []time.Time) *DomainError {
	valid := "(no dates available)"
	if len(dates) > 0 {
		valid = fmt.Sprintf("of %d available dates in [%s, %s]", len(dates),
			dates[0].Format(time.RFC3339), dates[len(dates)-1].Format(time.RFC3339))
	}
	return &DomainError{Query: "date " + date.Format(time.RFC3339), Valid: valid}
}

// ConfigurationError reports an invalid combination of constructor arguments.
// It is only ever returned at construction time.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "invalid configuration: " + e.Reason
}

func configErrorf(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}
