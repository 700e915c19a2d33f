package forcing

import "fmt"

// lruEntry is a node of the recency list. The list runs from the least recently
// used entry (head) to the most recently used one (tail).
type lruEntry[K comparable, V any] struct {
	key   K
	value V
	prev  *lruEntry[K, V]
	next  *lruEntry[K, V]
}

// LRUCache is a bounded key/value store that evicts the least recently used entry
// once an insertion pushes it over MaxSize.
//
// LRUCache is not safe for concurrent use. It is owned by a single SnapshotProvider
// and accessed from the goroutine that owns that provider.
type LRUCache[K comparable, V any] struct {
	maxSize int
	entries map[K]*lruEntry[K, V]
	head    *lruEntry[K, V] // least recently used
	tail    *lruEntry[K, V] // most recently used
	onEvict func(key K, value V)
}

// NewLRUCache creates an empty cache holding at most maxSize entries.
// Panics if maxSize < 1.
func NewLRUCache[K comparable, V any](maxSize int) *LRUCache[K, V] {
	if maxSize < 1 {
		panic(fmt.Sprintf("LRUCache: maxSize must be > 0, got %d", maxSize))
	}
	return &LRUCache[K, V]{
		maxSize: maxSize,
		entries: make(map[K]*lruEntry[K, V]),
	}
}

// OnEvict registers a callback invoked for every entry dropped by capacity eviction.
// Explicit Remove, Delete and Clear do not trigger it.
func (c *LRUCache[K, V]) OnEvict(fn func(key K, value V)) {
	c.onEvict = fn
}

// MaxSize returns the capacity of the cache.
func (c *LRUCache[K, V]) MaxSize() int { return c.maxSize }

// Len returns the number of stored entries.
func (c *LRUCache[K, V]) Len() int { return len(c.entries) }

// Keys returns the stored keys from least to most recently used.
func (c *LRUCache[K, V]) Keys() []K {
	keys := make([]K, 0, len(c.entries))
	for e := c.head; e != nil; e = e.next {
		keys = append(keys, e.key)
	}
	return keys
}

// Contains reports whether key is stored, without touching its recency.
func (c *LRUCache[K, V]) Contains(key K) bool {
	_, ok := c.entries[key]
	return ok
}

// Peek returns the value for key without touching its recency.
func (c *LRUCache[K, V]) Peek(key K) (V, bool) {
	if e, ok := c.entries[key]; ok {
		return e.value, true
	}
	var zero V
	return zero, false
}

// Get returns the value for key and marks it most recently used.
// Returns ErrKeyNotFound on a miss.
func (c *LRUCache[K, V]) Get(key K) (V, error) {
	e, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, fmt.Errorf("%w: %v", ErrKeyNotFound, key)
	}
	c.touch(e)
	return e.value, nil
}

// Lookup returns the value for key, or def on a miss. A hit marks key most recently used.
func (c *LRUCache[K, V]) Lookup(key K, def V) V {
	e, ok := c.entries[key]
	if !ok {
		return def
	}
	c.touch(e)
	return e.value
}

// GetOrInsert returns the value stored for key. On a miss it stores compute() and
// evicts the least recently used entry if the cache grew past MaxSize.
// compute is called at most once, and only on a miss.
func (c *LRUCache[K, V]) GetOrInsert(key K, compute func() V) V {
	v, _ := c.GetOrInsertErr(key, func() (V, error) { return compute(), nil })
	return v
}

// GetOrInsertErr is GetOrInsert for computations that can fail. A failed computation
// leaves the cache unchanged and its error is returned as is.
func (c *LRUCache[K, V]) GetOrInsertErr(key K, compute func() (V, error)) (V, error) {
	if e, ok := c.entries[key]; ok {
		c.touch(e)
		return e.value, nil
	}
	v, err := compute()
	if err != nil {
		var zero V
		return zero, err
	}
	c.insert(key, v)
	return v, nil
}

// Put stores value under key, replacing any previous value, and marks it most recently used.
func (c *LRUCache[K, V]) Put(key K, value V) {
	if e, ok := c.entries[key]; ok {
		e.value = value
		c.touch(e)
		return
	}
	c.insert(key, value)
}

// Remove drops key if present. Removing an absent key is a no-op.
func (c *LRUCache[K, V]) Remove(key K) {
	if e, ok := c.entries[key]; ok {
		c.unlink(e)
		delete(c.entries, key)
	}
}

// Delete drops key and returns ErrKeyNotFound if it was not present.
func (c *LRUCache[K, V]) Delete(key K) error {
	if _, ok := c.entries[key]; !ok {
		return fmt.Errorf("%w: %v", ErrKeyNotFound, key)
	}
	c.Remove(key)
	return nil
}

// Clear drops every entry.
func (c *LRUCache[K, V]) Clear() {
	c.entries = make(map[K]*lruEntry[K, V])
	c.head = nil
	c.tail = nil
}

// Merge always fails with ErrMergeUnsupported.
func (c *LRUCache[K, V]) Merge(_ *LRUCache[K, V]) error {
	return ErrMergeUnsupported
}

func (c *LRUCache[K, V]) insert(key K, value V) {
	e := &lruEntry[K, V]{key: key, value: value}
	c.entries[key] = e
	c.appendToTail(e)
	if len(c.entries) > c.maxSize {
		c.evictHead()
	}
	if len(c.entries) > c.maxSize {
		panic(fmt.Sprintf("LRUCache: size %d exceeds maxSize %d after eviction", len(c.entries), c.maxSize))
	}
}

func (c *LRUCache[K, V]) evictHead() {
	victim := c.head
	c.unlink(victim)
	delete(c.entries, victim.key)
	if c.onEvict != nil {
		c.onEvict(victim.key, victim.value)
	}
}

// touch moves e to the tail (most recently used).
func (c *LRUCache[K, V]) touch(e *lruEntry[K, V]) {
	if c.tail == e {
		return
	}
	c.unlink(e)
	c.appendToTail(e)
}

func (c *LRUCache[K, V]) appendToTail(e *lruEntry[K, V]) {
	e.next = nil
	// either both head and tail are nil, or neither is
	if c.tail != nil {
		c.tail.next = e
		e.prev = c.tail
		c.tail = e
	} else {
		c.head = e
		c.tail = e
		e.prev = nil
	}
}

func (c *LRUCache[K, V]) unlink(e *lruEntry[K, V]) {
	if e.prev != nil {
		// a - e - b => a - b
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
	e.prev = nil
	e.next = nil
}
