package forcing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRUCache_TouchedKeySurvivesEviction(t *testing.T) {
	// GIVEN a cache of size 3 holding a, b, c
	c := NewLRUCache[string, int](3)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3)

	// WHEN a is read and d inserted
	_, err := c.Get("a")
	require.NoError(t, err)
	c.GetOrInsert("d", func() int { return 4 })

	// THEN b, the least recently used, was evicted
	assert.Equal(t, []string{"c", "a", "d"}, c.Keys())
	assert.False(t, c.Contains("b"))
	assert.Equal(t, 3, c.Len())
}

func TestLRUCache_SizeNeverExceedsMax(t *testing.T) {
	// GIVEN a cache of size 4 and an eviction counter
	c := NewLRUCache[int, int](4)
	evicted := 0
	c.OnEvict(func(int, int) { evicted++ })

	// WHEN 100 distinct keys are inserted with interleaved reads
	for i := 0; i < 100; i++ {
		c.GetOrInsert(i, func() int { return i * i })
		if i%3 == 0 {
			c.Lookup(i/2, -1)
		}
		// THEN the bound holds after every operation
		require.LessOrEqual(t, c.Len(), c.MaxSize())
	}
	assert.Equal(t, 96, evicted)
}

func TestLRUCache_GetOrInsert_ComputesOnlyOnMiss(t *testing.T) {
	c := NewLRUCache[string, int](2)
	calls := 0
	compute := func() int { calls++; return 7 }

	assert.Equal(t, 7, c.GetOrInsert("x", compute))
	assert.Equal(t, 7, c.GetOrInsert("x", compute))
	assert.Equal(t, 1, calls)
}

func TestLRUCache_GetOrInsertErr_FailureLeavesCacheUnchanged(t *testing.T) {
	// GIVEN a cache with one entry
	c := NewLRUCache[string, int](2)
	c.Put("a", 1)

	// WHEN the computation for a new key fails
	_, err := c.GetOrInsertErr("b", func() (int, error) { return 0, assert.AnError })

	// THEN the error is returned unchanged and b is not stored
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, []string{"a"}, c.Keys())
}

func TestLRUCache_GetMissReturnsErrKeyNotFound(t *testing.T) {
	c := NewLRUCache[string, int](1)
	_, err := c.Get("missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.Equal(t, 42, c.Lookup("missing", 42))
}

func TestLRUCache_PeekDoesNotTouch(t *testing.T) {
	// GIVEN a full cache of size 2 with a older than b
	c := NewLRUCache[string, int](2)
	c.Put("a", 1)
	c.Put("b", 2)

	// WHEN a is peeked and c inserted
	v, ok := c.Peek("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
	c.Put("c", 3)

	// THEN a was still the eviction victim
	assert.Equal(t, []string{"b", "c"}, c.Keys())
}

func TestLRUCache_PutReplacesAndTouches(t *testing.T) {
	c := NewLRUCache[string, int](2)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("a", 10)
	c.Put("c", 3)

	assert.Equal(t, []string{"a", "c"}, c.Keys())
	v, _ := c.Peek("a")
	assert.Equal(t, 10, v)
}

func TestLRUCache_RemoveDeleteClear(t *testing.T) {
	c := NewLRUCache[string, int](3)
	c.Put("a", 1)
	c.Put("b", 2)

	c.Remove("zzz")
	assert.Equal(t, 2, c.Len())

	require.NoError(t, c.Delete("a"))
	assert.ErrorIs(t, c.Delete("a"), ErrKeyNotFound)
	assert.Equal(t, []string{"b"}, c.Keys())

	c.Clear()
	assert.Equal(t, 0, c.Len())
	assert.Empty(t, c.Keys())

	// usable after Clear
	c.Put("z", 26)
	assert.Equal(t, []string{"z"}, c.Keys())
}

func TestLRUCache_MergeUnsupported(t *testing.T) {
	a := NewLRUCache[string, int](1)
	b := NewLRUCache[string, int](1)
	assert.ErrorIs(t, a.Merge(b), ErrMergeUnsupported)
}

func TestNewLRUCache_PanicsOnNonPositiveSize(t *testing.T) {
	assert.PanicsWithValue(t, "LRUCache: maxSize must be > 0, got 0", func() {
		NewLRUCache[string, int](0)
	})
}
