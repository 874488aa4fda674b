package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, cfg Config, opts ...Option) *Cache[string] {
	t.Helper()
	c, err := New[string](cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func defaultConfig(maxSize int) Config {
	return Config{
		MaxSize:     maxSize,
		DefaultTTL:  time.Hour,
		EnableStats: true,
	}
}

func TestNew_RejectsNegativeValues(t *testing.T) {
	_, err := New[string](Config{MaxSize: -1, DefaultTTL: time.Minute})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New[string](Config{MaxSize: 1, DefaultTTL: time.Minute, CleanupInterval: -time.Second})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNew_AssignsID(t *testing.T) {
	a := newTestCache(t, defaultConfig(1))
	b := newTestCache(t, defaultConfig(1))
	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestLRUEviction(t *testing.T) {
	c := newTestCache(t, defaultConfig(3))

	c.Set("a", "A")
	c.Set("b", "B")
	c.Set("c", "C")

	// Touch a so b becomes LRU.
	_, ok := c.Get("a")
	require.True(t, ok)

	c.Set("d", "D")

	_, ok = c.Get("b")
	assert.False(t, ok, "expected b to be evicted")
	for _, k := range []string{"a", "c", "d"} {
		_, ok := c.Get(k)
		assert.True(t, ok, "expected %s to remain", k)
	}
	assert.Equal(t, uint64(1), c.Stats().EvictionCount)
}

func TestSet_OverwriteAtCapacityDoesNotEvict(t *testing.T) {
	c := newTestCache(t, defaultConfig(2))

	c.Set("a", "A")
	c.Set("b", "B")
	c.Set("a", "A2")

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, uint64(0), c.Stats().EvictionCount)

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "A2", v)
	_, ok = c.Get("b")
	assert.True(t, ok)
}

func TestSet_OverwriteRefreshesRecency(t *testing.T) {
	c := newTestCache(t, defaultConfig(2))

	c.Set("a", "A")
	c.Set("b", "B")
	c.Set("a", "A2") // a becomes MRU, b is LRU
	c.Set("c", "C")

	assert.False(t, c.Has("b"))
	assert.True(t, c.Has("a"))
	assert.Equal(t, []string{"c", "a"}, c.Keys())
}

func TestCapacityInvariant(t *testing.T) {
	c := newTestCache(t, defaultConfig(5))

	for i := 0; i < 50; i++ {
		c.Set(fmt.Sprintf("k%d", i%17), "v")
		require.LessOrEqual(t, c.Len(), 5)
	}
}

func TestZeroCapacityStoresNothing(t *testing.T) {
	c := newTestCache(t, defaultConfig(0))

	c.Set("k", "v")
	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, uint64(0), c.Stats().EvictionCount)
}

func TestTTL_LazyExpirationOnGet(t *testing.T) {
	c := newTestCache(t, defaultConfig(10))

	c.Set("k", "v", WithTTL(50*time.Millisecond))

	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)

	time.Sleep(80 * time.Millisecond)

	_, ok = c.Get("k")
	assert.False(t, ok, "expected k to be expired and removed on get")
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, uint64(1), c.Stats().ExpiredCount)
}

func TestSet_NegativeTTLIsImmediatelyExpired(t *testing.T) {
	c := newTestCache(t, defaultConfig(10))

	c.Set("k", "v", WithTTL(-time.Second))

	// Stored structurally until something reads it.
	assert.Equal(t, 1, c.Len())

	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, uint64(1), c.Stats().ExpiredCount)
}

func TestSet_UsesDefaultTTL(t *testing.T) {
	c := newTestCache(t, Config{MaxSize: 10, DefaultTTL: 30 * time.Millisecond, EnableStats: true})

	c.Set("k", "v")
	assert.True(t, c.Has("k"))

	time.Sleep(60 * time.Millisecond)
	assert.False(t, c.Has("k"))
}

func TestHas_DoesNotTouchRecencyOrHitRate(t *testing.T) {
	c := newTestCache(t, defaultConfig(2))

	c.Set("a", "A")
	c.Set("b", "B")

	assert.True(t, c.Has("a"))
	assert.False(t, c.Has("missing"))

	// a is still LRU because Has doesn't refresh it.
	c.Set("c", "C")
	assert.False(t, c.Has("a"))

	s := c.Stats()
	assert.Equal(t, uint64(0), s.Hits)
	assert.Equal(t, uint64(0), s.Misses)
}

func TestHas_RemovesExpiredEntry(t *testing.T) {
	c := newTestCache(t, defaultConfig(10))

	c.Set("k", "v", WithTTL(-time.Millisecond))

	assert.False(t, c.Has("k"))
	assert.Equal(t, 0, c.Len())
	s := c.Stats()
	assert.Equal(t, uint64(1), s.ExpiredCount)
	assert.Equal(t, uint64(0), s.Misses)
}

func TestDelete(t *testing.T) {
	c := newTestCache(t, defaultConfig(10))

	c.Set("k", "v", WithTags("t"))

	assert.True(t, c.Delete("k"))
	assert.False(t, c.Delete("k"))
	assert.False(t, c.Has("k"))

	// The tag index forgets deleted keys.
	assert.Equal(t, 0, c.InvalidateByTags("t"))
}

func TestClear_KeepsStats(t *testing.T) {
	c := newTestCache(t, defaultConfig(10))

	c.Set("a", "A")
	c.Set("b", "B", WithTags("t"))
	c.Get("a")
	c.Get("missing")

	c.Clear()

	assert.Equal(t, 0, c.Len())
	assert.Empty(t, c.Keys())
	assert.Equal(t, 0, c.InvalidateByTags("t"))

	s := c.Stats()
	assert.Equal(t, uint64(1), s.Hits)
	assert.Equal(t, uint64(1), s.Misses)

	c.Set("a", "A")
	_, ok := c.Get("a")
	assert.True(t, ok)
}

func TestKeys_SnapshotIncludesExpired(t *testing.T) {
	c := newTestCache(t, defaultConfig(10))

	c.Set("a", "A")
	c.Set("b", "B", WithTTL(-time.Second))
	c.Set("c", "C")

	keys := c.Keys()
	assert.Equal(t, []string{"c", "b", "a"}, keys)

	keys[0] = "mutated"
	assert.Equal(t, "c", c.Keys()[0])
}

func TestInvalidateByTags_MatchesAnyTag(t *testing.T) {
	c := newTestCache(t, defaultConfig(10))

	c.Set("a", "A", WithTags("t1", "t2"))
	c.Set("b", "B", WithTags("t2", "t3"))
	c.Set("c", "C", WithTags("t3"))

	assert.Equal(t, 2, c.InvalidateByTags("t2"))

	assert.False(t, c.Has("a"))
	assert.False(t, c.Has("b"))
	v, ok := c.Get("c")
	require.True(t, ok)
	assert.Equal(t, "C", v)
}

func TestInvalidateByTags_SeveralTagsCountEachEntryOnce(t *testing.T) {
	c := newTestCache(t, defaultConfig(10))

	c.Set("a", "A", WithTags("t1", "t2"))
	c.Set("b", "B", WithTags("t2"))
	c.Set("c", "C")

	assert.Equal(t, 2, c.InvalidateByTags("t1", "t2", "unknown"))
	assert.Equal(t, []string{"c"}, c.Keys())
}

func TestInvalidateByTags_EmptyIsNoop(t *testing.T) {
	c := newTestCache(t, defaultConfig(10))

	c.Set("a", "A", WithTags("t1"))
	c.Set("b", "B")

	assert.Equal(t, 0, c.InvalidateByTags())
	assert.Equal(t, 2, c.Len())
}

func TestSet_ReplacesTagSet(t *testing.T) {
	c := newTestCache(t, defaultConfig(10))

	c.Set("a", "A", WithTags("old"))
	c.Set("a", "A2", WithTags("new"))

	assert.Equal(t, 0, c.InvalidateByTags("old"))
	assert.True(t, c.Has("a"))
	assert.Equal(t, 1, c.InvalidateByTags("new"))

	c.Set("b", "B", WithTags("x"))
	c.Set("b", "B2")
	assert.Equal(t, 0, c.InvalidateByTags("x"))
}

func TestEvictionForgetsTags(t *testing.T) {
	c := newTestCache(t, defaultConfig(1))

	c.Set("a", "A", WithTags("t"))
	c.Set("b", "B")

	assert.Equal(t, 0, c.InvalidateByTags("t"))
	assert.Equal(t, []string{"b"}, c.Keys())
}

func TestGet_ReturnsStoredValueWithoutCopy(t *testing.T) {
	c, err := New[[]string](defaultConfig(1))
	require.NoError(t, err)
	defer c.Close()

	c.Set("k", []string{"x"})
	v, _ := c.Get("k")
	v[0] = "y"

	again, _ := c.Get("k")
	assert.Equal(t, "y", again[0])
}

func TestConcurrentAccessKeepsInvariants(t *testing.T) {
	const maxSize = 8
	c := newTestCache(t, Config{
		MaxSize:         maxSize,
		DefaultTTL:      5 * time.Millisecond,
		CleanupInterval: time.Millisecond,
		EnableStats:     true,
	})

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				key := fmt.Sprintf("k%d", (g*31+i)%20)
				switch i % 7 {
				case 0:
					c.Set(key, "v", WithTags(fmt.Sprintf("t%d", i%3)))
				case 1:
					c.Get(key)
				case 2:
					c.Has(key)
				case 3:
					c.InvalidateByTags(fmt.Sprintf("t%d", g%3))
				case 4:
					c.Stats()
				case 5:
					c.Keys()
				case 6:
					c.Warm(context.Background(), []WarmEntry[string]{
						{Key: key, Fetch: fetchValue("w"), Tags: []string{"warm"}},
					})
				}
				assert.LessOrEqual(t, c.Len(), maxSize)
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), maxSize)
	assert.Len(t, c.Keys(), c.Len())
}
