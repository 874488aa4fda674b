package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tagcache/internal/cache"
)

func TestRecorder_CountsCacheEvents(t *testing.T) {
	col := NewCollector("test")

	c, err := cache.New[string](cache.Config{MaxSize: 1, DefaultTTL: time.Hour},
		cache.WithRecorder(col.Recorder("pages")))
	require.NoError(t, err)
	defer c.Close()

	c.Set("a", "A")
	c.Set("b", "B") // evicts a
	c.Get("b")
	c.Get("a")
	c.Set("c", "C", cache.WithTTL(-time.Second))
	c.Get("c")

	assert.Equal(t, 1.0, testutil.ToFloat64(col.requests.WithLabelValues("pages", "hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(col.requests.WithLabelValues("pages", "miss")))
	assert.Equal(t, 2.0, testutil.ToFloat64(col.evictions.WithLabelValues("pages")))
	assert.Equal(t, 1.0, testutil.ToFloat64(col.expirations.WithLabelValues("pages")))
	assert.Equal(t, 0.0, testutil.ToFloat64(col.entries.WithLabelValues("pages")))
}

func TestCollector_SeparateCachesAndRegistries(t *testing.T) {
	a := NewCollector("test")
	b := NewCollector("test")
	assert.NotSame(t, a.Registry(), b.Registry())

	a.Recorder("pages").Eviction()
	a.Recorder("communities").Eviction()
	a.Recorder("communities").Eviction()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.evictions.WithLabelValues("pages")))
	assert.Equal(t, 2.0, testutil.ToFloat64(a.evictions.WithLabelValues("communities")))
	assert.Equal(t, 0, testutil.CollectAndCount(b.evictions))
}
