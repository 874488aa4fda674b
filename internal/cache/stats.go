package cache

import (
	"encoding/json"
	"time"
)

// fallbackValueSize is charged for values encoding/json cannot encode.
const fallbackValueSize = 64

// counters accumulate for the lifetime of a Cache. Clear keeps them;
// ResetStats zeroes them.
type counters struct {
	hits          uint64
	misses        uint64
	evictions     uint64
	expirations   uint64
	totalResponse time.Duration
}

// Stats is a point-in-time snapshot of cache usage.
//
// MemoryUsage is an estimate: key and tag lengths plus the JSON-encoded size
// of each value, measured when the value is Set. Later mutation of a stored
// pointer, map or slice is not reflected. It is for dashboards only.
type Stats struct {
	Hits            uint64        `json:"hits"`
	Misses          uint64        `json:"misses"`
	HitRate         float64       `json:"hitRate"`
	MissRate        float64       `json:"missRate"`
	TotalEntries    int           `json:"totalEntries"`
	EvictionCount   uint64        `json:"evictionCount"`
	ExpiredCount    uint64        `json:"expiredCount"`
	MemoryUsage     int64         `json:"memoryUsage"`
	AvgResponseTime time.Duration `json:"avgResponseTimeNs"`
}

// Stats returns a snapshot of the counters plus the current structural size.
func (c *Cache[V]) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Stats{
		Hits:          c.stats.hits,
		Misses:        c.stats.misses,
		TotalEntries:  len(c.items),
		EvictionCount: c.stats.evictions,
		ExpiredCount:  c.stats.expirations,
		MemoryUsage:   c.memory,
	}

	if requests := c.stats.hits + c.stats.misses; requests > 0 {
		s.HitRate = float64(c.stats.hits) / float64(requests)
		s.MissRate = 1 - s.HitRate
		s.AvgResponseTime = c.stats.totalResponse / time.Duration(requests)
	}
	return s
}

// ResetStats zeroes the accumulated counters.
func (c *Cache[V]) ResetStats() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats = counters{}
}

func (c *Cache[V]) hitLocked(start time.Time) {
	elapsed := time.Since(start)
	c.recorder.Hit(elapsed)
	if !c.enableStats {
		return
	}
	c.stats.hits++
	c.stats.totalResponse += elapsed
}

func (c *Cache[V]) missLocked(start time.Time) {
	elapsed := time.Since(start)
	c.recorder.Miss(elapsed)
	if !c.enableStats {
		return
	}
	c.stats.misses++
	c.stats.totalResponse += elapsed
}

func (c *Cache[V]) evictedLocked() {
	c.recorder.Eviction()
	if c.enableStats {
		c.stats.evictions++
	}
}

func (c *Cache[V]) expiredLocked(n int) {
	c.recorder.Expiration(n)
	if c.enableStats {
		c.stats.expirations += uint64(n)
	}
}

func estimateSize[V any](key string, value V, tags map[string]struct{}) int64 {
	size := int64(len(key))
	for tag := range tags {
		size += int64(len(tag))
	}
	b, err := json.Marshal(value)
	if err != nil {
		return size + fallbackValueSize
	}
	return size + int64(len(b))
}
