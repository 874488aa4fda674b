package cache

import (
	"time"

	"go.uber.org/zap"
)

// expiryLoop periodically scans and removes expired entries.
//
// A ticker-driven full scan avoids per-entry timers. The cost is O(n) per tick.
func (c *Cache[V]) expiryLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cleanupEvery)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case now := <-ticker.C:
			c.mu.Lock()
			removed := c.deleteExpiredLocked(now)
			c.mu.Unlock()

			if removed > 0 {
				c.logger.Debug("Swept expired cache entries",
					zap.Int("count", removed),
				)
			}
		}
	}
}

// deleteExpiredLocked removes all expired entries and counts each as an expiration.
func (c *Cache[V]) deleteExpiredLocked(now time.Time) int {
	removed := 0
	for _, el := range c.items {
		if el.Value.(*entry[V]).expired(now) {
			c.deleteLocked(el)
			removed++
		}
	}
	if removed > 0 {
		c.expiredLocked(removed)
		c.recorder.Entries(len(c.items))
	}
	return removed
}
