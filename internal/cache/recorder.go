package cache

import "time"

// Recorder receives cache events as they happen. It is owned by whoever
// composes caches (see internal/metrics) and is called with the cache lock
// held, so implementations must be fast and must not call back into the cache.
type Recorder interface {
	Hit(elapsed time.Duration)
	Miss(elapsed time.Duration)
	Eviction()
	Expiration(n int)
	Entries(n int)
}

// NopRecorder discards every event.
type NopRecorder struct{}

func (NopRecorder) Hit(time.Duration) {}
func (NopRecorder) Miss(time.Duration) {}
func (NopRecorder) Eviction() {}
func (NopRecorder) Expiration(int) {}
func (NopRecorder) Entries(int) {}
