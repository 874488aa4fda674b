package cache

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Fetcher produces the value for one key, typically from a database.
type Fetcher[V any] func(ctx context.Context) (V, error)

// WarmEntry describes one key to populate.
//
// A zero TTL means the cache's DefaultTTL. Unlike Set, Warm has no way to
// request an already-expired entry.
type WarmEntry[V any] struct {
	Key   string
	Fetch Fetcher[V]
	TTL   time.Duration
	Tags  []string
}

// WarmResult reports how a Warm batch went. Failed is sorted.
type WarmResult struct {
	Loaded int
	Failed []string
}

// Warm runs every fetcher and stores each successful result.
//
// Fetchers run concurrently (bounded by WithWarmConcurrency) and keys are
// stored in completion order. A fetcher that returns an error or panics only
// leaves its own key unset; Warm itself never fails. Eviction applies to
// warmed keys exactly as it does to Set.
func (c *Cache[V]) Warm(ctx context.Context, entries []WarmEntry[V]) WarmResult {
	var (
		mu  sync.Mutex
		res WarmResult
	)

	var g errgroup.Group
	if c.warmConcurrency > 0 {
		g.SetLimit(c.warmConcurrency)
	}

	for _, we := range entries {
		g.Go(func() error {
			err := c.fetch(ctx, we)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed = append(res.Failed, we.Key)
				c.logger.Warn("Cache warm fetch failed",
					zap.String("key", we.Key),
					zap.Error(err),
				)
				return nil
			}
			res.Loaded++
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(res.Failed)
	c.logger.Info("Cache warmed",
		zap.Int("loaded", res.Loaded),
		zap.Int("failed", len(res.Failed)),
	)
	return res
}

// fetch runs one fetcher and stores its value. Panics become errors.
func (c *Cache[V]) fetch(ctx context.Context, we WarmEntry[V]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fetcher panicked: %v", r)
		}
	}()

	if err = ctx.Err(); err != nil {
		return err
	}
	if we.Fetch == nil {
		return fmt.Errorf("no fetcher for key %q", we.Key)
	}

	value, err := we.Fetch(ctx)
	if err != nil {
		return err
	}

	opts := []SetOption{WithTags(we.Tags...)}
	if we.TTL != 0 {
		opts = append(opts, WithTTL(we.TTL))
	}
	c.Set(we.Key, value, opts...)
	return nil
}
