// Package loader puts a cache in front of a slow data source.
//
// Callers hand Load a key and a fetcher. A hit is served from the cache.
// On a miss, concurrent callers for the same key share one fetch, and a
// circuit breaker stops hammering a source that keeps failing.
package loader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"tagcache/internal/cache"
)

// ErrSourceUnavailable is returned while the breaker is open.
var ErrSourceUnavailable = errors.New("data source unavailable")

// Settings configures the breaker around the data source.
type Settings struct {
	Name        string
	Timeout     time.Duration // how long the breaker stays open
	MaxFailures uint32        // consecutive failures that open it
}

// Loader is a read-through wrapper over a cache.
type Loader[V any] struct {
	cache   *cache.Cache[V]
	group   singleflight.Group
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// New wraps c. A nil logger is replaced by zap.NewNop().
func New[V any](c *cache.Cache[V], s Settings, logger *zap.Logger) *Loader[V] {
	if logger == nil {
		logger = zap.NewNop()
	}

	l := &Loader[V]{cache: c, logger: logger}
	l.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    s.Name,
		Timeout: s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.MaxFailures
		},
		// Context errors belong to the caller, not the data source.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Data source circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return l
}

// Load returns the cached value for key, or fetches, stores and returns it.
//
// Concurrent misses for one key share a single fetch. The shared fetch keeps
// the first caller's values but not its cancellation, so a caller that gives
// up returns its own ctx error while the others still get the result. Fetch
// errors are returned and never cached.
func (l *Loader[V]) Load(ctx context.Context, key string, fetch cache.Fetcher[V], opts ...cache.SetOption) (V, error) {
	var zero V

	if v, ok := l.cache.Get(key); ok {
		return v, nil
	}
	if err := ctx.Err(); err != nil {
		return zero, fmt.Errorf("load %s: %w", key, err)
	}

	ch := l.group.DoChan(key, func() (interface{}, error) {
		return l.fetch(context.WithoutCancel(ctx), key, fetch, opts)
	})

	select {
	case <-ctx.Done():
		return zero, fmt.Errorf("load %s: %w", key, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			if errors.Is(res.Err, gobreaker.ErrOpenState) || errors.Is(res.Err, gobreaker.ErrTooManyRequests) {
				return zero, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, key, res.Err)
			}
			return zero, fmt.Errorf("load %s: %w", key, res.Err)
		}
		v, _ := res.Val.(V)
		return v, nil
	}
}

// fetch runs one shared fetch through the breaker and stores the result.
func (l *Loader[V]) fetch(ctx context.Context, key string, fetch cache.Fetcher[V], opts []cache.SetOption) (interface{}, error) {
	out, err := l.breaker.Execute(func() (v interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("fetcher panicked: %v", r)
			}
		}()
		val, ferr := fetch(ctx)
		return val, ferr
	})
	if err != nil {
		return nil, err
	}
	v, _ := out.(V)
	l.cache.Set(key, v, opts...)
	return v, nil
}

// Invalidate drops every cached entry carrying one of tags.
func (l *Loader[V]) Invalidate(tags ...string) int {
	n := l.cache.InvalidateByTags(tags...)
	l.logger.Debug("Invalidated loader entries",
		zap.Strings("tags", tags),
		zap.Int("count", n),
	)
	return n
}

// Forget drops a single key.
func (l *Loader[V]) Forget(key string) bool {
	return l.cache.Delete(key)
}
