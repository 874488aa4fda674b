package cache

import (
	"time"

	"go.uber.org/zap"
)

// Option configures a Cache at construction.
type Option func(*options)

type options struct {
	logger          *zap.Logger
	recorder        Recorder
	warmConcurrency int
}

// WithLogger sets the logger. A nil logger is replaced by zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithRecorder injects a metrics sink that mirrors cache events.
func WithRecorder(r Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// WithWarmConcurrency caps how many Warm fetchers run at once.
// n <= 0 means no limit.
func WithWarmConcurrency(n int) Option {
	return func(o *options) { o.warmConcurrency = n }
}

// SetOption configures a single Set call.
type SetOption func(*setOptions)

type setOptions struct {
	ttl  time.Duration
	tags []string
}

// WithTTL overrides the default TTL. It is applied verbatim: a zero or
// negative ttl stores an entry that is already expired.
func WithTTL(ttl time.Duration) SetOption {
	return func(o *setOptions) { o.ttl = ttl }
}

// WithTags labels the entry for InvalidateByTags. Tags replace any the key
// carried before.
func WithTags(tags ...string) SetOption {
	return func(o *setOptions) { o.tags = tags }
}
