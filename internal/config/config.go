// Package config loads tagcache settings.
//
// Sources, lowest priority first:
//  1. Defaults (in code)
//  2. A YAML file, when a path is given
//  3. TAGCACHE_* environment variables
//
// The merged result is validated before it is returned.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the tagcache binary.
type Config struct {
	Cache   Cache   `yaml:"cache"`
	Logging Logging `yaml:"logging"`
	Admin   Admin   `yaml:"admin"`
	Loader  Loader  `yaml:"loader"`
}

// Cache mirrors cache.Config plus warm-up tuning.
type Cache struct {
	MaxSize         int           `yaml:"max_size" validate:"gte=0"`
	DefaultTTL      time.Duration `yaml:"default_ttl" validate:"gt=0"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" validate:"gte=0"`
	EnableStats     bool          `yaml:"enable_stats"`
	WarmConcurrency int           `yaml:"warm_concurrency" validate:"gte=0"`
}

type Logging struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json console"`
}

type Admin struct {
	Addr        string `yaml:"addr" validate:"required"`
	MetricsPath string `yaml:"metrics_path" validate:"startswith=/"`
	Namespace   string `yaml:"namespace" validate:"required"`
}

// Loader tunes the circuit breaker guarding the backing data source.
type Loader struct {
	BreakerTimeout  time.Duration `yaml:"breaker_timeout" validate:"gt=0"`
	BreakerFailures uint32        `yaml:"breaker_failures" validate:"gt=0"`
}

var ErrInvalid = errors.New("invalid configuration")

var validate = validator.New()

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Cache: Cache{
			MaxSize:         1000,
			DefaultTTL:      5 * time.Minute,
			CleanupInterval: time.Minute,
			EnableStats:     true,
			WarmConcurrency: 8,
		},
		Logging: Logging{
			Level:  "info",
			Format: "json",
		},
		Admin: Admin{
			Addr:        ":8080",
			MetricsPath: "/metrics",
			Namespace:   "tagcache",
		},
		Loader: Loader{
			BreakerTimeout:  30 * time.Second,
			BreakerFailures: 5,
		},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := loadEnvironment(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

func loadFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// loadEnvironment overlays TAGCACHE_* variables. Unparseable values are errors.
func loadEnvironment(cfg *Config) error {
	var errs []error

	envInt("TAGCACHE_MAX_SIZE", &cfg.Cache.MaxSize, &errs)
	envDuration("TAGCACHE_DEFAULT_TTL", &cfg.Cache.DefaultTTL, &errs)
	envDuration("TAGCACHE_CLEANUP_INTERVAL", &cfg.Cache.CleanupInterval, &errs)
	envBool("TAGCACHE_ENABLE_STATS", &cfg.Cache.EnableStats, &errs)
	envInt("TAGCACHE_WARM_CONCURRENCY", &cfg.Cache.WarmConcurrency, &errs)
	envString("TAGCACHE_LOG_LEVEL", &cfg.Logging.Level)
	envString("TAGCACHE_LOG_FORMAT", &cfg.Logging.Format)
	envString("TAGCACHE_ADMIN_ADDR", &cfg.Admin.Addr)

	return errors.Join(errs...)
}

func envString(name string, dst *string) {
	if val := os.Getenv(name); val != "" {
		*dst = val
	}
}

func envInt(name string, dst *int, errs *[]error) {
	val := os.Getenv(name)
	if val == "" {
		return
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", name, err))
		return
	}
	*dst = n
}

func envBool(name string, dst *bool, errs *[]error) {
	val := os.Getenv(name)
	if val == "" {
		return
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", name, err))
		return
	}
	*dst = b
}

func envDuration(name string, dst *time.Duration, errs *[]error) {
	val := os.Getenv(name)
	if val == "" {
		return
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", name, err))
		return
	}
	*dst = d
}
