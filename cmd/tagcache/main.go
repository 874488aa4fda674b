package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"tagcache/internal/admin"
	"tagcache/internal/cache"
	"tagcache/internal/config"
	"tagcache/internal/loader"
	"tagcache/internal/logging"
	"tagcache/internal/metrics"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	// Signal-aware context is the root of ownership for long-lived background work.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, level, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if configPath != "" {
		w, err := config.NewWatcher(configPath, logger)
		if err != nil {
			return err
		}
		defer w.Close()
		w.OnChange(func(next *config.Config) {
			if err := logging.SetLevel(level, next.Logging.Level); err != nil {
				logger.Warn("Ignoring log level from reloaded config", zap.Error(err))
			}
		})
	}

	collector := metrics.NewCollector(cfg.Admin.Namespace)

	pages, err := cache.New[PageMeta](cache.Config{
		MaxSize:         cfg.Cache.MaxSize,
		DefaultTTL:      cfg.Cache.DefaultTTL,
		CleanupInterval: cfg.Cache.CleanupInterval,
		EnableStats:     cfg.Cache.EnableStats,
	},
		cache.WithLogger(logger.Named("pages")),
		cache.WithRecorder(collector.Recorder("pages")),
		cache.WithWarmConcurrency(cfg.Cache.WarmConcurrency),
	)
	if err != nil {
		return err
	}
	defer func() {
		// Close is idempotent; safe to call in defer.
		if err := pages.Close(); err != nil {
			logger.Warn("Cache close failed", zap.Error(err))
		}
	}()

	logger.Info("tagcache starting",
		zap.String("cache_id", pages.ID()),
		zap.Int("max_size", cfg.Cache.MaxSize),
		zap.Duration("default_ttl", cfg.Cache.DefaultTTL),
		zap.Duration("cleanup_interval", cfg.Cache.CleanupInterval),
	)

	src := catalog{latency: 20 * time.Millisecond}
	res := pages.Warm(ctx, src.warmEntries())
	if len(res.Failed) > 0 {
		logger.Warn("Some pages were not warmed", zap.Strings("keys", res.Failed))
	}

	pageLoader := loader.New(pages, loader.Settings{
		Name:        "page-metadata",
		Timeout:     cfg.Loader.BreakerTimeout,
		MaxFailures: cfg.Loader.BreakerFailures,
	}, logger.Named("loader"))

	for _, slug := range []string{"home", "insights", "luxury"} {
		meta, err := pageLoader.Load(ctx, "page-meta:"+slug, src.page(slug), cache.WithTags("pages"))
		if err != nil {
			logger.Warn("Page metadata unavailable", zap.String("slug", slug), zap.Error(err))
			continue
		}
		logger.Debug("Page metadata ready", zap.String("slug", slug), zap.String("title", meta.Title))
	}

	srv := &http.Server{
		Addr: cfg.Admin.Addr,
		Handler: admin.NewServer(
			map[string]admin.Store{"pages": pages},
			collector.Registry(),
			cfg.Admin.MetricsPath,
			logger.Named("admin"),
		).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Admin server listening", zap.String("addr", cfg.Admin.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("admin server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown admin server: %w", err)
	}

	logger.Info("tagcache stopped", zap.Any("stats", pages.Stats()))
	return nil
}
