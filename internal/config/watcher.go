package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher reloads the config file when it changes and hands the new Config
// to subscribers. A reload that fails to parse or validate is logged and
// dropped; subscribers only ever see valid configs.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   *zap.Logger
	fs       *fsnotify.Watcher

	mu        sync.Mutex
	callbacks []func(*Config)
	stopped   bool
	reloads   sync.WaitGroup

	stopCh    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewWatcher starts watching path. The parent directory is watched so that
// editors replacing the file by rename are still seen.
func NewWatcher(path string, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}

	w := &Watcher{
		path:     filepath.Clean(path),
		debounce: defaultDebounce,
		logger:   logger,
		fs:       fsw,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	go w.loop()

	logger.Info("Configuration hot reloading enabled", zap.String("path", path))
	return w, nil
}

// OnChange registers fn to run after every successful reload.
func (w *Watcher) OnChange(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, fn)
}

// Close stops watching and waits for a reload that is already running.
// No subscriber runs after Close returns. Safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.stopCh)
		<-w.done

		w.mu.Lock()
		w.stopped = true
		w.mu.Unlock()
		w.reloads.Wait()

		err = w.fs.Close()
	})
	return err
}

func (w *Watcher) loop() {
	defer close(w.done)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debug("Configuration file changed",
				zap.String("file", event.Name),
				zap.String("operation", event.Op.String()),
			)
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, w.reload)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Configuration watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.reloads.Add(1)
	w.mu.Unlock()
	defer w.reloads.Done()

	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Warn("Configuration reload rejected", zap.Error(err))
		return
	}

	w.mu.Lock()
	callbacks := append(([]func(*Config))(nil), w.callbacks...)
	w.mu.Unlock()

	for _, fn := range callbacks {
		fn(cfg)
	}
	w.logger.Info("Configuration reloaded", zap.String("path", w.path))
}
