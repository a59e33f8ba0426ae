// Package watch re-runs a merge whenever new fragments appear.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/fahmunge/internal/domain"
	"github.com/bft-labs/fahmunge/internal/ports"
)

// Config configures a Watcher.
type Config struct {
	// Dirs are the directories to watch.
	Dirs []string

	// Recursive also watches every sub-directory, including ones created
	// while watching.
	Recursive bool

	// Debounce is the quiet period after the last event before a run.
	// Default: 2 seconds
	Debounce time.Duration

	// BackoffInitial and BackoffMax bound the retries of a run that found
	// its store locked by another writer.
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

// DefaultConfig returns a Config with default timings.
func DefaultConfig() Config {
	return Config{
		Debounce:       2 * time.Second,
		BackoffInitial: DefaultBackoffInitial,
		BackoffMax:     DefaultBackoffMax,
	}
}

// RunFunc performs one pass, typically a merge.
type RunFunc func(ctx context.Context) error

// Watcher runs a RunFunc once and again after every burst of filesystem
// activity in the watched directories.
type Watcher struct {
	config Config
	logger ports.Logger
}

// New creates a Watcher.
func New(cfg Config, logger ports.Logger) *Watcher {
	def := DefaultConfig()
	if cfg.Debounce <= 0 {
		cfg.Debounce = def.Debounce
	}
	if cfg.BackoffInitial <= 0 {
		cfg.BackoffInitial = def.BackoffInitial
	}
	if cfg.BackoffMax < cfg.BackoffInitial {
		cfg.BackoffMax = max(def.BackoffMax, cfg.BackoffInitial)
	}
	return &Watcher{config: cfg, logger: logger}
}

// Run calls fn, then watches until ctx is done, calling fn after each
// debounced burst of events. Errors from fn are logged and watching goes
// on; a locked store is retried with backoff. Run returns nil when ctx ends.
func (w *Watcher) Run(ctx context.Context, fn RunFunc) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	for _, dir := range w.config.Dirs {
		if err := w.add(watcher, dir); err != nil {
			return err
		}
	}

	w.runWithRetry(ctx, fn)

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if w.config.Recursive && event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.add(watcher, event.Name); err != nil {
						w.logger.Warn("failed to watch new directory", ports.String("dir", event.Name), ports.Err(err))
					}
				}
			}
			w.logger.Debug("fragment activity", ports.String("path", event.Name), ports.String("op", event.Op.String()))
			if timer == nil {
				timer = time.NewTimer(w.config.Debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.config.Debounce)
			}
			timerCh = timer.C

		case <-timerCh:
			timerCh = nil
			w.runWithRetry(ctx, fn)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", ports.Err(err))
		}
	}
}

func (w *Watcher) runWithRetry(ctx context.Context, fn RunFunc) {
	b := newBackoff(w.config.BackoffInitial, w.config.BackoffMax)
	for {
		err := fn(ctx)
		if err == nil || ctx.Err() != nil {
			return
		}
		if !errors.Is(err, domain.ErrStoreLocked) {
			w.logger.Error("run failed, waiting for new fragments", ports.Err(err))
			return
		}
		w.logger.Warn("store locked, retrying", ports.Duration("backoff", b.Current()), ports.Err(err))
		if !b.Sleep(ctx) {
			return
		}
	}
}

func (w *Watcher) add(watcher *fsnotify.Watcher, dir string) error {
	if !w.config.Recursive {
		return watcher.Add(dir)
	}
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return watcher.Add(path)
	})
}
