package config

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads configuration when a file in the config directory
// changes and hands the result to the registered callback. Only the
// engine section is safe to apply at runtime; listeners and backends
// keep their boot-time settings.
type Watcher struct {
	dir      string
	onChange func(*Config)
	logger   *zap.Logger

	fsw *fsnotify.Watcher
}

// NewWatcher creates a watcher over dir. The callback runs on the
// watcher goroutine and must not block.
func NewWatcher(dir string, onChange func(*Config), logger *zap.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}
	return &Watcher{dir: dir, onChange: onChange, logger: logger, fsw: fsw}, nil
}

// Start consumes filesystem events until the context is cancelled.
// Editors fire bursts of writes per save, so reloads are debounced.
func (w *Watcher) Start(ctx context.Context) {
	go func() {
		defer w.fsw.Close()

		var pending <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.fsw.Events:
				if !ok {
					return
				}
				if !isConfigFile(event.Name) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				pending = time.After(250 * time.Millisecond)
			case err, ok := <-w.fsw.Errors:
				if !ok {
					return
				}
				w.logger.Warn("Config watcher error", zap.Error(err))
			case <-pending:
				pending = nil
				w.reload()
			}
		}
	}()
}

func (w *Watcher) reload() {
	cfg, err := Load(w.dir)
	if err != nil {
		w.logger.Error("Config reload failed, keeping previous configuration", zap.Error(err))
		return
	}
	w.logger.Info("Configuration reloaded", zap.String("dir", w.dir))
	w.onChange(cfg)
}

func isConfigFile(path string) bool {
	name := filepath.Base(path)
	return strings.HasPrefix(name, "config") && strings.HasSuffix(name, ".yaml")
}
