package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/cuemby/gingo/pkg/log"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce is how long the watcher waits for a burst of writes to
// settle before reloading
const DefaultDebounce = 250 * time.Millisecond

// ReloadFunc receives the re-parsed clusters file
type ReloadFunc func(*ClustersFile) error

// Watcher reloads the clusters file whenever it changes on disk
type Watcher struct {
	path     string
	onReload ReloadFunc
	debounce time.Duration
	watcher  *fsnotify.Watcher
	logger   zerolog.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewWatcher watches path. The parent directory is watched so that editors
// which replace the file by renaming are handled.
func NewWatcher(path string, onReload ReloadFunc, debounce time.Duration) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	return &Watcher{
		path:     abs,
		onReload: onReload,
		debounce: debounce,
		watcher:  fw,
		logger:   log.WithComponent("watcher"),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins watching
func (w *Watcher) Start() {
	go w.run()
}

// Stop stops watching and waits for the loop to exit
func (w *Watcher) Stop() {
	close(w.stopCh)
	_ = w.watcher.Close()
	<-w.doneCh
}

func (w *Watcher) run() {
	defer close(w.doneCh)

	// Editors emit several events per save
	debounceTimer := time.NewTimer(0)
	<-debounceTimer.C
	pending := false

	for {
		select {
		case <-w.stopCh:
			debounceTimer.Stop()
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = true
			debounceTimer.Reset(w.debounce)

		case <-debounceTimer.C:
			if !pending {
				continue
			}
			pending = false
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("File watcher error")
		}
	}
}

func (w *Watcher) reload() {
	f, err := LoadClusters(w.path)
	if err != nil {
		w.logger.Error().Err(err).Str("path", w.path).Msg("Failed to reload clusters file, keeping current config")
		return
	}
	if err := w.onReload(f); err != nil {
		w.logger.Error().Err(err).Str("path", w.path).Msg("Reload rejected, keeping current config")
		return
	}
	w.logger.Info().Str("path", w.path).Int("clusters", len(f.Clusters)).Msg("Clusters reloaded")
}
