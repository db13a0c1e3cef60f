package catalog

import (
	"context"
	"path/filepath"
	"time"

	"beatbrowser/pkg/models"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watcher reloads the catalog when its file changes. Editors often replace
// the file instead of writing it, so the parent directory is watched.
type Watcher struct {
	path     string
	debounce time.Duration
	onChange func([]models.Track)
	logger   *logrus.Logger
}

// NewWatcher calls onChange with the parsed catalog after every settled change.
// onChange runs on the watcher goroutine.
func NewWatcher(path string, debounce time.Duration, onChange func([]models.Track), logger *logrus.Logger) *Watcher {
	if logger == nil {
		logger = logrus.New()
	}
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}
	return &Watcher{
		path:     path,
		debounce: debounce,
		onChange: onChange,
		logger:   logger,
	}
}

// Run watches until ctx is done
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	absPath, err := filepath.Abs(w.path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		return err
	}

	w.logger.WithField("catalog", absPath).Info("Catalog watcher started")

	var (
		timer   *time.Timer
		trigger <-chan time.Time
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
			if filepath.Clean(event.Name) != absPath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			// Wait for the writer to finish before parsing
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			trigger = timer.C

		case <-trigger:
			trigger = nil
			w.reload()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.WithError(err).Error("Catalog watcher error")
		}
	}
}

func (w *Watcher) reload() {
	tracks, err := Load(w.path)
	if err != nil {
		// Keep the current rows; a half-written file will settle again.
		w.logger.WithError(err).WithField("catalog", w.path).Warn("Ignoring unreadable catalog change")
		return
	}
	w.logger.WithField("tracks", len(tracks)).Info("Catalog reloaded")
	w.onChange(tracks)
}
