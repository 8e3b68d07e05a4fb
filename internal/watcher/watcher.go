// Package watcher rebuilds the index when the corpus file changes on disk.
// Bursts of events are debounced into one reload. A corpus that fails to
// parse is logged and ignored so the last good index keeps serving.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Adithya-Monish-Kumar-K/glyphgrab/internal/corpus"
	apperrors "github.com/Adithya-Monish-Kumar-K/glyphgrab/pkg/errors"
)

// Target receives reloaded corpora. *indexer.Engine satisfies it.
type Target interface {
	SetCorpus(c *corpus.Corpus, loadErr error)
	RebuildIndex(ctx context.Context) error
}

type Watcher struct {
	path        string
	target      Target
	debounce    time.Duration
	afterReload func(ctx context.Context)
	watcher     *fsnotify.Watcher
	logger      *slog.Logger
}

// New watches the directory holding path, since editors often replace files
// by rename. afterReload, if set, runs after each successful rebuild.
func New(path string, target Target, debounce time.Duration, afterReload func(ctx context.Context)) (*Watcher, error) {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		fw.Close()
		return nil, fmt.Errorf("resolving corpus path: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}
	return &Watcher{
		path:        abs,
		target:      target,
		debounce:    debounce,
		afterReload: afterReload,
		watcher:     fw,
		logger:      slog.Default().With("component", "corpus-watcher", "path", abs),
	}, nil
}

// Run blocks until ctx is cancelled, then closes the underlying watcher.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()
	w.logger.Info("watching corpus for changes", "debounce", w.debounce)

	var timer *time.Timer
	var timerC <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", "error", err)
		case <-timerC:
			timer, timerC = nil, nil
			w.reload(ctx)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}

func (w *Watcher) reload(ctx context.Context) {
	c, err := corpus.Load(w.path)
	if err != nil {
		w.logger.Error("corpus changed but could not be loaded, keeping current index", "error", err)
		return
	}
	w.target.SetCorpus(c, nil)
	if err := w.target.RebuildIndex(ctx); err != nil && !errors.Is(err, apperrors.ErrPersistence) {
		w.logger.Error("index rebuild after corpus change failed", "error", err)
		return
	}
	w.logger.Info("corpus reloaded", "symbols", c.Len())
	if w.afterReload != nil {
		w.afterReload(ctx)
	}
}
