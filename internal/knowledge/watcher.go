// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package knowledge

import (
	"context"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// DefaultWatchDebounce coalesces the burst of events an atomic rename emits.
const DefaultWatchDebounce = 250 * time.Millisecond

// Watcher reloads a Store when its backing file is edited by another
// process, for example `disamia knowledge add` while the server is running.
type Watcher struct {
	store    *Store
	path     string
	debounce time.Duration
	logger   *log.Logger
	watcher  *fsnotify.Watcher
}

// NewWatcher watches path, the file a FileBackend keeps StorageKey in.
// The parent directory is watched because atomic writes replace the file.
func NewWatcher(store *Store, path string, debounce time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}
	return &Watcher{
		store:    store,
		path:     filepath.Clean(path),
		debounce: debounce,
		logger:   store.logger.WithPrefix("watch"),
		watcher:  fw,
	}, nil
}

// Run processes events until ctx is cancelled, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.store.Reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "err", err)
		}
	}
}
