// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package documents

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// WatchConfig configures the uploads directory watcher.
type WatchConfig struct {
	Enabled    bool        // Enable watching
	DebounceMs int         // Debounce delay in milliseconds (default: 500ms)
	Logger     *zap.Logger // Logger for refresh events
}

// Watcher invalidates the store's listing snapshot when files appear in or
// vanish from the uploads directory outside the API (scp, manual cleanup).
type Watcher struct {
	store   *Store
	watcher *fsnotify.Watcher
	config  WatchConfig
	logger  *zap.Logger

	// Debouncer to handle rapid-fire changes
	debounceTimers map[string]*time.Timer
	debounceMu     sync.Mutex

	// Lifecycle
	stopCh  chan struct{}
	doneCh  chan struct{}
	stopped bool
	stopMu  sync.Mutex
}

// NewWatcher creates a watcher over the store's uploads root.
func NewWatcher(store *Store, config WatchConfig) (*Watcher, error) {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.DebounceMs == 0 {
		config.DebounceMs = 500
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return &Watcher{
		store:          store,
		watcher:        watcher,
		config:         config,
		logger:         config.Logger,
		debounceTimers: make(map[string]*time.Timer),
		stopCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
	}, nil
}

// Start begins watching the uploads directory.
func (w *Watcher) Start(ctx context.Context) error {
	if !w.config.Enabled {
		w.logger.Info("Uploads watcher disabled")
		return nil
	}

	if err := w.watcher.Add(w.store.root); err != nil {
		return fmt.Errorf("failed to watch uploads directory: %w", err)
	}

	w.logger.Info("Started uploads watcher",
		zap.String("uploads_dir", w.store.root),
		zap.Int("debounce_ms", w.config.DebounceMs))

	go w.watchLoop(ctx)

	return nil
}

// watchLoop processes file system events.
func (w *Watcher) watchLoop(ctx context.Context) {
	defer close(w.doneCh)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Uploads watcher error", zap.Error(err))

		case <-w.stopCh:
			w.logger.Info("Stopping uploads watcher")
			return

		case <-ctx.Done():
			w.logger.Info("Uploads watcher context cancelled")
			return
		}
	}
}

// handleEvent processes a filesystem event.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	// Ignore temporary files (editors and partial transfers create these)
	base := filepath.Base(event.Name)
	if strings.Contains(base, ".tmp") ||
		strings.Contains(base, "~") ||
		strings.HasPrefix(base, ".") {
		return
	}

	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	// Debounce rapid changes (multi-chunk writes, bulk copies)
	w.debounce(event.Name, func() {
		w.refresh(event)
	})
}

// debounce delays execution until changes settle.
func (w *Watcher) debounce(key string, callback func()) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	// Cancel existing timer
	if timer, exists := w.debounceTimers[key]; exists {
		timer.Stop()
	}

	// Schedule new timer
	delay := time.Duration(w.config.DebounceMs) * time.Millisecond
	w.debounceTimers[key] = time.AfterFunc(delay, func() {
		callback()
		w.debounceMu.Lock()
		delete(w.debounceTimers, key)
		w.debounceMu.Unlock()
	})
}

// refresh drops the listing snapshot so the next List rescans the directory.
func (w *Watcher) refresh(event fsnotify.Event) {
	w.logger.Info("Uploads directory changed, refreshing listing",
		zap.String("file", event.Name),
		zap.String("operation", event.Op.String()))

	w.store.invalidateListing()
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	w.stopMu.Lock()
	defer w.stopMu.Unlock()

	// Idempotent - can call multiple times safely
	if w.stopped {
		return nil
	}
	w.stopped = true

	if !w.config.Enabled {
		return w.watcher.Close()
	}

	close(w.stopCh)

	// Wait for watch loop to finish (with timeout)
	select {
	case <-w.doneCh:
		// Clean exit
	case <-time.After(5 * time.Second):
		w.logger.Warn("Uploads watcher stop timed out")
	}

	return w.watcher.Close()
}
