// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultWatchDebounce coalesces the burst of events an editor save makes.
const DefaultWatchDebounce = 200 * time.Millisecond

// ReloadFunc receives the reloaded configuration, or the error that
// prevented reloading it.
type ReloadFunc func(cfg *Config, err error)

// Watch reloads path whenever it changes and passes the result to onReload,
// until ctx is done. The parent directory is watched so that editors which
// replace the file are still seen.
func Watch(ctx context.Context, path string, debounce time.Duration, onReload ReloadFunc) error {
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	go runWatch(ctx, watcher, abs, debounce, onReload)
	return nil
}

func runWatch(ctx context.Context, watcher *fsnotify.Watcher, path string, debounce time.Duration, onReload ReloadFunc) {
	defer watcher.Close()

	// Stopped until the first relevant event arrives
	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			onReload(nil, fmt.Errorf("config watcher: %w", err))

		case <-timer.C:
			cfg, err := LoadFromPath(path)
			onReload(cfg, err)
		}
	}
}
