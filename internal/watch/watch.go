// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later
// Package watch drives a debounced fsnotify loop that re-runs a pipeline
// whenever the watched tree changes, for `lun --watch`.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/lun-build/lun/internal/pipeline"
)

// skipDirs are never watched, to keep descriptor usage down and avoid
// firing on our own cache writes.
var skipDirs = map[string]bool{
	".git": true, "node_modules": true, "vendor": true,
	"dist": true, "build": true, ".lun": true,
}

const debounce = 300 * time.Millisecond

// Run watches root and calls runFn after each debounced burst of changes,
// until ctx is canceled. runFn's own context is derived from ctx so an
// in-flight run is interrupted by the same signal that stops watching.
func Run(ctx context.Context, root string, logger *slog.Logger, runFn func(context.Context) (*pipeline.Result, error)) error {
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	count := 0
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsPermission(err) {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		if skipDirs[base] || (strings.HasPrefix(base, ".") && base != filepath.Base(root)) {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			if os.IsPermission(err) {
				return filepath.SkipDir
			}
			logger.Warn("watch.add_error", "path", path, "err", err)
			return nil
		}
		count++
		return nil
	})
	logger.Info("watch.start", "dirs", count)

	if _, err := runFn(ctx); err != nil {
		logger.Warn("watch.run_error", "err", err)
	}

	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Chmod != 0 && ev.Op == fsnotify.Chmod {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(debounce)
			timerCh = timer.C
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch.fsnotify_error", "err", err)
		case <-timerCh:
			timerCh = nil
			if _, err := runFn(ctx); err != nil {
				logger.Warn("watch.run_error", "err", err)
			}
		}
	}
}
