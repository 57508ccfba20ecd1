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

package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lun-build/lun/internal/cachestore"
	"github.com/lun-build/lun/internal/clierr"
)

// runClean implements `lun clean`: deletes the local cache entirely.
func runClean(args []string) {
	root, err := os.Getwd()
	if err != nil {
		clierr.FatalError(clierr.NewConfigError("cannot determine working directory", "", err), false)
	}
	cacheRoot := filepath.Join(root, ".lun", "cache")

	if _, err := os.Stat(cacheRoot); os.IsNotExist(err) {
		fmt.Println("No cache found, nothing to clean.")
		return
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	store, err := cachestore.Open(cacheRoot, cachestore.DefaultBudget, logger)
	if err != nil {
		clierr.FatalError(clierr.NewConfigError("cannot open cache", "", err), false)
	}
	if err := store.Clear(); err != nil {
		clierr.FatalError(clierr.NewConfigError("cannot clear cache", "", err), false)
	}
	fmt.Println("Cache cleared.")
}
