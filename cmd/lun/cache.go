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

// runCacheCmd implements `lun cache stats|gc|rm`.
func runCacheCmd(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: lun cache stats|gc|rm")
		os.Exit(2)
	}

	root, err := os.Getwd()
	if err != nil {
		clierr.FatalError(clierr.NewConfigError("cannot determine working directory", "", err), false)
	}
	cacheRoot := filepath.Join(root, ".lun", "cache")
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	switch args[0] {
	case "rm":
		runClean(args[1:])
	case "stats":
		store, err := cachestore.Open(cacheRoot, cachestore.DefaultBudget, logger)
		if err != nil {
			clierr.FatalError(clierr.NewConfigError("cannot open cache", "", err), false)
		}
		st := store.Stats()
		fmt.Printf("entries:  %d (%d mtime, %d content)\n", st.EntryCount, st.MtimeCount, st.ContentCount)
		fmt.Printf("bytes:    %d\n", st.TotalBytes)
	case "gc":
		store, err := cachestore.Open(cacheRoot, cachestore.DefaultBudget, logger)
		if err != nil {
			clierr.FatalError(clierr.NewConfigError("cannot open cache", "", err), false)
		}
		evicted, err := store.GC(cachestore.DefaultBudget, cachestore.DefaultRetentionHorizon)
		if err != nil {
			clierr.FatalError(clierr.NewConfigError("gc failed", "", err), false)
		}
		fmt.Printf("evicted %d entries\n", evicted)
	default:
		fmt.Fprintf(os.Stderr, "unknown cache subcommand %q\n", args[0])
		os.Exit(2)
	}
}
