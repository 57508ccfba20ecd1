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
// Package batcher partitions a tool's surviving files into size-balanced
// batches sized to the worker count (spec §4.E, component E).
package batcher

import (
	"sort"

	"github.com/lun-build/lun/internal/fingerprint"
	"github.com/lun-build/lun/internal/tool"
)

// Batch is a non-empty, ordered group of files that will become one
// subprocess invocation.
type Batch struct {
	Files []*fingerprint.File
}

// Plan partitions files according to t's granularity (spec §4.E):
//
//   - Batch granularity: one batch containing every file.
//   - Individual + noBatch: one batch per file.
//   - Individual, batched: an LPT (longest-processing-time-first)
//     approximation to multiway partitioning across at most workers
//     batches, minimizing the maximum batch byte-weight.
//
// Returns nil if files is empty.
func Plan(files []*fingerprint.File, granularity tool.Granularity, workers int, noBatch bool) []Batch {
	if len(files) == 0 {
		return nil
	}
	if workers < 1 {
		workers = 1
	}

	if granularity == tool.Batch {
		return []Batch{{Files: append([]*fingerprint.File(nil), files...)}}
	}

	if noBatch {
		batches := make([]Batch, len(files))
		for i, f := range files {
			batches[i] = Batch{Files: []*fingerprint.File{f}}
		}
		return batches
	}

	return lptPack(files, workers)
}

// lptPack sorts files by descending size and repeatedly assigns the next
// file to the currently smallest batch by accumulated byte total, the
// classic LPT approximation to multiway number partitioning (spec §4.E).
func lptPack(files []*fingerprint.File, workers int) []Batch {
	n := workers
	if n > len(files) {
		n = len(files)
	}

	sorted := append([]*fingerprint.File(nil), files...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Stat.Size > sorted[j].Stat.Size
	})

	batches := make([]Batch, n)
	totals := make([]int64, n)

	for _, f := range sorted {
		smallest := 0
		for i := 1; i < n; i++ {
			if totals[i] < totals[smallest] {
				smallest = i
			}
		}
		batches[smallest].Files = append(batches[smallest].Files, f)
		totals[smallest] += f.Stat.Size
	}

	return batches
}
