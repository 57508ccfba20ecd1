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
// Package cachestore implements the persisted, at-most-one-writer
// key-presence store (spec §4.B, component B): two tier directories of
// small entry files under .lun/cache, a sidecar index that amortizes
// eviction decisions, and size-budgeted garbage collection.
package cachestore

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lun-build/lun/internal/fingerprint"
)

// DefaultBudget is used when the configuration does not set cache_size.
const DefaultBudget int64 = 512 * 1024 * 1024

// DefaultRetentionHorizon is the default GC age-out window (spec §3(iv)).
const DefaultRetentionHorizon = 30 * 24 * time.Hour

const evictLockName = ".evict.lock"
const orphanAge = time.Hour

// Stats summarizes store occupancy (spec §4.B operation "stats()").
type Stats struct {
	TotalBytes  int64
	EntryCount  int
	MtimeCount  int
	ContentCount int
}

// Store is a directory under .lun/cache holding the mtime and content
// tiers plus their sidecar index.
type Store struct {
	root   string
	budget int64
	sc     *sidecar
	logger *slog.Logger
}

// Open creates the tier directories if needed and loads (or rebuilds) the
// sidecar index.
func Open(root string, budget int64, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if budget <= 0 {
		budget = DefaultBudget
	}
	for _, tier := range []Tier{MtimeTier, ContentTier} {
		if err := os.MkdirAll(filepath.Join(root, tier.dirName()), 0o750); err != nil {
			return nil, err
		}
	}
	sc, err := loadOrRebuildSidecar(root)
	if err != nil {
		return nil, err
	}
	return &Store{root: root, budget: budget, sc: sc, logger: logger}, nil
}

// Lookup reports whether key is present in tier. Any read error is treated
// as a miss (spec §4.B "Failure").
func (s *Store) Lookup(tier Tier, key fingerprint.Key) bool {
	if s.sc.has(tier, string(key)) {
		return true
	}
	// The sidecar may be stale relative to disk (e.g. another process
	// inserted after our rebuild); fall back to a direct stat.
	_, err := os.Stat(entryPath(s.root, tier, key))
	return err == nil
}

// Insert creates or replaces the entry for key in tier, stamped with now.
// Write errors are logged and do not fail the pipeline (spec §4.B
// "Failure").
func (s *Store) Insert(tier Tier, key fingerprint.Key, now time.Time) error {
	path := entryPath(s.root, tier, key)
	h := entryHeader{Version: entryVersion, Kind: int32(tier), Created: now.UnixNano()}
	if err := writeEntryAtomic(path, h); err != nil {
		s.logger.Warn("cachestore.insert.error", "tier", tier.String(), "err", err)
		return err
	}
	info, err := os.Stat(path)
	size := int64(16)
	if err == nil {
		size = info.Size()
	}
	s.sc.upsert(tier, string(key), size, now)
	return nil
}

// Touch updates key's last-touched time without changing its content.
func (s *Store) Touch(tier Tier, key fingerprint.Key, now time.Time) error {
	if s.sc.touch(tier, string(key), now) {
		return os.Chtimes(entryPath(s.root, tier, key), now, now)
	}
	// Not tracked yet (e.g. sidecar was rebuilt stale): treat as insert.
	return s.Insert(tier, key, now)
}

// Flush persists the sidecar index. Callers should call this once at the
// end of a pipeline run; Insert/Touch write entry files immediately but
// update only the in-memory index.
func (s *Store) Flush() error {
	return s.sc.save(s.root)
}

// GC evicts least-recently-touched entries until total size is at most
// 0.9*maxBytes, and unconditionally removes orphaned temp files older than
// one hour (spec §4.B "Eviction"). It runs under an exclusive lock; if the
// lock is held by another process, GC is skipped for this run (spec §4.B
// "Concurrency").
func (s *Store) GC(maxBytes int64, horizon time.Duration) (evicted int, err error) {
	if maxBytes <= 0 {
		maxBytes = s.budget
	}
	if horizon <= 0 {
		horizon = DefaultRetentionHorizon
	}

	unlock, ok := s.tryLockEviction()
	if !ok {
		s.logger.Debug("cachestore.gc.skipped", "reason", "lock held")
		return 0, nil
	}
	defer unlock()

	removeOrphanTemps(s.root)

	now := time.Now()
	target := int64(float64(maxBytes) * 0.9)
	shrinking := s.sc.totalBytes() > maxBytes

	for _, row := range s.sc.ascendingByTouch() {
		age := now.Sub(time.Unix(0, row.Row.LastTouched))
		overBudget := shrinking && s.sc.totalBytes() > target
		expired := age > horizon
		if !overBudget && !expired {
			continue
		}
		if err := os.Remove(entryPath(s.root, row.Tier, row.Key)); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("cachestore.gc.remove_error", "err", err)
			continue
		}
		s.sc.remove(row.Tier, row.Key)
		evicted++
		// The pass continues after the size target is reached so that
		// every row past the horizon is still removed.
	}

	return evicted, s.sc.save(s.root)
}

func (s *Store) tryLockEviction() (unlock func(), ok bool) {
	path := filepath.Join(s.root, evictLockName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, false
		}
		return nil, false
	}
	_ = f.Close()
	return func() { _ = os.Remove(path) }, true
}

func removeOrphanTemps(root string) {
	cutoff := time.Now().Add(-orphanAge)
	for _, tier := range []Tier{MtimeTier, ContentTier} {
		dir := filepath.Join(root, tier.dirName())
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, de := range entries {
			if !strings.Contains(de.Name(), ".tmp") {
				continue
			}
			info, err := de.Info()
			if err != nil {
				continue
			}
			if info.ModTime().Before(cutoff) {
				_ = os.Remove(filepath.Join(dir, de.Name()))
			}
		}
	}
}

// Stats reports current store occupancy.
func (s *Store) Stats() Stats {
	st := Stats{}
	for _, row := range s.sc.ascendingByTouch() {
		st.EntryCount++
		st.TotalBytes += row.Row.Bytes
		if row.Tier == MtimeTier {
			st.MtimeCount++
		} else {
			st.ContentCount++
		}
	}
	return st
}

// Clear removes every file in both tier directories and resets the index
// to empty (backs `lun clean` / `lun cache rm`). The cache directory, the
// tier directories, and any other files directly under the cache root are
// left in place.
func (s *Store) Clear() error {
	for _, tier := range []Tier{MtimeTier, ContentTier} {
		dir := filepath.Join(s.root, tier.dirName())
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, de := range entries {
			_ = os.Remove(filepath.Join(dir, de.Name()))
		}
	}
	s.sc = newSidecar()
	return s.sc.save(s.root)
}

// Root returns the cache directory path.
func (s *Store) Root() string { return s.root }
