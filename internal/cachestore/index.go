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
package cachestore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// sidecarEntry is one bookkeeping row in the index sidecar: enough to
// decide eviction order and total size without re-stat-ing every entry
// file on disk (spec §4.B "Layout").
type sidecarEntry struct {
	Tier        string `yaml:"tier"`
	Bytes       int64  `yaml:"bytes"`
	LastTouched int64  `yaml:"last_touched"`
}

// sidecar amortizes eviction decisions across a directory of cache
// entries. It is regenerated by scanning entries whenever it is absent or
// fails to parse (spec §4.B "Layout").
type sidecar struct {
	mu         sync.Mutex
	Entries    map[string]*sidecarEntry `yaml:"entries"`
	TotalBytes int64                    `yaml:"total_bytes"`
}

func sidecarPath(root string) string {
	return filepath.Join(root, "index.yaml")
}

func newSidecar() *sidecar {
	return &sidecar{Entries: make(map[string]*sidecarEntry)}
}

func rowKey(tier Tier, key string) string {
	return tier.String() + "/" + key
}

// loadOrRebuildSidecar loads the sidecar at root, or rebuilds it from the
// entry files on disk if it is missing or corrupt.
func loadOrRebuildSidecar(root string) (*sidecar, error) {
	data, err := os.ReadFile(sidecarPath(root))
	if err == nil {
		sc := newSidecar()
		if yerr := yaml.Unmarshal(data, sc); yerr == nil && sc.Entries != nil {
			return sc, nil
		}
		// Corrupt sidecar: fall through to rebuild.
	}
	return rebuildSidecar(root)
}

// rebuildSidecar walks both tier directories and recomputes bytes and
// last-touched times from the entry files themselves.
func rebuildSidecar(root string) (*sidecar, error) {
	sc := newSidecar()
	for _, tier := range []Tier{MtimeTier, ContentTier} {
		dir := filepath.Join(root, tier.dirName())
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("cachestore: scan %s: %w", dir, err)
		}
		for _, de := range entries {
			name := de.Name()
			if strings.HasSuffix(name, ".tmp") || strings.Contains(name, ".tmp.") {
				continue
			}
			info, err := de.Info()
			if err != nil {
				continue
			}
			sc.Entries[rowKey(tier, name)] = &sidecarEntry{
				Tier:        tier.String(),
				Bytes:       info.Size(),
				LastTouched: info.ModTime().UnixNano(),
			}
			sc.TotalBytes += info.Size()
		}
	}
	return sc, nil
}

// save persists the sidecar atomically (temp file + rename), mirroring the
// manifest save discipline used elsewhere in this codebase for any
// structured state that must survive a crash mid-write.
func (sc *sidecar) save(root string) error {
	sc.mu.Lock()
	data, err := yaml.Marshal(sc)
	sc.mu.Unlock()
	if err != nil {
		return err
	}
	path := sidecarPath(root)
	tmp := fmt.Sprintf("%s.%d.tmp", path, time.Now().UnixNano())
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

func (sc *sidecar) upsert(tier Tier, key string, size int64, touched time.Time) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	rk := rowKey(tier, key)
	if old, ok := sc.Entries[rk]; ok {
		sc.TotalBytes += size - old.Bytes
		old.Bytes = size
		old.LastTouched = touched.UnixNano()
		return
	}
	sc.Entries[rk] = &sidecarEntry{Tier: tier.String(), Bytes: size, LastTouched: touched.UnixNano()}
	sc.TotalBytes += size
}

func (sc *sidecar) touch(tier Tier, key string, touched time.Time) bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	rk := rowKey(tier, key)
	e, ok := sc.Entries[rk]
	if !ok {
		return false
	}
	e.LastTouched = touched.UnixNano()
	return true
}

func (sc *sidecar) remove(tier Tier, key string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	rk := rowKey(tier, key)
	if e, ok := sc.Entries[rk]; ok {
		sc.TotalBytes -= e.Bytes
		delete(sc.Entries, rk)
	}
}

func (sc *sidecar) has(tier Tier, key string) bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	_, ok := sc.Entries[rowKey(tier, key)]
	return ok
}

func (sc *sidecar) totalBytes() int64 {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.TotalBytes
}

// ascendingByTouch returns a snapshot of rows sorted oldest-touched first,
// for eviction order (spec §4.B "Eviction").
func (sc *sidecar) ascendingByTouch() []struct {
	Tier Tier
	Key  string
	Row  sidecarEntry
} {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	rows := make([]struct {
		Tier Tier
		Key  string
		Row  sidecarEntry
	}, 0, len(sc.Entries))
	for rk, e := range sc.Entries {
		parts := strings.SplitN(rk, "/", 2)
		if len(parts) != 2 {
			continue
		}
		tier := MtimeTier
		if parts[0] == ContentTier.String() {
			tier = ContentTier
		}
		rows = append(rows, struct {
			Tier Tier
			Key  string
			Row  sidecarEntry
		}{Tier: tier, Key: parts[1], Row: *e})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Row.LastTouched < rows[j].Row.LastTouched })
	return rows
}
