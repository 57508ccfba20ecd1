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
	"encoding/binary"
	"fmt"
	"os"
	"time"

	"github.com/lun-build/lun/internal/fingerprint"
)

// Tier names a cache lookup tier (spec glossary "Tier").
type Tier int

const (
	MtimeTier Tier = iota
	ContentTier
)

func (t Tier) String() string {
	if t == ContentTier {
		return "content"
	}
	return "mtime"
}

func (t Tier) dirName() string {
	return t.String()
}

const entryVersion = 1

// entryHeader is the tiny on-disk body of a cache entry file: a format
// version, the tier as a kind tag, and the creation time. Presence of the
// key (the filename) is the only payload that matters; gc and stats() work
// from the sidecar index, and an index rebuild takes last-touched times
// from the entry files' mtimes rather than from this header.
type entryHeader struct {
	Version int32
	Kind    int32
	Created int64 // unix nanoseconds
}

func encodeEntry(h entryHeader) []byte {
	buf := make([]byte, 16)
	binary.BigEndian.PutUint32(buf[0:4], uint32(h.Version))
	binary.BigEndian.PutUint32(buf[4:8], uint32(h.Kind))
	binary.BigEndian.PutUint64(buf[8:16], uint64(h.Created))
	return buf
}

func decodeEntry(data []byte) (entryHeader, error) {
	if len(data) < 16 {
		return entryHeader{}, fmt.Errorf("cachestore: truncated entry (%d bytes)", len(data))
	}
	return entryHeader{
		Version: int32(binary.BigEndian.Uint32(data[0:4])),
		Kind:    int32(binary.BigEndian.Uint32(data[4:8])),
		Created: int64(binary.BigEndian.Uint64(data[8:16])),
	}, nil
}

// entryPath returns the on-disk path for a (tier, key) pair. The filename
// is the key's hex digest; spec §6 "Entry filenames are the hex digest of
// the key".
func entryPath(root string, tier Tier, key fingerprint.Key) string {
	return fmt.Sprintf("%s/%s/%s", root, tier.dirName(), string(key))
}

// writeEntryAtomic creates or replaces an entry via the rename-based
// atomic publish discipline (spec §4.B "Concurrency", §5 "Shared-resource
// policy"): write to a temporary sibling, then rename over any existing
// file of the same name.
func writeEntryAtomic(path string, h entryHeader) error {
	tmp := fmt.Sprintf("%s.%d.tmp", path, time.Now().UnixNano())
	if err := os.WriteFile(tmp, encodeEntry(h), 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

func readEntry(path string) (entryHeader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return entryHeader{}, err
	}
	return decodeEntry(data)
}
