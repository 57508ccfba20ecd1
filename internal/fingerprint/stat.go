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
package fingerprint

import "os"

// StatSnapshot is the portion of a file's stat(2) result that contributes
// to a cache key (spec §3): size, owner uid/gid, and mode bits. Two files
// with identical bytes but different ownership or permissions must not be
// treated as the same cache entry.
type StatSnapshot struct {
	Size int64
	UID  uint32
	GID  uint32
	Mode uint32
}

// statSnapshot is replaced on unix (stat_unix.go) to fill in owner uid/gid
// from the OS-specific Sys() value; on other platforms this default leaves
// UID and GID zero.
var statSnapshot = func(fi os.FileInfo) StatSnapshot {
	return StatSnapshot{
		Size: fi.Size(),
		Mode: uint32(fi.Mode()),
	}
}

// Stat builds a StatSnapshot for the file at path.
func Stat(path string) (StatSnapshot, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		return StatSnapshot{}, err
	}
	return statSnapshot(fi), nil
}
