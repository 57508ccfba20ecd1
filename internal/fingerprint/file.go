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

import (
	"crypto/sha256"
	"io"
	"os"
	"time"
)

// File is a project-relative file record. The mtime is captured by Load
// from the same stat call as the snapshot; the content hash is
// materialized lazily (spec §3 "File record") since computing mkey never
// needs file content, and most (file, tool) pairs are skipped before a
// content hash is ever required.
type File struct {
	// Path is project-relative, using forward slashes.
	Path string
	// Abs is the absolute path used for all I/O.
	Abs string

	Stat StatSnapshot

	mtime       time.Time
	mtimeSet    bool
	contentHash []byte
	hashErr     error
	hashSet     bool
}

// Load builds a File record by stat-ing abs. Returns an error if the file
// cannot be stat-ed (spec §4.D: such files are reported and dropped by the
// Matcher).
func Load(relPath, abs string) (*File, error) {
	fi, err := os.Lstat(abs)
	if err != nil {
		return nil, err
	}
	snap, err := Stat(abs)
	if err != nil {
		return nil, err
	}
	f := &File{
		Path:     relPath,
		Abs:      abs,
		Stat:     snap,
		mtime:    fi.ModTime(),
		mtimeSet: true,
	}
	return f, nil
}

// Mtime returns the file's modification time.
func (f *File) Mtime() time.Time {
	return f.mtime
}

// ContentHash returns the SHA-256 of the file's bytes, computing and
// caching it on first use.
func (f *File) ContentHash() ([]byte, error) {
	if f.hashSet {
		return f.contentHash, f.hashErr
	}
	f.hashSet = true
	fh, err := os.Open(f.Abs)
	if err != nil {
		f.hashErr = err
		return nil, err
	}
	defer fh.Close()

	h := sha256.New()
	if _, err := io.Copy(h, fh); err != nil {
		f.hashErr = err
		return nil, err
	}
	f.contentHash = h.Sum(nil)
	return f.contentHash, nil
}
