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
// Package fingerprint computes the deterministic cache keys for (file,
// tool) pairs (spec §4.A, component A). It is pure: given identical
// Inputs it always produces identical keys, on any machine.
package fingerprint

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// Key is a fixed-width hex digest identifying a (file, tool) pair's
// cacheable outcome at a given tier.
type Key string

// ConfigFileMeta is the metadata (size + stat) of one tool config file
// (spec §3 item 5).
type ConfigFileMeta struct {
	Path    string
	Present bool
	Size    int64
	Stat    StatSnapshot
}

// EnvVar is one environment variable name/value pair contributing to the
// key (spec §3 item 6).
type EnvVar struct {
	Name  string
	Value string
}

// Inputs bundles everything the canonical stream is built from, for one
// (file, tool) pair at one run.
type Inputs struct {
	File *File

	// Command is the tool's effective command line after template
	// expansion (spec §3 item 3).
	Command []string
	// Dir is the tool's working directory, empty if unset (spec §3 item 4).
	Dir string

	// ConfigFiles is in declared order (spec §3 item 5).
	ConfigFiles []ConfigFileMeta
	// EnvVars need not be pre-sorted; buildBase sorts defensively by name
	// (spec §3 item 6, §4.A "Required orderings").
	EnvVars []EnvVar

	// Careful mixes the tool's --version stdout into the key (spec §3
	// item 7, "careful mode").
	Careful       bool
	VersionOutput string
	VersionKnown  bool
}

// Fingerprinter computes mkey and ckey for a (file, tool) pair. It carries
// no state; a zero value is ready to use.
type Fingerprinter struct{}

// New returns a ready-to-use Fingerprinter.
func New() *Fingerprinter { return &Fingerprinter{} }

// writeField appends a length-prefixed field to buf. present distinguishes
// "absent" from "present but empty" (spec §4.A "explicit absence marker
// distinct from the empty string"): absent fields write a single 0x00 tag
// byte and nothing else, so they can never collide with a present field's
// byte stream regardless of its length.
func writeField(buf *bytes.Buffer, present bool, data []byte) {
	if !present {
		buf.WriteByte(0)
		return
	}
	buf.WriteByte(1)
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(data)))
	buf.Write(lenBuf[:])
	buf.Write(data)
}

func writeStat(buf *bytes.Buffer, present bool, s StatSnapshot) {
	if !present {
		buf.WriteByte(0)
		return
	}
	var b [20]byte
	binary.BigEndian.PutUint64(b[0:8], uint64(s.Size))
	binary.BigEndian.PutUint32(b[8:12], s.UID)
	binary.BigEndian.PutUint32(b[12:16], s.GID)
	binary.BigEndian.PutUint32(b[16:20], s.Mode)
	writeField(buf, true, b[:])
}

// buildBase encodes fields 1-6 (and 7 when Careful), the portion shared by
// both mkey and ckey. Callers append the tier-specific field afterward.
func buildBase(in Inputs) *bytes.Buffer {
	buf := &bytes.Buffer{}

	writeField(buf, true, []byte(in.File.Path))
	writeStat(buf, true, in.File.Stat)

	cmdLine := bytes.Join(toBytesSlice(in.Command), []byte{0x1f})
	writeField(buf, true, cmdLine)

	writeField(buf, in.Dir != "", []byte(in.Dir))

	for _, cf := range in.ConfigFiles {
		writeField(buf, true, []byte(cf.Path))
		writeStat(buf, cf.Present, cf.Stat)
	}

	envs := make([]EnvVar, len(in.EnvVars))
	copy(envs, in.EnvVars)
	sort.Slice(envs, func(i, j int) bool { return envs[i].Name < envs[j].Name })
	for _, e := range envs {
		writeField(buf, true, []byte(e.Name))
		writeField(buf, true, []byte(e.Value))
	}

	if in.Careful {
		writeField(buf, in.VersionKnown, []byte(in.VersionOutput))
	} else {
		writeField(buf, false, nil)
	}

	return buf
}

func toBytesSlice(ss []string) [][]byte {
	out := make([][]byte, len(ss))
	for i, s := range ss {
		out[i] = []byte(s)
	}
	return out
}

func digest(buf *bytes.Buffer) Key {
	return Key(fmt.Sprintf("%016x", xxhash.Sum64(buf.Bytes())))
}

// MKey computes the metadata-only key, mixing in the file's mtime. It
// never reads file content.
func (fp *Fingerprinter) MKey(in Inputs) Key {
	buf := buildBase(in)
	var t [8]byte
	binary.BigEndian.PutUint64(t[:], uint64(in.File.Mtime().UnixNano()))
	writeField(buf, true, t[:])
	return digest(buf)
}

// CKey computes the content-including key, mixing in the file's content
// hash. Requires reading the file.
func (fp *Fingerprinter) CKey(in Inputs) (Key, error) {
	hash, err := in.File.ContentHash()
	if err != nil {
		return "", err
	}
	buf := buildBase(in)
	writeField(buf, true, hash)
	return digest(buf), nil
}
