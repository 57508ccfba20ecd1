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
// Package matcher expands a tool's include globs over the project tree
// into a candidate file set, applies ignores and CLI filters, and
// produces a deterministically ordered file list (spec §4.D, component D).
package matcher

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/lun-build/lun/internal/fingerprint"
	"github.com/lun-build/lun/internal/tool"
	"github.com/lun-build/lun/internal/vcs"
	"github.com/lun-build/lun/internal/warnings"
)

// pruneDirs are directory names never descended into regardless of
// configuration, to keep traversal cheap; they hold no lintable source.
var pruneDirs = map[string]bool{
	".git": true,
	".lun": true,
}

// Options carries the CLI-level filters layered on top of every tool's
// own include/ignore globs (spec §4.D).
type Options struct {
	// Root is the absolute project root.
	Root string
	// GlobalIgnore is the resolved configuration's top-level ignore set.
	GlobalIgnore []string
	// OnlyFiles is --only-files; when non-empty, a candidate must match
	// at least one of these globs.
	OnlyFiles []string
	// SkipFiles is --skip-files; a candidate matching any of these is
	// dropped.
	SkipFiles []string
	// Staged is --staged: restrict to the VCS adapter's staged set.
	Staged bool
}

// Matcher expands tool globs into file lists.
type Matcher struct {
	opts   Options
	vcs    vcs.Adapter
	warn   *warnings.Registry
	logger *slog.Logger
}

// New builds a Matcher.
func New(opts Options, adapter vcs.Adapter, warn *warnings.Registry, logger *slog.Logger) *Matcher {
	if adapter == nil {
		adapter = vcs.None{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{opts: opts, vcs: adapter, warn: warn, logger: logger}
}

// Match returns the deterministically ordered (lexicographic by
// project-relative path) file list for t.
func (m *Matcher) Match(ctx context.Context, t *tool.Spec) ([]*fingerprint.File, error) {
	base := m.opts.Root
	if t.Dir != "" {
		base = filepath.Join(m.opts.Root, t.Dir)
	}

	var candidates []string // paths relative to base
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != base && pruneDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if matchesAny(t.Include, rel) {
			candidates = append(candidates, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var staged map[string]bool
	if m.opts.Staged {
		files, err := m.vcs.StagedFiles(ctx)
		if err != nil {
			if m.warn != nil {
				m.warn.Emit(warnings.Refs, "staged file query failed: "+err.Error())
			}
		} else {
			staged = make(map[string]bool, len(files))
			for _, f := range files {
				staged[f] = true
			}
		}
	}

	var out []*fingerprint.File
	for _, rel := range candidates {
		projRel := filepath.ToSlash(filepath.Join(t.Dir, rel))

		if matchesAny(t.Ignore, rel) || matchesAny(m.opts.GlobalIgnore, projRel) {
			continue
		}
		if len(m.opts.OnlyFiles) > 0 && !matchesAny(m.opts.OnlyFiles, projRel) {
			continue
		}
		if matchesAny(m.opts.SkipFiles, projRel) {
			continue
		}
		if staged != nil && !staged[projRel] {
			continue
		}

		abs := filepath.Join(base, rel)
		f, err := fingerprint.Load(projRel, abs)
		if err != nil {
			if m.warn != nil {
				m.warn.Emit(warnings.NoFiles, "cannot stat "+projRel+": "+err.Error())
			}
			continue
		}
		out = append(out, f)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })

	if len(out) == 0 && m.warn != nil {
		m.warn.Emit(warnings.NoFiles, t.Name+": no files matched")
	}

	return out, nil
}

func matchesAny(globs []string, rel string) bool {
	for _, g := range globs {
		g = strings.TrimPrefix(g, "./")
		ok, err := doublestar.Match(g, rel)
		if err == nil && ok {
			return true
		}
	}
	return false
}
