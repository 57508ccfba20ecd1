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
// Package config defines the resolved configuration record the core
// consumes (spec §6 "Consumed configuration"). Loading it from a project's
// lun.toml is an ambient, non-core concern (spec §1 "Out of scope": the
// TOML configuration loader); Resolved is the interface boundary.
package config

import "github.com/lun-build/lun/internal/tool"

// Resolved is the fully-resolved configuration a Pipeline run is built
// from.
type Resolved struct {
	Careful   bool
	Cores     int
	Mtime     bool
	Ninja     bool
	Refs      []string
	Ignore    []string
	CacheSize int64

	Allow []string
	Warn  []string
	Deny  []string

	Linters    []*tool.Spec
	Formatters []*tool.Spec
}

// AllTools returns every configured tool, linters first.
func (r *Resolved) AllTools() []*tool.Spec {
	out := make([]*tool.Spec, 0, len(r.Linters)+len(r.Formatters))
	out = append(out, r.Linters...)
	out = append(out, r.Formatters...)
	return out
}

// Default returns a Resolved with spec-documented defaults: mtime tier on,
// no refs, no ignores, no tools.
func Default() *Resolved {
	return &Resolved{Mtime: true}
}
