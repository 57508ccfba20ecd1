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
// Package vcs defines the version-control query interface the core
// consumes (spec §6 "VCS adapter interface") and a git-backed
// implementation of it.
package vcs

import "context"

// Adapter answers the two questions the Matcher and Skip Oracle need of
// version control: which files are staged, and whether a file's
// working-tree bytes are byte-identical to a given ref.
type Adapter interface {
	// StagedFiles returns the project-relative paths currently staged for
	// commit.
	StagedFiles(ctx context.Context) ([]string, error)

	// FileMatchesRef reports whether path's current working-tree bytes
	// equal the blob stored at ref:path.
	FileMatchesRef(ctx context.Context, path, ref string) (bool, error)
}

// None is a no-op Adapter used when no VCS is configured or --no-refs is
// set: staged queries return empty, and ref checks always miss.
type None struct{}

func (None) StagedFiles(ctx context.Context) ([]string, error) { return nil, nil }

func (None) FileMatchesRef(ctx context.Context, path, ref string) (bool, error) {
	return false, nil
}
