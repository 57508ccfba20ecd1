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
// Package tool models a single configured linter or formatter (spec §3):
// its identity, command templates for each mode, and the cache-key
// contributing attributes (config files, env prefix, working directory).
package tool

import "strings"

// Kind distinguishes linters from formatters for mode-selection purposes
// (spec §4.F "Modes").
type Kind int

const (
	Linter Kind = iota
	Formatter
)

func (k Kind) String() string {
	if k == Formatter {
		return "formatter"
	}
	return "linter"
}

// Granularity controls how the Batcher groups a tool's surviving files
// (spec §4.E).
type Granularity int

const (
	// Individual tools may be batched (LPT packing) or split one-per-file
	// when --no-batch is set.
	Individual Granularity = iota
	// Batch tools always receive every surviving file in one invocation.
	Batch
)

// Mode is the run mode selected by CLI flags (spec §4.F).
type Mode int

const (
	ModeRun Mode = iota
	ModeCheck
	ModeFix
	ModeFormat
)

// Spec is a fully resolved tool definition, as it would be produced by the
// (out-of-scope) TOML configuration loader.
type Spec struct {
	// Name is the tool's stable display identity.
	Name string
	Kind Kind

	// Cmd is the primary command template (tokens, pre-split).
	Cmd []string
	// Check is the formatter check-mode command, if any.
	Check []string
	// Fix is the linter fix-mode command, if any.
	Fix []string

	// Dir is the tool's working directory, project-relative. Empty means
	// the invocation directory.
	Dir string

	Granularity Granularity

	Include []string
	Ignore  []string

	// ConfigFiles lists paths whose metadata contributes to the cache key,
	// in declared order (spec §3 item 5).
	ConfigFiles []string
}

// EnvPrefix derives the environment-variable name prefix from the tool's
// executable basename: upper-cased, followed by "_" (spec §3).
func (s *Spec) EnvPrefix() string {
	if len(s.Cmd) == 0 {
		return ""
	}
	exe := s.Cmd[0]
	if idx := strings.LastIndexAny(exe, "/\\"); idx >= 0 {
		exe = exe[idx+1:]
	}
	return strings.ToUpper(exe) + "_"
}

// CommandFor resolves the command template for a given run mode, applying
// the fallbacks from spec §4.F:
//   - ModeCheck: a formatter's Check command, or its Cmd if none; a linter's
//     Cmd.
//   - ModeFix: a linter's Fix command, or its Cmd if none; a formatter's
//     Cmd.
//   - ModeFormat, ModeRun: the tool's Cmd.
func (s *Spec) CommandFor(mode Mode) []string {
	switch mode {
	case ModeCheck:
		if s.Kind == Formatter && len(s.Check) > 0 {
			return s.Check
		}
		return s.Cmd
	case ModeFix:
		if s.Kind == Linter && len(s.Fix) > 0 {
			return s.Fix
		}
		return s.Cmd
	default:
		return s.Cmd
	}
}

// AppliesToMode reports whether this tool participates in a run under the
// given mode. --format restricts the tool set to formatters (spec §4.F);
// every other mode runs both kinds.
func (s *Spec) AppliesToMode(mode Mode) bool {
	if mode == ModeFormat {
		return s.Kind == Formatter
	}
	return true
}
