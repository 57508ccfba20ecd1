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
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/lun-build/lun/internal/clierr"
	"github.com/lun-build/lun/internal/tool"
)

// tomlDoc mirrors the shape of lun.toml. Field names follow spec §6.
type tomlDoc struct {
	Careful   bool     `toml:"careful"`
	Cores     int      `toml:"cores"`
	Mtime     *bool    `toml:"mtime"`
	Ninja     bool     `toml:"ninja"`
	Refs      []string `toml:"refs"`
	Ignore    []string `toml:"ignore"`
	CacheSize int64    `toml:"cache_size"`

	Allow []string `toml:"allow"`
	Warn  []string `toml:"warn"`
	Deny  []string `toml:"deny"`

	Linters    []tomlTool `toml:"linters"`
	Formatters []tomlTool `toml:"formatters"`
}

type tomlTool struct {
	Name        string   `toml:"name"`
	Cmd         []string `toml:"cmd"`
	Check       []string `toml:"check"`
	Fix         []string `toml:"fix"`
	Dir         string   `toml:"cd"`
	Batch       bool     `toml:"batch"`
	Include     []string `toml:"include"`
	Ignore      []string `toml:"ignore"`
	ConfigFiles []string `toml:"config"`
}

func (t tomlTool) resolve(kind tool.Kind) *tool.Spec {
	gran := tool.Individual
	if t.Batch {
		gran = tool.Batch
	}
	return &tool.Spec{
		Name:        t.Name,
		Kind:        kind,
		Cmd:         t.Cmd,
		Check:       t.Check,
		Fix:         t.Fix,
		Dir:         t.Dir,
		Granularity: gran,
		Include:     t.Include,
		Ignore:      t.Ignore,
		ConfigFiles: t.ConfigFiles,
	}
}

// Load reads and parses path into a Resolved configuration.
func Load(path string) (*Resolved, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, clierr.NewConfigError(
			fmt.Sprintf("cannot read config %s", path),
			"create a lun.toml, or pass --config PATH",
			err,
		)
	}

	var doc tomlDoc
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, clierr.NewConfigError(
			fmt.Sprintf("invalid TOML in %s", path),
			"check for syntax errors in lun.toml",
			err,
		)
	}

	r := &Resolved{
		Careful:   doc.Careful,
		Cores:     doc.Cores,
		Mtime:     true,
		Ninja:     doc.Ninja,
		Refs:      doc.Refs,
		Ignore:    doc.Ignore,
		CacheSize: doc.CacheSize,
		Allow:     doc.Allow,
		Warn:      doc.Warn,
		Deny:      doc.Deny,
	}
	if doc.Mtime != nil {
		r.Mtime = *doc.Mtime
	}
	for _, lt := range doc.Linters {
		if len(lt.Cmd) == 0 {
			return nil, clierr.NewConfigError(
				fmt.Sprintf("linter %q has no cmd", lt.Name),
				"every tool needs at least a cmd",
				nil,
			)
		}
		r.Linters = append(r.Linters, lt.resolve(tool.Linter))
	}
	for _, ft := range doc.Formatters {
		if len(ft.Cmd) == 0 {
			return nil, clierr.NewConfigError(
				fmt.Sprintf("formatter %q has no cmd", ft.Name),
				"every tool needs at least a cmd",
				nil,
			)
		}
		r.Formatters = append(r.Formatters, ft.resolve(tool.Formatter))
	}
	return r, nil
}
