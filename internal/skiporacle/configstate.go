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
package skiporacle

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigState persists, per tool, the mtime last observed for each of its
// declared config files. It resolves spec §4.C's "invalidation corner
// case": a config file can be rewritten without its stat snapshot
// differing enough to change mkey (same size, same mode), so detecting
// "the config changed since last run" needs state independent of the
// cache-key mechanism itself. Modeled on the project manifest's persisted
// per-file state, atomically saved the same way.
type ConfigState struct {
	mu    sync.Mutex
	path  string
	Tools map[string]map[string]int64 `yaml:"tools"`
}

func configStatePath(cacheRoot string) string {
	return filepath.Join(cacheRoot, "configstate.yaml")
}

// LoadConfigState loads the state file, or returns an empty one if it is
// absent or unparsable (a corrupt config-state file degrades to "every
// tool's config looks changed this run", never a fatal error).
func LoadConfigState(cacheRoot string) *ConfigState {
	path := configStatePath(cacheRoot)
	cs := &ConfigState{path: path, Tools: make(map[string]map[string]int64)}
	data, err := os.ReadFile(path)
	if err != nil {
		return cs
	}
	_ = yaml.Unmarshal(data, cs)
	if cs.Tools == nil {
		cs.Tools = make(map[string]map[string]int64)
	}
	return cs
}

// Changed reports whether any of toolName's config files has a different
// mtime than what was recorded at the end of the last run (or is new).
func (cs *ConfigState) Changed(toolName string, configFiles []string) bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	prev, ok := cs.Tools[toolName]
	if !ok {
		return len(configFiles) > 0
	}
	for _, path := range configFiles {
		fi, err := os.Stat(path)
		var current int64
		if err == nil {
			current = fi.ModTime().UnixNano()
		}
		if seen, ok := prev[path]; !ok || seen != current {
			return true
		}
	}
	return false
}

// Update records the current mtime of toolName's config files. Called
// after a run regardless of per-file outcome, since this tracks when the
// developer last edited configuration, not whether tools succeeded.
func (cs *ConfigState) Update(toolName string, configFiles []string) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	m := make(map[string]int64, len(configFiles))
	for _, path := range configFiles {
		if fi, err := os.Stat(path); err == nil {
			m[path] = fi.ModTime().UnixNano()
		}
	}
	cs.Tools[toolName] = m
}

// Save persists the state atomically (temp file + rename).
func (cs *ConfigState) Save() error {
	cs.mu.Lock()
	data, err := yaml.Marshal(cs)
	cs.mu.Unlock()
	if err != nil {
		return err
	}
	tmp := fmt.Sprintf("%s.%d.tmp", cs.path, time.Now().UnixNano())
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, cs.path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
