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
// Package pipeline composes the Matcher, Fingerprinter, Skip Oracle,
// Batcher, and Executor into the top-level orchestrator (spec §4.G,
// component G): discover → fingerprint → skip → batch → execute → commit
// cache.
package pipeline

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lun-build/lun/internal/batcher"
	"github.com/lun-build/lun/internal/cachestore"
	"github.com/lun-build/lun/internal/config"
	"github.com/lun-build/lun/internal/executor"
	"github.com/lun-build/lun/internal/fingerprint"
	"github.com/lun-build/lun/internal/matcher"
	"github.com/lun-build/lun/internal/metrics"
	"github.com/lun-build/lun/internal/skiporacle"
	"github.com/lun-build/lun/internal/tool"
	"github.com/lun-build/lun/internal/vcs"
	"github.com/lun-build/lun/internal/warnings"
)

// ToolResult summarizes one tool's contribution to a run.
type ToolResult struct {
	Tool     string
	Skipped  int
	Executed int
	Batches  []executor.BatchResult
}

// Result is the outcome of a full pipeline run.
type Result struct {
	Tools    []ToolResult
	ExitCode int
}

func (r *Result) anyFailure() bool {
	for _, t := range r.Tools {
		for _, b := range t.Batches {
			if !b.Success {
				return true
			}
		}
	}
	return false
}

// Run holds everything one pipeline invocation needs (spec §3 "Pipeline
// run"): resolved configuration, CLI flags, the project root, and a VCS
// adapter. Per-tool results are accumulated in the Result that Execute
// returns.
type Run struct {
	Config *config.Resolved
	Flags  *config.Flags
	Root   string
	VCS    vcs.Adapter
	Logger *slog.Logger
	Warn   *warnings.Registry
	Metrics *metrics.Collector
	Stdout io.Writer
	Progress executor.ProgressFunc
}

// New builds a Run, defaulting any unset collaborator to a safe no-op.
func New(cfg *config.Resolved, flags *config.Flags, root string, adapter vcs.Adapter, logger *slog.Logger, warn *warnings.Registry, m *metrics.Collector, stdout io.Writer) *Run {
	if adapter == nil {
		adapter = vcs.None{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if stdout == nil {
		stdout = os.Stdout
	}
	return &Run{Config: cfg, Flags: flags, Root: root, VCS: adapter, Logger: logger, Warn: warn, Metrics: m, Stdout: stdout}
}

func toolMode(m config.Mode) tool.Mode {
	switch m {
	case config.ModeCheck:
		return tool.ModeCheck
	case config.ModeFix:
		return tool.ModeFix
	case config.ModeFormat:
		return tool.ModeFormat
	default:
		return tool.ModeRun
	}
}

// Execute runs the full pipeline (spec §4.G). It returns 0 iff every
// subprocess exited 0 and no deny-level warning was emitted (spec §6
// "Exit codes").
func (r *Run) Execute(ctx context.Context) (*Result, error) {
	mode := toolMode(r.Flags.Mode)

	tools := make([]*tool.Spec, 0)
	for _, t := range r.Config.AllTools() {
		if t.AppliesToMode(mode) {
			tools = append(tools, t)
		}
	}
	if len(tools) == 0 {
		return &Result{ExitCode: 0}, nil
	}

	workers := r.Config.Cores
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	var store *cachestore.Store
	var cs *skiporacle.ConfigState
	cacheRoot := filepath.Join(r.Root, ".lun", "cache")
	if !r.Flags.NoCache {
		var err error
		store, err = cachestore.Open(cacheRoot, r.Config.CacheSize, r.Logger)
		if err != nil {
			r.Logger.Warn("pipeline.cache.open_error", "err", err)
			store = nil
		} else {
			cs = skiporacle.LoadConfigState(cacheRoot)
		}
	}

	fp := fingerprint.New()
	mOpts := matcher.Options{
		Root:         r.Root,
		GlobalIgnore: r.Config.Ignore,
		OnlyFiles:    r.Flags.OnlyFiles,
		SkipFiles:    r.Flags.SkipFiles,
		Staged:       r.Flags.Staged,
	}
	m := matcher.New(mOpts, r.VCS, r.Warn, r.Logger)

	// Careful mode's --version probe is independent per tool, so every
	// tool's probe runs concurrently ahead of the main loop instead of
	// serializing it with matching and execution.
	versions := make(map[string]versionInfo, len(tools))
	if r.Config.Careful || r.Flags.Careful {
		var vmu sync.Mutex
		g, gctx := errgroup.WithContext(ctx)
		for _, t := range tools {
			t := t
			g.Go(func() error {
				v := r.resolveVersion(gctx, t)
				vmu.Lock()
				versions[t.Name] = v
				vmu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
	}

	result := &Result{}

	for _, t := range tools {
		if ctx.Err() != nil {
			break
		}

		files, err := m.Match(ctx, t)
		if err != nil {
			r.Logger.Warn("pipeline.match.error", "tool", t.Name, "err", err)
			continue
		}
		if len(files) == 0 {
			continue
		}

		version := versions[t.Name]

		mtimeEnabled := r.Config.Mtime && store != nil
		var configChanged bool
		if cs != nil {
			configChanged = cs.Changed(t.Name, absConfigFiles(r.Root, t.ConfigFiles))
		}

		tr := ToolResult{Tool: t.Name}
		keys := make(map[string]skiporacle.Decision, len(files))
		var missFiles []*fingerprint.File

		if store != nil {
			oracle := skiporacle.New(store, fp, r.VCS, r.Config.Refs, mtimeEnabled, r.Warn)
			for _, f := range files {
				in := r.buildInputs(t, f, mode, version)
				d, err := oracle.Decide(ctx, in, configChanged)
				if err != nil {
					r.Logger.Warn("pipeline.fingerprint.error", "path", f.Path, "err", err)
					missFiles = append(missFiles, f)
					continue
				}
				if d.Skip {
					tr.Skipped++
					if r.Metrics != nil {
						r.Metrics.CacheHits.WithLabelValues(string(d.Tier)).Inc()
						r.Metrics.FilesSkipped.Inc()
					}
					continue
				}
				keys[f.Path] = d
				missFiles = append(missFiles, f)
			}
		} else {
			missFiles = files
		}

		if len(missFiles) > 0 {
			batches := batcher.Plan(missFiles, t.Granularity, workers, r.Flags.NoBatch)
			tr.Executed = len(missFiles)
			if r.Metrics != nil {
				r.Metrics.FilesExecuted.Add(float64(len(missFiles)))
			}

			exec := executor.New(workers, store, mtimeEnabled, r.Logger, r.Stdout)
			exec.Progress = r.Progress
			if r.Metrics != nil {
				exec.OnBatchDone = func(success bool) {
					r.Metrics.BatchesRun.Inc()
					if !success {
						r.Metrics.BatchFailures.Inc()
					}
				}
			}
			tr.Batches = exec.RunTool(ctx, t, mode, r.Root, batches, keys, string(r.Flags.Color), r.Flags.DryRun)
		}

		if cs != nil {
			cs.Update(t.Name, absConfigFiles(r.Root, t.ConfigFiles))
		}

		result.Tools = append(result.Tools, tr)
	}

	if store != nil {
		_ = store.Flush()
		if cs != nil {
			_ = cs.Save()
		}
		if _, err := store.GC(r.Config.CacheSize, cachestore.DefaultRetentionHorizon); err != nil {
			r.Logger.Warn("pipeline.gc.error", "err", err)
		}
	}

	switch {
	case ctx.Err() != nil:
		result.ExitCode = 1
	case result.anyFailure():
		result.ExitCode = 1
	case r.Warn != nil && r.Warn.Denied():
		result.ExitCode = 1
	default:
		result.ExitCode = 0
	}
	return result, nil
}

func absConfigFiles(root string, paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = filepath.Join(root, p)
	}
	return out
}

// buildInputs assembles the fingerprint.Inputs for one (file, tool) pair.
// The effective command line excludes per-file arguments (spec §3 item 3
// describes the tool's command, not a specific batch's argv) so the key
// is stable regardless of how files happen to be batched together.
func (r *Run) buildInputs(t *tool.Spec, f *fingerprint.File, mode tool.Mode, version versionInfo) fingerprint.Inputs {
	cmd := t.CommandFor(mode)
	expanded := make([]string, len(cmd))
	for i, tok := range cmd {
		expanded[i] = strings.ReplaceAll(tok, "{{color}}", string(r.Flags.Color))
	}

	cfMetas := make([]fingerprint.ConfigFileMeta, 0, len(t.ConfigFiles))
	for _, cfg := range t.ConfigFiles {
		abs := filepath.Join(r.Root, cfg)
		snap, err := fingerprint.Stat(abs)
		cfMetas = append(cfMetas, fingerprint.ConfigFileMeta{Path: cfg, Present: err == nil, Stat: snap})
	}

	prefix := t.EnvPrefix()
	var envs []fingerprint.EnvVar
	if prefix != "" {
		for _, kv := range os.Environ() {
			if idx := strings.IndexByte(kv, '='); idx > 0 && strings.HasPrefix(kv[:idx], prefix) {
				envs = append(envs, fingerprint.EnvVar{Name: kv[:idx], Value: kv[idx+1:]})
			}
		}
	}

	return fingerprint.Inputs{
		File:          f,
		Command:       expanded,
		Dir:           t.Dir,
		ConfigFiles:   cfMetas,
		EnvVars:       envs,
		Careful:       r.Config.Careful || r.Flags.Careful,
		VersionOutput: version.output,
		VersionKnown:  version.known,
	}
}

type versionInfo struct {
	output string
	known  bool
}

// resolveVersion runs the tool's executable with --version once per tool
// per pipeline run, when careful mode is on (spec §3 item 7).
func (r *Run) resolveVersion(ctx context.Context, t *tool.Spec) versionInfo {
	if !(r.Config.Careful || r.Flags.Careful) {
		return versionInfo{}
	}
	if len(t.Cmd) == 0 {
		return versionInfo{}
	}
	vctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	out, err := exec.CommandContext(vctx, t.Cmd[0], "--version").Output()
	if err != nil {
		if r.Warn != nil {
			r.Warn.Emit(warnings.Careful, t.Name+": --version failed: "+err.Error())
		}
		return versionInfo{}
	}
	return versionInfo{output: string(out), known: true}
}
