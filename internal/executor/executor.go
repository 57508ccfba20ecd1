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
// Package executor runs batches of files through a tool's subprocess in
// parallel, attributes results back to individual files, and commits
// successful outcomes to the cache store (spec §4.F, component F).
package executor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fatih/color"

	"github.com/lun-build/lun/internal/batcher"
	"github.com/lun-build/lun/internal/cachestore"
	"github.com/lun-build/lun/internal/fingerprint"
	"github.com/lun-build/lun/internal/skiporacle"
	"github.com/lun-build/lun/internal/tool"
)

// ProgressFunc reports batch completion for a progress bar, mirroring the
// (current, total, phase) callback shape used elsewhere in this codebase
// for long-running operations.
type ProgressFunc func(current, total int64, phase string)

// BatchResult is the outcome of running one batch.
type BatchResult struct {
	Tool        string
	CommandLine string
	Files       []*fingerprint.File
	Success     bool
	DryRun      bool
	Output      []byte
	Err         error
}

// Executor runs batches across a bounded worker pool.
type Executor struct {
	Workers  int
	Cache    *cachestore.Store
	MtimeOn  bool
	Logger   *slog.Logger
	Stdout   io.Writer
	Progress ProgressFunc

	// OnBatchDone, if set, is called once per completed (or skipped)
	// batch for metrics.
	OnBatchDone func(success bool)

	mu sync.Mutex
}

// New builds an Executor.
func New(workers int, cache *cachestore.Store, mtimeOn bool, logger *slog.Logger, stdout io.Writer) *Executor {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{Workers: workers, Cache: cache, MtimeOn: mtimeOn, Logger: logger, Stdout: stdout}
}

// expandTemplate replaces {{color}} with colorLiteral in every token.
// Unknown placeholders pass through unchanged (spec §6).
func expandTemplate(cmd []string, colorLiteral string) []string {
	out := make([]string, len(cmd))
	for i, tok := range cmd {
		out[i] = strings.ReplaceAll(tok, "{{color}}", colorLiteral)
	}
	return out
}

// relativeToDir converts a project-relative path to one relative to the
// tool's working directory (spec §4.F step 3).
func relativeToDir(projRel, dir string) string {
	if dir == "" {
		return projRel
	}
	prefix := dir + "/"
	if strings.HasPrefix(projRel, prefix) {
		return projRel[len(prefix):]
	}
	return projRel
}

// buildInvocation materializes argv and the display command line for one
// batch (spec §4.F steps 1-3).
func buildInvocation(t *tool.Spec, mode tool.Mode, colorLiteral string, files []*fingerprint.File) (argv []string, display string) {
	expanded := expandTemplate(t.CommandFor(mode), colorLiteral)

	args := make([]string, 0, len(files))
	for _, f := range files {
		args = append(args, relativeToDir(f.Path, t.Dir))
	}

	full := append(append([]string(nil), expanded...), args...)
	line := strings.Join(full, " ")
	if t.Dir != "" {
		display = fmt.Sprintf("cd %s && %s", t.Dir, line)
	} else {
		display = line
	}
	return full, display
}

// RunTool runs every batch for t under mode. keys maps each file's
// project-relative path to the Skip Oracle decision that precomputed its
// cache keys, so a successful batch commits without recomputing digests.
// If dryRun, commands are printed but never spawned and no cache mutation
// occurs (spec §4.F "Modes", §8 invariant 6).
func (e *Executor) RunTool(ctx context.Context, t *tool.Spec, mode tool.Mode, dir string, batches []batcher.Batch, keys map[string]skiporacle.Decision, colorLiteral string, dryRun bool) []BatchResult {
	if len(batches) == 0 {
		return nil
	}

	workers := e.Workers
	if workers > len(batches) {
		workers = len(batches)
	}

	jobs := make(chan int, len(batches))
	results := make([]BatchResult, len(batches))

	var wg sync.WaitGroup
	var completed int64
	total := int64(len(batches))

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}
				results[i] = e.runOne(ctx, t, mode, dir, batches[i], keys, colorLiteral, dryRun)
				if e.OnBatchDone != nil {
					e.OnBatchDone(results[i].Success)
				}
				if e.Progress != nil {
					n := atomic.AddInt64(&completed, 1)
					e.Progress(n, total, "execute")
				}
			}
		}()
	}
	for i := range batches {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}

func (e *Executor) runOne(ctx context.Context, t *tool.Spec, mode tool.Mode, dir string, b batcher.Batch, keys map[string]skiporacle.Decision, colorLiteral string, dryRun bool) BatchResult {
	argv, display := buildInvocation(t, mode, colorLiteral, b.Files)

	e.printLine(t, display)

	res := BatchResult{Tool: t.Name, CommandLine: display, Files: b.Files}

	if dryRun {
		res.Success = true
		res.DryRun = true
		return res
	}
	if len(argv) == 0 {
		res.Err = fmt.Errorf("executor: empty command for tool %q", t.Name)
		return res
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if t.Dir != "" {
		cmd.Dir = filepath.Join(dir, t.Dir)
	} else {
		cmd.Dir = dir
	}

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	res.Output = buf.Bytes()

	if err != nil {
		res.Success = false
		res.Err = err
		e.flushFailure(t, res.Output)
		return res
	}

	res.Success = true
	e.commit(b.Files, keys)
	return res
}

// printLine echoes the command before execution (spec §7 "User-visible
// output"), colorized by tool name when color is enabled.
func (e *Executor) printLine(t *tool.Spec, display string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	label := color.New(color.FgCyan).Sprint(t.Name)
	fmt.Fprintf(e.Stdout, "%s: %s\n", label, display)
}

// flushFailure writes a batch's captured output under the tool's display
// name in one contiguous write (spec §4.F step 4, §5 "per-batch stdout is
// atomic").
func (e *Executor) flushFailure(t *tool.Spec, output []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	label := color.New(color.FgRed, color.Bold).Sprint(t.Name)
	fmt.Fprintf(e.Stdout, "--- %s (failed) ---\n", label)
	e.Stdout.Write(output)
	if len(output) == 0 || output[len(output)-1] != '\n' {
		fmt.Fprintln(e.Stdout)
	}
}

// commit inserts a content cache entry (and mtime entry if enabled) for
// every file in a successful batch (spec §4.F "Success commits").
func (e *Executor) commit(files []*fingerprint.File, keys map[string]skiporacle.Decision) {
	now := time.Now()
	for _, f := range files {
		d, ok := keys[f.Path]
		if !ok {
			continue
		}
		if d.HaveCKey {
			if err := e.Cache.Insert(cachestore.ContentTier, d.CKey, now); err != nil {
				e.Logger.Warn("executor.commit.content_error", "path", f.Path, "err", err)
			}
		}
		if e.MtimeOn && d.HaveMKey {
			if err := e.Cache.Insert(cachestore.MtimeTier, d.MKey, now); err != nil {
				e.Logger.Warn("executor.commit.mtime_error", "path", f.Path, "err", err)
			}
		}
	}
}
