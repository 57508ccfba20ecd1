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

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	flag "github.com/spf13/pflag"
	"github.com/schollz/progressbar/v3"

	"github.com/lun-build/lun/internal/clierr"
	"github.com/lun-build/lun/internal/config"
	"github.com/lun-build/lun/internal/metrics"
	"github.com/lun-build/lun/internal/ninjafile"
	"github.com/lun-build/lun/internal/pipeline"
	"github.com/lun-build/lun/internal/vcs"
	"github.com/lun-build/lun/internal/warnings"
	"github.com/lun-build/lun/internal/watch"
)

// parseFlags builds a config.Flags from argv, per spec §6's "Flags
// affecting the core".
func parseFlags(args []string) (*config.Flags, string, error) {
	fs := flag.NewFlagSet("lun", flag.ContinueOnError)

	f := &config.Flags{}
	configPath := fs.StringP("config", "c", "lun.toml", "Path to lun.toml")
	check := fs.Bool("check", false, "Check mode")
	format := fs.Bool("format", false, "Format mode (formatters only)")
	fix := fs.Bool("fix", false, "Fix mode")
	fs.BoolVar(&f.Staged, "staged", false, "Restrict to staged files")
	fs.BoolVar(&f.DryRun, "dry-run", false, "Print commands without executing")
	fs.BoolVar(&f.NoBatch, "no-batch", false, "One invocation per file")
	fs.BoolVar(&f.Ninja, "ninja", false, "Emit build.ninja instead of running")
	fs.BoolVar(&f.Watch, "watch", false, "Re-run on file changes")
	fs.StringArrayVar(&f.OnlyFiles, "only-files", nil, "Restrict to files matching GLOB")
	fs.StringArrayVar(&f.SkipFiles, "skip-files", nil, "Exclude files matching GLOB")
	fs.BoolVar(&f.NoCache, "no-cache", false, "Disable cache reads and writes")
	fs.BoolVar(&f.NoRefs, "no-refs", false, "Disable the VCS ref tier")
	fs.BoolVar(&f.Fresh, "fresh", false, "Equivalent to --no-cache --no-refs")
	fs.BoolVar(&f.NoMtime, "no-mtime", false, "Disable the mtime tier")
	fs.BoolVar(&f.Careful, "careful", false, "Mix --version output into the cache key")
	fs.Int64Var(&f.CacheSize, "cache-size", 0, "Override the configured cache budget, in bytes")
	colorMode := fs.String("color", "auto", "auto, always, or never")
	fs.StringArrayVarP(&f.Allow, "allow", "A", nil, "Downgrade WARNING to allow")
	fs.StringArrayVarP(&f.Warn, "warn", "W", nil, "Set WARNING to warn")
	fs.StringArrayVarP(&f.Deny, "deny", "D", nil, "Upgrade WARNING to deny")
	metricsAddr := fs.String("metrics-addr", "", "Serve Prometheus metrics at ADDR while running")

	if err := fs.Parse(args); err != nil {
		return nil, "", clierr.NewUsageError("invalid flags", "run 'lun --help' for usage", err)
	}

	switch {
	case *format:
		f.Mode = config.ModeFormat
	case *fix:
		f.Mode = config.ModeFix
	case *check:
		f.Mode = config.ModeCheck
	}

	switch config.ColorMode(*colorMode) {
	case config.ColorAuto, config.ColorAlways, config.ColorNever:
		f.Color = config.ColorMode(*colorMode)
	default:
		return nil, "", clierr.NewUsageError(
			fmt.Sprintf("invalid --color value %q", *colorMode),
			"use auto, always, or never",
			nil,
		)
	}

	f.ConfigPath = *configPath
	f.MetricsAddr = *metricsAddr
	return f, *configPath, nil
}

// runPipeline is the default CLI action: load configuration, build a
// pipeline.Run, and execute it once (or in a --watch loop).
func runPipeline(args []string) (int, error) {
	f, configPath, err := parseFlags(args)
	if err != nil {
		return 2, err
	}
	applyColorMode(f.Color)

	cfg := config.Default()
	if _, statErr := os.Stat(configPath); statErr == nil {
		loaded, loadErr := config.Load(configPath)
		if loadErr != nil {
			return 2, loadErr
		}
		cfg = loaded
	}
	cfg = f.Apply(cfg)

	root, err := os.Getwd()
	if err != nil {
		return 2, clierr.NewConfigError("cannot determine working directory", "", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	warn := warnings.New(cfg.Allow, cfg.Warn, cfg.Deny, logger)

	var adapter vcs.Adapter = vcs.None{}
	if len(cfg.Refs) > 0 || f.Staged {
		if g, gitErr := vcs.NewGit(root); gitErr == nil {
			adapter = g
		} else {
			logger.Warn("run.vcs_unavailable", "err", gitErr)
		}
	}

	var metricsCollector *metrics.Collector
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if f.MetricsAddr != "" {
		metricsCollector = metrics.New()
		go func() {
			if err := metricsCollector.Serve(ctx, f.MetricsAddr); err != nil {
				logger.Warn("run.metrics_server_error", "err", err)
			}
		}()
	}

	barWriter := io.Writer(os.Stderr)
	if f.DryRun || f.MetricsAddr != "" {
		barWriter = io.Discard
	}
	bar := progressbar.NewOptions64(-1,
		progressbar.OptionSetDescription("lun"),
		progressbar.OptionSetWriter(barWriter),
	)
	progress := func(current, total int64, phase string) {
		bar.ChangeMax64(total)
		_ = bar.Set64(current)
	}

	runOnce := func(runCtx context.Context) (*pipeline.Result, error) {
		run := pipeline.New(cfg, f, root, adapter, logger, warn, metricsCollector, os.Stdout)
		run.Progress = progress
		return run.Execute(runCtx)
	}

	if f.Ninja {
		ninjaFlags := *f
		ninjaFlags.DryRun = true
		run := pipeline.New(cfg, &ninjaFlags, root, adapter, logger, warn, metricsCollector, os.Stdout)
		result, err := run.Execute(ctx)
		if err != nil {
			return 2, err
		}
		out, err := os.Create(filepath.Join(root, "build.ninja"))
		if err != nil {
			return 2, clierr.NewConfigError("cannot write build.ninja", "", err)
		}
		defer out.Close()
		if err := ninjafile.Write(out, result); err != nil {
			return 2, err
		}
		return 0, nil
	}

	if f.Watch {
		err := watch.Run(ctx, root, logger, runOnce)
		if err != nil {
			return 1, err
		}
		return 0, nil
	}

	result, err := runOnce(ctx)
	if err != nil {
		return 1, err
	}
	return result.ExitCode, nil
}
