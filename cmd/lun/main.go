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

// Package main implements the lun CLI: an incremental dispatcher that runs
// configured linters and formatters only over the files that actually need
// them.
//
// Usage:
//
//	lun                         Run every configured tool (spec default mode)
//	lun --check                 Check mode: linters run as-is, formatters run their check command
//	lun --format                Format mode: formatters only
//	lun --fix                   Fix mode: linters run their fix command
//	lun clean                   Delete the local cache
//	lun cache stats|gc|rm       Inspect or manage the local cache
package main

import (
	"fmt"
	"os"

	"github.com/lun-build/lun/internal/clierr"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	args := os.Args[1:]

	if len(args) > 0 {
		switch args[0] {
		case "clean":
			runClean(args[1:])
			return
		case "cache":
			runCacheCmd(args[1:])
			return
		case "--version", "-V":
			fmt.Printf("lun version %s (%s)\n", version, commit)
			return
		case "--help", "-h":
			printUsage()
			return
		}
	}

	code, err := runPipeline(args)
	if err != nil {
		clierr.FatalError(err, false)
	}
	os.Exit(code)
}

func printUsage() {
	fmt.Fprint(os.Stderr, `lun - incremental linter and formatter dispatcher

Usage:
  lun [options]               Run configured tools over the project
  lun clean                   Delete the local cache
  lun cache stats             Show cache occupancy
  lun cache gc                Force an eviction pass
  lun cache rm                Delete the local cache (alias of 'lun clean')

Options:
  --config PATH          Path to lun.toml (default: ./lun.toml)
  --check                 Check mode: report without mutating
  --format                Format mode: formatters only
  --fix                   Fix mode: linters run their fix command
  --staged                Restrict to files staged in version control
  --dry-run               Print commands without executing them
  --no-batch              One subprocess invocation per file
  --ninja                 Write a build.ninja file instead of running
  --watch                 Re-run on file changes until interrupted
  --only-files GLOB       Restrict to files matching GLOB (repeatable)
  --skip-files GLOB       Exclude files matching GLOB (repeatable)
  --no-cache              Disable cache reads and writes
  --no-refs               Disable the VCS ref tier
  --fresh                 Equivalent to --no-cache --no-refs
  --no-mtime              Disable the mtime tier for this run
  --careful               Mix each tool's --version output into its cache key
  --cache-size BYTES      Override the configured cache budget
  --color MODE            auto, always, or never
  -A, --allow WARNING     Downgrade WARNING to allow (repeatable)
  -W, --warn WARNING      Set WARNING to warn (repeatable)
  -D, --deny WARNING      Upgrade WARNING to deny, forcing a non-zero exit (repeatable)
  --metrics-addr ADDR     Serve Prometheus metrics at ADDR while running
  -V, --version           Show version and exit
`)
}
