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

// Package ninjafile emits a Ninja build file describing the batch
// invocations a pipeline run would perform, for --ninja (spec §1 "Out of
// scope: the Ninja build-file emitter"). It never executes anything; it
// only renders the command lines a dry run already produced.
package ninjafile

import (
	"fmt"
	"io"
	"strings"

	"github.com/lun-build/lun/internal/pipeline"
)

// Write renders result (produced by a dry-run pipeline Execute) as a Ninja
// build file: one "run" rule shared by every edge, one build edge per
// batch, with a phony stamp output per edge since lun's tools are judged by
// exit status, not by declared file outputs.
func Write(w io.Writer, result *pipeline.Result) error {
	fmt.Fprintln(w, "rule run")
	fmt.Fprintln(w, "  command = $cmd")
	fmt.Fprintln(w, "  description = $desc")
	fmt.Fprintln(w)

	n := 0
	for _, tr := range result.Tools {
		for _, b := range tr.Batches {
			n++
			stamp := fmt.Sprintf(".lun/ninja/%s.%d.stamp", tr.Tool, n)
			ins := make([]string, len(b.Files))
			for i, f := range b.Files {
				ins[i] = f.Path
			}
			fmt.Fprintf(w, "build %s: run %s\n", stamp, strings.Join(ins, " "))
			fmt.Fprintf(w, "  cmd = %s\n", b.CommandLine)
			fmt.Fprintf(w, "  desc = %s: %d file(s)\n", tr.Tool, len(b.Files))
			fmt.Fprintln(w)
		}
	}
	return nil
}
