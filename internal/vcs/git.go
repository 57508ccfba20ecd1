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
package vcs

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Git is an Adapter backed by shelling out to the git binary, with every
// command run from the repository root discovered by NewGit.
type Git struct {
	repoPath string
}

// NewGit discovers the repository root from startPath. Returns an error
// if startPath is not inside a git repository; callers should treat that
// as "no VCS tier available" (spec §7(e)) rather than fatal.
func NewGit(startPath string) (*Git, error) {
	if startPath == "" {
		return nil, fmt.Errorf("vcs: startPath cannot be empty")
	}
	absPath, err := filepath.Abs(startPath)
	if err != nil {
		return nil, fmt.Errorf("vcs: resolve absolute path: %w", err)
	}

	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	cmd.Dir = absPath
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("vcs: not a git repository: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("vcs: git not found or not installed: %w", err)
	}

	repoPath := strings.TrimSpace(string(output))
	if repoPath == "" {
		return nil, fmt.Errorf("vcs: could not determine repository root")
	}
	return &Git{repoPath: repoPath}, nil
}

// RepoPath returns the absolute repository root.
func (g *Git) RepoPath() string { return g.repoPath }

func (g *Git) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.repoPath

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("vcs: git command timed out or canceled: %w", ctx.Err())
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("vcs: git %s failed: %s", args[0], msg)
		}
		return "", fmt.Errorf("vcs: git %s failed: %w", args[0], err)
	}
	return stdout.String(), nil
}

// StagedFiles returns the project-relative paths staged for commit.
func (g *Git) StagedFiles(ctx context.Context) ([]string, error) {
	out, err := g.run(ctx, "diff", "--name-only", "--cached")
	if err != nil {
		return nil, err
	}
	var files []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			files = append(files, line)
		}
	}
	return files, nil
}

// FileMatchesRef reports whether path's current working-tree bytes equal
// the blob at ref:path, by comparing git's copy of ref:path directly
// against the file on disk rather than shelling out to `git diff`, so the
// result is unambiguous even for binary files.
func (g *Git) FileMatchesRef(ctx context.Context, path, ref string) (bool, error) {
	blob, err := g.run(ctx, "show", fmt.Sprintf("%s:%s", ref, path))
	if err != nil {
		// Missing at that ref (new file, or bad ref) counts as no match,
		// not an adapter error.
		return false, nil
	}
	current, err := os.ReadFile(filepath.Join(g.repoPath, path))
	if err != nil {
		return false, err
	}
	return blob == string(current), nil
}
