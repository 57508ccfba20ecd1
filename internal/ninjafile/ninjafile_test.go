package ninjafile

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lun-build/lun/internal/executor"
	"github.com/lun-build/lun/internal/fingerprint"
	"github.com/lun-build/lun/internal/pipeline"
)

func TestWrite_EmitsOneEdgePerBatch(t *testing.T) {
	result := &pipeline.Result{
		Tools: []pipeline.ToolResult{
			{
				Tool: "ruff",
				Batches: []executor.BatchResult{
					{
						Tool:        "ruff",
						CommandLine: "ruff check a.py b.py",
						Files: []*fingerprint.File{
							{Path: "a.py"},
							{Path: "b.py"},
						},
						Success: true,
					},
				},
			},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, result))
	out := buf.String()

	assert.Contains(t, out, "rule run")
	assert.Contains(t, out, "command = $cmd")
	assert.Contains(t, out, "build .lun/ninja/ruff.1.stamp: run a.py b.py")
	assert.Contains(t, out, "cmd = ruff check a.py b.py")
	assert.Contains(t, out, "desc = ruff: 2 file(s)")
}

func TestWrite_NoBatchesEmitsOnlyRule(t *testing.T) {
	result := &pipeline.Result{}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, result))
	out := buf.String()

	assert.Contains(t, out, "rule run")
	assert.NotContains(t, out, "build ")
}
