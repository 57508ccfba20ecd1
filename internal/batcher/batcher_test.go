package batcher

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lun-build/lun/internal/fingerprint"
	"github.com/lun-build/lun/internal/tool"
)

func fileOfSize(path string, size int64) *fingerprint.File {
	f := &fingerprint.File{Path: path}
	f.Stat.Size = size
	return f
}

func totals(batches []Batch) []int64 {
	out := make([]int64, len(batches))
	for i, b := range batches {
		var sum int64
		for _, f := range b.Files {
			sum += f.Stat.Size
		}
		out[i] = sum
	}
	return out
}

func TestPlan_BatchGranularityIsOneBatch(t *testing.T) {
	files := []*fingerprint.File{fileOfSize("a", 10), fileOfSize("b", 20)}
	batches := Plan(files, tool.Batch, 4, false)
	assert.Len(t, batches, 1)
	assert.Len(t, batches[0].Files, 2)
}

func TestPlan_NoBatchIsOnePerFile(t *testing.T) {
	files := []*fingerprint.File{fileOfSize("a", 10), fileOfSize("b", 20), fileOfSize("c", 5)}
	batches := Plan(files, tool.Individual, 2, true)
	assert.Len(t, batches, 3)
	for _, b := range batches {
		assert.Len(t, b.Files, 1)
	}
}

func TestPlan_LPTBalancesByteWeight(t *testing.T) {
	// six files, sizes 100/200/150/50/300/100, two cores: the expected LPT
	// grouping puts {300,100,50} and {200,150,100}, both summing to 450.
	files := []*fingerprint.File{
		fileOfSize("file1", 100),
		fileOfSize("file2", 200),
		fileOfSize("file3", 150),
		fileOfSize("file4", 50),
		fileOfSize("file5", 300),
		fileOfSize("file6", 100),
	}
	batches := Plan(files, tool.Individual, 2, false)
	assert.Len(t, batches, 2)

	sums := totals(batches)
	assert.ElementsMatch(t, []int64{450, 450}, sums)
}

func TestPlan_EmptyFilesReturnsNil(t *testing.T) {
	batches := Plan(nil, tool.Individual, 4, false)
	assert.Nil(t, batches)
}

func TestPlan_FewerFilesThanWorkersUsesOneBatchPerFile(t *testing.T) {
	files := []*fingerprint.File{fileOfSize("a", 10), fileOfSize("b", 20)}
	batches := Plan(files, tool.Individual, 8, false)
	assert.Len(t, batches, 2)
}
