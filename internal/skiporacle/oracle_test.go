package skiporacle

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lun-build/lun/internal/cachestore"
	"github.com/lun-build/lun/internal/fingerprint"
	"github.com/lun-build/lun/internal/vcs"
)

func newFile(t *testing.T, dir, name, content string) *fingerprint.File {
	t.Helper()
	abs := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
	f, err := fingerprint.Load(name, abs)
	require.NoError(t, err)
	return f
}

func TestDecide_FirstRunIsMiss(t *testing.T) {
	cacheDir := t.TempDir()
	workDir := t.TempDir()
	store, err := cachestore.Open(cacheDir, 0, nil)
	require.NoError(t, err)

	f := newFile(t, workDir, "a.py", "print(1)\n")
	o := New(store, fingerprint.New(), vcs.None{}, nil, true, nil)

	d, err := o.Decide(context.Background(), fingerprint.Inputs{File: f, Command: []string{"lint"}}, false)
	require.NoError(t, err)
	assert.False(t, d.Skip)
	assert.Equal(t, TierMiss, d.Tier)
	assert.True(t, d.HaveCKey)
}

func TestDecide_MtimeHitAfterCommit(t *testing.T) {
	cacheDir := t.TempDir()
	workDir := t.TempDir()
	store, err := cachestore.Open(cacheDir, 0, nil)
	require.NoError(t, err)

	f := newFile(t, workDir, "a.py", "print(1)\n")
	fp := fingerprint.New()
	o := New(store, fp, vcs.None{}, nil, true, nil)
	in := fingerprint.Inputs{File: f, Command: []string{"lint"}}

	first, err := o.Decide(context.Background(), in, false)
	require.NoError(t, err)
	require.False(t, first.Skip)
	require.NoError(t, store.Insert(cachestore.MtimeTier, first.MKey, time.Now()))

	second, err := o.Decide(context.Background(), in, false)
	require.NoError(t, err)
	assert.True(t, second.Skip)
	assert.Equal(t, TierMtime, second.Tier)
}

func TestDecide_ConfigChangedDisablesMtimeTierForThisPair(t *testing.T) {
	cacheDir := t.TempDir()
	workDir := t.TempDir()
	store, err := cachestore.Open(cacheDir, 0, nil)
	require.NoError(t, err)

	f := newFile(t, workDir, "a.py", "print(1)\n")
	fp := fingerprint.New()
	o := New(store, fp, vcs.None{}, nil, true, nil)
	in := fingerprint.Inputs{File: f, Command: []string{"lint"}}

	first, err := o.Decide(context.Background(), in, false)
	require.NoError(t, err)
	require.NoError(t, store.Insert(cachestore.MtimeTier, first.MKey, time.Now()))

	changed, err := o.Decide(context.Background(), in, true)
	require.NoError(t, err)
	assert.False(t, changed.HaveMKey)
	assert.False(t, changed.Skip)
}

func TestDecide_ContentHitPromotesMtimeTier(t *testing.T) {
	cacheDir := t.TempDir()
	workDir := t.TempDir()
	store, err := cachestore.Open(cacheDir, 0, nil)
	require.NoError(t, err)

	f := newFile(t, workDir, "a.py", "print(1)\n")
	fp := fingerprint.New()
	o := New(store, fp, vcs.None{}, nil, true, nil)
	in := fingerprint.Inputs{File: f, Command: []string{"lint"}}

	ckey, err := fp.CKey(in)
	require.NoError(t, err)
	require.NoError(t, store.Insert(cachestore.ContentTier, ckey, time.Now()))

	d, err := o.Decide(context.Background(), in, false)
	require.NoError(t, err)
	assert.True(t, d.Skip)
	assert.Equal(t, TierContent, d.Tier)
	assert.True(t, store.Lookup(cachestore.MtimeTier, d.MKey))
}
