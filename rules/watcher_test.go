package rules

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(twoRules), 0o644))

	r := NewRegistry()
	src := DirSource{Dir: dir}
	require.NoError(t, r.Load(src))

	w, err := NewWatcher(r, src, 20*time.Millisecond, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	extra := twoRules + `
  - id: STR-01
    kind: sentence_count
    category: STR
    severity: BLOCKING
`
	require.NoError(t, os.WriteFile(path, []byte(extra), 0o644))

	assert.Eventually(t, func() bool {
		return r.Snapshot().Len() == 3
	}, 5*time.Second, 20*time.Millisecond)
	assert.GreaterOrEqual(t, w.Reloads(), int64(1))
}

func TestWatcher_KeepsSnapshotOnBadEdit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(twoRules), 0o644))

	r := NewRegistry()
	src := DirSource{Dir: dir}
	require.NoError(t, r.Load(src))

	w, err := NewWatcher(r, src, 20*time.Millisecond, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte(duplicateRules), 0o644))

	assert.Eventually(t, func() bool {
		return w.Reloads() >= 1
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, uint64(1), r.Snapshot().Version)
	assert.Equal(t, 2, r.Snapshot().Len())
}

func TestWatcher_KeepsSnapshotOnTruncatedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(twoRules), 0o644))

	r := NewRegistry()
	src := DirSource{Dir: dir}
	require.NoError(t, r.Load(src))

	w, err := NewWatcher(r, src, 20*time.Millisecond, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, nil, 0o644))

	assert.Eventually(t, func() bool {
		return w.Reloads() >= 1
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, uint64(1), r.Snapshot().Version)
	assert.Equal(t, 2, r.Snapshot().Len())
}
