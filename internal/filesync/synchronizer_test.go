package filesync

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSynchronizer_IdempotentOnUnchangedTree(t *testing.T) {
	root := t.TempDir()
	snapDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("package a"), 0o644))

	s := NewSynchronizer(root, snapDir, nil)
	require.NoError(t, s.Initialize(context.Background()))

	delta, err := s.CheckForChanges(context.Background())
	require.NoError(t, err)
	require.True(t, delta.Empty())
}

func TestSynchronizer_DetectsAddModifyRemove(t *testing.T) {
	root := t.TempDir()
	snapDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.ts"), []byte("export const x = 1;"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.py"), []byte("def f(): return 1"), 0o644))

	s := NewSynchronizer(root, snapDir, nil)
	require.NoError(t, s.Initialize(context.Background()))

	require.NoError(t, os.WriteFile(filepath.Join(root, "c.ts"), []byte("export const y = 2;"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.ts"), []byte("export const x = 100;"), 0o644))
	require.NoError(t, os.Remove(filepath.Join(root, "b.py")))

	delta, err := s.CheckForChanges(context.Background())
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"c.ts"}, delta.Added)
	require.ElementsMatch(t, []string{"a.ts"}, delta.Modified)
	require.ElementsMatch(t, []string{"b.py"}, delta.Removed)

	delta2, err := s.CheckForChanges(context.Background())
	require.NoError(t, err)
	require.True(t, delta2.Empty())
}

func TestSynchronizer_IgnoresHiddenAndVendoredPaths(t *testing.T) {
	root := t.TempDir()
	snapDir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".git", "HEAD"), []byte("ref: refs/heads/main"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "node_modules"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "node_modules", "x.js"), []byte("module.exports = {}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main"), 0o644))

	s := NewSynchronizer(root, snapDir, nil)
	require.NoError(t, s.Initialize(context.Background()))

	snap := s.Snapshot()
	require.Contains(t, snap, "main.go")
	require.Len(t, snap, 1)
}

func TestSynchronizer_RebuildsSilentlyAfterSnapshotDeletion(t *testing.T) {
	root := t.TempDir()
	snapDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("package a"), 0o644))

	s := NewSynchronizer(root, snapDir, nil)
	require.NoError(t, s.Initialize(context.Background()))
	_, err := s.CheckForChanges(context.Background())
	require.NoError(t, err)

	require.NoError(t, DeleteSnapshot(snapDir, root))

	// A fresh Synchronizer instance (simulating a process restart) finds no
	// persisted snapshot, so it rebuilds the baseline from the current tree
	// rather than reporting every file as added.
	s2 := NewSynchronizer(root, snapDir, nil)
	require.NoError(t, s2.Initialize(context.Background()))
	delta, err := s2.CheckForChanges(context.Background())
	require.NoError(t, err)
	require.True(t, delta.Empty())
}
