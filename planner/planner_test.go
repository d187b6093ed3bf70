package planner_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/KredoKodo/KopioRapido-sub000/model"
	"github.com/KredoKodo/KopioRapido-sub000/planner"
)

func writeFileAt(t *testing.T, path string, data []byte, mtime time.Time) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

// TestBuild_MirrorDeletesDestOnlyAndSkipsIdentical exercises spec §8's
// scenario 1: Mirror should copy SourceOnly/SourceNewer files, skip
// Identical ones, and schedule DestOnly files for deletion.
func TestBuild_MirrorDeletesDestOnlyAndSkipsIdentical(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	writeFileAt(t, filepath.Join(src, "a.txt"), []byte("same"), old)
	writeFileAt(t, filepath.Join(dst, "a.txt"), []byte("same"), old)

	writeFileAt(t, filepath.Join(src, "sub", "b.bin"), []byte("new content"), newer)

	writeFileAt(t, filepath.Join(dst, "c.old"), []byte("stale"), old)

	p := planner.New()

	plan, err := p.Build(model.OpMirror, src, dst)
	require.NoError(t, err)

	require.Len(t, plan.ToCopy, 1)
	require.Equal(t, filepath.Join("sub", "b.bin"), plan.ToCopy[0].Relative)

	require.Len(t, plan.ToDelete, 1)
	require.Equal(t, filepath.Join(dst, "c.old"), plan.ToDelete[0])

	require.Equal(t, []string{"a.txt"}, plan.IdenticalSkipped)
	require.Empty(t, plan.Conflicts)
}

// TestBuild_BiDirectionalSyncRecordsConflictWithoutCopying exercises spec
// §8's scenario 6: a same-mtime, different-size pair on both sides must be
// recorded as a conflict and neither side copied.
func TestBuild_BiDirectionalSyncRecordsConflictWithoutCopying(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	shared := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	writeFileAt(t, filepath.Join(src, "f.txt"), []byte("source version"), shared)
	writeFileAt(t, filepath.Join(dst, "f.txt"), []byte("destination content differs"), shared)

	p := planner.New()

	plan, err := p.Build(model.OpBiDirectionalSync, src, dst)
	require.NoError(t, err)

	require.Equal(t, []string{"f.txt"}, plan.Conflicts)
	require.Empty(t, plan.ToCopy)
	require.Empty(t, plan.ToCopyReverse)

	srcData, err := os.ReadFile(filepath.Join(src, "f.txt"))
	require.NoError(t, err)
	require.Equal(t, "source version", string(srcData))

	dstData, err := os.ReadFile(filepath.Join(dst, "f.txt"))
	require.NoError(t, err)
	require.Equal(t, "destination content differs", string(dstData))
}

func TestBuild_CopyIncludesAllSourceFiles(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	now := time.Now().UTC().Truncate(time.Second)

	writeFileAt(t, filepath.Join(src, "one.txt"), []byte("1"), now)
	writeFileAt(t, filepath.Join(src, "two.txt"), []byte("22"), now)

	p := planner.New()

	plan, err := p.Build(model.OpCopy, src, dst)
	require.NoError(t, err)

	require.Len(t, plan.ToCopy, 2)
	require.Equal(t, 2, plan.TotalFilesToCopy)
	require.Equal(t, int64(3), plan.TotalBytesToCopy)
	require.Empty(t, plan.ToDelete)
}

func TestBuild_MoveSchedulesSourceDeletion(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	now := time.Now().UTC().Truncate(time.Second)
	writeFileAt(t, filepath.Join(src, "one.txt"), []byte("1"), now)

	p := planner.New()

	plan, err := p.Build(model.OpMove, src, dst)
	require.NoError(t, err)

	require.Len(t, plan.ToCopy, 1)
	require.Equal(t, []string{filepath.Join(src, "one.txt")}, plan.ToDelete)
}

func TestBuild_SyncSkipsIdenticalAndCopiesSourceNewerOnly(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	writeFileAt(t, filepath.Join(src, "a.txt"), []byte("same"), old)
	writeFileAt(t, filepath.Join(dst, "a.txt"), []byte("same"), old)

	writeFileAt(t, filepath.Join(src, "b.txt"), []byte("updated"), newer)
	writeFileAt(t, filepath.Join(dst, "b.txt"), []byte("stale"), old)

	// dest-only file must not appear in Sync's plan at all (no deletions).
	writeFileAt(t, filepath.Join(dst, "only-dest.txt"), []byte("x"), old)

	p := planner.New()

	plan, err := p.Build(model.OpSync, src, dst)
	require.NoError(t, err)

	require.Len(t, plan.ToCopy, 1)
	require.Equal(t, "b.txt", plan.ToCopy[0].Relative)
	require.Equal(t, []string{"a.txt"}, plan.IdenticalSkipped)
	require.Empty(t, plan.ToDelete)
}
