package engine_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/KredoKodo/KopioRapido-sub000/engine"
	"github.com/KredoKodo/KopioRapido-sub000/internal/engineconfig"
	"github.com/KredoKodo/KopioRapido-sub000/model"
	"github.com/KredoKodo/KopioRapido-sub000/resumestore"
)

func newEngineAt(t *testing.T, stateRoot string) *engine.Engine {
	t.Helper()

	cfg := engineconfig.Default(engineconfig.WithStateRoot(stateRoot))

	e, err := engine.New(cfg)
	require.NoError(t, err)

	return e
}

func newEngine(t *testing.T) *engine.Engine {
	t.Helper()

	return newEngineAt(t, t.TempDir())
}

func writeAt(t *testing.T, path string, data []byte, mtime time.Time) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func sequentialStrategy() *model.TransferStrategy {
	return &model.TransferStrategy{Mode: model.Sequential, MaxConcurrentFiles: 1, BufferSizeKiB: 1024}
}

// TestStartOperation_MirrorDeletesDestOnlyAndSkipsIdentical exercises spec
// §8 scenario 1.
func TestStartOperation_MirrorDeletesDestOnlyAndSkipsIdentical(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	writeAt(t, filepath.Join(src, "a.txt"), []byte("hello\n"), old)
	writeAt(t, filepath.Join(dst, "a.txt"), []byte("hello\n"), old)
	writeAt(t, filepath.Join(src, "sub", "b.bin"), make([]byte, 1024), newer)
	writeAt(t, filepath.Join(dst, "c.old"), []byte("stale content"), old)

	e := newEngine(t)

	op, err := e.StartOperation(context.Background(), src, dst, model.OpMirror, nil, sequentialStrategy())
	require.NoError(t, err)
	require.Equal(t, model.StatusCompleted, op.Status)
	require.Equal(t, 1, op.FilesDeleted)
	require.Equal(t, 1, op.FilesTransferred)

	_, statErr := os.Stat(filepath.Join(dst, "c.old"))
	require.True(t, os.IsNotExist(statErr))

	_, statErr = os.Stat(filepath.Join(dst, "sub", "b.bin"))
	require.NoError(t, statErr)
}

// TestStartOperation_BiDirectionalSyncConflict exercises spec §8 scenario 6.
func TestStartOperation_BiDirectionalSyncConflict(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	shared := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	writeAt(t, filepath.Join(src, "f.txt"), []byte("source version"), shared)
	writeAt(t, filepath.Join(dst, "f.txt"), []byte("destination content differs"), shared)

	e := newEngine(t)

	op, err := e.StartOperation(context.Background(), src, dst, model.OpBiDirectionalSync, nil, sequentialStrategy())
	require.NoError(t, err)
	require.Equal(t, model.StatusCompleted, op.Status)

	srcData, err := os.ReadFile(filepath.Join(src, "f.txt"))
	require.NoError(t, err)
	require.Equal(t, "source version", string(srcData))

	dstData, err := os.ReadFile(filepath.Join(dst, "f.txt"))
	require.NoError(t, err)
	require.Equal(t, "destination content differs", string(dstData))
}

// TestResumeOperation_SkipsAlreadyCompletedFile simulates spec §8 scenario
// 2 (resume after a kill): one file of a two-file Copy was already recorded
// complete and written to the destination before the process died; resuming
// must copy only the remaining file and must not recount the first one.
func TestResumeOperation_SkipsAlreadyCompletedFile(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	stateRoot := t.TempDir()

	now := time.Now().UTC().Truncate(time.Second)
	writeAt(t, filepath.Join(src, "one.txt"), []byte("one"), now)
	writeAt(t, filepath.Join(src, "two.txt"), []byte("two"), now)

	// one.txt was already transferred by the "killed" prior run.
	writeAt(t, filepath.Join(dst, "one.txt"), []byte("one"), now)

	store, err := resumestore.New(stateRoot)
	require.NoError(t, err)

	opID := "11111111-1111-1111-1111-111111111111"
	seed := &model.CopyOperation{
		ID:              opID,
		SourcePath:      src,
		DestinationPath: dst,
		OperationType:   model.OpCopy,
		Status:          model.StatusPaused,
		TotalBytes:      6,
		TotalFiles:      2,
		BytesTransferred: 3,
		FilesTransferred: 1,
		CanResume:       true,
		Strategy:        sequentialStrategy(),
		CompletedFiles: []model.CompletedFileInfo{
			{RelativePath: "one.txt", FileSize: 3, LastModified: now, CompletedAt: now},
		},
	}
	require.NoError(t, store.Save(seed))

	e := newEngineAt(t, stateRoot)

	resumed, err := e.ResumeOperation(context.Background(), opID, nil)
	require.NoError(t, err)
	require.Equal(t, model.StatusCompleted, resumed.Status)
	require.Equal(t, 2, resumed.FilesTransferred)

	data, err := os.ReadFile(filepath.Join(dst, "two.txt"))
	require.NoError(t, err)
	require.Equal(t, "two", string(data))
}

func TestAnalyseSync_ReportsPlanTotals(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	now := time.Now().UTC().Truncate(time.Second)
	writeAt(t, filepath.Join(src, "one.txt"), []byte("12345"), now)

	e := newEngine(t)

	summary, err := e.AnalyseSync(context.Background(), src, dst, model.OpSync)
	require.NoError(t, err)
	require.Equal(t, 1, summary.FilesToCopy)
	require.Equal(t, int64(5), summary.TotalBytesToCopy)
	require.Equal(t, model.OpSync, summary.OperationType)
}

func TestListResumable_ReturnsCancelledOperation(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	now := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 5; i++ {
		writeAt(t, filepath.Join(src, "f"+string(rune('a'+i))+".txt"), make([]byte, 1<<20), now)
	}

	e := newEngine(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancelled before the operation even starts copying

	op, err := e.StartOperation(ctx, src, dst, model.OpCopy, nil, sequentialStrategy())
	require.NoError(t, err)
	require.Equal(t, model.StatusCancelled, op.Status)

	list, err := e.ListResumable()
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, op.ID, list[0].ID)
}
