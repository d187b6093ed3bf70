package resumestore_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/KredoKodo/KopioRapido-sub000/model"
	"github.com/KredoKodo/KopioRapido-sub000/resumestore"
)

func newOp(t *testing.T, srcPath string, status model.Status) *model.CopyOperation {
	t.Helper()

	return &model.CopyOperation{
		ID:              uuid.NewString(),
		SourcePath:      srcPath,
		DestinationPath: t.TempDir(),
		OperationType:   model.OpCopy,
		Status:          status,
		CanResume:       true,
	}
}

func TestStore_SaveLoadDelete(t *testing.T) {
	root := t.TempDir()

	store, err := resumestore.New(root)
	require.NoError(t, err)

	src := t.TempDir()
	op := newOp(t, src, model.StatusInProgress)

	require.NoError(t, store.Save(op))

	loaded, err := store.Load(op.ID)
	require.NoError(t, err)
	require.Equal(t, op.SourcePath, loaded.SourcePath)
	require.Equal(t, op.Status, loaded.Status)

	require.NoError(t, store.Delete(op.ID))
	require.NoError(t, store.Delete(op.ID)) // idempotent

	_, err = store.Load(op.ID)
	require.Error(t, err)
}

func TestStore_ListResumable(t *testing.T) {
	root := t.TempDir()

	store, err := resumestore.New(root)
	require.NoError(t, err)

	src := t.TempDir()

	resumable := newOp(t, src, model.StatusPaused)
	require.NoError(t, store.Save(resumable))

	completed := newOp(t, src, model.StatusCompleted)
	require.NoError(t, store.Save(completed))

	missingSrc := newOp(t, filepath.Join(src, "gone"), model.StatusFailed)
	require.NoError(t, store.Save(missingSrc))

	list, err := store.ListResumable()
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, resumable.ID, list[0].ID)
}

func TestStore_ListResumable_SkipsCorruptedFile(t *testing.T) {
	root := t.TempDir()

	store, err := resumestore.New(root)
	require.NoError(t, err)

	corruptPath := filepath.Join(store.OperationsDir(), "corrupt.json")
	require.NoError(t, os.WriteFile(corruptPath, []byte("{not valid json"), 0o644))

	list, err := store.ListResumable()
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestStore_CanResume(t *testing.T) {
	root := t.TempDir()

	store, err := resumestore.New(root)
	require.NoError(t, err)

	src := t.TempDir()
	op := newOp(t, src, model.StatusFailed)
	require.NoError(t, store.Save(op))

	ok, err := store.CanResume(op.ID)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = store.CanResume(uuid.NewString())
	require.NoError(t, err)
	require.False(t, ok)
}
