package fileop_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/KredoKodo/KopioRapido-sub000/fileop"
	"github.com/KredoKodo/KopioRapido-sub000/model"
)

func writeSrc(t *testing.T, path string, data []byte, mtime time.Time) model.FileEntry {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))

	return model.FileEntry{Src: path, Size: int64(len(data)), ModTime: mtime}
}

func noCompressNoDeltaStrategy() model.TransferStrategy {
	return model.TransferStrategy{UseCompression: false, UseDeltaSync: false}
}

func TestTransfer_DirectCopyPreservesContentAndMTime(t *testing.T) {
	srcDir := t.TempDir()
	dstDir := t.TempDir()

	mtime := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	entry := writeSrc(t, filepath.Join(srcDir, "a.bin"), []byte("hello direct copy"), mtime)
	entry.Dst = filepath.Join(dstDir, "a.bin")
	entry.Relative = "a.bin"

	op := fileop.New(model.DefaultRetryConfiguration())

	result, err := op.Transfer(context.Background(), "op1", entry, noCompressNoDeltaStrategy(), nil)
	require.NoError(t, err)
	require.Equal(t, int64(len("hello direct copy")), result.BytesTransferred)
	require.False(t, result.Compressed)

	data, err := os.ReadFile(entry.Dst)
	require.NoError(t, err)
	require.Equal(t, "hello direct copy", string(data))

	info, err := os.Stat(entry.Dst)
	require.NoError(t, err)
	require.WithinDuration(t, mtime, info.ModTime().UTC(), time.Second)
}

func TestTransfer_CompressedPathYieldsByteIdenticalDestination(t *testing.T) {
	srcDir := t.TempDir()
	dstDir := t.TempDir()

	mtime := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	content := make([]byte, 0, 4096)
	for i := 0; i < 4096; i++ {
		content = append(content, byte(i%7)) // highly repetitive, compresses well
	}

	entry := writeSrc(t, filepath.Join(srcDir, "big.log"), content, mtime)
	entry.Dst = filepath.Join(dstDir, "big.log")
	entry.Relative = "big.log"

	strat := model.TransferStrategy{UseCompression: true, UseDeltaSync: true}

	var sawCompressed bool

	op := fileop.New(model.DefaultRetryConfiguration())

	result, err := op.Transfer(context.Background(), "op1", entry, strat, func(p model.FileTransferProgress) {
		if p.IsCompressed {
			sawCompressed = true
		}
	})
	require.NoError(t, err)
	require.True(t, result.Compressed)
	require.Equal(t, entry.Size, result.UncompressedBytes)
	require.True(t, sawCompressed)

	data, err := os.ReadFile(entry.Dst)
	require.NoError(t, err)
	require.Equal(t, content, data)

	// the sibling temp file must not survive.
	_, statErr := os.Stat(entry.Dst + ".tmp.br")
	require.True(t, os.IsNotExist(statErr))
}

func TestTransfer_NonCompressibleExtensionSkipsCompressionPath(t *testing.T) {
	srcDir := t.TempDir()
	dstDir := t.TempDir()

	mtime := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	entry := writeSrc(t, filepath.Join(srcDir, "photo.jpg"), []byte("binary-ish"), mtime)
	entry.Dst = filepath.Join(dstDir, "photo.jpg")
	entry.Relative = "photo.jpg"

	strat := model.TransferStrategy{UseCompression: true, UseDeltaSync: true}

	op := fileop.New(model.DefaultRetryConfiguration())

	result, err := op.Transfer(context.Background(), "op1", entry, strat, nil)
	require.NoError(t, err)
	require.False(t, result.Compressed)

	data, err := os.ReadFile(entry.Dst)
	require.NoError(t, err)
	require.Equal(t, "binary-ish", string(data))
}

func TestTransfer_PartialDestinationUsesDeltaPath(t *testing.T) {
	srcDir := t.TempDir()
	dstDir := t.TempDir()

	mtime := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	full := []byte("the quick brown fox jumps over the lazy dog, repeatedly so blocks match")
	entry := writeSrc(t, filepath.Join(srcDir, "resume.txt"), full, mtime)
	entry.Dst = filepath.Join(dstDir, "resume.txt")
	entry.Relative = "resume.txt"

	require.NoError(t, os.MkdirAll(dstDir, 0o755))
	require.NoError(t, os.WriteFile(entry.Dst, full[:10], 0o644)) // shorter than source: partial

	op := fileop.New(model.DefaultRetryConfiguration())

	strat := model.TransferStrategy{UseCompression: false, UseDeltaSync: true}

	result, err := op.Transfer(context.Background(), "op1", entry, strat, nil)
	require.NoError(t, err)
	require.Equal(t, entry.Size, result.BytesTransferred)

	data, err := os.ReadFile(entry.Dst)
	require.NoError(t, err)
	require.Equal(t, full, data)
}
