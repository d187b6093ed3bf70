package delta_test

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/KredoKodo/KopioRapido-sub000/delta"
)

func TestShouldUseDelta_PartialDestination(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "dst.bin")

	data := make([]byte, 50<<20)
	rand.New(rand.NewSource(3)).Read(data) //nolint:gosec

	require.NoError(t, os.WriteFile(dst, data[:30<<20], 0o644))

	useDelta, isPartial, err := delta.ShouldUseDelta(int64(len(data)), time.Now(), dst)
	require.NoError(t, err)
	require.True(t, useDelta)
	require.True(t, isPartial)
}

func TestShouldUseDelta_NoDestination(t *testing.T) {
	dir := t.TempDir()

	useDelta, isPartial, err := delta.ShouldUseDelta(1000, time.Now(), filepath.Join(dir, "missing.bin"))
	require.NoError(t, err)
	require.False(t, useDelta)
	require.False(t, isPartial)
}

func TestSync_PartialFileCompletesToByteIdentical(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src.bin")
	dstPath := filepath.Join(dir, "dst.bin")

	data := make([]byte, 50<<20)
	rand.New(rand.NewSource(4)).Read(data) //nolint:gosec

	require.NoError(t, os.WriteFile(srcPath, data, 0o644))
	require.NoError(t, os.WriteFile(dstPath, data[:30<<20], 0o644))

	require.NoError(t, delta.Sync(context.Background(), srcPath, dstPath))

	got, err := os.ReadFile(dstPath)
	require.NoError(t, err)
	require.Equal(t, data, got)

	require.NoFileExists(t, dstPath+".sig")
	require.NoFileExists(t, dstPath+".tmp")
}
