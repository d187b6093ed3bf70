package fileset_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/KredoKodo/KopioRapido-sub000/fileset"
)

func writeFile(t *testing.T, path string, size int) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
}

func TestAnalyse_Buckets(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "tiny.txt"), 100)
	writeFile(t, filepath.Join(dir, "small.log"), 2<<20)
	writeFile(t, filepath.Join(dir, "sub", "image.jpg"), 50<<20)

	a := fileset.New()

	profile, err := a.Analyse(context.Background(), dir)
	require.NoError(t, err)

	require.Equal(t, 3, profile.TotalFiles)
	require.Equal(t, 1, profile.TinyFiles)
	require.Equal(t, 1, profile.SmallFiles)
	require.Equal(t, 1, profile.MediumFiles)
	require.Equal(t, 2, profile.CompressibleFiles) // tiny.txt, small.log
	require.Equal(t, 1, profile.AlreadyCompressedFiles) // image.jpg
	require.Equal(t, 1, profile.MaxDepth)
}

func TestIsCompressible(t *testing.T) {
	require.True(t, fileset.IsCompressible("report.log"))
	require.False(t, fileset.IsCompressible("photo.jpg"))
	require.False(t, fileset.IsCompressible("archive.zip"))
}
