package storageprofile_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/KredoKodo/KopioRapido-sub000/model"
	"github.com/KredoKodo/KopioRapido-sub000/storageprofile"
)

func TestProfile_LocalTempDir(t *testing.T) {
	dir := t.TempDir()

	p := storageprofile.New()

	prof, err := p.Profile(context.Background(), dir)
	require.NoError(t, err)

	require.Equal(t, dir, prof.Path)
	require.False(t, prof.IsRemote)
	require.NotZero(t, prof.ProfiledAt)
	require.GreaterOrEqual(t, prof.SeqWriteMBps, 0.0)
	require.GreaterOrEqual(t, prof.SeqReadMBps, 0.0)
	require.Equal(t, model.SupportsParallelIOFor(prof.Kind), prof.SupportsParallelIO)
}
