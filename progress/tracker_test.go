package progress_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/KredoKodo/KopioRapido-sub000/internal/clock"
	"github.com/KredoKodo/KopioRapido-sub000/progress"
)

func TestTracker_OverallProgressAndETA(t *testing.T) {
	start := time.Now()
	clock.Freeze(start)
	defer clock.Unfreeze()

	tr := progress.New(1000, 10)
	require.Equal(t, 0.0, tr.OverallProgress())
	require.Nil(t, tr.ETA())

	clock.Freeze(start.Add(1 * time.Second))
	tr.AddBytes(500)

	require.Equal(t, 50.0, tr.OverallProgress())

	eta := tr.ETA()
	require.NotNil(t, eta)
	require.InDelta(t, time.Second.Seconds(), eta.Seconds(), 0.01)
}

func TestTracker_SetProgressResetsStartTime(t *testing.T) {
	start := time.Now()
	clock.Freeze(start)
	defer clock.Unfreeze()

	tr := progress.New(1000, 10)
	tr.AddBytes(200)

	clock.Freeze(start.Add(10 * time.Second))
	tr.SetProgress(300, 3)

	require.Equal(t, int64(300), tr.BytesTransferred())
	require.Equal(t, 3, tr.FilesTransferred())

	clock.Freeze(start.Add(11 * time.Second))
	require.InDelta(t, 300.0, tr.AverageSpeed(), 0.5)
}

func TestTracker_CurrentFile(t *testing.T) {
	tr := progress.New(100, 1)

	_, ok := tr.CurrentFile()
	require.False(t, ok)

	tr.SetCurrentFile("a.txt", 123.0)

	name, ok := tr.CurrentFile()
	require.True(t, ok)
	require.Equal(t, "a.txt", name)
	require.Equal(t, 123.0, tr.CurrentSpeed())

	tr.FileCompleted()

	_, ok = tr.CurrentFile()
	require.False(t, ok)
}
