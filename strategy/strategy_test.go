package strategy_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/KredoKodo/KopioRapido-sub000/model"
	"github.com/KredoKodo/KopioRapido-sub000/strategy"
)

func TestSelect_HDDDestinationForcesSequential(t *testing.T) {
	src := model.StorageProfile{Kind: model.LocalSSD, SupportsParallelIO: true}
	dst := model.StorageProfile{Kind: model.LocalHDD, SupportsParallelIO: false}
	files := model.FileSetProfile{TotalFiles: 20}

	strat := strategy.Select(src, dst, files)

	require.Equal(t, model.Sequential, strat.Mode)
	require.Equal(t, 1, strat.MaxConcurrentFiles)
	require.Equal(t, "avoid seek penalties", strat.Reasoning)
}

func TestSelect_RemoteManyFilesHighParallelism(t *testing.T) {
	src := model.StorageProfile{Kind: model.LocalSSD, SupportsParallelIO: true}
	dst := model.StorageProfile{Kind: model.NetworkShare, IsRemote: true, SupportsParallelIO: true, SeqWriteMBps: 40}
	files := model.FileSetProfile{TotalFiles: 600, CompressibleFiles: 5}

	strat := strategy.Select(src, dst, files)

	require.Equal(t, model.ParallelAggressive, strat.Mode)
	require.Equal(t, 16, strat.MaxConcurrentFiles)
	require.True(t, strat.UseCompression)
}

func TestSelect_CompressionGateRequiresCompressibleFiles(t *testing.T) {
	src := model.StorageProfile{Kind: model.LocalSSD, SupportsParallelIO: true}
	dst := model.StorageProfile{Kind: model.NetworkShare, IsRemote: true, SupportsParallelIO: true, SeqWriteMBps: 40}
	files := model.FileSetProfile{TotalFiles: 600, CompressibleFiles: 0}

	strat := strategy.Select(src, dst, files)
	require.False(t, strat.UseCompression)
}

func TestSelect_SSDToSSDFewFilesSequential(t *testing.T) {
	src := model.StorageProfile{Kind: model.LocalSSD, SupportsParallelIO: true}
	dst := model.StorageProfile{Kind: model.LocalSSD, SupportsParallelIO: true}
	files := model.FileSetProfile{TotalFiles: 5}

	strat := strategy.Select(src, dst, files)
	require.Equal(t, model.Sequential, strat.Mode)
}

func TestSelect_USB2ForcesSequential(t *testing.T) {
	src := model.StorageProfile{Kind: model.LocalSSD, SupportsParallelIO: true}
	dst := model.StorageProfile{Kind: model.ExternalUSB2, SupportsParallelIO: false}
	files := model.FileSetProfile{TotalFiles: 50}

	strat := strategy.Select(src, dst, files)
	require.Equal(t, model.Sequential, strat.Mode)
	require.Equal(t, "USB2 compatibility", strat.Reasoning)
}

func TestSelect_IsDeterministic(t *testing.T) {
	src := model.StorageProfile{Kind: model.LocalSSD, SupportsParallelIO: true}
	dst := model.StorageProfile{Kind: model.LocalSSD, SupportsParallelIO: true}
	files := model.FileSetProfile{TotalFiles: 30}

	a := strategy.Select(src, dst, files)
	b := strategy.Select(src, dst, files)

	require.Equal(t, a, b)
}
