// Package strategy implements Transfer Intelligence (C9, spec §4.9): a pure
// function combining a source/destination StorageProfile pair and a
// FileSetProfile into a TransferStrategy, evaluated as an ordered rule
// table the way kopia's snapshot/policy layer resolves layered policy
// rules, down to carrying a human-readable "reasoning" string per decision.
package strategy

import "github.com/KredoKodo/KopioRapido-sub000/model"

const (
	remoteManyFilesThreshold   = 50
	highParallelismThreshold   = 500
	moderateParallelismThreshold = 200

	manyFilesThreshold  = 100
	smallFileFraction    = 0.7
	sshFewFilesThreshold = 20
	fewFilesThreshold    = 10

	bufferSequentialKiB   = 1024
	bufferConservativeKiB = 512
	bufferModerateKiB     = 512
	bufferAggressiveKiB   = 256

	remoteCompressionWriteThresholdMBps = 100.0
)

// Select implements the §4.9 rule table, evaluated top-to-bottom; the first
// matching rule wins.
func Select(src, dst model.StorageProfile, files model.FileSetProfile) model.TransferStrategy {
	mode, reasoning := selectMode(src, dst, files)

	strat := model.TransferStrategy{
		Mode:               mode,
		MaxConcurrentFiles: model.ConcurrencyFor(mode),
		BufferSizeKiB:      bufferFor(mode),
		Reasoning:          reasoning,
		PreCalculatedTotals: &model.PreCalculatedTotals{
			TotalFiles: files.TotalFiles,
			TotalBytes: files.TotalBytes,
		},
	}

	strat.UseCompression = compressionGate(src, dst, files)
	strat.UseDeltaSync = true

	return strat
}

func selectMode(src, dst model.StorageProfile, files model.FileSetProfile) (model.TransferMode, string) {
	// Rule 1: remote endpoint with many files — parallelism masks latency.
	if (src.IsRemote || dst.IsRemote) && files.TotalFiles > remoteManyFilesThreshold {
		switch {
		case files.TotalFiles > highParallelismThreshold:
			return model.ParallelAggressive, "high parallelism masks latency"
		case files.TotalFiles > moderateParallelismThreshold:
			return model.ParallelModerate, "remote endpoint with many files"
		default:
			return model.ParallelConservative, "remote endpoint with many files"
		}
	}

	// Rule 2: spinning destination disk — avoid seek thrash.
	if dst.Kind == model.LocalHDD {
		return model.Sequential, "avoid seek penalties"
	}

	// Rule 3: mostly-small files on parallel-capable endpoints.
	if files.TotalFiles > manyFilesThreshold && smallFileShare(files) > smallFileFraction && src.SupportsParallelIO && dst.SupportsParallelIO {
		return model.ParallelAggressive, "many small files on parallel-capable storage"
	}

	// Rule 4: SSD-to-SSD.
	if src.Kind == model.LocalSSD && dst.Kind == model.LocalSSD {
		if files.TotalFiles > sshFewFilesThreshold {
			return model.ParallelModerate, "SSD to SSD with many files"
		}

		return model.Sequential, "few large files, sequential fastest"
	}

	// Rule 5: huge files already saturate bandwidth.
	if files.TotalFiles > 0 && files.HugeFiles > files.TotalFiles/2 { //nolint:mnd
		return model.Sequential, "large files already saturate bandwidth"
	}

	// Rule 6: USB2 compatibility.
	if src.Kind == model.ExternalUSB2 || dst.Kind == model.ExternalUSB2 {
		return model.Sequential, "USB2 compatibility"
	}

	// Rule 7: modest parallel-capable file count.
	if files.TotalFiles > fewFilesThreshold && src.SupportsParallelIO && dst.SupportsParallelIO {
		return model.ParallelConservative, "modest file count on parallel-capable storage"
	}

	return model.Sequential, "default"
}

func smallFileShare(files model.FileSetProfile) float64 {
	if files.TotalFiles == 0 {
		return 0
	}

	return float64(files.TinyFiles+files.SmallFiles) / float64(files.TotalFiles)
}

func bufferFor(mode model.TransferMode) int {
	switch mode {
	case model.Sequential:
		return bufferSequentialKiB
	case model.ParallelConservative:
		return bufferConservativeKiB
	case model.ParallelModerate:
		return bufferModerateKiB
	case model.ParallelAggressive:
		return bufferAggressiveKiB
	default:
		return bufferSequentialKiB
	}
}

// compressionGate implements spec §4.9's compression rule: enabled iff
// either endpoint is remote AND the remote side's measured write speed is
// below 100 MBps AND the file set has at least one compressible file.
func compressionGate(src, dst model.StorageProfile, files model.FileSetProfile) bool {
	if files.CompressibleFiles == 0 {
		return false
	}

	if dst.IsRemote && dst.SeqWriteMBps < remoteCompressionWriteThresholdMBps {
		return true
	}

	if src.IsRemote && src.SeqWriteMBps < remoteCompressionWriteThresholdMBps {
		return true
	}

	return false
}
