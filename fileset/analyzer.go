// Package fileset implements the File-Set Analyzer (C3, spec §4.3):
// recursively enumerating a source tree and bucketising its files by size
// and compressibility.
package fileset

import (
	"context"
	"io/fs"
	"math/rand"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/KredoKodo/KopioRapido-sub000/internal/klog"
	"github.com/KredoKodo/KopioRapido-sub000/model"
)

var log = klog.Module("kopiorapido/fileset")

const (
	tinyLimit   = 1 << 20  // 1 MiB
	smallLimit  = 10 << 20 // 10 MiB
	mediumLimit = 100 << 20
	largeLimit  = 1 << 30 // 1 GiB

	sampleCap = 1000
)

type fileRecord struct {
	size  int64
	ext   string
	depth int
}

// Analyzer exposes Analyse(path) per spec §4.3.
type Analyzer struct{}

// New builds an Analyzer.
func New() *Analyzer { return &Analyzer{} }

// Analyse enumerates path recursively and returns its FileSetProfile.
// If the tree has more than sampleCap files, it samples (always including
// the first and last entries encountered) and extrapolates bucket counts.
func (a *Analyzer) Analyse(ctx context.Context, root string) (model.FileSetProfile, error) {
	var records []fileRecord

	var totalFiles int

	var totalBytes int64

	var last fileRecord

	lastSlot := -1

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if d.IsDir() {
			return nil
		}

		info, statErr := d.Info()
		if statErr != nil {
			log.Warn().Err(statErr).Str("path", path).Msg("skipping unreadable entry")
			return nil //nolint:nilerr
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}

		totalFiles++
		totalBytes += info.Size()

		rec := fileRecord{
			size:  info.Size(),
			ext:   extensionOf(path),
			depth: depthOf(rel),
		}

		last = rec
		lastSlot = -1

		if totalFiles <= sampleCap {
			records = append(records, rec)
		} else if rand.Intn(totalFiles) < sampleCap { //nolint:gosec
			// Reservoir sampling keeps the sample representative once the
			// tree exceeds the cap (spec §4.3: "random-sample the rest").
			// Slot 0 holds the first entry and is never replaced.
			lastSlot = 1 + rand.Intn(len(records)-1) //nolint:gosec
			records[lastSlot] = rec
		}

		return nil
	})
	if err != nil {
		return model.FileSetProfile{}, errors.Wrap(err, "enumerating file set")
	}

	if totalFiles > sampleCap && lastSlot < 0 {
		records[len(records)-1] = last
	}

	sampleSize := len(records)
	if sampleSize == 0 {
		return model.FileSetProfile{TotalFiles: 0, ExtensionHistogram: map[string]int{}}, nil
	}

	profile := model.FileSetProfile{
		TotalFiles:         totalFiles,
		TotalBytes:         totalBytes,
		ExtensionHistogram: map[string]int{},
	}

	var maxDepth int

	for _, r := range records {
		profile.ExtensionHistogram[r.ext]++

		if r.depth > maxDepth {
			maxDepth = r.depth
		}

		switch {
		case r.size < tinyLimit:
			profile.TinyFiles++
		case r.size < smallLimit:
			profile.SmallFiles++
		case r.size < mediumLimit:
			profile.MediumFiles++
		case r.size < largeLimit:
			profile.LargeFiles++
		default:
			profile.HugeFiles++
		}

		if compressibleExtensions[r.ext] && !alreadyCompressedExtensions[r.ext] {
			profile.CompressibleFiles++
		} else if alreadyCompressedExtensions[r.ext] {
			profile.AlreadyCompressedFiles++
		}
	}

	profile.MaxDepth = maxDepth

	if totalFiles > 0 {
		profile.AvgFileSizeMiB = (float64(totalBytes) / float64(totalFiles)) / float64(1<<20)
	}

	// Extrapolate bucket counts when sampled (spec §4.3: actualTotal/sampleSize).
	if sampleSize < totalFiles {
		factor := float64(totalFiles) / float64(sampleSize)

		profile.TinyFiles = extrapolate(profile.TinyFiles, factor)
		profile.SmallFiles = extrapolate(profile.SmallFiles, factor)
		profile.MediumFiles = extrapolate(profile.MediumFiles, factor)
		profile.LargeFiles = extrapolate(profile.LargeFiles, factor)
		profile.HugeFiles = extrapolate(profile.HugeFiles, factor)
		profile.CompressibleFiles = extrapolate(profile.CompressibleFiles, factor)
		profile.AlreadyCompressedFiles = extrapolate(profile.AlreadyCompressedFiles, factor)

		for ext, n := range profile.ExtensionHistogram {
			profile.ExtensionHistogram[ext] = extrapolate(n, factor)
		}

		reconcileBuckets(&profile)
	}

	return profile, nil
}

// reconcileBuckets nudges the largest bucket so rounding from extrapolation
// doesn't drift the sum away from TotalFiles beyond the spec's "sampling
// tolerance" invariant.
func reconcileBuckets(p *model.FileSetProfile) {
	sum := p.TinyFiles + p.SmallFiles + p.MediumFiles + p.LargeFiles + p.HugeFiles
	diff := p.TotalFiles - sum

	if diff == 0 {
		return
	}

	largest := &p.TinyFiles
	largestVal := p.TinyFiles

	for _, b := range []*int{&p.SmallFiles, &p.MediumFiles, &p.LargeFiles, &p.HugeFiles} {
		if *b > largestVal {
			largest = b
			largestVal = *b
		}
	}

	*largest += diff
	if *largest < 0 {
		*largest = 0
	}
}

func extrapolate(n int, factor float64) int {
	return int(float64(n)*factor + 0.5) //nolint:mnd
}

func depthOf(rel string) int {
	depth := 0

	for _, r := range rel {
		if r == filepath.Separator || r == '/' {
			depth++
		}
	}

	return depth
}
