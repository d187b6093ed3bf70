// Package storageprofile implements the Storage Profiler (C2, spec §4.2):
// classifying an endpoint's storage kind and measuring its sequential
// throughput and latency via a short micro-benchmark.
package storageprofile

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/KredoKodo/KopioRapido-sub000/internal/clock"
	"github.com/KredoKodo/KopioRapido-sub000/internal/klog"
	"github.com/KredoKodo/KopioRapido-sub000/model"
)

var log = klog.Module("kopiorapido/storageprofile")

const (
	benchWriteSize   = 10 << 20 // 10 MiB
	benchChunkSize   = 1 << 20  // 1 MiB
	benchSeekProbe   = 4 << 10  // 4 KiB
	defaultMBps      = 50.0
	probeTimeout     = 5 * time.Second
	externalVolumesFallbackMBps = 50.0
)

// platformProbe is the OS-specific capability isolated per REDESIGN FLAGS §9:
// concrete back-ends per OS, with an Unknown-degrading fallback.
type platformProbe interface {
	// isRemote reports whether path lives on a network-mounted filesystem.
	isRemote(path string) (bool, string, error)
	// kind classifies the local storage medium (SSD/HDD/USB2/USB3/Thunderbolt/Unknown).
	kind(path string) (model.StorageKind, error)
	// isUnderExternalVolumesRoot reports whether path is mounted as removable/external media.
	isUnderExternalVolumesRoot(path string) bool
}

// Profiler exposes Profile(path) per spec §4.2.
type Profiler struct {
	probe platformProbe
}

// New builds a Profiler using the current OS's platform probe.
func New() *Profiler {
	return &Profiler{probe: newPlatformProbe()}
}

// Profile classifies path and measures its throughput/latency (spec §4.2).
func (p *Profiler) Profile(ctx context.Context, path string) (model.StorageProfile, error) {
	prof := model.StorageProfile{
		Path:       path,
		ProfiledAt: clock.Now(),
	}

	isRemote, fsType, err := p.probe.isRemote(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("network detection failed, assuming local")
	}

	prof.IsRemote = isRemote
	prof.FSType = fsType

	if isRemote {
		prof.Kind = model.NetworkShare
	} else {
		k, kErr := p.probe.kind(path)
		if kErr != nil {
			log.Warn().Err(kErr).Str("path", path).Msg("kind detection failed, assuming Unknown")

			k = model.UnknownStorage
		}

		prof.Kind = k
	}

	writeMBps, readMBps, latencyMs, err := p.microBenchmark(ctx, path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("micro-benchmark failed, using defaults")

		writeMBps, readMBps, latencyMs = defaultMBps, defaultMBps, 0
	}

	prof.SeqWriteMBps = writeMBps
	prof.SeqReadMBps = readMBps
	prof.RandomReadMBps = readMBps
	prof.LatencyMs = latencyMs

	// Heuristic override (spec §4.2 step 4): external media measured too
	// slow to be real external storage is probably a misdetected network
	// mount masquerading as a local volume.
	if p.probe.isUnderExternalVolumesRoot(path) && writeMBps < externalVolumesFallbackMBps && prof.Kind != model.NetworkShare {
		log.Debug().Str("path", path).Msg("reclassifying slow external volume as network share")

		prof.Kind = model.NetworkShare
		prof.IsRemote = true
	}

	prof.SupportsParallelIO = model.SupportsParallelIOFor(prof.Kind)

	return prof, nil
}

// microBenchmark writes benchWriteSize random bytes in benchChunkSize
// chunks with an explicit flush, reads them back, and performs a single
// small seek+read to estimate latency (spec §4.2 step 3).
func (p *Profiler) microBenchmark(ctx context.Context, dir string) (writeMBps, readMBps, latencyMs float64, err error) {
	bctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	scratch := filepath.Join(dir, fmt.Sprintf(".kopiorapido_bench_%d", clock.Now().UnixNano()))

	defer func() {
		if rmErr := os.Remove(scratch); rmErr != nil && !os.IsNotExist(rmErr) {
			log.Debug().Err(rmErr).Str("path", scratch).Msg("failed to remove benchmark scratch file")
		}
	}()

	buf := make([]byte, benchChunkSize)
	if _, err = io.ReadFull(rand.Reader, buf); err != nil {
		return 0, 0, 0, errors.Wrap(err, "generating benchmark payload")
	}

	f, err := os.OpenFile(scratch, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return 0, 0, 0, errors.Wrap(err, "opening benchmark scratch file")
	}

	writeStart := clock.Now()

	written := 0
	for written < benchWriteSize {
		if bctx.Err() != nil {
			f.Close() //nolint:errcheck

			return 0, 0, 0, bctx.Err()
		}

		n, wErr := f.Write(buf)
		if wErr != nil {
			f.Close() //nolint:errcheck

			return 0, 0, 0, errors.Wrap(wErr, "writing benchmark payload")
		}

		written += n
	}

	if err = f.Sync(); err != nil {
		f.Close() //nolint:errcheck

		return 0, 0, 0, errors.Wrap(err, "flushing benchmark payload")
	}

	writeElapsed := clock.Now().Sub(writeStart)

	if err = f.Close(); err != nil {
		return 0, 0, 0, errors.Wrap(err, "closing benchmark scratch file")
	}

	rf, err := os.Open(scratch)
	if err != nil {
		return 0, 0, 0, errors.Wrap(err, "reopening benchmark scratch file for read")
	}
	defer rf.Close() //nolint:errcheck

	readStart := clock.Now()

	readBuf := make([]byte, benchChunkSize)
	if _, err = io.CopyBuffer(io.Discard, rf, readBuf); err != nil {
		return 0, 0, 0, errors.Wrap(err, "reading back benchmark payload")
	}

	readElapsed := clock.Now().Sub(readStart)

	seekStart := clock.Now()

	if _, err = rf.Seek(benchChunkSize/2, io.SeekStart); err != nil {
		return 0, 0, 0, errors.Wrap(err, "seeking in benchmark scratch file")
	}

	seekBuf := make([]byte, benchSeekProbe)
	if _, err = io.ReadFull(rf, seekBuf); err != nil {
		return 0, 0, 0, errors.Wrap(err, "seek-read in benchmark scratch file")
	}

	seekElapsed := clock.Now().Sub(seekStart)

	const mib = float64(1 << 20)

	if writeElapsed > 0 {
		writeMBps = (float64(benchWriteSize) / mib) / writeElapsed.Seconds()
	}

	if readElapsed > 0 {
		readMBps = (float64(benchWriteSize) / mib) / readElapsed.Seconds()
	}

	latencyMs = float64(seekElapsed.Microseconds()) / 1000.0 //nolint:mnd

	return writeMBps, readMBps, latencyMs, nil
}

// isUNCLike reports whether path is a UNC-style network path (spec §4.2 step 1).
func isUNCLike(path string) bool {
	return strings.HasPrefix(path, `\\`) || strings.HasPrefix(path, "//")
}
