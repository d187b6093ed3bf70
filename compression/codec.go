// Package compression implements the streaming Compression Codec (C4, spec
// §4.4): encode/decode of a byte stream through a general-purpose
// Brotli-class compressor at its fastest level, using klauspost/compress's
// zstd implementation at SpeedFastest.
package compression

import (
	"context"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"

	"github.com/KredoKodo/KopioRapido-sub000/fileset"
	"github.com/KredoKodo/KopioRapido-sub000/internal/clock"
)

const (
	blockSize          = 1 << 20 // spec §4.4: block size 1 MiB
	progressInterval   = 500 * time.Millisecond
)

// Progress is reported roughly every progressInterval during a stream
// operation (spec §4.4).
type Progress struct {
	UncompressedProcessed int64
	CompressedWritten     int64
	Ratio                 float64
}

// ProgressSink receives Progress updates; implementations must return
// quickly as they're called from the copy loop.
type ProgressSink func(Progress)

// ShouldCompress reports whether path's extension makes it worth
// compressing (spec §4.4: compressible AND NOT already-compressed).
func ShouldCompress(path string) bool {
	return fileset.IsCompressible(path)
}

// CompressStream streams r through a fastest-level zstd encoder into w,
// calling sink periodically and once more at completion.
func CompressStream(ctx context.Context, r io.Reader, w io.Writer, sink ProgressSink, cancel <-chan struct{}) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return errors.Wrap(err, "creating compressor")
	}

	cw := &countingWriter{w: enc}

	var uncompressed int64

	last := clock.Now()
	buf := make([]byte, blockSize)

	for {
		select {
		case <-cancel:
			enc.Close() //nolint:errcheck
			return context.Canceled
		default:
		}

		if ctx.Err() != nil {
			enc.Close() //nolint:errcheck
			return ctx.Err()
		}

		n, rErr := r.Read(buf)
		if n > 0 {
			if _, wErr := cw.Write(buf[:n]); wErr != nil {
				enc.Close() //nolint:errcheck
				return errors.Wrap(wErr, "writing compressed block")
			}

			uncompressed += int64(n)

			if sink != nil && clock.Now().Sub(last) >= progressInterval {
				sink(progressOf(uncompressed, cw.n))
				last = clock.Now()
			}
		}

		if rErr == io.EOF {
			break
		}

		if rErr != nil {
			enc.Close() //nolint:errcheck
			return errors.Wrap(rErr, "reading source stream")
		}
	}

	if err := enc.Close(); err != nil {
		return errors.Wrap(err, "finalizing compressed stream")
	}

	if sink != nil {
		sink(progressOf(uncompressed, cw.n))
	}

	return nil
}

// DecompressStream streams r (a zstd-compressed stream produced by
// CompressStream) through a decoder into w.
func DecompressStream(ctx context.Context, r io.Reader, w io.Writer, sink ProgressSink, cancel <-chan struct{}) error {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return errors.Wrap(err, "creating decompressor")
	}
	defer dec.Close()

	var written int64

	last := clock.Now()
	buf := make([]byte, blockSize)

	for {
		select {
		case <-cancel:
			return context.Canceled
		default:
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		n, rErr := dec.Read(buf)
		if n > 0 {
			if _, wErr := w.Write(buf[:n]); wErr != nil {
				return errors.Wrap(wErr, "writing decompressed block")
			}

			written += int64(n)

			if sink != nil && clock.Now().Sub(last) >= progressInterval {
				sink(Progress{UncompressedProcessed: written})
				last = clock.Now()
			}
		}

		if rErr == io.EOF {
			break
		}

		if rErr != nil {
			return errors.Wrap(rErr, "reading compressed stream")
		}
	}

	if sink != nil {
		sink(Progress{UncompressedProcessed: written})
	}

	return nil
}

func progressOf(uncompressed, compressed int64) Progress {
	ratio := 1.0
	if compressed > 0 {
		ratio = float64(uncompressed) / float64(compressed)
	}

	return Progress{UncompressedProcessed: uncompressed, CompressedWritten: compressed, Ratio: ratio}
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)

	return n, err
}
