// Package delta implements the Delta Synchroniser (C5, spec §4.5): a
// rolling-signature + delta construction + delta application pipeline for
// resuming/patching an existing destination file instead of re-sending it
// whole, grounded on kopia's rolling-hash chunker (object/object_splitter*,
// chmduquesne/rollinghash) generalised from content-defined chunking to
// fixed-size block signatures in the classic rsync style.
package delta

import (
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/chmduquesne/rollinghash/buzhash32"
	"github.com/pkg/errors"
)

// BlockSize is the fixed chunk size signatures and deltas operate on.
const BlockSize = 64 << 10 // 64 KiB

// BlockSig is one chunk's weak (rolling) and strong hash plus its location
// in the signed file.
type BlockSig struct {
	Offset int64
	Length int
	Weak   uint32
	Strong uint64
}

// Signature is a destination file's chunk-hash table (spec §4.5 step 1).
type Signature struct {
	Blocks  []BlockSig
	byWeak  map[uint32][]int
}

// BuildSignature reads r in BlockSize chunks and returns their weak+strong
// hashes.
func BuildSignature(r io.Reader) (Signature, error) {
	sig := Signature{byWeak: map[uint32][]int{}}

	buf := make([]byte, BlockSize)

	var offset int64

	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			weak := buzhash32.New()
			weak.Write(buf[:n]) //nolint:errcheck

			bs := BlockSig{
				Offset: offset,
				Length: n,
				Weak:   weak.Sum32(),
				Strong: xxhash.Sum64(buf[:n]),
			}

			idx := len(sig.Blocks)
			sig.Blocks = append(sig.Blocks, bs)
			sig.byWeak[bs.Weak] = append(sig.byWeak[bs.Weak], idx)

			offset += int64(n)
		}

		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}

		if err != nil {
			return Signature{}, errors.Wrap(err, "building signature")
		}
	}

	return sig, nil
}

// candidates returns the block indices whose weak hash matches w.
func (s Signature) candidates(w uint32) []int {
	return s.byWeak[w]
}
