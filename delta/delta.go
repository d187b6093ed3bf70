package delta

import (
	"bufio"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/chmduquesne/rollinghash/buzhash32"
	"github.com/pkg/errors"
)

// OpKind distinguishes a delta instruction's kind.
type OpKind int

// Instruction kinds.
const (
	OpCopyBlock OpKind = iota
	OpLiteral
)

// Instruction is one step of a delta: either "copy this block verbatim from
// the signed file" or "write these literal bytes from the new source".
type Instruction struct {
	Kind       OpKind
	BlockIndex int    // valid when Kind == OpCopyBlock
	Literal    []byte // valid when Kind == OpLiteral
}

// BuildDelta constructs the instruction list turning sig's signed file into
// src, using the classic rsync rolling-match algorithm: a sliding BlockSize
// window over src is hashed with a rolling weak hash; a weak+strong match
// against sig emits a block-copy and jumps the window forward by BlockSize;
// otherwise the oldest window byte becomes a literal and the window slides
// by one (spec §4.5 step 2).
func BuildDelta(sig Signature, src io.Reader) ([]Instruction, error) {
	br := bufio.NewReaderSize(src, BlockSize*2) //nolint:mnd

	var instructions []Instruction

	var literal []byte

	window := make([]byte, 0, BlockSize)

	if err := fillWindow(br, &window); err != nil {
		return nil, err
	}

	weak := buzhash32.New()

	if len(window) > 0 {
		weak.Write(window) //nolint:errcheck
	}

	for len(window) > 0 {
		if len(window) == BlockSize {
			if idx, ok := matchBlock(sig, weak.Sum32(), window); ok {
				instructions = appendLiteral(instructions, literal)
				literal = nil

				instructions = append(instructions, Instruction{Kind: OpCopyBlock, BlockIndex: idx})

				window = window[:0]
				if err := fillWindow(br, &window); err != nil {
					return nil, err
				}

				weak = buzhash32.New()
				if len(window) > 0 {
					weak.Write(window) //nolint:errcheck
				}

				continue
			}
		}

		// No match (or a short trailing window that can never match a
		// full-size block): peel the oldest byte off as a literal and
		// slide the window forward by one, reading one fresh byte in.
		literal = append(literal, window[0])

		next, err := br.ReadByte()
		if errors.Is(err, io.EOF) {
			window = window[1:]
			continue
		}

		if err != nil {
			return nil, errors.Wrap(err, "reading source during delta construction")
		}

		weak.Roll(next)
		window = append(window[1:], next)
	}

	instructions = appendLiteral(instructions, literal)

	return instructions, nil
}

func matchBlock(sig Signature, weak uint32, window []byte) (int, bool) {
	strong := xxhash.Sum64(window)

	for _, idx := range sig.candidates(weak) {
		if sig.Blocks[idx].Strong == strong && sig.Blocks[idx].Length == len(window) {
			return idx, true
		}
	}

	return 0, false
}

func appendLiteral(instructions []Instruction, literal []byte) []Instruction {
	if len(literal) == 0 {
		return instructions
	}

	return append(instructions, Instruction{Kind: OpLiteral, Literal: literal})
}

func fillWindow(br *bufio.Reader, window *[]byte) error {
	need := BlockSize - len(*window)
	if need <= 0 {
		return nil
	}

	buf := make([]byte, need)

	n, err := io.ReadFull(br, buf)
	if n > 0 {
		*window = append(*window, buf[:n]...)
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return nil
	}

	if err != nil {
		return errors.Wrap(err, "filling delta window")
	}

	return nil
}

// ApplyDelta writes the file described by instructions to w, reading
// block-copy bytes from dst via dst.ReadAt (spec §4.5 step 3).
func ApplyDelta(dst io.ReaderAt, sig Signature, instructions []Instruction, w io.Writer) error {
	for _, instr := range instructions {
		switch instr.Kind {
		case OpCopyBlock:
			b := sig.Blocks[instr.BlockIndex]

			buf := make([]byte, b.Length)
			if _, err := dst.ReadAt(buf, b.Offset); err != nil && !errors.Is(err, io.EOF) {
				return errors.Wrap(err, "reading signed block during delta application")
			}

			if _, err := w.Write(buf); err != nil {
				return errors.Wrap(err, "writing copied block")
			}
		case OpLiteral:
			if _, err := w.Write(instr.Literal); err != nil {
				return errors.Wrap(err, "writing literal block")
			}
		}
	}

	return nil
}
