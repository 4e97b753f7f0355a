// Package bpe implements the byte-pair-encoding block compressor: an
// iterative greedy pair-substitution loop over bounded blocks, paired
// with a compact range-coded substitution table and a symmetric
// decoder. This is the one subsystem in the toolkit with non-trivial
// algorithmic work; the container codecs (tex, pach, epac) only
// arrange bytes BPE and friends have already produced.
package bpe

import (
	"bytes"
	"context"
	"io"
	"runtime"

	"github.com/dfxyz/rrmod/internal/leio"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

var (
	magic    = [4]byte{'B', 'P', 'E', ' '}
	reserved = [4]byte{0x00, 0x01, 0x00, 0x00}
)

const (
	maxBlockSize     = 4096
	maxNormalByteNum = 200
	minOccurrence    = 3
	maxFlattenDepth  = 256
)

// ConstraintError reports a violation of a BPE size constraint.
type ConstraintError struct {
	Reason string
}

func (e *ConstraintError) Error() string { return "bpe: " + e.Reason }

// FormatError reports a malformed BPE file.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string { return "bpe: " + e.Reason }

// DetectFormat reports whether the leading bytes look like a BPE file.
func DetectFormat(lead []byte) bool {
	return len(lead) >= 4 && bytes.Equal(lead[:4], magic[:])
}

// CompressBytes compresses data into the on-disk BPE format. workers
// bounds the number of blocks compressed concurrently; 0 selects
// runtime.NumCPU().
func CompressBytes(data []byte, workers int) ([]byte, error) {
	var buf bytes.Buffer
	if err := Compress(&buf, data, workers); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Compress writes the BPE-encoded form of data to w.
func Compress(w io.Writer, data []byte, workers int) error {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	blocks := splitBlocks(data)

	compressed := make([][]byte, len(blocks))
	g, _ := errgroup.WithContext(context.Background())
	g.SetLimit(workers)
	for i, blk := range blocks {
		i, blk := i, blk
		g.Go(func() error {
			out, err := compressBlock(blk.data, blk.used)
			if err != nil {
				return err
			}
			compressed[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return xerrors.Errorf("compressing block: %w", err)
	}

	var compressedLen uint64
	for _, c := range compressed {
		compressedLen += uint64(len(c))
	}
	if compressedLen > 0xffffffff {
		return &ConstraintError{Reason: "compressed payload exceeds 4 GiB"}
	}
	if len(data) > 0xffffffff {
		return &ConstraintError{Reason: "input exceeds 4 GiB"}
	}

	if _, err := w.Write(magic[:]); err != nil {
		return xerrors.Errorf("writing magic: %w", err)
	}
	if _, err := w.Write(reserved[:]); err != nil {
		return xerrors.Errorf("writing reserved: %w", err)
	}
	if err := leio.WriteU32(w, uint32(compressedLen)); err != nil {
		return xerrors.Errorf("writing compressed length: %w", err)
	}
	if err := leio.WriteU32(w, uint32(len(data))); err != nil {
		return xerrors.Errorf("writing decompressed length: %w", err)
	}
	for _, c := range compressed {
		if _, err := w.Write(c); err != nil {
			return xerrors.Errorf("writing block: %w", err)
		}
	}
	return nil
}

type rawBlock struct {
	data []byte
	used [256]bool
}

// splitBlocks scans data into blocks of at most maxBlockSize bytes,
// each using at most maxNormalByteNum distinct byte values.
func splitBlocks(data []byte) []rawBlock {
	var blocks []rawBlock
	i := 0
	for i < len(data) {
		var used [256]bool
		distinct := 0
		start := i
		for i < len(data) {
			b := data[i]
			if distinct == maxNormalByteNum && !used[b] {
				break
			}
			if !used[b] {
				used[b] = true
				distinct++
			}
			i++
			if i-start >= maxBlockSize {
				break
			}
		}
		blocks = append(blocks, rawBlock{data: data[start:i], used: used})
	}
	return blocks
}

type pair [2]byte

// compressBlock runs the greedy pair-substitution loop over one block
// and returns its on-disk encoding (substitution table + u16 length +
// rewritten bytes).
func compressBlock(block []byte, used [256]bool) ([]byte, error) {
	block = append([]byte(nil), block...) // this goroutine owns a private copy

	var queue []byte
	for b := 0; b < 256; b++ {
		if !used[byte(b)] {
			queue = append(queue, byte(b))
		}
	}

	counts := make(map[pair]int, len(block))
	for i := 0; i+1 < len(block); i++ {
		counts[pair{block[i], block[i+1]}]++
	}

	substitution := make(map[byte]pair)
	for len(queue) > 0 {
		code := queue[0]
		queue = queue[1:]

		best, ok := selectBestPair(counts)
		if !ok {
			break
		}
		substitution[code] = best
		block = rewriteBlock(block, best, code, counts)
		delete(counts, best)
	}

	if len(block) > 0xffff {
		return nil, &ConstraintError{Reason: "compressed block exceeds 65535 bytes"}
	}

	var out bytes.Buffer
	if err := encodeSubstitutionTable(&out, substitution); err != nil {
		return nil, err
	}
	if err := leio.WriteU16(&out, uint16(len(block))); err != nil {
		return nil, err
	}
	out.Write(block)
	return out.Bytes(), nil
}

// selectBestPair returns the pair with the highest count (ties broken
// by ascending first byte, then ascending second byte) among pairs
// with count >= minOccurrence.
func selectBestPair(counts map[pair]int) (pair, bool) {
	var best pair
	bestCount := 0
	found := false
	for p, c := range counts {
		if c < minOccurrence {
			continue
		}
		if !found ||
			c > bestCount ||
			(c == bestCount && (p[0] < best[0] || (p[0] == best[0] && p[1] < best[1]))) {
			best, bestCount, found = p, c, true
		}
	}
	return best, found
}

// rewriteBlock replaces every non-overlapping occurrence of pr with
// code, scanning left to right with a lagging write cursor, and keeps
// counts consistent with the rewritten bytes as it goes.
func rewriteBlock(block []byte, pr pair, code byte, counts map[pair]int) []byte {
	dec := func(p pair) {
		if c, ok := counts[p]; ok {
			if c > 1 {
				counts[p] = c - 1
			} else {
				delete(counts, p)
			}
		}
	}
	inc := func(p pair) { counts[p]++ }

	n := len(block)
	w, r := 0, 0
	for r < n-1 {
		if block[r] == pr[0] && block[r+1] == pr[1] {
			if w > 0 {
				dec(pair{block[w-1], block[r]})
				inc(pair{block[w-1], code})
			}
			if r < n-2 {
				dec(pair{block[r+1], block[r+2]})
				inc(pair{code, block[r+2]})
			}
			block[w] = code
			w++
			r += 2
		} else {
			block[w] = block[r]
			w++
			r++
		}
	}
	if r == n-1 {
		block[w] = block[r]
		w++
	}
	return block[:w]
}

// encodeSubstitutionTable writes the run-length substitution table,
// scanning the 256-value byte space and alternating substituted and
// not-substituted runs of at most 128 entries each.
func encodeSubstitutionTable(out *bytes.Buffer, substitution map[byte]pair) error {
	cursor := 0
	for cursor < 256 {
		if _, ok := substitution[byte(cursor)]; ok {
			i := 1
			for {
				next := cursor + i
				if next > 255 {
					writeSubstitutedRange(out, cursor, 255, substitution)
					return nil
				}
				if _, ok := substitution[byte(next)]; !ok {
					break
				}
				if i == 0x80 {
					break
				}
				i++
			}
			writeSubstitutedRange(out, cursor, cursor+i-1, substitution)
			cursor += i
		} else {
			i := 1
			for {
				next := cursor + i
				if next > 255 {
					writeNotSubstitutedRange(out, cursor, 255, substitution)
					return nil
				}
				if _, ok := substitution[byte(next)]; ok {
					break
				}
				if i == 0x80 {
					break
				}
				i++
			}
			writeNotSubstitutedRange(out, cursor, cursor+i-1, substitution)
			cursor += i + 1
		}
	}
	return nil
}

func writeSubstitutedRange(out *bytes.Buffer, from, to int, substitution map[byte]pair) {
	out.WriteByte(byte(to - from))
	for b := from; b <= to; b++ {
		p := substitution[byte(b)]
		out.WriteByte(p[0])
		out.WriteByte(p[1])
	}
}

func writeNotSubstitutedRange(out *bytes.Buffer, from, to int, substitution map[byte]pair) {
	out.WriteByte(byte(to - from + 0x80))
	if to < 255 {
		if p, ok := substitution[byte(to+1)]; ok {
			out.WriteByte(p[0])
			out.WriteByte(p[1])
		} else {
			out.WriteByte(byte(to + 1))
		}
	}
}

// DecompressBytes decodes a complete BPE file held in memory.
func DecompressBytes(data []byte) ([]byte, error) {
	var out bytes.Buffer
	if err := Decompress(&out, bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// Decompress reads a BPE file from r and writes the decompressed
// bytes to w.
func Decompress(w io.Writer, r io.Reader) error {
	var gotMagic [4]byte
	if _, err := io.ReadFull(r, gotMagic[:]); err != nil {
		return xerrors.Errorf("reading magic: %w", err)
	}
	if gotMagic != magic {
		return &FormatError{Reason: "bad magic"}
	}
	var gotReserved [4]byte
	if _, err := io.ReadFull(r, gotReserved[:]); err != nil {
		return xerrors.Errorf("reading reserved field: %w", err)
	}
	compressedLen, err := leio.ReadU32(r)
	if err != nil {
		return xerrors.Errorf("reading compressed length: %w", err)
	}
	decompressedLen, err := leio.ReadU32(r)
	if err != nil {
		return xerrors.Errorf("reading decompressed length: %w", err)
	}

	lr := &countingReader{r: r}
	var written uint32
	var consumed uint32
	for consumed < compressedLen {
		n, err := decompressOneBlock(w, lr)
		if err != nil {
			return xerrors.Errorf("decoding block: %w", err)
		}
		written += n
		consumed = uint32(lr.n)
	}
	if consumed != compressedLen {
		return &FormatError{Reason: "block data overruns the declared compressed length"}
	}
	var extra [1]byte
	if _, err := io.ReadFull(r, extra[:]); err == nil {
		return &FormatError{Reason: "trailing bytes after the declared compressed length"}
	} else if err != io.EOF {
		return xerrors.Errorf("checking for trailing bytes: %w", err)
	}
	if written < decompressedLen {
		if err := writeZeroes(w, int(decompressedLen-written)); err != nil {
			return xerrors.Errorf("writing trailing zero pad: %w", err)
		}
	}
	return nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// decompressOneBlock reads one block's substitution table plus its
// length-prefixed data, writing the flattened output to w. It returns
// the number of bytes written.
func decompressOneBlock(w io.Writer, r io.Reader) (uint32, error) {
	flat, err := decodeSubstitutionTable(r)
	if err != nil {
		return 0, err
	}
	length, err := leio.ReadU16(r)
	if err != nil {
		return 0, xerrors.Errorf("reading block data length: %w", err)
	}
	var written uint32
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, xerrors.Errorf("reading block data: %w", err)
	}
	for _, b := range buf {
		if expansion, ok := flat[b]; ok {
			if _, err := w.Write(expansion); err != nil {
				return 0, xerrors.Errorf("writing expansion: %w", err)
			}
			written += uint32(len(expansion))
		} else {
			if _, err := w.Write([]byte{b}); err != nil {
				return 0, xerrors.Errorf("writing byte: %w", err)
			}
			written++
		}
	}
	return written, nil
}

// decodeSubstitutionTable parses the run-length table and returns the
// fully-flattened code -> expansion mapping.
func decodeSubstitutionTable(r io.Reader) (map[byte][]byte, error) {
	raw := make(map[byte]pair)
	var order []byte

	cursor := 0
	for {
		ctrl, err := leio.ReadU8(r)
		if err != nil {
			return nil, xerrors.Errorf("reading control byte: %w", err)
		}

		substitutedCount := 1
		if ctrl >= 0x80 {
			i := int(ctrl) - 0x80
			next := cursor + i + 1
			if next > 255 {
				break
			}
			cursor = next
		} else {
			substitutedCount = int(ctrl) + 1
		}

		done := false
		for n := 0; n < substitutedCount; n++ {
			a, err := leio.ReadU8(r)
			if err != nil {
				return nil, xerrors.Errorf("reading table entry: %w", err)
			}
			if byte(cursor) != a {
				b, err := leio.ReadU8(r)
				if err != nil {
					return nil, xerrors.Errorf("reading table entry: %w", err)
				}
				raw[byte(cursor)] = pair{a, b}
				order = append(order, byte(cursor))
			}
			if cursor == 255 {
				done = true
				break
			}
			cursor++
		}
		if done {
			break
		}
	}

	return flattenSubstitutionMap(raw, order)
}

// flattenSubstitutionMap expands every chained code in raw into its
// full byte sequence. The substitution DAG produced by a conforming
// encoder is acyclic by construction (§9); flattenOne still guards
// against runaway recursion in case of a corrupt or adversarial input.
func flattenSubstitutionMap(raw map[byte]pair, order []byte) (map[byte][]byte, error) {
	flat := make(map[byte][]byte, len(raw))
	for _, b := range order {
		if _, done := flat[b]; done {
			continue
		}
		expansion, err := flattenOne(raw, flat, b, 0)
		if err != nil {
			return nil, err
		}
		flat[b] = expansion
	}
	return flat, nil
}

func flattenOne(raw map[byte]pair, flat map[byte][]byte, b byte, depth int) ([]byte, error) {
	if v, ok := flat[b]; ok {
		return v, nil
	}
	p, ok := raw[b]
	if !ok {
		return []byte{b}, nil
	}
	if depth > maxFlattenDepth {
		return nil, &FormatError{Reason: "substitution table contains a cycle"}
	}
	left, err := flattenOne(raw, flat, p[0], depth+1)
	if err != nil {
		return nil, err
	}
	right, err := flattenOne(raw, flat, p[1], depth+1)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(left)+len(right))
	out = append(out, left...)
	out = append(out, right...)
	flat[b] = out
	return out, nil
}

func writeZeroes(w io.Writer, n int) error {
	if n <= 0 {
		return nil
	}
	zeroes := make([]byte, n)
	_, err := w.Write(zeroes)
	return err
}
