// Package leio provides the little-endian integer I/O and alignment
// primitives shared by the bpe, tex, pach and epac packages.
package leio

import (
	"encoding/binary"
	"io"

	"golang.org/x/xerrors"
)

// ReadU8 reads a single byte.
func ReadU8(r io.Reader) (byte, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, xerrors.Errorf("ReadU8: %w", err)
	}
	return buf[0], nil
}

// ReadU16 reads a little-endian uint16.
func ReadU16(r io.Reader) (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, xerrors.Errorf("ReadU16: %w", err)
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

// ReadU32 reads a little-endian uint32.
func ReadU32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, xerrors.Errorf("ReadU32: %w", err)
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// ReadU64 reads a little-endian uint64.
func ReadU64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, xerrors.Errorf("ReadU64: %w", err)
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// WriteU8 writes a single byte.
func WriteU8(w io.Writer, v byte) error {
	_, err := w.Write([]byte{v})
	if err != nil {
		return xerrors.Errorf("WriteU8: %w", err)
	}
	return nil
}

// WriteU16 writes a little-endian uint16.
func WriteU16(w io.Writer, v uint16) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	if _, err := w.Write(buf[:]); err != nil {
		return xerrors.Errorf("WriteU16: %w", err)
	}
	return nil
}

// WriteU32 writes a little-endian uint32.
func WriteU32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	if _, err := w.Write(buf[:]); err != nil {
		return xerrors.Errorf("WriteU32: %w", err)
	}
	return nil
}

// WriteU64 writes a little-endian uint64.
func WriteU64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	if _, err := w.Write(buf[:]); err != nil {
		return xerrors.Errorf("WriteU64: %w", err)
	}
	return nil
}

// ReadExact reads exactly len(buf) bytes, failing with a wrapped
// io.ErrUnexpectedEOF if fewer are available.
func ReadExact(r io.Reader, buf []byte) error {
	if _, err := io.ReadFull(r, buf); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return xerrors.Errorf("ReadExact(%d bytes): %w", len(buf), err)
	}
	return nil
}

// WriteZeroPad writes n zero bytes.
func WriteZeroPad(w io.Writer, n int) error {
	if n <= 0 {
		return nil
	}
	zeroes := make([]byte, n)
	if _, err := w.Write(zeroes); err != nil {
		return xerrors.Errorf("WriteZeroPad(%d): %w", n, err)
	}
	return nil
}

// Align returns the number of padding bytes required to bring length up
// to the next multiple of alignment. Align returns 0 when alignment is
// 0 or length is already aligned.
func Align(length, alignment int64) int64 {
	if alignment <= 0 {
		return 0
	}
	rem := length % alignment
	if rem == 0 {
		return 0
	}
	return alignment - rem
}
