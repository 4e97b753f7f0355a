// Package tex implements the TEX flat indexed archive: a directory of
// fixed-size 32-byte entries followed by a 16-byte aligned data
// region. TEX carries no magic of its own; it is the fallback format
// once EPAC, PACH and BPE have all been ruled out.
package tex

import (
	"io"
	"os"
	"strings"

	"github.com/dfxyz/rrmod/internal/leio"
	"github.com/dfxyz/rrmod/internal/listing"
	"github.com/google/renameio"
	"golang.org/x/xerrors"
)

var reserved = [12]byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x10, 0x00, 0x00, 0x00}

const (
	alignSize     = 16
	entrySize     = 32
	maxNameLen    = 16
	maxExtLen     = 4
	headerSize    = 4 + 12
)

// ConstraintError reports a violation of a TEX size constraint.
type ConstraintError struct {
	Reason string
}

func (e *ConstraintError) Error() string { return "tex: " + e.Reason }

// FormatError reports a malformed TEX file.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string { return "tex: " + e.Reason }

// Pack writes a TEX archive containing every regular, non-empty file
// in srcDir to dstPath, ordered per listing.List's numeric sort.
func Pack(srcDir, dstPath string) error {
	entries, err := listing.List(srcDir, alignSize, nil)
	if err != nil {
		return xerrors.Errorf("tex pack: %w", err)
	}
	if len(entries) == 0 {
		return &FormatError{Reason: "source directory has no packable files"}
	}

	type record struct {
		name, ext      string
		length, offset uint32
	}
	records := make([]record, len(entries))
	globalOffset := uint32(headerSize + entrySize*len(entries))
	for i, e := range entries {
		name, ext, err := splitNameExt(e.Name)
		if err != nil {
			return err
		}
		records[i] = record{name: name, ext: ext, length: uint32(e.Length), offset: globalOffset}
		globalOffset += uint32(e.Length) + uint32(e.Padding)
	}

	out, err := renameio.TempFile("", dstPath)
	if err != nil {
		return xerrors.Errorf("tex pack: creating output: %w", err)
	}
	defer out.Cleanup()

	if err := leio.WriteU32(out, uint32(len(entries))); err != nil {
		return err
	}
	if _, err := out.Write(reserved[:]); err != nil {
		return xerrors.Errorf("tex pack: writing header: %w", err)
	}
	for _, rec := range records {
		if err := writeFixed(out, rec.name, maxNameLen); err != nil {
			return err
		}
		if err := writeFixed(out, rec.ext, maxExtLen); err != nil {
			return err
		}
		if err := leio.WriteU32(out, rec.length); err != nil {
			return err
		}
		if err := leio.WriteU32(out, rec.offset); err != nil {
			return err
		}
		if err := leio.WriteZeroPad(out, 4); err != nil {
			return err
		}
	}
	for _, e := range entries {
		if err := copyFileWithPadding(out, e.Path, e.Padding); err != nil {
			return err
		}
	}
	return out.CloseAtomicallyReplace()
}

// Unpack extracts a TEX archive at srcPath into dstDir, creating it if
// necessary.
func Unpack(srcPath, dstDir string) error {
	f, err := os.Open(srcPath)
	if err != nil {
		return xerrors.Errorf("tex unpack: %w", err)
	}
	defer f.Close()

	fileNum, err := leio.ReadU32(f)
	if err != nil {
		return xerrors.Errorf("tex unpack: reading header: %w", err)
	}
	if fileNum == 0 {
		return &FormatError{Reason: "file_num is zero"}
	}
	if _, err := f.Seek(12, io.SeekCurrent); err != nil {
		return xerrors.Errorf("tex unpack: %w", err)
	}

	type entry struct {
		name           string
		length, offset uint32
	}
	entries := make([]entry, fileNum)
	for i := range entries {
		nameBuf := make([]byte, maxNameLen)
		if err := leio.ReadExact(f, nameBuf); err != nil {
			return xerrors.Errorf("tex unpack: reading name: %w", err)
		}
		extBuf := make([]byte, maxExtLen)
		if err := leio.ReadExact(f, extBuf); err != nil {
			return xerrors.Errorf("tex unpack: reading ext: %w", err)
		}
		length, err := leio.ReadU32(f)
		if err != nil {
			return xerrors.Errorf("tex unpack: reading length: %w", err)
		}
		offset, err := leio.ReadU32(f)
		if err != nil {
			return xerrors.Errorf("tex unpack: reading offset: %w", err)
		}
		if _, err := f.Seek(4, io.SeekCurrent); err != nil {
			return xerrors.Errorf("tex unpack: %w", err)
		}
		name := stripTrailingZero(nameBuf)
		ext := stripTrailingZero(extBuf)
		entries[i] = entry{name: name + "." + ext, length: length, offset: offset}
	}

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return xerrors.Errorf("tex unpack: %w", err)
	}
	for _, e := range entries {
		if err := extractOne(f, dstDir, e.name, int64(e.offset), int64(e.length)); err != nil {
			return err
		}
	}
	return nil
}

func splitNameExt(filename string) (name, ext string, err error) {
	i := strings.LastIndexByte(filename, '.')
	if i < 0 {
		return "", "", &ConstraintError{Reason: "filename " + filename + " has no extension"}
	}
	name, ext = filename[:i], filename[i+1:]
	if len(name) == 0 || len(name) > maxNameLen {
		return "", "", &ConstraintError{Reason: "filename " + filename + " base must be 1..16 bytes"}
	}
	if len(ext) == 0 || len(ext) > maxExtLen {
		return "", "", &ConstraintError{Reason: "filename " + filename + " extension must be 1..4 bytes"}
	}
	return name, ext, nil
}

func writeFixed(w io.Writer, s string, width int) error {
	if _, err := w.Write([]byte(s)); err != nil {
		return xerrors.Errorf("tex: writing %q: %w", s, err)
	}
	return leio.WriteZeroPad(w, width-len(s))
}

func stripTrailingZero(buf []byte) string {
	for i, b := range buf {
		if b == 0 {
			return string(buf[:i])
		}
	}
	return string(buf)
}

func copyFileWithPadding(w io.Writer, path string, padding int64) error {
	f, err := os.Open(path)
	if err != nil {
		return xerrors.Errorf("tex pack: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(w, f); err != nil {
		return xerrors.Errorf("tex pack: copying %s: %w", path, err)
	}
	return leio.WriteZeroPad(w, int(padding))
}

func extractOne(src io.ReaderAt, dstDir, name string, offset, length int64) error {
	buf := make([]byte, length)
	if _, err := src.ReadAt(buf, offset); err != nil {
		return xerrors.Errorf("tex unpack: reading %s: %w", name, err)
	}
	if err := renameio.WriteFile(dstDir+string(os.PathSeparator)+name, buf, 0o644); err != nil {
		return xerrors.Errorf("tex unpack: writing %s: %w", name, err)
	}
	return nil
}
