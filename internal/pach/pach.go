// Package pach implements the PACH flat indexed archive: digit-named
// files, a magic-prefixed directory of fixed-size entries, and a
// 4-byte aligned data region.
package pach

import (
	"io"
	"os"
	"strconv"

	"github.com/dfxyz/rrmod/internal/leio"
	"github.com/dfxyz/rrmod/internal/listing"
	"github.com/google/renameio"
	"golang.org/x/xerrors"
)

var magic = [4]byte{'P', 'A', 'C', 'H'}

const (
	alignSize = 4
	entrySize = 12
)

// FormatError reports a malformed PACH file.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string { return "pach: " + e.Reason }

// DetectFormat reports whether the leading bytes look like a PACH file.
func DetectFormat(lead []byte) bool {
	return len(lead) >= 4 && lead[0] == magic[0] && lead[1] == magic[1] && lead[2] == magic[2] && lead[3] == magic[3]
}

func isAllDigits(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Pack writes a PACH archive containing every digit-named regular,
// non-empty file in srcDir to dstPath.
func Pack(srcDir, dstPath string) error {
	entries, err := listing.List(srcDir, alignSize, isAllDigits)
	if err != nil {
		return xerrors.Errorf("pach pack: %w", err)
	}
	if len(entries) == 0 {
		return &FormatError{Reason: "source directory has no digit-named packable files"}
	}

	out, err := renameio.TempFile("", dstPath)
	if err != nil {
		return xerrors.Errorf("pach pack: creating output: %w", err)
	}
	defer out.Cleanup()

	if _, err := out.Write(magic[:]); err != nil {
		return xerrors.Errorf("pach pack: %w", err)
	}
	if err := leio.WriteU32(out, uint32(len(entries))); err != nil {
		return err
	}

	globalOffset := uint32(0)
	for _, e := range entries {
		fileNo, err := strconv.ParseUint(e.Name, 10, 32)
		if err != nil {
			return &FormatError{Reason: "filename " + e.Name + " is not a valid file number"}
		}
		if err := leio.WriteU32(out, uint32(fileNo)); err != nil {
			return err
		}
		if err := leio.WriteU32(out, globalOffset); err != nil {
			return err
		}
		if err := leio.WriteU32(out, uint32(e.Length)); err != nil {
			return err
		}
		globalOffset += uint32(e.Length) + uint32(e.Padding)
	}

	for _, e := range entries {
		f, err := os.Open(e.Path)
		if err != nil {
			return xerrors.Errorf("pach pack: %w", err)
		}
		if _, err := io.Copy(out, f); err != nil {
			f.Close()
			return xerrors.Errorf("pach pack: copying %s: %w", e.Path, err)
		}
		f.Close()
		if err := leio.WriteZeroPad(out, int(e.Padding)); err != nil {
			return err
		}
	}

	return out.CloseAtomicallyReplace()
}

// Unpack extracts a PACH archive at srcPath into dstDir, creating it
// if necessary. Extracted files are named after their decimal file
// number.
func Unpack(srcPath, dstDir string) error {
	f, err := os.Open(srcPath)
	if err != nil {
		return xerrors.Errorf("pach unpack: %w", err)
	}
	defer f.Close()

	var gotMagic [4]byte
	if err := leio.ReadExact(f, gotMagic[:]); err != nil {
		return xerrors.Errorf("pach unpack: %w", err)
	}
	if gotMagic != magic {
		return &FormatError{Reason: "bad magic"}
	}
	fileNum, err := leio.ReadU32(f)
	if err != nil {
		return xerrors.Errorf("pach unpack: reading file count: %w", err)
	}
	if fileNum == 0 {
		return &FormatError{Reason: "file_num is zero"}
	}
	baseOffset := uint32(8) + fileNum*entrySize

	type entry struct {
		name           string
		offset, length uint32
	}
	entries := make([]entry, fileNum)
	for i := range entries {
		fileNo, err := leio.ReadU32(f)
		if err != nil {
			return xerrors.Errorf("pach unpack: %w", err)
		}
		relOffset, err := leio.ReadU32(f)
		if err != nil {
			return xerrors.Errorf("pach unpack: %w", err)
		}
		length, err := leio.ReadU32(f)
		if err != nil {
			return xerrors.Errorf("pach unpack: %w", err)
		}
		entries[i] = entry{
			name:   strconv.FormatUint(uint64(fileNo), 10),
			offset: baseOffset + relOffset,
			length: length,
		}
	}

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return xerrors.Errorf("pach unpack: %w", err)
	}
	for _, e := range entries {
		buf := make([]byte, e.length)
		if _, err := f.ReadAt(buf, int64(e.offset)); err != nil {
			return xerrors.Errorf("pach unpack: reading %s: %w", e.name, err)
		}
		if err := renameio.WriteFile(dstDir+string(os.PathSeparator)+e.name, buf, 0o644); err != nil {
			return xerrors.Errorf("pach unpack: writing %s: %w", e.name, err)
		}
	}
	return nil
}
