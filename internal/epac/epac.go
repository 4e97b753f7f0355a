// Package epac implements the EPAC two-tier archive: a 2048-byte
// aligned data region preceded by a fixed-size header and entry
// table, and followed by a fixed-size footer. EPAC's entry table mixes
// opaque "divider" records with ordinary packed-file records; an
// `__entry__` sidecar file preserves the opaque bytes this package
// does not interpret, so that pack(unpack(x)) reproduces x exactly.
package epac

import (
	"io"
	"os"
	"path/filepath"

	"github.com/dfxyz/rrmod/internal/epacgraph"
	"github.com/dfxyz/rrmod/internal/leio"
	"github.com/google/renameio"
	"golang.org/x/xerrors"
)

var (
	magic    = [4]byte{'E', 'P', 'A', 'C'}
	reserved = [4]byte{0x07, 0x00, 0x00, 0x00}
	footer1  = [16]byte{'E', 'O', 'P', '5', '/', '1', '.', '1', '0', 0, 0, 0, 0, 0, 0, 0}
)

const (
	alignSize       = 2048
	entrySize       = 12
	entryTableStart = 0x800
	dataRegionStart = 0x4000
	footerSize      = 0x800
)

// FormatError reports a malformed EPAC file or sidecar.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string { return "epac: " + e.Reason }

// DetectFormat reports whether the leading bytes look like an EPAC file.
func DetectFormat(lead []byte) bool {
	return len(lead) >= 4 && [4]byte{lead[0], lead[1], lead[2], lead[3]} == magic
}

type sidecarEntry struct {
	isDivider    bool
	name         [4]byte
	dividerField [4]byte // valid only when isDivider
	offsetBlocks uint32  // data-region block offset; recomputed by Pack, parsed by Unpack — not persisted to the sidecar
}

func validateSequence(entries []sidecarEntry) error {
	graphEntries := make([]epacgraph.Entry, len(entries))
	for i, e := range entries {
		graphEntries[i] = epacgraph.Entry{Name: string(e.name[:]), IsDivider: e.isDivider, Offset: int64(e.offsetBlocks)}
	}
	return epacgraph.ValidateEntrySequence(graphEntries)
}

// Pack writes an EPAC archive to dstPath, sourced from srcDir's
// `__entry__` sidecar (which supplies the opaque header/footer bytes
// and the divider/packed-file sequence) and the packed files it names.
func Pack(srcDir, dstPath string) error {
	headerUnknown, footerUnknown, entries, err := readSidecar(filepath.Join(srcDir, "__entry__"))
	if err != nil {
		return xerrors.Errorf("epac pack: %w", err)
	}
	if len(entries) == 0 {
		return &FormatError{Reason: "sidecar has no entries"}
	}

	type fileMeta struct {
		length, padding int64
	}
	metas := make(map[int]fileMeta, len(entries))
	var size int64
	for i, e := range entries {
		if e.isDivider {
			continue
		}
		path := filepath.Join(srcDir, string(e.name[:]))
		info, err := os.Stat(path)
		if err != nil {
			return xerrors.Errorf("epac pack: %w", err)
		}
		padding := leio.Align(info.Size(), alignSize)
		metas[i] = fileMeta{length: info.Size(), padding: padding}
		size += info.Size() + padding
	}

	offsetBlocks := uint32(0)
	for i := range entries {
		entries[i].offsetBlocks = offsetBlocks
		if entries[i].isDivider {
			continue
		}
		m := metas[i]
		if (m.length+m.padding)%alignSize != 0 {
			return &FormatError{Reason: "packed file size is not 2048-aligned after padding"}
		}
		offsetBlocks += uint32((m.length + m.padding) / alignSize)
	}
	if err := validateSequence(entries); err != nil {
		return xerrors.Errorf("epac pack: %w", err)
	}

	out, err := renameio.TempFile("", dstPath)
	if err != nil {
		return xerrors.Errorf("epac pack: creating output: %w", err)
	}
	defer out.Cleanup()

	if _, err := out.Write(magic[:]); err != nil {
		return xerrors.Errorf("epac pack: %w", err)
	}
	if _, err := out.Write(headerUnknown[:]); err != nil {
		return xerrors.Errorf("epac pack: %w", err)
	}
	if err := leio.WriteU32(out, uint32(size)); err != nil {
		return err
	}
	if _, err := out.Write(reserved[:]); err != nil {
		return xerrors.Errorf("epac pack: %w", err)
	}
	if err := leio.WriteZeroPad(out, entryTableStart-16); err != nil {
		return err
	}

	for i, e := range entries {
		if e.isDivider {
			if _, err := out.Write(e.name[:]); err != nil {
				return xerrors.Errorf("epac pack: %w", err)
			}
			if _, err := out.Write(e.dividerField[:]); err != nil {
				return xerrors.Errorf("epac pack: %w", err)
			}
			if err := leio.WriteU32(out, e.offsetBlocks); err != nil {
				return err
			}
			continue
		}
		m := metas[i]
		if _, err := out.Write(e.name[:]); err != nil {
			return xerrors.Errorf("epac pack: %w", err)
		}
		if err := leio.WriteU32(out, e.offsetBlocks); err != nil {
			return err
		}
		lenUnits := uint32(m.length / 256)
		if m.length%256 != 0 {
			lenUnits++
		}
		if err := leio.WriteU32(out, lenUnits); err != nil {
			return err
		}
	}

	written := int64(entryTableStart + entrySize*len(entries))
	if err := leio.WriteZeroPad(out, int(dataRegionStart-written)); err != nil {
		return err
	}

	for i, e := range entries {
		if e.isDivider {
			continue
		}
		m := metas[i]
		f, err := os.Open(filepath.Join(srcDir, string(e.name[:])))
		if err != nil {
			return xerrors.Errorf("epac pack: %w", err)
		}
		_, copyErr := io.Copy(out, f)
		f.Close()
		if copyErr != nil {
			return xerrors.Errorf("epac pack: copying %s: %w", e.name, copyErr)
		}
		if err := leio.WriteZeroPad(out, int(m.padding)); err != nil {
			return err
		}
	}

	if _, err := out.Write(footer1[:]); err != nil {
		return xerrors.Errorf("epac pack: %w", err)
	}
	if err := leio.WriteZeroPad(out, 0x400-len(footer1)); err != nil {
		return err
	}
	if err := leio.WriteU8(out, footerUnknown); err != nil {
		return err
	}
	if err := leio.WriteZeroPad(out, 0x400-1); err != nil {
		return err
	}

	return out.CloseAtomicallyReplace()
}

func readSidecar(path string) (headerUnknown [4]byte, footerUnknown byte, entries []sidecarEntry, err error) {
	f, err := os.Open(path)
	if err != nil {
		return headerUnknown, 0, nil, xerrors.Errorf("reading sidecar: %w", err)
	}
	defer f.Close()

	if err := leio.ReadExact(f, headerUnknown[:]); err != nil {
		return headerUnknown, 0, nil, xerrors.Errorf("reading sidecar header: %w", err)
	}
	footerUnknown, err = leio.ReadU8(f)
	if err != nil {
		return headerUnknown, 0, nil, xerrors.Errorf("reading sidecar footer byte: %w", err)
	}

	rest, err := io.ReadAll(f)
	if err != nil {
		return headerUnknown, 0, nil, xerrors.Errorf("reading sidecar entries: %w", err)
	}
	if len(rest)%4 != 0 {
		return headerUnknown, 0, nil, &FormatError{Reason: "sidecar entry stream is not a multiple of 4 bytes"}
	}
	words := len(rest) / 4
	for i := 0; i < words; {
		var name [4]byte
		copy(name[:], rest[i*4:(i+1)*4])
		if name[0] == 'E' {
			if i+1 >= words {
				return headerUnknown, 0, nil, &FormatError{Reason: "sidecar divider missing its field"}
			}
			var field [4]byte
			copy(field[:], rest[(i+1)*4:(i+2)*4])
			entries = append(entries, sidecarEntry{isDivider: true, name: name, dividerField: field})
			i += 2
		} else {
			entries = append(entries, sidecarEntry{isDivider: false, name: name})
			i++
		}
	}
	return headerUnknown, footerUnknown, entries, nil
}

// Unpack extracts an EPAC archive at srcPath into dstDir, writing an
// `__entry__` sidecar that preserves every opaque byte needed to
// reproduce the archive byte-for-byte via Pack.
func Unpack(srcPath, dstDir string) error {
	f, err := os.Open(srcPath)
	if err != nil {
		return xerrors.Errorf("epac unpack: %w", err)
	}
	defer f.Close()

	var gotMagic [4]byte
	if err := leio.ReadExact(f, gotMagic[:]); err != nil {
		return xerrors.Errorf("epac unpack: %w", err)
	}
	if gotMagic != magic {
		return &FormatError{Reason: "bad magic"}
	}
	var headerUnknown [4]byte
	if err := leio.ReadExact(f, headerUnknown[:]); err != nil {
		return xerrors.Errorf("epac unpack: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		return xerrors.Errorf("epac unpack: %w", err)
	}
	if _, err := f.Seek(info.Size()-0x400, io.SeekStart); err != nil {
		return xerrors.Errorf("epac unpack: %w", err)
	}
	footerUnknown, err := leio.ReadU8(f)
	if err != nil {
		return xerrors.Errorf("epac unpack: reading footer byte: %w", err)
	}

	if _, err := f.Seek(entryTableStart, io.SeekStart); err != nil {
		return xerrors.Errorf("epac unpack: %w", err)
	}

	type packedFile struct {
		name           [4]byte
		offset, length int64
	}
	var entries []sidecarEntry
	var packedFiles []packedFile
	for {
		var name [4]byte
		if err := leio.ReadExact(f, name[:]); err != nil {
			return xerrors.Errorf("epac unpack: reading entry: %w", err)
		}
		if name == ([4]byte{0, 0, 0, 0}) {
			break
		}
		if name[0] == 'E' {
			var field [4]byte
			if err := leio.ReadExact(f, field[:]); err != nil {
				return xerrors.Errorf("epac unpack: reading divider field: %w", err)
			}
			dividerOffsetBlocks, err := leio.ReadU32(f)
			if err != nil {
				return xerrors.Errorf("epac unpack: reading divider offset: %w", err)
			}
			entries = append(entries, sidecarEntry{isDivider: true, name: name, dividerField: field, offsetBlocks: dividerOffsetBlocks})
			continue
		}
		offsetBlocks, err := leio.ReadU32(f)
		if err != nil {
			return xerrors.Errorf("epac unpack: %w", err)
		}
		lenUnits, err := leio.ReadU32(f)
		if err != nil {
			return xerrors.Errorf("epac unpack: %w", err)
		}
		entries = append(entries, sidecarEntry{isDivider: false, name: name, offsetBlocks: offsetBlocks})
		packedFiles = append(packedFiles, packedFile{
			name:   name,
			offset: int64(offsetBlocks)*alignSize + dataRegionStart,
			length: int64(lenUnits) * 256,
		})
	}
	if len(entries) == 0 {
		return &FormatError{Reason: "entry table has no entries"}
	}
	if err := validateSequence(entries); err != nil {
		return xerrors.Errorf("epac unpack: %w", err)
	}

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return xerrors.Errorf("epac unpack: %w", err)
	}

	var sidecar []byte
	sidecar = append(sidecar, headerUnknown[:]...)
	sidecar = append(sidecar, footerUnknown)
	for _, e := range entries {
		sidecar = append(sidecar, e.name[:]...)
		if e.isDivider {
			sidecar = append(sidecar, e.dividerField[:]...)
		}
	}
	if err := renameio.WriteFile(filepath.Join(dstDir, "__entry__"), sidecar, 0o644); err != nil {
		return xerrors.Errorf("epac unpack: writing sidecar: %w", err)
	}

	for _, pf := range packedFiles {
		buf := make([]byte, pf.length)
		if _, err := f.ReadAt(buf, pf.offset); err != nil {
			return xerrors.Errorf("epac unpack: reading %s: %w", pf.name, err)
		}
		if err := renameio.WriteFile(filepath.Join(dstDir, string(pf.name[:])), buf, 0o644); err != nil {
			return xerrors.Errorf("epac unpack: writing %s: %w", pf.name, err)
		}
	}
	return nil
}
