package main

import (
	"bytes"
	"flag"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/dfxyz/rrmod/internal/bpe"
	"github.com/dfxyz/rrmod/internal/epac"
	"github.com/dfxyz/rrmod/internal/pach"
	"github.com/dfxyz/rrmod/internal/sidecararchive"
	"github.com/dfxyz/rrmod/internal/tex"
	"golang.org/x/xerrors"
)

const unpackHelp = `rrmod unpack <src> <dst>

Unpack an archive into a directory (for bpe, into a single file),
auto-detecting its format from its leading bytes (epac, pach, bpe,
falling back to tex when none of the magic-tagged formats match).

Example:
  % rrmod unpack out.epac ./unpacked
  % rrmod unpack -gzip-sidecar out.epac ./unpacked
`

func detectFormat(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", xerrors.Errorf("unpack: %w", err)
	}
	defer f.Close()

	lead := make([]byte, 4)
	n, err := io.ReadFull(f, lead)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", xerrors.Errorf("unpack: %w", err)
	}
	lead = lead[:n]

	switch {
	case epac.DetectFormat(lead):
		return "epac", nil
	case pach.DetectFormat(lead):
		return "pach", nil
	case bpe.DetectFormat(lead):
		return "bpe", nil
	default:
		return "tex", nil
	}
}

func unpack(args []string) error {
	fset := flag.NewFlagSet("unpack", flag.ExitOnError)
	format := fset.String("format", "", "archive format to assume; if empty, detected from the file's leading bytes")
	gzipSidecar := fset.Bool("gzip-sidecar", false, "for epac, gzip the extracted __entry__ sidecar instead of leaving it as plain bytes")
	fset.Usage = usage(fset, unpackHelp)
	fset.Parse(args)

	rest := fset.Args()
	if len(rest) != 2 {
		return xerrors.Errorf("syntax: rrmod unpack <src> <dst>")
	}
	src, dst := rest[0], rest[1]

	f := *format
	if f == "" {
		var err error
		f, err = detectFormat(src)
		if err != nil {
			return err
		}
	}

	switch f {
	case "tex":
		return tex.Unpack(src, dst)
	case "pach":
		return pach.Unpack(src, dst)
	case "epac":
		if err := epac.Unpack(src, dst); err != nil {
			return err
		}
		if *gzipSidecar {
			return archiveSidecar(dst)
		}
		return nil
	case "bpe":
		packed, err := ioutil.ReadFile(src)
		if err != nil {
			return xerrors.Errorf("unpack: %w", err)
		}
		data, err := bpe.DecompressBytes(packed)
		if err != nil {
			return xerrors.Errorf("unpack: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return xerrors.Errorf("unpack: %w", err)
		}
		return ioutil.WriteFile(dst, data, 0o644)
	default:
		return xerrors.Errorf("unknown format %q", f)
	}
}

// archiveSidecar replaces dstDir's plain __entry__ sidecar, written by
// epac.Unpack, with a gzipped copy. pack re-derives the plain sidecar
// from it on demand (see pack.go), so the raw capture never needs to
// sit on disk uncompressed once this flag is set.
func archiveSidecar(dstDir string) error {
	path := filepath.Join(dstDir, "__entry__")
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return xerrors.Errorf("unpack: gzip-sidecar: %w", err)
	}
	var buf bytes.Buffer
	if err := sidecararchive.WriteGzipped(&buf, raw); err != nil {
		return xerrors.Errorf("unpack: gzip-sidecar: %w", err)
	}
	if err := ioutil.WriteFile(path+".gz", buf.Bytes(), 0o644); err != nil {
		return xerrors.Errorf("unpack: gzip-sidecar: %w", err)
	}
	return os.Remove(path)
}
