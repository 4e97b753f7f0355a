package main

import (
	"bytes"
	"flag"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"

	"github.com/dfxyz/rrmod/internal/bpe"
	"github.com/dfxyz/rrmod/internal/debugcompress"
	"github.com/dfxyz/rrmod/internal/epac"
	"github.com/dfxyz/rrmod/internal/oninterrupt"
	"github.com/dfxyz/rrmod/internal/pach"
	"github.com/dfxyz/rrmod/internal/sidecararchive"
	"github.com/dfxyz/rrmod/internal/tex"
	"golang.org/x/xerrors"
)

const packHelp = `rrmod pack -format=<tex|pach|epac|bpe> <src> <dst>
rrmod pack <tex|pach|epac|bpe> <src> <dst>

Pack a directory (or, for bpe, a single file) into an archive. For
-format=epac, a __entry__.gz left by "unpack -gzip-sidecar" is read
transparently when no plain __entry__ is present.

Example:
  % rrmod pack -format=tex ./unpacked out.tex
  % rrmod pack pach ./unpacked out.pach
  % rrmod pack -format=epac ./unpacked out.epac
  % rrmod pack -format=bpe -j=4 plain.bin compressed.bpe
  % rrmod pack -format=bpe -debug-ratio plain.bin compressed.bpe
`

func pack(args []string) error {
	fset := flag.NewFlagSet("pack", flag.ExitOnError)
	format := fset.String("format", "", "archive format to produce: tex, pach, epac, or bpe")
	workers := fset.Int("j", defaultWorkers(), "worker count for bpe block compression")
	debugRatio := fset.Bool("debug-ratio", false, "for -format=bpe, log the input's plain DEFLATE size alongside the BPE output size")
	fset.Usage = usage(fset, packHelp)
	fset.Parse(args)

	rest := fset.Args()
	if *format == "" && len(rest) == 3 {
		*format, rest = rest[0], rest[1:]
	}
	if len(rest) != 2 {
		return xerrors.Errorf("syntax: rrmod pack [-format=]<tex|pach|epac|bpe> <src> <dst>")
	}
	src, dst := rest[0], rest[1]

	switch *format {
	case "tex":
		return tex.Pack(src, dst)
	case "pach":
		return pach.Pack(src, dst)
	case "epac":
		restored, err := restoreGzippedSidecar(src)
		if err != nil {
			return err
		}
		if restored {
			defer os.Remove(filepath.Join(src, "__entry__"))
		}
		return epac.Pack(src, dst)
	case "bpe":
		data, err := ioutil.ReadFile(src)
		if err != nil {
			return xerrors.Errorf("pack: %w", err)
		}
		if *debugRatio {
			deflated, err := debugcompress.DeflatedSize(data)
			if err != nil {
				return xerrors.Errorf("pack: %w", err)
			}
			log.Printf("debug-ratio: input=%d deflate=%d", len(data), deflated)
		}
		out, err := os.Create(dst)
		if err != nil {
			return xerrors.Errorf("pack: %w", err)
		}
		defer out.Close()
		oninterrupt.Register(func() { os.Remove(dst) })
		if err := bpe.Compress(out, data, *workers); err != nil {
			return xerrors.Errorf("pack: %w", err)
		}
		if *debugRatio {
			info, err := out.Stat()
			if err == nil {
				log.Printf("debug-ratio: bpe=%d", info.Size())
			}
		}
		return out.Close()
	case "":
		return xerrors.Errorf("syntax: a format is required")
	default:
		return xerrors.Errorf("unknown format %q", *format)
	}
}

// restoreGzippedSidecar looks for a __entry__.gz left behind by a prior
// "unpack -gzip-sidecar" and, if found with no plain __entry__ alongside
// it, gunzips it back into __entry__ so epac.Pack can read it normally.
// Reports whether it restored a file, so the caller can clean it back up
// once Pack has consumed it.
func restoreGzippedSidecar(srcDir string) (bool, error) {
	plain := filepath.Join(srcDir, "__entry__")
	if _, err := os.Stat(plain); err == nil {
		return false, nil
	}
	gzPath := plain + ".gz"
	packed, err := ioutil.ReadFile(gzPath)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, xerrors.Errorf("pack: gzip-sidecar: %w", err)
	}
	raw, err := sidecararchive.ReadGunzipped(bytes.NewReader(packed))
	if err != nil {
		return false, xerrors.Errorf("pack: gzip-sidecar: %w", err)
	}
	if err := ioutil.WriteFile(plain, raw, 0o644); err != nil {
		return false, xerrors.Errorf("pack: gzip-sidecar: %w", err)
	}
	return true, nil
}
