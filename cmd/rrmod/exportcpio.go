package main

import (
	"flag"
	"os"

	"github.com/dfxyz/rrmod/internal/cpioexport"
	"golang.org/x/xerrors"
)

const exportCPIOHelp = `rrmod export-cpio <src-dir> <dst.cpio>

Re-package an already-unpacked directory tree as a newc-format cpio
archive, for handoff to tooling that expects a cpio stream.

Example:
  % rrmod export-cpio ./unpacked out.cpio
`

func exportCPIO(args []string) error {
	fset := flag.NewFlagSet("export-cpio", flag.ExitOnError)
	fset.Usage = usage(fset, exportCPIOHelp)
	fset.Parse(args)

	rest := fset.Args()
	if len(rest) != 2 {
		return xerrors.Errorf("syntax: rrmod export-cpio <src-dir> <dst.cpio>")
	}
	srcDir, dstPath := rest[0], rest[1]

	out, err := os.Create(dstPath)
	if err != nil {
		return xerrors.Errorf("export-cpio: %w", err)
	}
	defer out.Close()

	if err := cpioexport.Write(out, srcDir); err != nil {
		return xerrors.Errorf("export-cpio: %w", err)
	}
	return out.Close()
}
