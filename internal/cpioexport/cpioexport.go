// Package cpioexport re-packages an already-unpacked tex/pach/epac
// directory tree into a cpio archive, for handoff to tooling that
// expects a cpio stream rather than a raw directory.
package cpioexport

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cavaliercoder/go-cpio"
	"golang.org/x/xerrors"
)

// Write walks srcDir and writes every regular file it contains to w as
// a newc-format cpio archive, with paths relative to srcDir.
func Write(w io.Writer, srcDir string) error {
	cw := cpio.NewWriter(w)
	defer cw.Close()

	err := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return xerrors.Errorf("cpioexport: %w", err)
		}
		info, err := d.Info()
		if err != nil {
			return xerrors.Errorf("cpioexport: %w", err)
		}
		f, err := os.Open(path)
		if err != nil {
			return xerrors.Errorf("cpioexport: %w", err)
		}
		defer f.Close()

		if err := cw.WriteHeader(&cpio.Header{
			Name: rel,
			Mode: cpio.FileMode(info.Mode().Perm()),
			Size: info.Size(),
		}); err != nil {
			return xerrors.Errorf("cpioexport: writing header for %s: %w", rel, err)
		}
		if _, err := io.Copy(cw, f); err != nil {
			return xerrors.Errorf("cpioexport: copying %s: %w", rel, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return nil
}
