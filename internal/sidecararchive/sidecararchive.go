// Package sidecararchive optionally gzips a captured EPAC `__entry__`
// sidecar for archival when a CLI caller wants to keep a record of the
// opaque bytes a given unpack run encountered, without bloating the
// unpacked directory itself.
package sidecararchive

import (
	"io"

	"github.com/klauspost/pgzip"
	"golang.org/x/xerrors"
)

// WriteGzipped copies data through a parallel gzip writer to w.
func WriteGzipped(w io.Writer, data []byte) error {
	zw := pgzip.NewWriter(w)
	if _, err := zw.Write(data); err != nil {
		return xerrors.Errorf("sidecararchive: %w", err)
	}
	if err := zw.Close(); err != nil {
		return xerrors.Errorf("sidecararchive: %w", err)
	}
	return nil
}

// ReadGunzipped decompresses a pgzip/gzip stream produced by
// WriteGzipped.
func ReadGunzipped(r io.Reader) ([]byte, error) {
	zr, err := pgzip.NewReader(r)
	if err != nil {
		return nil, xerrors.Errorf("sidecararchive: %w", err)
	}
	defer zr.Close()
	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, xerrors.Errorf("sidecararchive: %w", err)
	}
	return data, nil
}
