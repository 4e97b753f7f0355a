// Package debugcompress offers a deflate-based size comparison for a
// BPE input, for use by the CLI's -debug-ratio flag during development.
// It never touches the on-disk BPE format; BPE's substitution-table
// encoding is fixed, not tunable.
package debugcompress

import (
	"bytes"

	"github.com/klauspost/compress/flate"
	"golang.org/x/xerrors"
)

// DeflatedSize returns the length data would occupy under ordinary
// DEFLATE compression, for comparison against the BPE output size.
func DeflatedSize(data []byte) (int, error) {
	var buf bytes.Buffer
	zw, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return 0, xerrors.Errorf("debugcompress: %w", err)
	}
	if _, err := zw.Write(data); err != nil {
		return 0, xerrors.Errorf("debugcompress: %w", err)
	}
	if err := zw.Close(); err != nil {
		return 0, xerrors.Errorf("debugcompress: %w", err)
	}
	return buf.Len(), nil
}
