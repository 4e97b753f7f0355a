package sidecararchive

import (
	"bytes"
	"testing"
)

func TestWriteGzippedReadGunzippedRoundTrip(t *testing.T) {
	want := bytes.Repeat([]byte("opaque divider bytes\x00\x01\x02"), 256)

	var buf bytes.Buffer
	if err := WriteGzipped(&buf, want); err != nil {
		t.Fatalf("WriteGzipped: %v", err)
	}

	got, err := ReadGunzipped(&buf)
	if err != nil {
		t.Fatalf("ReadGunzipped: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("round trip mismatch: got %d bytes, want %d bytes", len(got), len(want))
	}
}

func TestWriteGzippedReadGunzippedEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteGzipped(&buf, nil); err != nil {
		t.Fatalf("WriteGzipped: %v", err)
	}

	got, err := ReadGunzipped(&buf)
	if err != nil {
		t.Fatalf("ReadGunzipped: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("round trip of empty sidecar produced %d bytes, want 0", len(got))
	}
}
