package debugcompress

import (
	"bytes"
	"testing"
)

func TestDeflatedSizeCompressesRepeats(t *testing.T) {
	data := bytes.Repeat([]byte("abcdefgh"), 1024)
	n, err := DeflatedSize(data)
	if err != nil {
		t.Fatal(err)
	}
	if n >= len(data) {
		t.Fatalf("DeflatedSize(%d repeating bytes) = %d, want smaller than input", len(data), n)
	}
}

func TestDeflatedSizeEmpty(t *testing.T) {
	n, err := DeflatedSize(nil)
	if err != nil {
		t.Fatal(err)
	}
	if n <= 0 {
		t.Fatalf("DeflatedSize(nil) = %d, want a positive size for the DEFLATE stream terminator", n)
	}
}
