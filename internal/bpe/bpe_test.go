package bpe

import (
	"bytes"
	"testing"
)

func roundTrip(t *testing.T, data []byte) []byte {
	t.Helper()
	compressed, err := CompressBytes(data, 0)
	if err != nil {
		t.Fatalf("CompressBytes: %v", err)
	}
	decompressed, err := DecompressBytes(compressed)
	if err != nil {
		t.Fatalf("DecompressBytes: %v", err)
	}
	if !bytes.Equal(decompressed, data) {
		t.Fatalf("round trip mismatch: got %x, want %x", decompressed, data)
	}
	return compressed
}

func TestRoundTripEmpty(t *testing.T) {
	compressed := roundTrip(t, nil)
	// header only: magic(4) + reserved(4) + compressed_len(4)=0 + decompressed_len(4)=0
	if len(compressed) != 16 {
		t.Fatalf("empty input should produce a bare 16-byte header, got %d bytes", len(compressed))
	}
}

func TestRoundTripRepeatingPair(t *testing.T) {
	data := []byte("ABABABABABAB")
	compressed := roundTrip(t, data)
	if !DetectFormat(compressed) {
		t.Fatal("DetectFormat should recognize compressed output")
	}
	// The AB pair occurs 6 times and should collapse the 12-byte input
	// down to fewer block-data bytes than the original.
	if len(compressed) >= len(data)+16 {
		t.Fatalf("expected compression to shrink repeated-pair input, got %d bytes for %d-byte input", len(compressed), len(data))
	}
}

func TestRoundTripNoEligiblePairs(t *testing.T) {
	// Every adjacent pair is distinct, so no substitution table entries
	// are produced; the table degenerates to two not-substituted runs
	// (0..127 with marker 128, then 129..255), since a run holds at most
	// 128 values.
	data := []byte{0, 1, 2, 3, 4, 5}
	roundTrip(t, data)
}

func TestRoundTripManyDistinctBytesSplitsBlocks(t *testing.T) {
	// 255 distinct byte values forces a block split at the 200-distinct
	// cap; repeating the span three times makes the input run across
	// several such blocks.
	var data []byte
	for round := 0; round < 3; round++ {
		for b := 0; b < 255; b++ {
			data = append(data, byte(b))
		}
	}
	roundTrip(t, data)
}

func TestRoundTripTwoBlocks(t *testing.T) {
	data := make([]byte, 4097)
	for i := range data {
		data[i] = byte(i % 7)
	}
	roundTrip(t, data)
}

func TestRoundTripRandomish(t *testing.T) {
	data := make([]byte, 10000)
	x := uint32(12345)
	for i := range data {
		x = x*1664525 + 1013904223
		data[i] = byte(x >> 24)
	}
	roundTrip(t, data)
}

func TestSelectBestPairTieBreak(t *testing.T) {
	counts := map[pair]int{
		{2, 0}: 5,
		{1, 9}: 5,
		{1, 0}: 5,
		{0, 0}: 2, // below minOccurrence, ignored
	}
	best, ok := selectBestPair(counts)
	if !ok {
		t.Fatal("expected a selection")
	}
	if best != (pair{1, 0}) {
		t.Fatalf("expected ascending tie-break to choose {1,0}, got %v", best)
	}
}

func TestDetectFormat(t *testing.T) {
	if DetectFormat([]byte("BPE ")) != true {
		t.Fatal("expected BPE magic to be detected")
	}
	if DetectFormat([]byte("PACH")) != false {
		t.Fatal("expected non-BPE magic to be rejected")
	}
	if DetectFormat([]byte("BP")) != false {
		t.Fatal("expected short input to be rejected")
	}
}
