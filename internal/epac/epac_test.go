package epac

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func buildSidecar(headerUnknown [4]byte, footerUnknown byte, dividerName, dividerField, packedFileName [4]byte) []byte {
	var buf []byte
	buf = append(buf, headerUnknown[:]...)
	buf = append(buf, footerUnknown)
	buf = append(buf, dividerName[:]...)
	buf = append(buf, dividerField[:]...)
	buf = append(buf, packedFileName[:]...)
	return buf
}

func TestPackUnpackRoundTrip(t *testing.T) {
	srcDir := t.TempDir()

	headerUnknown := [4]byte{0, 0, 0, 0}
	footerUnknown := byte(0)
	dividerName := [4]byte{'E', 'T', 'S', 'T'}
	dividerField := [4]byte{0, 0, 0, 0}
	fileName := [4]byte{'F', 'I', 'L', 'E'}

	sidecar := buildSidecar(headerUnknown, footerUnknown, dividerName, dividerField, fileName)
	if err := os.WriteFile(filepath.Join(srcDir, "__entry__"), sidecar, 0o644); err != nil {
		t.Fatal(err)
	}

	content := bytes.Repeat([]byte{'A'}, 0x1000)
	if err := os.WriteFile(filepath.Join(srcDir, "FILE"), content, 0o644); err != nil {
		t.Fatal(err)
	}

	archivePath := filepath.Join(t.TempDir(), "out.epac")
	if err := Pack(srcDir, archivePath); err != nil {
		t.Fatalf("Pack: %v", err)
	}

	archiveData, err := os.ReadFile(archivePath)
	if err != nil {
		t.Fatal(err)
	}
	if !DetectFormat(archiveData) {
		t.Fatal("DetectFormat should recognize a packed archive")
	}
	wantSize := int64(dataRegionStart) + int64(len(content)) + footerSize
	if int64(len(archiveData)) != wantSize {
		t.Fatalf("archive size = %d, want %d", len(archiveData), wantSize)
	}

	dstDir := filepath.Join(t.TempDir(), "unpacked")
	if err := Unpack(archivePath, dstDir); err != nil {
		t.Fatalf("Unpack: %v", err)
	}

	gotSidecar, err := os.ReadFile(filepath.Join(dstDir, "__entry__"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(gotSidecar, sidecar) {
		t.Fatalf("sidecar mismatch:\ngot  %x\nwant %x", gotSidecar, sidecar)
	}

	gotContent, err := os.ReadFile(filepath.Join(dstDir, "FILE"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(gotContent, content) {
		t.Fatal("extracted FILE content mismatch")
	}

	// pack(unpack(x)) == x
	repackedPath := filepath.Join(t.TempDir(), "repacked.epac")
	if err := Pack(dstDir, repackedPath); err != nil {
		t.Fatalf("repack: %v", err)
	}
	repackedData, err := os.ReadFile(repackedPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(repackedData, archiveData) {
		t.Fatal("pack(unpack(x)) did not reproduce x byte-for-byte")
	}
}

func TestZeroPackedFilesOneDivider(t *testing.T) {
	srcDir := t.TempDir()
	headerUnknown := [4]byte{1, 2, 3, 4}
	footerUnknown := byte(0xff)
	dividerName := [4]byte{'E', 'N', 'D', '0'}
	dividerField := [4]byte{9, 9, 9, 9}

	var sidecar []byte
	sidecar = append(sidecar, headerUnknown[:]...)
	sidecar = append(sidecar, footerUnknown)
	sidecar = append(sidecar, dividerName[:]...)
	sidecar = append(sidecar, dividerField[:]...)
	if err := os.WriteFile(filepath.Join(srcDir, "__entry__"), sidecar, 0o644); err != nil {
		t.Fatal(err)
	}

	archivePath := filepath.Join(t.TempDir(), "out.epac")
	if err := Pack(srcDir, archivePath); err != nil {
		t.Fatalf("Pack: %v", err)
	}
	archiveData, err := os.ReadFile(archivePath)
	if err != nil {
		t.Fatal(err)
	}
	wantSize := int64(dataRegionStart) + footerSize
	if int64(len(archiveData)) != wantSize {
		t.Fatalf("archive size = %d, want %d", len(archiveData), wantSize)
	}

	dstDir := filepath.Join(t.TempDir(), "unpacked")
	if err := Unpack(archivePath, dstDir); err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	gotSidecar, err := os.ReadFile(filepath.Join(dstDir, "__entry__"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(gotSidecar, sidecar) {
		t.Fatalf("sidecar mismatch:\ngot  %x\nwant %x", gotSidecar, sidecar)
	}
}

func TestDetectFormat(t *testing.T) {
	if !DetectFormat([]byte("EPAC")) {
		t.Fatal("expected EPAC magic to be detected")
	}
	if DetectFormat([]byte("PACH")) {
		t.Fatal("expected non-EPAC magic to be rejected")
	}
}
