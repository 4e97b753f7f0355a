package leio

import (
	"bytes"
	"io"
	"testing"
)

func TestAlign(t *testing.T) {
	cases := []struct {
		length, alignment, want int64
	}{
		{0, 16, 0},
		{1, 16, 15},
		{16, 16, 0},
		{17, 16, 15},
		{5, 0, 0},
		{5, 4, 3},
	}
	for _, c := range cases {
		if got := Align(c.length, c.alignment); got != c.want {
			t.Errorf("Align(%d, %d) = %d, want %d", c.length, c.alignment, got, c.want)
		}
	}
}

func TestReadWriteRoundtrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteU8(&buf, 0x12); err != nil {
		t.Fatal(err)
	}
	if err := WriteU16(&buf, 0x3456); err != nil {
		t.Fatal(err)
	}
	if err := WriteU32(&buf, 0x789abcde); err != nil {
		t.Fatal(err)
	}
	if err := WriteU64(&buf, 0x0102030405060708); err != nil {
		t.Fatal(err)
	}

	u8, err := ReadU8(&buf)
	if err != nil || u8 != 0x12 {
		t.Fatalf("ReadU8 = %x, %v", u8, err)
	}
	u16, err := ReadU16(&buf)
	if err != nil || u16 != 0x3456 {
		t.Fatalf("ReadU16 = %x, %v", u16, err)
	}
	u32, err := ReadU32(&buf)
	if err != nil || u32 != 0x789abcde {
		t.Fatalf("ReadU32 = %x, %v", u32, err)
	}
	u64, err := ReadU64(&buf)
	if err != nil || u64 != 0x0102030405060708 {
		t.Fatalf("ReadU64 = %x, %v", u64, err)
	}
}

func TestReadExactShort(t *testing.T) {
	r := bytes.NewReader([]byte{1, 2})
	buf := make([]byte, 4)
	err := ReadExact(r, buf)
	if err == nil {
		t.Fatal("expected error on short read")
	}
	if !isUnexpectedEOF(err) {
		t.Fatalf("expected wrapped io.ErrUnexpectedEOF, got %v", err)
	}
}

func isUnexpectedEOF(err error) bool {
	for err != nil {
		if err == io.ErrUnexpectedEOF {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func TestWriteZeroPad(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteZeroPad(&buf, 5); err != nil {
		t.Fatal(err)
	}
	want := []byte{0, 0, 0, 0, 0}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("got %v, want %v", buf.Bytes(), want)
	}
	if err := WriteZeroPad(&buf, 0); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 5 {
		t.Errorf("WriteZeroPad(0) should be a no-op")
	}
}
