package util

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestParseString(t *testing.T) {
	buf := bytes.NewBuffer([]byte{'m', 'a', 'i', 'n', '.', 'c', 'p', 'p', 0x0, 0xff})
	str, err := ParseString(buf)
	if err != nil {
		t.Fatal(err)
	}
	if str != "main.cpp" {
		t.Fatalf("got %q", str)
	}
	if buf.Len() != 1 {
		t.Fatalf("terminator not consumed, %d bytes left", buf.Len())
	}
}

func TestParseStringUnterminated(t *testing.T) {
	buf := bytes.NewBuffer([]byte{'a', 'b'})
	if _, err := ParseString(buf); err == nil {
		t.Fatal("expected an error for an unterminated string")
	}
}

func TestReadUintRaw(t *testing.T) {
	for _, tc := range []struct {
		raw  []byte
		size int
		want uint64
	}{
		{[]byte{0x2a}, 1, 0x2a},
		{[]byte{0x34, 0x12}, 2, 0x1234},
		{[]byte{0x78, 0x56, 0x34, 0x12}, 4, 0x12345678},
		{[]byte{0xf0, 0xde, 0xbc, 0x9a, 0x78, 0x56, 0x34, 0x12}, 8, 0x123456789abcdef0},
	} {
		n, err := ReadUintRaw(bytes.NewReader(tc.raw), binary.LittleEndian, tc.size)
		if err != nil {
			t.Fatal(err)
		}
		if n != tc.want {
			t.Errorf("size %d: got %#x expected %#x", tc.size, n, tc.want)
		}
	}
}

func TestWriteUintRoundTrip(t *testing.T) {
	for _, size := range []int{1, 2, 4, 8} {
		var buf bytes.Buffer
		in := uint64(0x1122334455667788) & (1<<(8*uint(size)) - 1)
		if size == 8 {
			in = 0x1122334455667788
		}
		if err := WriteUint(&buf, binary.LittleEndian, size, in); err != nil {
			t.Fatal(err)
		}
		out, err := ReadUintRaw(&buf, binary.LittleEndian, size)
		if err != nil {
			t.Fatal(err)
		}
		if out != in {
			t.Errorf("size %d: got %#x expected %#x", size, out, in)
		}
	}
}

func TestReadDwarfLength(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0x10, 0x00, 0x00, 0x00})
	length, dwarf64, err := ReadDwarfLength(buf)
	if err != nil {
		t.Fatal(err)
	}
	if dwarf64 || length != 0x10 {
		t.Fatalf("got length %#x dwarf64 %v", length, dwarf64)
	}

	buf = bytes.NewBuffer([]byte{0xff, 0xff, 0xff, 0xff, 0x20, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00})
	length, dwarf64, err = ReadDwarfLength(buf)
	if err != nil {
		t.Fatal(err)
	}
	if !dwarf64 || length != 0x20 {
		t.Fatalf("got length %#x dwarf64 %v", length, dwarf64)
	}
}
