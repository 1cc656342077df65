package form

import (
	"bytes"
	"errors"
	"testing"

	"github.com/slatedbg/slate/pkg/dwarf/leb128"
)

func TestSkipSizes(t *testing.T) {
	for _, tc := range []struct {
		form Form
		raw  []byte
		left int
	}{
		{Addr, make([]byte, 10), 2},
		{Data1, make([]byte, 3), 2},
		{Ref1, make([]byte, 3), 2},
		{Flag, make([]byte, 3), 2},
		{Data2, make([]byte, 3), 1},
		{Ref2, make([]byte, 3), 1},
		{Data4, make([]byte, 6), 2},
		{Ref4, make([]byte, 6), 2},
		{Data8, make([]byte, 9), 1},
		{Ref8, make([]byte, 9), 1},
		{Strp, make([]byte, 6), 2},
		{RefAddr, make([]byte, 6), 2},
		{SecOffset, make([]byte, 6), 2},
		{FlagPresent, make([]byte, 2), 2},
		{Block, append([]byte{0x03}, make([]byte, 5)...), 2},
		{Exprloc, append([]byte{0x02}, make([]byte, 4)...), 2},
		{Block1, append([]byte{0x01}, make([]byte, 3)...), 2},
		{Block2, append([]byte{0x02, 0x00}, make([]byte, 4)...), 2},
		{Block4, append([]byte{0x01, 0x00, 0x00, 0x00}, make([]byte, 3)...), 2},
	} {
		buf := bytes.NewBuffer(tc.raw)
		if err := Skip(buf, tc.form, false); err != nil {
			t.Fatalf("%s: %v", tc.form, err)
		}
		if buf.Len() != tc.left {
			t.Errorf("%s: %d bytes left, expected %d", tc.form, buf.Len(), tc.left)
		}
	}
}

func TestSkipLEB128Forms(t *testing.T) {
	var raw bytes.Buffer
	leb128.EncodeSigned(&raw, -129)
	raw.WriteByte(0xaa)
	buf := bytes.NewBuffer(raw.Bytes())
	if err := Skip(buf, Sdata, false); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 1 {
		t.Fatalf("sdata: %d bytes left", buf.Len())
	}

	raw.Reset()
	leb128.EncodeUnsigned(&raw, 624485)
	raw.WriteByte(0xbb)
	buf = bytes.NewBuffer(raw.Bytes())
	if err := Skip(buf, Udata, false); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 1 {
		t.Fatalf("udata: %d bytes left", buf.Len())
	}
}

func TestSkipDwarf64Offsets(t *testing.T) {
	buf := bytes.NewBuffer(make([]byte, 10))
	if err := Skip(buf, SecOffset, true); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 2 {
		t.Fatalf("sec_offset/dwarf64: %d bytes left", buf.Len())
	}
}

func TestSkipUnsupported(t *testing.T) {
	var ferr *UnsupportedFormError
	err := Skip(bytes.NewBuffer(make([]byte, 8)), Indirect, false)
	if !errors.As(err, &ferr) {
		t.Errorf("expected UnsupportedFormError, got %v", err)
	}
}

func TestSkipString(t *testing.T) {
	buf := bytes.NewBuffer([]byte("inline-name\x00xy"))
	if err := Skip(buf, String, false); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 2 {
		t.Fatalf("string: %d bytes left", buf.Len())
	}
}

func TestAttrUint64(t *testing.T) {
	attr := NewAttr(Addr, []byte{0xd9, 0x0a, 0x40, 0x00, 0x00, 0x00, 0x00, 0x00}, false)
	v, err := attr.Uint64()
	if err != nil {
		t.Fatal(err)
	}
	if v != 0x400ad9 {
		t.Fatalf("addr: got %#x", v)
	}

	attr = NewAttr(Data4, []byte{0x78, 0x56, 0x34, 0x12, 0xff}, false)
	if v, _ = attr.Uint64(); v != 0x12345678 {
		t.Fatalf("data4: got %#x", v)
	}

	attr = NewAttr(SecOffset, []byte{0x10, 0x02, 0x00, 0x00}, false)
	if v, _ = attr.Uint64(); v != 0x210 {
		t.Fatalf("sec_offset: got %#x", v)
	}

	attr = NewAttr(Exprloc, []byte{0x01, 0x9c}, false)
	if _, err = attr.Uint64(); err == nil {
		t.Fatal("exprloc: expected an error from Uint64")
	}
}

func TestAttrStr(t *testing.T) {
	debugStr := []byte("main\x00knapsack\x00")

	attr := NewAttr(Strp, []byte{0x05, 0x00, 0x00, 0x00}, false)
	s, err := attr.Str(debugStr)
	if err != nil {
		t.Fatal(err)
	}
	if s != "knapsack" {
		t.Fatalf("strp: got %q", s)
	}

	attr = NewAttr(String, []byte("solver.cpp\x00trailing"), false)
	if s, _ = attr.Str(nil); s != "solver.cpp" {
		t.Fatalf("string: got %q", s)
	}

	attr = NewAttr(Data4, []byte{0, 0, 0, 0}, false)
	if _, err = attr.Str(debugStr); err == nil {
		t.Fatal("data4: expected an error from Str")
	}
}

func TestAttrExpr(t *testing.T) {
	attr := NewAttr(Exprloc, []byte{0x02, 0x91, 0x6c, 0xee}, false)
	expr, err := attr.Expr()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(expr, []byte{0x91, 0x6c}) {
		t.Fatalf("got % x", expr)
	}

	attr = NewAttr(Exprloc, []byte{0x09, 0x91}, false)
	if _, err = attr.Expr(); err == nil {
		t.Fatal("expected an error for a truncated expression")
	}
}
