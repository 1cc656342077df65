package leb128

import (
	"bytes"
	"testing"
)

func TestRoundTripUnsigned(t *testing.T) {
	tc := []uint64{0x00, 0x7f, 0x80, 0x8f, 0xffff, 0xfffffff7, 1<<45 - 3, ^uint64(0)}
	for i := range tc {
		var buf bytes.Buffer
		EncodeUnsigned(&buf, tc[i])
		out, c := DecodeUnsigned(&buf)
		t.Logf("input %x output %x", tc[i], out)
		if c == 0 {
			t.Errorf("error decoding %x", tc[i])
		}
		if out != tc[i] {
			t.Errorf("mismatch got %x expected %x", out, tc[i])
		}
	}
}

func TestRoundTripSigned(t *testing.T) {
	tc := []int64{2, -2, 127, -127, 128, -128, 129, -129, -1 << 62, 1<<62 - 1}
	for i := range tc {
		var buf bytes.Buffer
		EncodeSigned(&buf, tc[i])
		out, c := DecodeSigned(&buf)
		t.Logf("input %x output %x", tc[i], out)
		if c == 0 {
			t.Errorf("error decoding %x", tc[i])
		}
		if out != tc[i] {
			t.Errorf("mismatch got %x expected %x", out, tc[i])
		}
	}
}
