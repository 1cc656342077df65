package form

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/slatedbg/slate/pkg/dwarf/leb128"
	"github.com/slatedbg/slate/pkg/dwarf/util"
)

// Attr is a zero-copy view over a single attribute's encoded bytes. The
// view borrows into the .debug_info slice owned by the ELF reader and is
// only valid for its lifetime. Values are interpreted lazily, per
// projection.
type Attr struct {
	form    Form
	data    []byte // first byte of the attribute, extending to the end of the CU region
	dwarf64 bool
}

// NewAttr returns an attribute view with form f whose encoding starts at
// data[0].
func NewAttr(f Form, data []byte, dwarf64 bool) Attr {
	return Attr{form: f, data: data, dwarf64: dwarf64}
}

// Form returns the form of this attribute. It is often needed to interpret
// the projected value, e.g. whether DW_AT_high_pc is an absolute address or
// an offset from DW_AT_low_pc.
func (a Attr) Form() Form { return a.form }

// Uint64 projects the attribute to an unsigned integer. Address and
// fixed-width data forms and section offsets are supported.
func (a Attr) Uint64() (uint64, error) {
	switch a.form {
	case Addr:
		return util.ReadUintRaw(bytes.NewReader(a.data), binary.LittleEndian, 8)
	case Data1:
		return util.ReadUintRaw(bytes.NewReader(a.data), binary.LittleEndian, 1)
	case Data2:
		return util.ReadUintRaw(bytes.NewReader(a.data), binary.LittleEndian, 2)
	case Data4:
		return util.ReadUintRaw(bytes.NewReader(a.data), binary.LittleEndian, 4)
	case Data8:
		return util.ReadUintRaw(bytes.NewReader(a.data), binary.LittleEndian, 8)
	case SecOffset:
		size := 4
		if a.dwarf64 {
			size = 8
		}
		return util.ReadUintRaw(bytes.NewReader(a.data), binary.LittleEndian, size)
	case Udata:
		n, c := leb128.DecodeUnsigned(bytes.NewBuffer(a.data))
		if c == 0 {
			return 0, fmt.Errorf("truncated DW_FORM_udata attribute")
		}
		return n, nil
	}
	return 0, &UnsupportedFormError{Form: a.form}
}

// Str projects the attribute to a string. DW_FORM_string data is
// null-terminated in place; DW_FORM_strp is an offset into the .debug_str
// section, which the caller supplies.
func (a Attr) Str(debugStr []byte) (string, error) {
	switch a.form {
	case String:
		return util.ParseString(bytes.NewBuffer(a.data))
	case Strp:
		size := 4
		if a.dwarf64 {
			size = 8
		}
		offset, err := util.ReadUintRaw(bytes.NewReader(a.data), binary.LittleEndian, size)
		if err != nil {
			return "", err
		}
		if offset >= uint64(len(debugStr)) {
			return "", fmt.Errorf("DW_FORM_strp offset %#x past the end of .debug_str", offset)
		}
		return util.ParseString(bytes.NewBuffer(debugStr[offset:]))
	}
	return "", &UnsupportedFormError{Form: a.form}
}

// Expr projects a DW_FORM_exprloc attribute to the bytes of its location
// expression, with the length prefix already consumed.
func (a Attr) Expr() ([]byte, error) {
	if a.form != Exprloc {
		return nil, &UnsupportedFormError{Form: a.form}
	}
	buf := bytes.NewBuffer(a.data)
	n, c := leb128.DecodeUnsigned(buf)
	if c == 0 || n > uint64(buf.Len()) {
		return nil, fmt.Errorf("truncated DW_FORM_exprloc attribute")
	}
	return buf.Next(int(n)), nil
}
