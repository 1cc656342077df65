// Package form implements attribute form handling for DWARF v4
// .debug_info entries: sizing an encoded attribute so a reader can skip
// over it, and projecting an attribute's bytes to a Go value.
//
// The form constants are defined in section 7.5.4 of the DWARF v4
// standard.
package form

import (
	"bytes"
	"fmt"

	"github.com/slatedbg/slate/pkg/dwarf/leb128"
)

// Form describes the on-wire encoding of an attribute value.
type Form uint64

const (
	Addr        Form = 0x01
	Block2      Form = 0x03
	Block4      Form = 0x04
	Data2       Form = 0x05
	Data4       Form = 0x06
	Data8       Form = 0x07
	String      Form = 0x08
	Block       Form = 0x09
	Block1      Form = 0x0a
	Data1       Form = 0x0b
	Flag        Form = 0x0c
	Sdata       Form = 0x0d
	Strp        Form = 0x0e
	Udata       Form = 0x0f
	RefAddr     Form = 0x10
	Ref1        Form = 0x11
	Ref2        Form = 0x12
	Ref4        Form = 0x13
	Ref8        Form = 0x14
	RefUdata    Form = 0x15
	Indirect    Form = 0x16
	SecOffset   Form = 0x17
	Exprloc     Form = 0x18
	FlagPresent Form = 0x19
	RefSig8     Form = 0x20
)

func (f Form) String() string {
	names := map[Form]string{
		Addr: "DW_FORM_addr", Block2: "DW_FORM_block2", Block4: "DW_FORM_block4",
		Data2: "DW_FORM_data2", Data4: "DW_FORM_data4", Data8: "DW_FORM_data8",
		String: "DW_FORM_string", Block: "DW_FORM_block", Block1: "DW_FORM_block1",
		Data1: "DW_FORM_data1", Flag: "DW_FORM_flag", Sdata: "DW_FORM_sdata",
		Strp: "DW_FORM_strp", Udata: "DW_FORM_udata", RefAddr: "DW_FORM_ref_addr",
		Ref1: "DW_FORM_ref1", Ref2: "DW_FORM_ref2", Ref4: "DW_FORM_ref4",
		Ref8: "DW_FORM_ref8", RefUdata: "DW_FORM_ref_udata", Indirect: "DW_FORM_indirect",
		SecOffset: "DW_FORM_sec_offset", Exprloc: "DW_FORM_exprloc",
		FlagPresent: "DW_FORM_flag_present", RefSig8: "DW_FORM_ref_sig8",
	}
	if name, ok := names[f]; ok {
		return name
	}
	return fmt.Sprintf("unknown form %#x", uint64(f))
}

// UnsupportedFormError is returned when an attribute form outside the
// supported DWARF v4 subset is encountered, or when a projection is
// requested that the form cannot satisfy.
type UnsupportedFormError struct {
	Form Form
}

func (e *UnsupportedFormError) Error() string {
	return fmt.Sprintf("unsupported attribute form %s", e.Form)
}

// Skip advances buf past a single attribute encoded with form f.
// The offset size of strp, ref_addr and sec_offset depends on whether the
// compile unit uses the 64-bit DWARF format.
func Skip(buf *bytes.Buffer, f Form, dwarf64 bool) error {
	switch f {
	case Addr, Data8, Ref8:
		buf.Next(8)
	case Data1, Ref1, Flag:
		buf.Next(1)
	case Data2, Ref2:
		buf.Next(2)
	case Data4, Ref4:
		buf.Next(4)
	case Strp, RefAddr, SecOffset:
		if dwarf64 {
			buf.Next(8)
		} else {
			buf.Next(4)
		}
	case Sdata:
		leb128.DecodeSigned(buf)
	case Udata, RefUdata:
		leb128.DecodeUnsigned(buf)
	case RefSig8:
		buf.Next(8)
	case String:
		if _, err := buf.ReadString(0x0); err != nil {
			return fmt.Errorf("unterminated DW_FORM_string attribute")
		}
	case Block, Exprloc:
		n, _ := leb128.DecodeUnsigned(buf)
		buf.Next(int(n))
	case Block1:
		if buf.Len() > 0 {
			n, _ := buf.ReadByte()
			buf.Next(int(n))
		}
	case Block2:
		b := buf.Next(2)
		if len(b) == 2 {
			buf.Next(int(uint16(b[0]) | uint16(b[1])<<8))
		}
	case Block4:
		b := buf.Next(4)
		if len(b) == 4 {
			buf.Next(int(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24))
		}
	case FlagPresent:
		// No associated data.
	default:
		return &UnsupportedFormError{Form: f}
	}
	return nil
}
