// Package op decodes DWARF location expressions into variable storage
// descriptions. Only single-expression locations are handled, and only the
// opcodes a frame-base-relative debugger needs: register locations,
// base-register offsets, frame-base offsets and absolute addresses. The
// full stack-machine semantics of section 2.5 of the DWARF v4 standard are
// deliberately out of scope.
package op

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/slatedbg/slate/pkg/dwarf/leb128"
)

// Opcode is a DWARF location expression instruction.
type Opcode byte

// Section 7.7.1 of the DWARF v4 standard.
const (
	DW_OP_addr           Opcode = 0x03
	DW_OP_reg0           Opcode = 0x50
	DW_OP_reg31          Opcode = 0x6f
	DW_OP_breg0          Opcode = 0x70
	DW_OP_breg31         Opcode = 0x8f
	DW_OP_regx           Opcode = 0x90
	DW_OP_fbreg          Opcode = 0x91
	DW_OP_call_frame_cfa Opcode = 0x9c
)

// Kind tags how a Location is addressed.
type Kind uint8

const (
	// Register: the value lives in the register numbered Reg.
	Register Kind = iota
	// FrameBase: the value lives at Offset bytes from the frame base.
	FrameBase
	// Absolute: the value lives at the memory address Addr.
	Absolute
	// Relative: the value lives at Offset bytes from the register
	// numbered Reg.
	Relative
)

func (k Kind) String() string {
	switch k {
	case Register:
		return "register"
	case FrameBase:
		return "frame base"
	case Absolute:
		return "absolute"
	case Relative:
		return "relative"
	}
	return fmt.Sprintf("unknown kind %d", uint8(k))
}

// Location is the decoded storage of a variable.
type Location struct {
	Kind   Kind
	Reg    uint64 // DWARF register number, for Register and Relative
	Offset int64  // signed displacement, for FrameBase and Relative
	Addr   uint64 // memory address, for Absolute
}

// UnsupportedOpcodeError is returned for location expressions outside the
// decoded subset.
type UnsupportedOpcodeError struct {
	Opcode Opcode
}

func (e *UnsupportedOpcodeError) Error() string {
	return fmt.Sprintf("unsupported location expression opcode %#x", byte(e.Opcode))
}

// Decode interprets the leading opcode of a location expression. The
// expression bytes must not include the DW_FORM_exprloc length prefix.
func Decode(expr []byte) (Location, error) {
	buf := bytes.NewBuffer(expr)
	b, err := buf.ReadByte()
	if err != nil {
		return Location{}, fmt.Errorf("empty location expression")
	}
	opcode := Opcode(b)

	switch {
	case opcode >= DW_OP_reg0 && opcode <= DW_OP_reg31:
		return Location{Kind: Register, Reg: uint64(opcode - DW_OP_reg0)}, nil

	case opcode >= DW_OP_breg0 && opcode <= DW_OP_breg31:
		offset, n := leb128.DecodeSigned(buf)
		if n == 0 {
			return Location{}, fmt.Errorf("truncated DW_OP_breg expression")
		}
		return Location{Kind: Relative, Reg: uint64(opcode - DW_OP_breg0), Offset: offset}, nil

	case opcode == DW_OP_fbreg:
		offset, n := leb128.DecodeSigned(buf)
		if n == 0 {
			return Location{}, fmt.Errorf("truncated DW_OP_fbreg expression")
		}
		return Location{Kind: FrameBase, Offset: offset}, nil

	case opcode == DW_OP_addr:
		var addr uint64
		if err := binary.Read(buf, binary.LittleEndian, &addr); err != nil {
			return Location{}, fmt.Errorf("truncated DW_OP_addr expression")
		}
		return Location{Kind: Absolute, Addr: addr}, nil

	case opcode == DW_OP_call_frame_cfa:
		// The canonical frame address; for the frame-pointer-preserving
		// targets this debugger supports it plays the frame-base role.
		return Location{Kind: FrameBase}, nil
	}

	return Location{}, &UnsupportedOpcodeError{Opcode: opcode}
}
