package info

import (
	"bytes"
	"debug/dwarf"
	"encoding/binary"
	"fmt"

	"github.com/slatedbg/slate/pkg/dwarf/form"
	"github.com/slatedbg/slate/pkg/dwarf/util"
)

// PCRange reads the [low, high) address range of the entry under the
// cursor. DW_AT_high_pc encoded with DW_FORM_addr is an absolute address;
// any other form is a size offset from DW_AT_low_pc (DWARF v4 standard,
// section 2.17.2). ok is false when the entry lacks either attribute.
func PCRange(c *Cursor) (low, high uint64, ok bool, err error) {
	lowAttr, hasLow, err := c.Attr(dwarf.AttrLowpc)
	if err != nil {
		return 0, 0, false, err
	}
	highAttr, hasHigh, err := c.Attr(dwarf.AttrHighpc)
	if err != nil {
		return 0, 0, false, err
	}
	if !hasLow || !hasHigh {
		return 0, 0, false, nil
	}

	low, err = lowAttr.Uint64()
	if err != nil {
		return 0, 0, false, err
	}
	high, err = highAttr.Uint64()
	if err != nil {
		return 0, 0, false, err
	}
	if highAttr.Form() != form.Addr {
		high += low
	}
	return low, high, true, nil
}

// ContainsPC reports whether pc falls inside the compile unit's code
// ranges. Units with DW_AT_low_pc/DW_AT_high_pc cover the half-open
// interval [low, high); units with DW_AT_ranges cover the union of the
// (start, end) pairs read from .debug_ranges, terminated by a (0, 0)
// pair. A unit with neither encoding contains nothing.
func (cu *CompileUnit) ContainsPC(pc uint64, debugRanges []byte) (bool, error) {
	root, err := cu.Root()
	if err != nil {
		return false, err
	}

	low, high, ok, err := PCRange(&root)
	if err != nil {
		return false, err
	}
	if ok {
		return low <= pc && pc < high, nil
	}

	rangesAttr, ok, err := root.Attr(dwarf.AttrRanges)
	if err != nil || !ok {
		return false, err
	}
	offset, err := rangesAttr.Uint64()
	if err != nil {
		return false, err
	}
	if offset > uint64(len(debugRanges)) {
		return false, fmt.Errorf("compile unit at %#x: ranges offset %#x past the end of .debug_ranges", cu.Offset, offset)
	}

	buf := bytes.NewBuffer(debugRanges[offset:])
	for {
		start, err := util.ReadUintRaw(buf, binary.LittleEndian, 8)
		if err != nil {
			return false, fmt.Errorf("compile unit at %#x: unterminated .debug_ranges list", cu.Offset)
		}
		end, err := util.ReadUintRaw(buf, binary.LittleEndian, 8)
		if err != nil {
			return false, fmt.Errorf("compile unit at %#x: unterminated .debug_ranges list", cu.Offset)
		}
		if start == 0 && end == 0 {
			return false, nil
		}
		if start <= pc && pc <= end {
			return true, nil
		}
	}
}
