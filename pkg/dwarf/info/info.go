// Package info walks the .debug_info section of a DWARF v4 binary: it
// parses compile unit headers and provides a forward cursor over the
// variable-sized debug information entries of each unit.
package info

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/slatedbg/slate/pkg/dwarf/util"
)

// CompileUnit is one translation unit's worth of debug information. The
// entries and abbrev slices borrow into the section buffers owned by the
// ELF reader and must not outlive it.
type CompileUnit struct {
	Dwarf64      bool
	UnitLength   uint64
	Version      uint16
	AbbrevOffset uint64
	AddrSize     uint8

	// Offset of the unit header within .debug_info.
	Offset uint64

	entries []byte // first DIE through the end of the unit
	abbrev  []byte // .debug_abbrev positioned at the unit's abbrev base
}

// Parse sweeps .debug_info and returns every compile unit. The sweep must
// land exactly on the section end; anything else means a malformed unit
// length.
func Parse(debugInfo, debugAbbrev []byte) ([]*CompileUnit, error) {
	var cus []*CompileUnit

	pos := 0
	for pos < len(debugInfo) {
		cu, next, err := parseUnit(debugInfo, debugAbbrev, pos)
		if err != nil {
			return nil, err
		}
		cus = append(cus, cu)
		pos = next
	}

	return cus, nil
}

func parseUnit(debugInfo, debugAbbrev []byte, pos int) (*CompileUnit, int, error) {
	buf := bytes.NewBuffer(debugInfo[pos:])
	before := buf.Len()

	length, dwarf64, err := util.ReadDwarfLength(buf)
	if err != nil {
		return nil, 0, fmt.Errorf("compile unit at %#x: %v", pos, err)
	}
	lengthSize := 4
	if dwarf64 {
		lengthSize = 12
	}

	version, err := util.ReadUintRaw(buf, binary.LittleEndian, 2)
	if err != nil {
		return nil, 0, fmt.Errorf("compile unit at %#x: %v", pos, err)
	}
	if version < 2 || version > 4 {
		return nil, 0, fmt.Errorf("compile unit at %#x: unsupported DWARF version %d", pos, version)
	}

	offsetSize := 4
	if dwarf64 {
		offsetSize = 8
	}
	abbrevOffset, err := util.ReadUintRaw(buf, binary.LittleEndian, offsetSize)
	if err != nil {
		return nil, 0, fmt.Errorf("compile unit at %#x: %v", pos, err)
	}
	if abbrevOffset > uint64(len(debugAbbrev)) {
		return nil, 0, fmt.Errorf("compile unit at %#x: abbrev offset %#x past the end of .debug_abbrev", pos, abbrevOffset)
	}

	addrSize, err := buf.ReadByte()
	if err != nil {
		return nil, 0, fmt.Errorf("compile unit at %#x: %v", pos, err)
	}

	headerSize := before - buf.Len()
	end := pos + lengthSize + int(length)
	if end > len(debugInfo) || end <= pos+headerSize {
		return nil, 0, fmt.Errorf("compile unit at %#x: unit length %#x does not fit .debug_info", pos, length)
	}

	cu := &CompileUnit{
		Dwarf64:      dwarf64,
		UnitLength:   length,
		Version:      uint16(version),
		AbbrevOffset: abbrevOffset,
		AddrSize:     addrSize,
		Offset:       uint64(pos),
		entries:      debugInfo[pos+headerSize : end],
		abbrev:       debugAbbrev[abbrevOffset:],
	}
	return cu, end, nil
}

// Root returns a cursor positioned at the unit's first entry, which is
// expected to be the DW_TAG_compile_unit entry.
func (cu *CompileUnit) Root() (Cursor, error) {
	c := Cursor{
		data:    cu.entries,
		end:     len(cu.entries),
		abbrev:  cu.abbrev,
		dwarf64: cu.Dwarf64,
	}
	if err := c.load(0); err != nil {
		return Cursor{}, err
	}
	return c, nil
}
