// Package line interprets the .debug_line line-number programs of a DWARF
// v4 binary, materializing the (PC -> file, line, column, flags) matrix
// the debugger's source-level queries run against.
package line

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/slatedbg/slate/pkg/dwarf/leb128"
	"github.com/slatedbg/slate/pkg/dwarf/util"
)

// Prologue is the line-number program header, section 6.2.4 of the DWARF
// v4 standard.
type Prologue struct {
	UnitLength     uint64
	Dwarf64        bool
	Version        uint16
	HeaderLength   uint64
	MinInstrLength uint8
	MaxOpPerInstr  uint8
	InitialIsStmt  uint8
	LineBase       int8
	LineRange      uint8
	OpcodeBase     uint8
	StdOpLengths   []uint8
}

// LineInfo is one parsed line-number program.
type LineInfo struct {
	Prologue     *Prologue
	IncludeDirs  []string
	FileNames    []*FileEntry
	Instructions []byte

	Logf func(string, ...interface{})
}

// FileEntry is an entry in the program's file name table. Paths are kept
// exactly as written by the producer; source files are matched by the name
// the compile unit recorded.
type FileEntry struct {
	Path        string
	DirIdx      uint64
	LastModTime uint64
	Length      uint64
}

// Parse decodes a single line-number program starting at data[0], which is
// the offset named by a compile unit's DW_AT_stmt_list. Versions 2 through
// 4 are supported.
func Parse(data []byte, logf func(string, ...interface{})) (*LineInfo, error) {
	li := new(LineInfo)
	li.Logf = logf
	if logf == nil {
		li.Logf = func(string, ...interface{}) {}
	}

	buf := bytes.NewBuffer(data)
	before := buf.Len()

	if err := parsePrologue(li, buf); err != nil {
		return nil, err
	}
	if err := parseIncludeDirs(li, buf); err != nil {
		return nil, err
	}
	if err := parseFileEntries(li, buf); err != nil {
		return nil, err
	}

	// The program's instructions run from the end of the prologue to the
	// end of the unit.
	lengthSize := 4
	if li.Prologue.Dwarf64 {
		lengthSize = 12
	}
	unitEnd := lengthSize + int(li.Prologue.UnitLength)
	consumed := before - buf.Len()
	if unitEnd > len(data) || consumed > unitEnd {
		return nil, fmt.Errorf("line program unit length %#x does not fit .debug_line", li.Prologue.UnitLength)
	}
	li.Instructions = data[consumed:unitEnd]

	return li, nil
}

func parsePrologue(li *LineInfo, buf *bytes.Buffer) error {
	p := new(Prologue)

	var err error
	p.UnitLength, p.Dwarf64, err = util.ReadDwarfLength(buf)
	if err != nil {
		return err
	}

	version, err := util.ReadUintRaw(buf, binary.LittleEndian, 2)
	if err != nil {
		return err
	}
	p.Version = uint16(version)
	if p.Version < 2 || p.Version > 4 {
		return fmt.Errorf("unsupported line program version %d", p.Version)
	}

	offsetSize := 4
	if p.Dwarf64 {
		offsetSize = 8
	}
	p.HeaderLength, err = util.ReadUintRaw(buf, binary.LittleEndian, offsetSize)
	if err != nil {
		return err
	}

	fixed := make([]byte, 4)
	if p.Version < 4 {
		fixed = fixed[:3] // no maximum_operations_per_instruction
	}
	if _, err := io.ReadFull(buf, fixed); err != nil {
		return err
	}
	p.MinInstrLength = fixed[0]
	if p.Version >= 4 {
		p.MaxOpPerInstr = fixed[1]
		p.InitialIsStmt = fixed[2]
		p.LineBase = int8(fixed[3])
	} else {
		p.MaxOpPerInstr = 1
		p.InitialIsStmt = fixed[1]
		p.LineBase = int8(fixed[2])
	}
	if p.MaxOpPerInstr == 0 {
		p.MaxOpPerInstr = 1
	}

	rest := make([]byte, 2)
	if _, err := io.ReadFull(buf, rest); err != nil {
		return err
	}
	p.LineRange = rest[0]
	p.OpcodeBase = rest[1]
	if p.LineRange == 0 {
		return fmt.Errorf("line program header has a zero line range")
	}

	p.StdOpLengths = make([]uint8, p.OpcodeBase-1)
	if err := binary.Read(buf, binary.LittleEndian, &p.StdOpLengths); err != nil {
		return err
	}

	li.Prologue = p
	return nil
}

func parseIncludeDirs(li *LineInfo, buf *bytes.Buffer) error {
	for {
		str, err := util.ParseString(buf)
		if err != nil {
			return fmt.Errorf("reading the include directory table: %v", err)
		}
		if str == "" {
			return nil
		}
		li.IncludeDirs = append(li.IncludeDirs, str)
	}
}

func parseFileEntries(li *LineInfo, buf *bytes.Buffer) error {
	for {
		entry, err := readFileEntry(buf)
		if err != nil {
			return fmt.Errorf("reading the file name table: %v", err)
		}
		if entry == nil {
			return nil
		}
		li.FileNames = append(li.FileNames, entry)
	}
}

// readFileEntry reads one file table entry; a nil entry means the empty
// name terminating the table.
func readFileEntry(buf *bytes.Buffer) (*FileEntry, error) {
	path, err := util.ParseString(buf)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, nil
	}

	entry := &FileEntry{Path: path}
	entry.DirIdx, _ = leb128.DecodeUnsigned(buf)
	entry.LastModTime, _ = leb128.DecodeUnsigned(buf)
	entry.Length, _ = leb128.DecodeUnsigned(buf)
	return entry, nil
}
