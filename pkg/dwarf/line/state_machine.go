package line

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/slatedbg/slate/pkg/dwarf/leb128"
)

// Entry is one row of the materialized line-number matrix.
type Entry struct {
	Address       uint64
	File          string
	Line          int
	Column        int
	IsStmt        bool
	BasicBlock    bool
	EndSequence   bool
	PrologueEnd   bool
	EpilogueBegin bool
}

// StateMachine executes a line-number program. The registers and their
// initial values are defined in section 6.2.2 of the DWARF v4 standard.
type StateMachine struct {
	li            *LineInfo
	address       uint64
	opIndex       uint64
	file          string
	line          int
	column        int
	isStmt        bool
	basicBlock    bool
	endSeq        bool
	prologueEnd   bool
	epilogueBegin bool
	isa           uint64
	discriminator uint64

	// valid is true when the current register values form a row of the
	// matrix (set by special opcodes, DW_LNS_copy and end_sequence).
	valid bool

	buf     *bytes.Buffer
	opcodes []opcodefn

	definedFiles []*FileEntry // files added at run time by DW_LINE_define_file
}

type opcodefn func(*StateMachine, *bytes.Buffer) error

// Standard opcodes, section 6.2.5.2.
const (
	_DW_LNS_copy             = 1
	_DW_LNS_advance_pc       = 2
	_DW_LNS_advance_line     = 3
	_DW_LNS_set_file         = 4
	_DW_LNS_set_column       = 5
	_DW_LNS_negate_stmt      = 6
	_DW_LNS_set_basic_block  = 7
	_DW_LNS_const_add_pc     = 8
	_DW_LNS_fixed_advance_pc = 9
	_DW_LNS_prologue_end     = 10
	_DW_LNS_epilogue_begin   = 11
	_DW_LNS_set_isa          = 12
)

// Extended opcodes, section 6.2.5.3.
const (
	_DW_LINE_end_sequence      = 1
	_DW_LINE_set_address       = 2
	_DW_LINE_define_file       = 3
	_DW_LINE_set_discriminator = 4
)

// UnsupportedExtendedOpcodeError is returned when a line program uses an
// extended opcode outside the DWARF v4 set.
type UnsupportedExtendedOpcodeError struct {
	Opcode byte
}

func (e *UnsupportedExtendedOpcodeError) Error() string {
	return fmt.Sprintf("unsupported extended line program opcode %#x", e.Opcode)
}

var standardopcodes = map[byte]opcodefn{
	_DW_LNS_copy:             copyfn,
	_DW_LNS_advance_pc:       advancepc,
	_DW_LNS_advance_line:     advanceline,
	_DW_LNS_set_file:         setfile,
	_DW_LNS_set_column:       setcolumn,
	_DW_LNS_negate_stmt:      negatestmt,
	_DW_LNS_set_basic_block:  setbasicblock,
	_DW_LNS_const_add_pc:     constaddpc,
	_DW_LNS_fixed_advance_pc: fixedadvancepc,
	_DW_LNS_prologue_end:     prologueend,
	_DW_LNS_epilogue_begin:   epiloguebegin,
	_DW_LNS_set_isa:          setisa,
}

var extendedopcodes = map[byte]opcodefn{
	_DW_LINE_end_sequence:      endsequence,
	_DW_LINE_set_address:       setaddress,
	_DW_LINE_define_file:       definefile,
	_DW_LINE_set_discriminator: setdiscriminator,
}

func newStateMachine(li *LineInfo) *StateMachine {
	opcodes := make([]opcodefn, len(standardopcodes)+1)
	opcodes[0] = execExtendedOpcode
	for op := range standardopcodes {
		opcodes[op] = standardopcodes[op]
	}
	sm := &StateMachine{
		li:      li,
		line:    1,
		isStmt:  li.Prologue.InitialIsStmt == uint8(1),
		buf:     bytes.NewBuffer(li.Instructions),
		opcodes: opcodes,
	}
	if len(li.FileNames) > 0 {
		sm.file = li.FileNames[0].Path
	}
	return sm
}

// Table runs the program to completion and returns every row of the
// matrix in emission order. The machine is not restartable; each call
// executes a fresh one.
func (li *LineInfo) Table() ([]Entry, error) {
	var (
		rows []Entry
		sm   = newStateMachine(li)
	)

	for {
		if err := sm.next(); err != nil {
			if err == io.EOF {
				return rows, nil
			}
			return nil, err
		}
		if sm.valid {
			rows = append(rows, Entry{
				Address:       sm.address,
				File:          sm.file,
				Line:          sm.line,
				Column:        sm.column,
				IsStmt:        sm.isStmt,
				BasicBlock:    sm.basicBlock,
				EndSequence:   sm.endSeq,
				PrologueEnd:   sm.prologueEnd,
				EpilogueBegin: sm.epilogueBegin,
			})
		}
	}
}

// next executes a single opcode.
func (sm *StateMachine) next() error {
	if sm.valid {
		// The previous opcode appended a row; discard the per-row flags.
		sm.basicBlock = false
		sm.prologueEnd = false
		sm.epilogueBegin = false
		sm.discriminator = 0
	}
	if sm.endSeq {
		// Registers reset after every sequence.
		sm.endSeq = false
		sm.address = 0
		sm.opIndex = 0
		sm.line = 1
		sm.column = 0
		sm.isa = 0
		sm.isStmt = sm.li.Prologue.InitialIsStmt == uint8(1)
		sm.basicBlock = false
		if len(sm.li.FileNames) > 0 {
			sm.file = sm.li.FileNames[0].Path
		}
	}

	b, err := sm.buf.ReadByte()
	if err != nil {
		return err
	}
	sm.valid = false

	if b >= sm.li.Prologue.OpcodeBase {
		sm.execSpecialOpcode(b)
		return nil
	}
	if int(b) < len(sm.opcodes) {
		return sm.opcodes[b](sm, sm.buf)
	}

	// A standard opcode this machine does not know; the prologue gives its
	// operand count, so it can be skipped.
	opnum := sm.li.Prologue.StdOpLengths[b-1]
	for i := 0; i < int(opnum); i++ {
		leb128.DecodeSigned(sm.buf)
	}
	sm.li.Logf("unknown standard opcode %#x with %d operands at address %#x", b, opnum, sm.address)
	return nil
}

// advance implements the operation-advance arithmetic shared by the
// special opcodes, DW_LNS_advance_pc and DW_LNS_const_add_pc (section
// 6.2.5.1; the op-index terms only matter on VLIW targets).
func (sm *StateMachine) advance(opAdvance uint64) {
	p := sm.li.Prologue
	maxOps := uint64(p.MaxOpPerInstr)
	sm.address += uint64(p.MinInstrLength) * ((sm.opIndex + opAdvance) / maxOps)
	sm.opIndex = (sm.opIndex + opAdvance) % maxOps
}

func (sm *StateMachine) execSpecialOpcode(instr byte) {
	p := sm.li.Prologue
	adjusted := instr - p.OpcodeBase

	sm.line += int(p.LineBase + int8(adjusted%p.LineRange))
	sm.advance(uint64(adjusted / p.LineRange))
	sm.valid = true
}

func execExtendedOpcode(sm *StateMachine, buf *bytes.Buffer) error {
	leb128.DecodeUnsigned(buf)
	b, err := buf.ReadByte()
	if err != nil {
		return err
	}
	fn, ok := extendedopcodes[b]
	if !ok {
		return &UnsupportedExtendedOpcodeError{Opcode: b}
	}
	return fn(sm, buf)
}

func copyfn(sm *StateMachine, buf *bytes.Buffer) error {
	sm.valid = true
	return nil
}

func advancepc(sm *StateMachine, buf *bytes.Buffer) error {
	operand, _ := leb128.DecodeUnsigned(buf)
	sm.advance(operand)
	return nil
}

func advanceline(sm *StateMachine, buf *bytes.Buffer) error {
	operand, _ := leb128.DecodeSigned(buf)
	sm.line += int(operand)
	return nil
}

func setfile(sm *StateMachine, buf *bytes.Buffer) error {
	i, _ := leb128.DecodeUnsigned(buf)
	if i-1 < uint64(len(sm.li.FileNames)) {
		sm.file = sm.li.FileNames[i-1].Path
	} else {
		j := (i - 1) - uint64(len(sm.li.FileNames))
		if j < uint64(len(sm.definedFiles)) {
			sm.file = sm.definedFiles[j].Path
		} else {
			sm.file = ""
		}
	}
	return nil
}

func setcolumn(sm *StateMachine, buf *bytes.Buffer) error {
	c, _ := leb128.DecodeUnsigned(buf)
	sm.column = int(c)
	return nil
}

func negatestmt(sm *StateMachine, buf *bytes.Buffer) error {
	sm.isStmt = !sm.isStmt
	return nil
}

func setbasicblock(sm *StateMachine, buf *bytes.Buffer) error {
	sm.basicBlock = true
	return nil
}

func constaddpc(sm *StateMachine, buf *bytes.Buffer) error {
	p := sm.li.Prologue
	sm.advance(uint64((255 - p.OpcodeBase) / p.LineRange))
	return nil
}

func fixedadvancepc(sm *StateMachine, buf *bytes.Buffer) error {
	var operand uint16
	if err := binary.Read(buf, binary.LittleEndian, &operand); err != nil {
		return err
	}
	sm.address += uint64(operand)
	sm.opIndex = 0
	return nil
}

func prologueend(sm *StateMachine, buf *bytes.Buffer) error {
	sm.prologueEnd = true
	return nil
}

func epiloguebegin(sm *StateMachine, buf *bytes.Buffer) error {
	sm.epilogueBegin = true
	return nil
}

func setisa(sm *StateMachine, buf *bytes.Buffer) error {
	c, _ := leb128.DecodeUnsigned(buf)
	sm.isa = c
	return nil
}

func endsequence(sm *StateMachine, buf *bytes.Buffer) error {
	sm.endSeq = true
	sm.valid = true
	return nil
}

func setaddress(sm *StateMachine, buf *bytes.Buffer) error {
	var addr uint64
	if err := binary.Read(buf, binary.LittleEndian, &addr); err != nil {
		return err
	}
	sm.address = addr
	sm.opIndex = 0
	return nil
}

func definefile(sm *StateMachine, buf *bytes.Buffer) error {
	entry, err := readFileEntry(sm.buf)
	if err != nil {
		return err
	}
	if entry != nil {
		sm.definedFiles = append(sm.definedFiles, entry)
	}
	return nil
}

func setdiscriminator(sm *StateMachine, buf *bytes.Buffer) error {
	sm.discriminator, _ = leb128.DecodeUnsigned(buf)
	return nil
}
