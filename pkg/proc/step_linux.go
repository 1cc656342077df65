package proc

import (
	"errors"
	"fmt"

	"golang.org/x/arch/x86/x86asm"

	"github.com/slatedbg/slate/pkg/debuginfo"
)

// Step executes source-line step-in: single machine steps until the line
// table attributes the PC to a different file:line than the starting
// location. Addresses outside the debug information (library code) are
// stepped through.
func (t *Target) Step() (debuginfo.SourceLocation, error) {
	regs, err := t.Registers()
	if err != nil {
		return debuginfo.SourceLocation{}, err
	}
	start, err := t.BinInfo.SourceLocationForPC(regs.PC(), false)
	if err != nil {
		return debuginfo.SourceLocation{}, err
	}

	for {
		if err := t.StepInstruction(); err != nil {
			return debuginfo.SourceLocation{}, err
		}
		pc, err := t.PC()
		if err != nil {
			return debuginfo.SourceLocation{}, err
		}
		loc, err := t.BinInfo.SourceLocationForPC(pc, false)
		if err != nil {
			if errors.Is(err, debuginfo.ErrNotFound) {
				continue
			}
			return debuginfo.SourceLocation{}, err
		}
		if loc.Line != start.Line || loc.File != start.File {
			return loc, nil
		}
	}
}

// Next executes source-line step-over: like Step, but function calls are
// not entered. A call instruction is jumped over by running to a
// temporary breakpoint on its return address; rows with line zero, which
// cannot be attributed to any source line, are skipped.
func (t *Target) Next() (debuginfo.SourceLocation, error) {
	regs, err := t.Registers()
	if err != nil {
		return debuginfo.SourceLocation{}, err
	}
	start, err := t.BinInfo.SourceLocationForPC(regs.PC(), false)
	if err != nil {
		return debuginfo.SourceLocation{}, err
	}

	pc := regs.PC()
	for {
		if size, isCall := t.callInstruction(pc); isCall {
			if err := t.continueToTemporary(pc + size); err != nil {
				return debuginfo.SourceLocation{}, err
			}
		} else {
			if err := t.StepInstruction(); err != nil {
				return debuginfo.SourceLocation{}, err
			}
		}

		pc, err = t.PC()
		if err != nil {
			return debuginfo.SourceLocation{}, err
		}
		loc, err := t.BinInfo.SourceLocationForPC(pc, false)
		if err != nil {
			if errors.Is(err, debuginfo.ErrNotFound) {
				continue
			}
			return debuginfo.SourceLocation{}, err
		}
		if loc.Line == 0 {
			continue
		}
		if loc.Line != start.Line || loc.File != start.File {
			return loc, nil
		}
	}
}

// maxInstructionLength is the longest legal x86-64 instruction encoding.
const maxInstructionLength = 15

// callInstruction decodes the instruction at pc and, when it is a call,
// returns its encoded length so a return breakpoint can be placed on the
// following instruction.
func (t *Target) callInstruction(pc uint64) (uint64, bool) {
	code, err := t.peekMemory(pc, maxInstructionLength)
	if err != nil {
		return 0, false
	}
	inst, err := x86asm.Decode(code, 64)
	if err != nil {
		return 0, false
	}
	if inst.Op != x86asm.CALL && inst.Op != x86asm.LCALL {
		return 0, false
	}
	return uint64(inst.Len), true
}

// StepOut runs the inferior to the end of the current stack frame by
// breaking on the return address stored at [rbp+8]. The target must
// preserve frame pointers.
func (t *Target) StepOut() (uint64, error) {
	regs, err := t.Registers()
	if err != nil {
		return 0, err
	}
	retAddr, err := t.peekData(regs.BP() + 8)
	if err != nil {
		return 0, fmt.Errorf("could not read the return address: %v", err)
	}
	if err := t.continueToTemporary(retAddr); err != nil {
		return 0, err
	}
	return retAddr, nil
}
