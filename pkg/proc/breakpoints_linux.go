package proc

import (
	"errors"
	"fmt"
)

// breakpointInstruction is the single-byte x86 software trap (INT3).
const breakpointInstruction = 0xcc

// ErrBreakpointExists is returned when a breakpoint is requested at an
// address that already has one.
var ErrBreakpointExists = errors.New("a breakpoint already exists at this address")

// SetBreakpoint installs a software breakpoint at addr and records it in
// the target's breakpoint table.
func (t *Target) SetBreakpoint(addr uint64) (*Breakpoint, error) {
	if _, exists := t.Breakpoints[addr]; exists {
		return nil, ErrBreakpointExists
	}
	bp := &Breakpoint{Addr: addr}
	if err := t.enableBreakpoint(bp); err != nil {
		return nil, err
	}
	t.Breakpoints[addr] = bp
	return bp, nil
}

// ClearBreakpoints removes every installed breakpoint and empties the
// table. It returns the number removed.
func (t *Target) ClearBreakpoints() (int, error) {
	n := len(t.Breakpoints)
	for addr, bp := range t.Breakpoints {
		if err := t.disableBreakpoint(bp); err != nil {
			return 0, err
		}
		delete(t.Breakpoints, addr)
	}
	return n, nil
}

// enableBreakpoint patches the low byte of the word at the breakpoint
// address with the trap instruction, saving the original byte.
func (t *Target) enableBreakpoint(bp *Breakpoint) error {
	word, err := t.peekText(bp.Addr)
	if err != nil {
		return fmt.Errorf("could not install breakpoint at %#x: %v", bp.Addr, err)
	}
	bp.OriginalByte = byte(word & 0xff)
	patched := (word &^ 0xff) | breakpointInstruction
	if err := t.pokeText(bp.Addr, patched); err != nil {
		return fmt.Errorf("could not install breakpoint at %#x: %v", bp.Addr, err)
	}
	bp.Enabled = true
	t.log.Debugf("breakpoint installed at %#x, saved byte %#x", bp.Addr, bp.OriginalByte)
	return nil
}

// disableBreakpoint restores the original byte at the breakpoint
// address. The rest of the word is re-read so unrelated writes between
// install and remove survive.
func (t *Target) disableBreakpoint(bp *Breakpoint) error {
	if !bp.Enabled {
		return nil
	}
	word, err := t.peekText(bp.Addr)
	if err != nil {
		return fmt.Errorf("could not remove breakpoint at %#x: %v", bp.Addr, err)
	}
	restored := (word &^ 0xff) | uint64(bp.OriginalByte)
	if err := t.pokeText(bp.Addr, restored); err != nil {
		return fmt.Errorf("could not remove breakpoint at %#x: %v", bp.Addr, err)
	}
	bp.Enabled = false
	return nil
}

// stepOverBreakpoint executes the original instruction under a hit
// breakpoint and leaves the trap installed again. The inferior must be
// stopped with PC at bp.Addr+1, the state after the trap fired.
func (t *Target) stepOverBreakpoint(bp *Breakpoint) error {
	if err := t.disableBreakpoint(bp); err != nil {
		return err
	}
	if err := t.SetPC(bp.Addr); err != nil {
		return err
	}
	if err := t.StepInstruction(); err != nil {
		return err
	}
	return t.enableBreakpoint(bp)
}

// Continue resumes the inferior until the next stop. When the stop is a
// breakpoint hit, the trap is stepped over so the original instruction
// executes, and the hit breakpoint is returned.
func (t *Target) Continue() (*Breakpoint, error) {
	if err := t.resume(); err != nil {
		return nil, err
	}

	regs, err := t.Registers()
	if err != nil {
		return nil, err
	}
	bp, ok := t.Breakpoints[regs.PC()-1]
	if !ok {
		return nil, nil
	}
	if err := t.stepOverBreakpoint(bp); err != nil {
		return nil, err
	}
	return bp, nil
}

// continueToTemporary installs a breakpoint at addr, runs to it and
// removes it again. Used by the step-over and step-out sequences. A
// breakpoint already present at addr is reused and left installed.
func (t *Target) continueToTemporary(addr uint64) error {
	bp, existing := t.Breakpoints[addr]
	if !existing {
		bp = &Breakpoint{Addr: addr, Temporary: true}
		if err := t.enableBreakpoint(bp); err != nil {
			return err
		}
	}

	if err := t.resume(); err != nil {
		return err
	}

	regs, err := t.Registers()
	if err != nil {
		return err
	}
	if hit, ok := t.Breakpoints[regs.PC()-1]; ok && hit != bp {
		// A user breakpoint fired before the temporary one was reached.
		if err := t.stepOverBreakpoint(hit); err != nil {
			return err
		}
	} else if regs.PC()-1 == bp.Addr {
		if err := t.stepOverBreakpoint(bp); err != nil {
			return err
		}
	}

	if !existing {
		return t.disableBreakpoint(bp)
	}
	return nil
}
