package proc

import (
	"fmt"
)

// ReadVariable resolves the named variable in the function containing
// the current PC and reads its low 32 bits from the frame.
func (t *Target) ReadVariable(name string) (uint32, error) {
	addr, err := t.variableAddress(name)
	if err != nil {
		return 0, err
	}
	word, err := t.peekData(addr)
	if err != nil {
		return 0, err
	}
	return uint32(word & 0xffffffff), nil
}

// WriteVariable overwrites the low 32 bits of the named variable,
// preserving the rest of the word.
func (t *Target) WriteVariable(name string, value int32) error {
	addr, err := t.variableAddress(name)
	if err != nil {
		return err
	}
	word, err := t.peekData(addr)
	if err != nil {
		return err
	}
	patched := (word &^ 0xffffffff) | (uint64(uint32(value)))
	return t.pokeData(addr, patched)
}

// variableAddress computes the frame address of a local: the variable's
// frame-relative offset applied to the current frame pointer.
func (t *Target) variableAddress(name string) (uint64, error) {
	regs, err := t.Registers()
	if err != nil {
		return 0, err
	}
	offset, err := t.BinInfo.VariableFrameOffset(regs.PC(), name)
	if err != nil {
		return 0, err
	}
	addr := int64(regs.BP()) + offset
	if addr <= 0 {
		return 0, fmt.Errorf("variable %s resolves to a bad address %#x", name, addr)
	}
	return uint64(addr), nil
}
