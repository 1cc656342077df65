package proc

import (
	"encoding/binary"
	"fmt"

	sys "golang.org/x/sys/unix"
)

// ptraceCont executes ptrace PTRACE_CONT.
func ptraceCont(pid, sig int) error {
	return sys.PtraceCont(pid, sig)
}

// ptraceSingleStep executes ptrace PTRACE_SINGLESTEP.
func ptraceSingleStep(pid int) error {
	return sys.PtraceSingleStep(pid)
}

// ptraceGetRegs executes ptrace PTRACE_GETREGS.
func ptraceGetRegs(pid int, regs *sys.PtraceRegs) error {
	return sys.PtraceGetRegs(pid, regs)
}

// ptraceSetRegs executes ptrace PTRACE_SETREGS.
func ptraceSetRegs(pid int, regs *sys.PtraceRegs) error {
	return sys.PtraceSetRegs(pid, regs)
}

// ptracePeekText reads one word from the inferior's text at addr. On
// Linux PTRACE_PEEKTEXT and PTRACE_PEEKDATA are identical.
func ptracePeekText(pid int, addr uint64) (uint64, error) {
	var buf [8]byte
	n, err := sys.PtracePeekText(pid, uintptr(addr), buf[:])
	if err != nil {
		return 0, fmt.Errorf("could not read word at %#x: %v", addr, err)
	}
	if n != len(buf) {
		return 0, fmt.Errorf("short read at %#x: %d bytes", addr, n)
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// ptracePokeText writes one word to the inferior's text at addr.
func ptracePokeText(pid int, addr, word uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], word)
	n, err := sys.PtracePokeText(pid, uintptr(addr), buf[:])
	if err != nil {
		return fmt.Errorf("could not write word at %#x: %v", addr, err)
	}
	if n != len(buf) {
		return fmt.Errorf("short write at %#x: %d bytes", addr, n)
	}
	return nil
}

// ptracePeekData reads one word from the inferior's data at addr.
func ptracePeekData(pid int, addr uint64) (uint64, error) {
	var buf [8]byte
	n, err := sys.PtracePeekData(pid, uintptr(addr), buf[:])
	if err != nil {
		return 0, fmt.Errorf("could not read word at %#x: %v", addr, err)
	}
	if n != len(buf) {
		return 0, fmt.Errorf("short read at %#x: %d bytes", addr, n)
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// ptracePokeData writes one word to the inferior's data at addr.
func ptracePokeData(pid int, addr, word uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], word)
	n, err := sys.PtracePokeData(pid, uintptr(addr), buf[:])
	if err != nil {
		return fmt.Errorf("could not write word at %#x: %v", addr, err)
	}
	if n != len(buf) {
		return fmt.Errorf("short write at %#x: %d bytes", addr, n)
	}
	return nil
}

// peekMemory reads n bytes from the inferior starting at addr.
func peekMemory(pid int, addr uint64, n int) ([]byte, error) {
	buf := make([]byte, n)
	c, err := sys.PtracePeekData(pid, uintptr(addr), buf)
	if err != nil {
		return nil, fmt.Errorf("could not read %d bytes at %#x: %v", n, addr, err)
	}
	return buf[:c], nil
}

// The methods below are the only way the rest of the package touches the
// inferior's memory: they ship the raw wrappers above to the target's
// ptrace thread.

func (t *Target) peekText(addr uint64) (uint64, error) {
	var (
		word uint64
		err  error
	)
	t.execPtraceFunc(func() { word, err = ptracePeekText(t.Pid, addr) })
	return word, err
}

func (t *Target) pokeText(addr, word uint64) error {
	var err error
	t.execPtraceFunc(func() { err = ptracePokeText(t.Pid, addr, word) })
	return err
}

func (t *Target) peekData(addr uint64) (uint64, error) {
	var (
		word uint64
		err  error
	)
	t.execPtraceFunc(func() { word, err = ptracePeekData(t.Pid, addr) })
	return word, err
}

func (t *Target) pokeData(addr, word uint64) error {
	var err error
	t.execPtraceFunc(func() { err = ptracePokeData(t.Pid, addr, word) })
	return err
}

func (t *Target) peekMemory(addr uint64, n int) ([]byte, error) {
	var (
		buf []byte
		err error
	)
	t.execPtraceFunc(func() { buf, err = peekMemory(t.Pid, addr, n) })
	return buf, err
}
