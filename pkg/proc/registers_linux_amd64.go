package proc

import (
	"fmt"

	sys "golang.org/x/sys/unix"

	"github.com/slatedbg/slate/pkg/dwarf/regnum"
)

// Registers is a snapshot of the inferior's general purpose register
// block, fetched with a single PTRACE_GETREGS.
type Registers struct {
	regs sys.PtraceRegs
}

// Register pairs a printable register name with its value and its DWARF
// number per the x86-64 psABI (-1 for slots the ABI does not number).
type Register struct {
	Name     string
	DwarfNum int
	Value    uint64
}

// amd64Slots is the fixed register table, in user_regs_struct order.
var amd64Slots = []struct {
	name     string
	dwarfNum int
	get      func(*sys.PtraceRegs) *uint64
}{
	{"r15", regnum.AMD64_R15, func(r *sys.PtraceRegs) *uint64 { return &r.R15 }},
	{"r14", regnum.AMD64_R14, func(r *sys.PtraceRegs) *uint64 { return &r.R14 }},
	{"r13", regnum.AMD64_R13, func(r *sys.PtraceRegs) *uint64 { return &r.R13 }},
	{"r12", regnum.AMD64_R12, func(r *sys.PtraceRegs) *uint64 { return &r.R12 }},
	{"rbp", regnum.AMD64_Rbp, func(r *sys.PtraceRegs) *uint64 { return &r.Rbp }},
	{"rbx", regnum.AMD64_Rbx, func(r *sys.PtraceRegs) *uint64 { return &r.Rbx }},
	{"r11", regnum.AMD64_R11, func(r *sys.PtraceRegs) *uint64 { return &r.R11 }},
	{"r10", regnum.AMD64_R10, func(r *sys.PtraceRegs) *uint64 { return &r.R10 }},
	{"r9", regnum.AMD64_R9, func(r *sys.PtraceRegs) *uint64 { return &r.R9 }},
	{"r8", regnum.AMD64_R8, func(r *sys.PtraceRegs) *uint64 { return &r.R8 }},
	{"rax", regnum.AMD64_Rax, func(r *sys.PtraceRegs) *uint64 { return &r.Rax }},
	{"rcx", regnum.AMD64_Rcx, func(r *sys.PtraceRegs) *uint64 { return &r.Rcx }},
	{"rdx", regnum.AMD64_Rdx, func(r *sys.PtraceRegs) *uint64 { return &r.Rdx }},
	{"rsi", regnum.AMD64_Rsi, func(r *sys.PtraceRegs) *uint64 { return &r.Rsi }},
	{"rdi", regnum.AMD64_Rdi, func(r *sys.PtraceRegs) *uint64 { return &r.Rdi }},
	{"orig_rax", -1, func(r *sys.PtraceRegs) *uint64 { return &r.Orig_rax }},
	{"rip", regnum.AMD64_Rip, func(r *sys.PtraceRegs) *uint64 { return &r.Rip }},
	{"cs", regnum.AMD64_Cs, func(r *sys.PtraceRegs) *uint64 { return &r.Cs }},
	{"eflags", regnum.AMD64_Rflags, func(r *sys.PtraceRegs) *uint64 { return &r.Eflags }},
	{"rsp", regnum.AMD64_Rsp, func(r *sys.PtraceRegs) *uint64 { return &r.Rsp }},
	{"ss", regnum.AMD64_Ss, func(r *sys.PtraceRegs) *uint64 { return &r.Ss }},
	{"fs_base", regnum.AMD64_Fs_base, func(r *sys.PtraceRegs) *uint64 { return &r.Fs_base }},
	{"gs_base", regnum.AMD64_Gs_base, func(r *sys.PtraceRegs) *uint64 { return &r.Gs_base }},
	{"ds", regnum.AMD64_Ds, func(r *sys.PtraceRegs) *uint64 { return &r.Ds }},
	{"es", regnum.AMD64_Es, func(r *sys.PtraceRegs) *uint64 { return &r.Es }},
	{"fs", regnum.AMD64_Fs, func(r *sys.PtraceRegs) *uint64 { return &r.Fs }},
	{"gs", regnum.AMD64_Gs, func(r *sys.PtraceRegs) *uint64 { return &r.Gs }},
}

// Registers fetches the inferior's register block.
func (t *Target) Registers() (*Registers, error) {
	var (
		r   Registers
		err error
	)
	t.execPtraceFunc(func() { err = ptraceGetRegs(t.Pid, &r.regs) })
	if err != nil {
		return nil, fmt.Errorf("could not get registers of pid %d: %v", t.Pid, err)
	}
	return &r, nil
}

// PC returns the instruction pointer.
func (r *Registers) PC() uint64 { return r.regs.Rip }

// SP returns the stack pointer.
func (r *Registers) SP() uint64 { return r.regs.Rsp }

// BP returns the frame pointer.
func (r *Registers) BP() uint64 { return r.regs.Rbp }

// Get returns the value of the named register.
func (r *Registers) Get(name string) (uint64, error) {
	for i := range amd64Slots {
		if amd64Slots[i].name == name {
			return *amd64Slots[i].get(&r.regs), nil
		}
	}
	return 0, fmt.Errorf("unknown register %s", name)
}

// Slice projects the register block to the fixed table, for display.
func (r *Registers) Slice() []Register {
	out := make([]Register, len(amd64Slots))
	for i := range amd64Slots {
		out[i] = Register{
			Name:     amd64Slots[i].name,
			DwarfNum: amd64Slots[i].dwarfNum,
			Value:    *amd64Slots[i].get(&r.regs),
		}
	}
	return out
}

// PC returns the inferior's current instruction pointer.
func (t *Target) PC() (uint64, error) {
	regs, err := t.Registers()
	if err != nil {
		return 0, err
	}
	return regs.PC(), nil
}

// SetPC rewrites the inferior's instruction pointer.
func (t *Target) SetPC(pc uint64) error {
	var (
		regs sys.PtraceRegs
		err  error
	)
	t.execPtraceFunc(func() {
		if err = ptraceGetRegs(t.Pid, &regs); err != nil {
			return
		}
		regs.Rip = pc
		err = ptraceSetRegs(t.Pid, &regs)
	})
	return err
}
