// Package regnum maps between hardware registers and the DWARF register
// numbering. The x86-64 mapping is specified in the System V ABI AMD64
// Architecture Processor Supplement v1.0, figure 3.36.
package regnum

import (
	"fmt"
	"strings"
)

const (
	AMD64_Rax     = 0
	AMD64_Rdx     = 1
	AMD64_Rcx     = 2
	AMD64_Rbx     = 3
	AMD64_Rsi     = 4
	AMD64_Rdi     = 5
	AMD64_Rbp     = 6
	AMD64_Rsp     = 7
	AMD64_R8      = 8
	AMD64_R9      = 9
	AMD64_R10     = 10
	AMD64_R11     = 11
	AMD64_R12     = 12
	AMD64_R13     = 13
	AMD64_R14     = 14
	AMD64_R15     = 15
	AMD64_Rip     = 16
	AMD64_Rflags  = 49
	AMD64_Es      = 50
	AMD64_Cs      = 51
	AMD64_Ss      = 52
	AMD64_Ds      = 53
	AMD64_Fs      = 54
	AMD64_Gs      = 55
	AMD64_Fs_base = 58
	AMD64_Gs_base = 59
)

var amd64DwarfToName = map[uint64]string{
	AMD64_Rax:     "rax",
	AMD64_Rdx:     "rdx",
	AMD64_Rcx:     "rcx",
	AMD64_Rbx:     "rbx",
	AMD64_Rsi:     "rsi",
	AMD64_Rdi:     "rdi",
	AMD64_Rbp:     "rbp",
	AMD64_Rsp:     "rsp",
	AMD64_R8:      "r8",
	AMD64_R9:      "r9",
	AMD64_R10:     "r10",
	AMD64_R11:     "r11",
	AMD64_R12:     "r12",
	AMD64_R13:     "r13",
	AMD64_R14:     "r14",
	AMD64_R15:     "r15",
	AMD64_Rip:     "rip",
	AMD64_Rflags:  "eflags",
	AMD64_Es:      "es",
	AMD64_Cs:      "cs",
	AMD64_Ss:      "ss",
	AMD64_Ds:      "ds",
	AMD64_Fs:      "fs",
	AMD64_Gs:      "gs",
	AMD64_Fs_base: "fs_base",
	AMD64_Gs_base: "gs_base",
}

// AMD64NameToDwarf maps a lower-case register name to its DWARF number.
var AMD64NameToDwarf = func() map[string]int {
	r := make(map[string]int)
	for regNum, regName := range amd64DwarfToName {
		r[strings.ToLower(regName)] = int(regNum)
	}
	return r
}()

// AMD64ToName returns the name of the DWARF register num.
func AMD64ToName(num uint64) string {
	name, ok := amd64DwarfToName[num]
	if ok {
		return name
	}
	return fmt.Sprintf("unknown%d", num)
}
