// Package proc controls the inferior process: launching it under the
// kernel's trace facility, installing software breakpoints, stepping at
// instruction and source-line granularity, and walking its stack. The
// package is linux/amd64 only and follows a single thread of the tracee.
package proc

import (
	"fmt"

	"github.com/slatedbg/slate/pkg/debuginfo"
	"github.com/slatedbg/slate/pkg/logflags"
)

// ErrProcessExited indicates that the process being debugged has exited
// or was killed by a signal.
type ErrProcessExited struct {
	Pid    int
	Status int
	Signal int
}

func (e ErrProcessExited) Error() string {
	if e.Signal != 0 {
		return fmt.Sprintf("process %d has been terminated by signal %d", e.Pid, e.Signal)
	}
	return fmt.Sprintf("process %d has exited with status %d", e.Pid, e.Status)
}

// Breakpoint is one installed software breakpoint. While enabled, the
// byte at Addr in the inferior's text is the trap instruction and
// OriginalByte holds the byte it replaced.
type Breakpoint struct {
	Addr         uint64
	OriginalByte byte
	Enabled      bool

	// Temporary breakpoints are installed by the stepping engine and
	// removed as soon as they are hit.
	Temporary bool
}

// Frame is one entry of a backtrace.
type Frame struct {
	PC       uint64
	Function string
	Loc      debuginfo.SourceLocation
	HasLoc   bool
}

// Target is a process being debugged. At most one breakpoint exists per
// address; the map is mutated only by the sequential command handlers.
type Target struct {
	Path        string
	Pid         int
	BinInfo     *debuginfo.DebugInfo
	Breakpoints map[uint64]*Breakpoint

	// MaxBacktraceDepth bounds the frame-pointer walk; zero means the
	// default of 64.
	MaxBacktraceDepth int

	// The kernel rejects trace requests coming from a different OS
	// thread than the one that started tracing the inferior, and the Go
	// scheduler migrates goroutines between threads at will. Every
	// ptrace call is therefore shipped through ptraceChan to one
	// dedicated goroutine locked to its thread for the life of the
	// target.
	ptraceChan     chan func()
	ptraceDoneChan chan struct{}

	exited bool
	log    logflags.Logger
}

// execPtraceFunc runs fn on the target's ptrace thread and waits for it
// to finish.
func (t *Target) execPtraceFunc(fn func()) {
	t.ptraceChan <- fn
	<-t.ptraceDoneChan
}

const defaultMaxBacktraceDepth = 64

// Valid returns whether the target can be used: it is attached and has
// not exited.
func (t *Target) Valid() bool {
	return t != nil && !t.exited
}

func (t *Target) maxFrames() int {
	if t.MaxBacktraceDepth > 0 {
		return t.MaxBacktraceDepth
	}
	return defaultMaxBacktraceDepth
}
