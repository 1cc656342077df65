package proc

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"syscall"

	sys "golang.org/x/sys/unix"

	"github.com/slatedbg/slate/pkg/debuginfo"
	"github.com/slatedbg/slate/pkg/logflags"
)

// handlePtraceFuncs services the target's ptrace channel. The goroutine
// locks itself to its OS thread before the fork, so the thread that
// becomes the tracer is also the one issuing every later request.
func handlePtraceFuncs(t *Target) {
	runtime.LockOSThread()

	for fn := range t.ptraceChan {
		fn()
		t.ptraceDoneChan <- struct{}{}
	}
}

// Launch creates and begins debugging a new process running path. The
// child requests tracing before its exec, so the first wait observes it
// stopped at the entry point.
func Launch(path string, bi *debuginfo.DebugInfo) (*Target, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	t := &Target{
		Path:           path,
		BinInfo:        bi,
		Breakpoints:    make(map[uint64]*Breakpoint),
		ptraceChan:     make(chan func()),
		ptraceDoneChan: make(chan struct{}),
		log:            logflags.DebuggerLogger(),
	}
	go handlePtraceFuncs(t)

	cmd := exec.Command(path)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Ptrace:  true,
		Setpgid: true,
	}
	var err error
	t.execPtraceFunc(func() { err = cmd.Start() })
	if err != nil {
		return nil, fmt.Errorf("could not launch %s: %v", path, err)
	}
	t.Pid = cmd.Process.Pid

	if _, err := t.wait(); err != nil {
		return nil, fmt.Errorf("waiting for target execve failed: %v", err)
	}
	t.log.Debugf("launched %s as pid %d", path, t.Pid)
	return t, nil
}

// wait blocks until the inferior changes state. An exit or a fatal
// signal is reported as ErrProcessExited.
func (t *Target) wait() (sys.WaitStatus, error) {
	var status sys.WaitStatus
	if _, err := sys.Wait4(t.Pid, &status, 0, nil); err != nil {
		return status, fmt.Errorf("wait on pid %d failed: %v", t.Pid, err)
	}
	if status.Exited() {
		t.exited = true
		return status, ErrProcessExited{Pid: t.Pid, Status: status.ExitStatus()}
	}
	if status.Signaled() {
		t.exited = true
		return status, ErrProcessExited{Pid: t.Pid, Signal: int(status.Signal())}
	}
	return status, nil
}

// Kill sends SIGTERM to the inferior. Used by the quit command.
func (t *Target) Kill() error {
	if !t.Valid() {
		return nil
	}
	return sys.Kill(t.Pid, sys.SIGTERM)
}

// resume continues the inferior and waits for the next stop.
func (t *Target) resume() error {
	var err error
	t.execPtraceFunc(func() { err = ptraceCont(t.Pid, 0) })
	if err != nil {
		return err
	}
	_, err = t.wait()
	return err
}

// StepInstruction executes a single machine instruction.
func (t *Target) StepInstruction() error {
	var err error
	t.execPtraceFunc(func() { err = ptraceSingleStep(t.Pid) })
	if err != nil {
		return err
	}
	_, err = t.wait()
	return err
}
