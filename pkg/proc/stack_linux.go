package proc

import (
	"errors"

	"github.com/slatedbg/slate/pkg/debuginfo"
)

// Backtrace walks the inferior's stack by following saved frame
// pointers: the return address of each frame lives at [rbp+8] and the
// caller's rbp at [rbp]. The walk stops at main, at a zero frame
// pointer, at a failed read, or at the configured depth bound. Frames
// without a function name are reported as unknown and the walk
// continues.
func (t *Target) Backtrace() ([]Frame, error) {
	regs, err := t.Registers()
	if err != nil {
		return nil, err
	}

	frames := []Frame{t.newFrame(regs.PC())}
	if frames[0].Function == "main" {
		return frames, nil
	}

	framePointer := regs.BP()
	for len(frames) < t.maxFrames() {
		if framePointer == 0 {
			break
		}
		returnAddr, err := t.peekData(framePointer + 8)
		if err != nil {
			break
		}

		frame := t.newFrame(returnAddr)
		frames = append(frames, frame)
		if frame.Function == "main" {
			break
		}

		framePointer, err = t.peekData(framePointer)
		if err != nil {
			break
		}
	}
	return frames, nil
}

// newFrame resolves a program counter to a backtrace frame.
func (t *Target) newFrame(pc uint64) Frame {
	frame := Frame{PC: pc, Function: "unknown"}
	name, err := t.BinInfo.FunctionForPC(pc)
	if err != nil {
		if !errors.Is(err, debuginfo.ErrNotFound) {
			t.log.Debugf("backtrace: %v", err)
		}
		return frame
	}
	frame.Function = name
	if loc, err := t.BinInfo.SourceLocationForFunction(name); err == nil {
		frame.Loc = loc
		frame.HasLoc = true
	}
	return frame
}
