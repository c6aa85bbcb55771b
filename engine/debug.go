package engine

import (
	"context"

	"github.com/wippyai/arm-runtime/arm"
	"github.com/wippyai/arm-runtime/errors"
)

// DebugSession single-steps one guest call outside the scheduler. Native
// functions run inline; one that tries to suspend fails because there is
// no task to suspend.
type DebugSession struct {
	ctx    context.Context
	core   *Core
	err    error
	saved  arm.Registers
	stack  uint32
	steps  uint64
	halted bool
}

// Debug prepares a call to pc for stepping. When no task is running a
// temporary stack is taken from the heap.
func (c *Core) Debug(ctx context.Context, pc uint32, args ...uint32) (*DebugSession, error) {
	d := &DebugSession{ctx: ctx, core: c, saved: c.cpu.Regs}
	if c.cpu.Regs.R[arm.SP] == 0 {
		stack, err := c.heap.Alloc(c.cfg.StackSize)
		if err != nil {
			return nil, err
		}
		d.stack = stack
		c.cpu.Regs.R[arm.SP] = stack + c.cfg.StackSize
	}
	if err := c.setupCall(pc, args); err != nil {
		_ = d.Close()
		return nil, err
	}
	return d, nil
}

// Registers returns the live register file.
func (d *DebugSession) Registers() arm.Registers { return d.core.cpu.Regs }

// Halted reports whether the call has returned.
func (d *DebugSession) Halted() bool { return d.halted }

// Err returns the fault that stopped the session, if any.
func (d *DebugSession) Err() error { return d.err }

// Steps returns how many instructions or native calls were executed.
func (d *DebugSession) Steps() uint64 { return d.steps }

// Current disassembles the instruction at PC. At a native stub it reports
// the native function name instead.
func (d *DebugSession) Current() (arm.Instruction, error) {
	regs := d.core.cpu.Regs
	pc := regs.R[arm.PC]
	if name, ok := d.core.NativeAt(pc); ok {
		return arm.Instruction{Addr: pc, Text: "native " + nativeLabel(name, pc), Size: StubSize}, nil
	}
	return arm.Disassemble(regs, d.core.mem)
}

// Step executes one instruction or one native call.
func (d *DebugSession) Step() error {
	if d.halted {
		return nil
	}
	if d.err != nil {
		return d.err
	}
	c := d.core
	pc := c.cpu.Regs.R[arm.PC]
	if pc == c.cfg.ReturnAddress&^1 {
		d.halted = true
		return nil
	}

	handled, err := c.dispatch(d.ctx, pc)
	if err == nil && !handled {
		err = c.cpu.Step()
	}
	if err != nil {
		d.err = err
		c.lastFault = c.cpu.Regs
		return err
	}
	d.steps++
	if c.cpu.Regs.R[arm.PC] == c.cfg.ReturnAddress&^1 {
		d.halted = true
	}
	return nil
}

// Continue steps until the call returns, faults or n steps have run. n of
// zero means no limit.
func (d *DebugSession) Continue(n uint64) error {
	for i := uint64(0); n == 0 || i < n; i++ {
		if d.halted {
			return nil
		}
		if err := d.Step(); err != nil {
			return err
		}
	}
	return nil
}

// Result returns R0 once the call has returned.
func (d *DebugSession) Result() (uint32, error) {
	if d.err != nil {
		return 0, d.err
	}
	if !d.halted {
		return 0, errors.New(errors.PhaseExecute, errors.KindNotInitialized).
			Detail("call has not returned").
			Build()
	}
	return d.core.cpu.Regs.R[0], nil
}

// Close restores the register file from before the session and releases
// its temporary stack.
func (d *DebugSession) Close() error {
	d.core.cpu.Regs = d.saved
	return d.release()
}

func (d *DebugSession) release() error {
	if d.stack == 0 {
		return nil
	}
	err := d.core.heap.Free(d.stack)
	d.stack = 0
	return err
}
