package engine

import (
	"context"

	"golang.org/x/exp/constraints"

	"github.com/wippyai/arm-runtime/arm"
	"github.com/wippyai/arm-runtime/errors"
)

// RunFunction calls the guest function at pc with the AAPCS convention and
// returns R0. Bit 0 of pc selects Thumb state. The first four arguments go
// in R0-R3 and the rest on the stack of the calling task. The live register
// file is restored afterwards, so a native function may call back into the
// guest.
func (c *Core) RunFunction(ctx context.Context, pc uint32, args ...uint32) (uint32, error) {
	lo, _, err := c.run(ctx, pc, args)
	return lo, err
}

// RunFunction64 is RunFunction for functions returning a 64-bit value in
// R0 (low) and R1 (high).
func (c *Core) RunFunction64(ctx context.Context, pc uint32, args ...uint32) (uint64, error) {
	lo, hi, err := c.run(ctx, pc, args)
	return uint64(hi)<<32 | uint64(lo), err
}

func (c *Core) run(ctx context.Context, pc uint32, args []uint32) (uint32, uint32, error) {
	saved := c.cpu.Regs
	if err := c.setupCall(pc, args); err != nil {
		return 0, 0, err
	}

	err := c.cpu.Run(c.cfg.ReturnAddress, func(at uint32) (bool, error) {
		return c.dispatch(ctx, at)
	})
	lo, hi := c.cpu.Regs.R[0], c.cpu.Regs.R[1]
	if err != nil {
		c.lastFault = c.cpu.Regs
	}
	c.cpu.Regs = saved
	if err != nil {
		return 0, 0, err
	}
	return lo, hi, nil
}

func (c *Core) setupCall(pc uint32, args []uint32) error {
	regs := &c.cpu.Regs
	sp := regs.R[arm.SP]
	if sp == 0 {
		return errors.CallConvention("guest call to %#08x outside a task: no stack", pc)
	}

	if len(args) > 4 {
		extra := args[4:]
		sp = (sp - uint32(len(extra))*4) &^ 7
		for i, v := range extra {
			if err := c.mem.WriteU32(sp+uint32(i)*4, v); err != nil {
				return errors.New(errors.PhaseBridge, errors.KindCallConvention).
					Detail("stack argument %d at %#08x", i+4, sp+uint32(i)*4).
					Cause(err).
					Build()
			}
		}
	} else {
		sp &^= 7
	}

	for i := 0; i < 4; i++ {
		if i < len(args) {
			regs.R[i] = args[i]
		} else {
			regs.R[i] = 0
		}
	}
	regs.R[arm.SP] = sp
	regs.R[arm.LR] = c.cfg.ReturnAddress
	regs.SetThumb(pc&1 != 0)
	if pc&1 != 0 {
		regs.R[arm.PC] = pc &^ 1
	} else {
		regs.R[arm.PC] = pc &^ 3
	}
	return nil
}

// LastFault returns the register file at the most recent guest fault.
func (c *Core) LastFault() arm.Registers { return c.lastFault }

// Call runs a guest function and converts its result to T. Types narrower
// than 64 bits take the low bits of R0; 64-bit types take R1 as the high
// word.
func Call[T constraints.Integer](ctx context.Context, c *Core, pc uint32, args ...uint32) (T, error) {
	lo, hi, err := c.run(ctx, pc, args)
	if err != nil {
		return 0, err
	}
	return T(uint64(hi)<<32 | uint64(lo)), nil
}

// CallBool runs a guest function and reports whether R0 is non-zero.
func CallBool(ctx context.Context, c *Core, pc uint32, args ...uint32) (bool, error) {
	r, err := c.RunFunction(ctx, pc, args...)
	return r != 0, err
}
