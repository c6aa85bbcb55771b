package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/wippyai/arm-runtime/arm"
	"github.com/wippyai/arm-runtime/errors"
)

// HostFunc is a native function callable from guest code. It receives the
// first three argument registers and its result is returned in R0.
type HostFunc func(ctx context.Context, core *Core, a0, a1, a2 uint32) (uint32, error)

// native is a registered slot. It reads its own arguments from the live
// register file and leaves its results there.
type native struct {
	call func(ctx context.Context, c *Core) error
	name string
}

// RegisterFunction reserves the next stub slot for fn and returns the
// guest address to call it at. Addresses are never reused.
func (c *Core) RegisterFunction(fn HostFunc) (uint32, error) {
	return c.register("", func(ctx context.Context, c *Core) error {
		r := &c.cpu.Regs.R
		res, err := fn(ctx, c, r[0], r[1], r[2])
		if err != nil {
			return err
		}
		c.cpu.Regs.R[0] = res
		return nil
	})
}

// RegisterNamedFunction is RegisterFunction with a name used in logs and
// fault messages.
func (c *Core) RegisterNamedFunction(name string, fn HostFunc) (uint32, error) {
	addr, err := c.RegisterFunction(fn)
	if err == nil {
		c.natives[len(c.natives)-1].name = name
	}
	return addr, err
}

func (c *Core) register(name string, call func(ctx context.Context, c *Core) error) (uint32, error) {
	slot := uint32(len(c.natives))
	if slot >= c.cfg.StubCount {
		return 0, errors.New(errors.PhaseBridge, errors.KindAllocation).
			Detail("native function table full (%d slots)", c.cfg.StubCount).
			Build()
	}
	addr := c.cfg.StubBase + slot*StubSize
	if err := c.mem.WriteU32(addr, StubInstruction); err != nil {
		return 0, err
	}
	c.natives = append(c.natives, native{call: call, name: name})
	debugf("native %d %q at %#08x", slot, name, addr)
	return addr, nil
}

// NativeAt returns the name registered for a stub address.
func (c *Core) NativeAt(addr uint32) (string, bool) {
	slot, ok := c.slot(addr)
	if !ok {
		return "", false
	}
	return c.natives[slot].name, true
}

func (c *Core) slot(pc uint32) (uint32, bool) {
	if pc < c.cfg.StubBase || (pc-c.cfg.StubBase)%StubSize != 0 {
		return 0, false
	}
	slot := (pc - c.cfg.StubBase) / StubSize
	if slot >= uint32(len(c.natives)) {
		return 0, false
	}
	return slot, true
}

// dispatch runs the native bound to pc, if any, and returns to LR.
func (c *Core) dispatch(ctx context.Context, pc uint32) (bool, error) {
	slot, ok := c.slot(pc)
	if !ok {
		return false, nil
	}
	n := c.natives[slot]
	lr := c.cpu.Regs.R[arm.LR]

	if err := c.invoke(ctx, n); err != nil {
		Logger().Debug("native function failed",
			zap.String("name", n.name),
			zap.Uint32("pc", pc),
			zap.Uint32("lr", lr),
			zap.Error(err))
		return false, errors.Wrap(errors.PhaseBridge, errors.KindFault, err,
			"native "+nativeLabel(n.name, pc))
	}

	c.cpu.Jump(lr)
	return true, nil
}

func (c *Core) invoke(ctx context.Context, n native) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Panic(errors.PhaseBridge, "native "+n.name, r)
		}
	}()
	return n.call(ctx, c)
}

func nativeLabel(name string, pc uint32) string {
	if name != "" {
		return name
	}
	return fmt.Sprintf("%#08x", pc)
}
