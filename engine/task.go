package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/arm-runtime/arm"
	"github.com/wippyai/arm-runtime/scheduler"
)

// Callable is the body of a guest task.
type Callable func(ctx context.Context, core *Core) (uint32, error)

// Spawn starts a guest task with its own heap-allocated stack. The task
// owns a saved register file that is swapped into the live CPU each time
// it is scheduled and saved back each time it suspends. The stack is
// freed when the task ends, whatever the outcome.
func (c *Core) Spawn(name string, fn Callable) (*scheduler.Task, error) {
	stack, err := c.heap.Alloc(c.cfg.StackSize)
	if err != nil {
		return nil, err
	}

	var saved arm.Registers
	saved.Reset()
	saved.R[arm.SP] = (stack + c.cfg.StackSize) &^ 7

	hooks := scheduler.Hooks{
		Enter: func() {
			c.cpu.Regs = saved
		},
		Leave: func() {
			saved = c.cpu.Regs
			c.cpu.Regs.Reset()
		},
		Exit: func() {
			if err := c.heap.Free(stack); err != nil {
				Logger().Error("free task stack",
					zap.String("task", name),
					zap.Uint32("stack", stack),
					zap.Error(err))
			}
			debugf("task %q released stack %#08x", name, stack)
		},
	}

	t := c.sched.Spawn(name, func(ctx context.Context) (uint32, error) {
		return fn(ctx, c)
	}, hooks)
	debugf("spawned task %q stack [%#08x, %#08x)", name, stack, stack+c.cfg.StackSize)
	return t, nil
}

// SpawnFunction starts a task that calls the guest function at pc.
func (c *Core) SpawnFunction(name string, pc uint32, args ...uint32) (*scheduler.Task, error) {
	args = append([]uint32(nil), args...)
	return c.Spawn(name, func(ctx context.Context, core *Core) (uint32, error) {
		return core.RunFunction(ctx, pc, args...)
	})
}
