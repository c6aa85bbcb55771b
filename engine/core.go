package engine

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/arm-runtime/arm"
	"github.com/wippyai/arm-runtime/errors"
	"github.com/wippyai/arm-runtime/heap"
	"github.com/wippyai/arm-runtime/memory"
	"github.com/wippyai/arm-runtime/platform"
	"github.com/wippyai/arm-runtime/scheduler"
)

// Core is one emulated process: a guest address space, its heap, the single
// register file, the native function table and the task scheduler. A Core
// is not safe for concurrent use; all guest execution is serialized by its
// scheduler.
type Core struct {
	mem     *memory.Space
	heap    *heap.Allocator
	cpu     *arm.CPU
	sched   *scheduler.Scheduler
	sys     *platform.System
	natives []native
	cfg     Config

	lastFault arm.Registers
	closed    bool
}

// Option configures a Core.
type Option func(*options)

type options struct {
	tracer trace.Tracer
}

// WithTracer sets the tracer the scheduler uses for task spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// New creates a core. It maps the heap and the native stub region; the
// guest image is mapped by the caller.
func New(cfg Config, sys *platform.System, opts ...Option) (*Core, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sys == nil {
		sys = platform.NewSystem()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	mem := memory.New(cfg.MemorySize)
	if err := mem.MapNamed("heap", cfg.HeapBase, cfg.HeapSize); err != nil {
		return nil, errors.Load("map heap", err)
	}
	if err := mem.MapNamed("stubs", cfg.StubBase, cfg.StubCount*StubSize); err != nil {
		return nil, errors.Load("map native stubs", err)
	}

	c := &Core{
		cfg:   cfg,
		mem:   mem,
		heap:  heap.New(cfg.HeapBase, cfg.HeapSize),
		cpu:   arm.New(mem),
		sys:   sys,
		sched: scheduler.New(sys.Clock, scheduler.WithTracer(o.tracer)),
	}
	c.cpu.Regs.Reset()

	Logger().Debug("core created",
		zap.Uint32("memory", cfg.MemorySize),
		zap.Uint32("heap_base", cfg.HeapBase),
		zap.Uint32("heap_size", cfg.HeapSize),
		zap.Uint32("stub_base", cfg.StubBase))
	return c, nil
}

// Config returns the layout the core was created with.
func (c *Core) Config() Config { return c.cfg }

// Memory returns the guest address space.
func (c *Core) Memory() *memory.Space { return c.mem }

// Heap returns the guest heap allocator.
func (c *Core) Heap() *heap.Allocator { return c.heap }

// CPU returns the interpreter holding the live register file.
func (c *Core) CPU() *arm.CPU { return c.cpu }

// Registers returns a copy of the live register file.
func (c *Core) Registers() arm.Registers { return c.cpu.Regs }

// Scheduler returns the task scheduler.
func (c *Core) Scheduler() *scheduler.Scheduler { return c.sched }

// System returns the host collaborators.
func (c *Core) System() *platform.System { return c.sys }

// Map zero-fills and reserves [base, base+size) for guest use.
func (c *Core) Map(base, size uint32) error {
	return c.mem.MapNamed("guest", base, size)
}

// MapNamed is Map with a region name shown in memory dumps.
func (c *Core) MapNamed(name string, base, size uint32) error {
	return c.mem.MapNamed(name, base, size)
}

// Read copies n bytes from guest memory.
func (c *Core) Read(addr, n uint32) ([]byte, error) { return c.mem.Read(addr, n) }

// Write copies data into guest memory.
func (c *Core) Write(addr uint32, data []byte) error { return c.mem.Write(addr, data) }

// Alloc reserves size bytes of guest heap.
func (c *Core) Alloc(size uint32) (uint32, error) { return c.heap.Alloc(size) }

// Free releases a heap allocation.
func (c *Core) Free(addr uint32) error { return c.heap.Free(addr) }

// Now returns the platform wall clock in epoch milliseconds.
func (c *Core) Now() uint64 { return c.sys.Clock.Now() }

// Sleep suspends the calling task for at least d.
func (c *Core) Sleep(ctx context.Context, d time.Duration) error {
	return scheduler.Sleep(ctx, d)
}

// SleepUntil suspends the calling task until the monotonic clock reaches
// deadline nanoseconds.
func (c *Core) SleepUntil(ctx context.Context, deadline int64) error {
	return scheduler.SleepUntil(ctx, deadline)
}

// Yield lets other ready tasks run.
func (c *Core) Yield(ctx context.Context) error {
	return scheduler.Yield(ctx)
}

// Await runs op off the scheduler and suspends the calling task until it
// finishes.
func (c *Core) Await(ctx context.Context, op func(context.Context) (uint64, error)) (uint64, error) {
	return scheduler.WaitIO(ctx, scheduler.OpFunc(op))
}

// Run drives all tasks to completion.
func (c *Core) Run(ctx context.Context) error {
	return c.sched.Run(ctx)
}

// Close releases host resources and aborts unfinished tasks. A native
// function may call it; the calling task then ends as aborted and Close
// does not return to it.
func (c *Core) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	err := c.sys.Close()
	return multierr.Append(err, c.sched.Close())
}
