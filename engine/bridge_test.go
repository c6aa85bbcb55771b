package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/arm-runtime/arm"
	"github.com/wippyai/arm-runtime/arm/asm"
	"github.com/wippyai/arm-runtime/errors"
	"github.com/wippyai/arm-runtime/platform"
)

func TestRegisterFunction_Slots(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StubCount = 2
	c, err := New(cfg, nil)
	require.NoError(t, err)
	defer c.Close()

	noop := func(context.Context, *Core, uint32, uint32, uint32) (uint32, error) { return 0, nil }

	a, err := c.RegisterFunction(noop)
	require.NoError(t, err)
	b, err := c.RegisterNamedFunction("second", noop)
	require.NoError(t, err)
	assert.Equal(t, cfg.StubBase, a)
	assert.Equal(t, cfg.StubBase+StubSize, b)

	body, err := c.Memory().ReadU32(b)
	require.NoError(t, err)
	assert.Equal(t, StubInstruction, body)

	name, ok := c.NativeAt(b)
	assert.True(t, ok)
	assert.Equal(t, "second", name)
	_, ok = c.NativeAt(b + 2)
	assert.False(t, ok)
	_, ok = c.NativeAt(b + StubSize)
	assert.False(t, ok, "unregistered slot")

	_, err = c.RegisterFunction(noop)
	assert.True(t, errors.IsKind(err, errors.KindAllocation))
}

func TestNative_ThroughStoredPointer(t *testing.T) {
	c, _ := newCore(t)

	var got [3]uint32
	fn, err := c.RegisterFunction(func(_ context.Context, _ *Core, a0, a1, a2 uint32) (uint32, error) {
		got = [3]uint32{a0, a1, a2}
		return a0 + a1 + a2 + 100, nil
	})
	require.NoError(t, err)

	p := asm.New(codeBase)
	p.Thumb().Label("main").
		Push(asm.R4, asm.LR).
		LdrLit(asm.R3, "table").
		Ldr(asm.R3, asm.R3, 0).
		Movs(asm.R0, 1).
		Movs(asm.R1, 2).
		Movs(asm.R2, 3).
		Blx(asm.R3).
		Adds3(asm.R0, asm.R0, 1).
		Pop(asm.R4, asm.PC)
	p.Align(4).Label("table").WordAddr("slot", false)
	p.Label("slot").Word(fn)
	load(t, c, p)

	res, err := inTask(t, c, func(ctx context.Context, core *Core) (uint32, error) {
		return core.RunFunction(ctx, thumbEntry(p, "main"))
	})
	require.NoError(t, err)
	assert.Equal(t, [3]uint32{1, 2, 3}, got)
	assert.Equal(t, uint32(107), res)
}

func TestNative_ReturnsToARMCaller(t *testing.T) {
	c, _ := newCore(t)
	double, err := c.RegisterFunction(func(_ context.Context, _ *Core, a0, _, _ uint32) (uint32, error) {
		return a0 * 2, nil
	})
	require.NoError(t, err)

	p := asm.New(codeBase)
	p.ARM().Label("main").
		Push(asm.R4, asm.LR).
		LdrLit(asm.R3, "double").
		Mov(asm.R0, 21).
		Blx(asm.R3).
		Add(asm.R0, asm.R0, 1).
		Pop(asm.R4, asm.PC)
	p.Label("double").Word(double)
	load(t, c, p)

	res, err := inTask(t, c, func(ctx context.Context, core *Core) (uint32, error) {
		return core.RunFunction(ctx, p.MustAddr("main"))
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(43), res)
}

func TestRegisterFunc_Marshalling(t *testing.T) {
	c, _ := newCore(t)

	type call struct {
		a    int8
		b    uint16
		s    string
		flag bool
		e    int32
	}
	var got call
	var gotSys *platform.System
	addr, err := c.RegisterNamedFunc("mix", func(ctx context.Context, core *Core, sys *platform.System,
		a int8, b uint16, s string, flag bool, e int32) (int64, error) {
		assert.NotNil(t, ctx)
		assert.NotNil(t, core)
		gotSys = sys
		got = call{a, b, s, flag, e}
		return -2, nil
	})
	require.NoError(t, err)

	str, err := c.Alloc(8)
	require.NoError(t, err)
	require.NoError(t, c.Memory().WriteCString(str, "hi"))

	res, err := inTask(t, c, func(ctx context.Context, core *Core) (uint32, error) {
		v, err := core.RunFunction64(ctx, addr, 0xff, 0x12345, str, 1, uint32(0xfffffffb))
		assert.Equal(t, uint64(0xfffffffffffffffe), v)
		return 0, err
	})
	require.NoError(t, err)
	assert.Zero(t, res)
	assert.Equal(t, call{a: -1, b: 0x2345, s: "hi", flag: true, e: -5}, got)
	assert.Same(t, c.System(), gotSys)
}

func TestRegisterFunc_Shapes(t *testing.T) {
	c, _ := newCore(t)

	tests := []struct {
		name string
		fn   any
		args []uint32
		want uint32
	}{
		{"no results", func(uint32) {}, []uint32{5}, 5},
		{"bool result", func(x uint32) bool { return x > 3 }, []uint32{5}, 1},
		{"error only", func() error { return nil }, nil, 0},
		{"empty string", func(s string) uint32 { return uint32(len(s)) }, []uint32{0}, 0},
		{"uint8 truncates", func(x uint8) uint32 { return uint32(x) }, []uint32{0x1ff}, 0xff},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, err := c.RegisterFunc(tt.fn)
			require.NoError(t, err)
			res, err := inTask(t, c, func(ctx context.Context, core *Core) (uint32, error) {
				return core.RunFunction(ctx, addr, tt.args...)
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res)
		})
	}
}

func TestRegisterFunc_Rejects(t *testing.T) {
	c, _ := newCore(t)

	tests := []struct {
		name string
		fn   any
	}{
		{"not a func", 42},
		{"nil", nil},
		{"float param", func(float32) {}},
		{"slice param", func([]byte) {}},
		{"64-bit param", func(uint64) {}},
		{"context not first", func(uint32, context.Context) {}},
		{"string result", func() string { return "" }},
		{"error not last", func() (error, uint32) { return nil, 0 }},
		{"three results", func() (uint32, uint32, error) { return 0, 0, nil }},
		{"variadic", func(...uint32) {}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.RegisterFunc(tt.fn)
			require.Error(t, err)
			assert.True(t, errors.IsKind(err, errors.KindCallConvention), "got %v", err)
		})
	}
}

func TestNative_ErrorFaultsCall(t *testing.T) {
	c, _ := newCore(t)
	fail, err := c.RegisterNamedFunc("open", func(sys *platform.System, name string) (uint32, error) {
		_, err := sys.ReadFile(name)
		return 0, err
	})
	require.NoError(t, err)
	boom, err := c.RegisterNamedFunc("boom", func() uint32 { panic("boom") })
	require.NoError(t, err)

	str, err := c.Alloc(8)
	require.NoError(t, err)
	require.NoError(t, c.Memory().WriteCString(str, "a.bin"))

	_, err = inTask(t, c, func(ctx context.Context, core *Core) (uint32, error) {
		return core.RunFunction(ctx, fail, str)
	})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindFault))
	assert.True(t, errors.IsKind(err, errors.KindNotInitialized))
	assert.Contains(t, err.Error(), "open")

	_, err = inTask(t, c, func(ctx context.Context, core *Core) (uint32, error) {
		return core.RunFunction(ctx, boom)
	})
	assert.True(t, errors.IsKind(err, errors.KindPanic))
	assert.Equal(t, uint32(8), c.Heap().InUse(), "task stacks released after faults")
}

func TestNative_CallsBackIntoGuest(t *testing.T) {
	c, _ := newCore(t)
	apply, err := c.RegisterFunc(func(ctx context.Context, core *Core, fn, x uint32) (uint32, error) {
		return core.RunFunction(ctx, fn, x)
	})
	require.NoError(t, err)

	p := asm.New(codeBase)
	th := p.Thumb()
	th.Label("main").
		Push(asm.R4, asm.LR).
		Mov(asm.R1, asm.R0).
		LdrLit(asm.R0, "square").
		LdrLit(asm.R3, "apply").
		Blx(asm.R3).
		Adds3(asm.R0, asm.R0, 1).
		Pop(asm.R4, asm.PC)
	th.Label("sq").
		Muls(asm.R0, asm.R0).
		Bx(asm.LR)
	p.Align(4).Label("square").WordAddr("sq", true)
	p.Label("apply").Word(apply)
	load(t, c, p)

	res, err := inTask(t, c, func(ctx context.Context, core *Core) (uint32, error) {
		return core.RunFunction(ctx, thumbEntry(p, "main"), 7)
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(50), res)
	assert.Zero(t, c.Registers().R[arm.SP])
}
