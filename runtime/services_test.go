package runtime

import (
	"context"
	"io"
	"io/fs"
	"sync/atomic"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/arm-runtime/engine"
	"github.com/wippyai/arm-runtime/errors"
	"github.com/wippyai/arm-runtime/platform"
)

// service returns the address of a platform service.
func service(t *testing.T, rt *Runtime, name string) uint32 {
	t.Helper()
	addr, ok := rt.Hosts().Lookup(ServicesNamespace, name)
	require.True(t, ok, name)
	return addr
}

// inTask runs fn as a task and fails the test on any fault.
func inTask(t *testing.T, rt *Runtime, fn engine.Callable) {
	t.Helper()
	task, err := rt.Spawn("test", fn)
	require.NoError(t, err)
	require.NoError(t, rt.Run(context.Background()))
	require.NoError(t, task.Err())
}

func cstring(t *testing.T, core *engine.Core, s string) uint32 {
	t.Helper()
	addr, err := core.Alloc(uint32(len(s)) + 1)
	require.NoError(t, err)
	require.NoError(t, core.Memory().WriteCString(addr, s))
	return addr
}

func TestServices_Time(t *testing.T) {
	clock := platform.NewVirtualClock()
	rt, err := New(WithClock(clock.Clock))
	require.NoError(t, err)
	defer rt.Close()

	sleep := service(t, rt, "sleep")
	now := service(t, rt, "current-time")

	var before, after uint64
	inTask(t, rt, func(ctx context.Context, core *engine.Core) (uint32, error) {
		var err error
		if before, err = core.RunFunction64(ctx, now); err != nil {
			return 0, err
		}
		if _, err = core.RunFunction(ctx, sleep, 250); err != nil {
			return 0, err
		}
		after, err = core.RunFunction64(ctx, now)
		return 0, err
	})

	assert.Equal(t, uint64(platform.FakeEpoch/int64(time.Millisecond)), before)
	assert.GreaterOrEqual(t, after-before, uint64(250))
	assert.GreaterOrEqual(t, clock.Elapsed(), 250*time.Millisecond)
}

func TestServices_Canvas(t *testing.T) {
	screen := platform.NewMemoryScreen(4, 4)
	rt := newRuntime(t, WithScreen(screen))

	const green = 0xff00ff00
	inTask(t, rt, func(ctx context.Context, core *engine.Core) (uint32, error) {
		h, err := core.RunFunction(ctx, service(t, rt, "create-canvas"), 4, 4)
		if err != nil {
			return 0, err
		}
		if _, err := core.RunFunction(ctx, service(t, rt, "fill-rect"), h, 0, 0, 2, 2, green); err != nil {
			return 0, err
		}
		size, err := core.RunFunction(ctx, service(t, rt, "canvas-size"), h)
		if err != nil {
			return 0, err
		}
		assert.Equal(t, uint32(4<<16|4), size)

		pix, err := core.Alloc(8)
		if err != nil {
			return 0, err
		}
		if err := core.Memory().WriteU32(pix, 0xffff0000); err != nil {
			return 0, err
		}
		if err := core.Memory().WriteU32(pix+4, 0xff0000ff); err != nil {
			return 0, err
		}
		// 2x1 block at (2, 3) with a pitch of 2 pixels
		if _, err := core.RunFunction(ctx, service(t, rt, "draw-pixels"), h, 2, 3, 2, 1, pix, 2); err != nil {
			return 0, err
		}
		if _, err := core.RunFunction(ctx, service(t, rt, "repaint"), h); err != nil {
			return 0, err
		}
		_, err = core.RunFunction(ctx, service(t, rt, "destroy-canvas"), h)
		return 0, err
	})

	require.Equal(t, 1, screen.Frames())
	frame := screen.Last()
	assert.Equal(t, uint32(green), frame.At(1, 1))
	assert.Equal(t, uint32(0), frame.At(2, 2))
	assert.Equal(t, uint32(0xffff0000), frame.At(2, 3))
	assert.Equal(t, uint32(0xff0000ff), frame.At(3, 3))
	assert.Zero(t, rt.System().Resources.Len())
}

func TestServices_RecordStore(t *testing.T) {
	db, err := platform.OpenDatabase("")
	require.NoError(t, err)
	rt := newRuntime(t, WithDatabase(db))

	inTask(t, rt, func(ctx context.Context, core *engine.Core) (uint32, error) {
		call := func(name string, args ...uint32) uint32 {
			v, err := core.RunFunction(ctx, service(t, rt, name), args...)
			require.NoError(t, err, name)
			return v
		}

		h := call("open-record-store", cstring(t, core, "scores"))
		data := cstring(t, core, "abc")
		assert.Equal(t, uint32(1), call("add-record", h, data, 3))
		assert.Equal(t, uint32(2), call("add-record", h, data, 1))
		assert.Equal(t, uint32(2), call("count-records", h))

		buf, err := core.Alloc(8)
		require.NoError(t, err)
		assert.Equal(t, uint32(3), call("get-record", h, 1, buf, 2))
		got, err := core.Read(buf, 3)
		require.NoError(t, err)
		assert.Equal(t, []byte("ab"), got[:2])

		assert.Equal(t, uint32(0xffffffff), call("get-record", h, 9, buf, 8), "missing record is -1")

		assert.Equal(t, uint32(0), call("set-record", h, 2, cstring(t, core, "xyz"), 2))
		assert.Equal(t, uint32(0xffffffff), call("set-record", h, 9, data, 1), "missing record is -1")

		call("delete-record", h, 1)
		assert.Equal(t, uint32(1), call("count-records", h))
		call("close-record-store", h)
		return 0, nil
	})

	store, err := db.Open("scores")
	require.NoError(t, err)
	rec, err := store.Get(2)
	require.NoError(t, err)
	assert.Equal(t, []byte("xy"), rec)
}

func TestServices_SpawnAndYield(t *testing.T) {
	rt := newRuntime(t)
	var order []string
	mark, err := rt.RegisterFunc("test", "mark", func(id uint32) {
		order = append(order, string(rune(id)))
	})
	require.NoError(t, err)

	spawn := service(t, rt, "spawn")
	yield := service(t, rt, "yield")
	inTask(t, rt, func(ctx context.Context, core *engine.Core) (uint32, error) {
		if _, err := core.RunFunction(ctx, spawn, mark, 'b'); err != nil {
			return 0, err
		}
		if _, err := core.RunFunction(ctx, mark, 'a'); err != nil {
			return 0, err
		}
		if _, err := core.RunFunction(ctx, yield); err != nil {
			return 0, err
		}
		_, err := core.RunFunction(ctx, mark, 'c')
		return 0, err
	})
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestServices_DrawPixelsWideSource(t *testing.T) {
	screen := platform.NewMemoryScreen(4, 4)
	rt := newRuntime(t, WithScreen(screen))

	const lineSize = 100
	inTask(t, rt, func(ctx context.Context, core *engine.Core) (uint32, error) {
		h, err := core.RunFunction(ctx, service(t, rt, "create-canvas"), 4, 4)
		if err != nil {
			return 0, err
		}
		// 2x2 block taken from the left edge of a 100 pixel wide image
		pix, err := core.Alloc((lineSize + 2) * 4)
		if err != nil {
			return 0, err
		}
		for i, px := range map[uint32]uint32{0: 1, 1: 2, lineSize: 3, lineSize + 1: 4} {
			if err := core.Memory().WriteU32(pix+i*4, 0xff000000|px); err != nil {
				return 0, err
			}
		}
		if _, err := core.RunFunction(ctx, service(t, rt, "draw-pixels"), h, 1, 1, 2, 2, pix, lineSize); err != nil {
			return 0, err
		}
		_, err = core.RunFunction(ctx, service(t, rt, "repaint"), h)
		return 0, err
	})

	require.Equal(t, 1, screen.Frames())
	frame := screen.Last()
	assert.Equal(t, uint32(0xff000001), frame.At(1, 1))
	assert.Equal(t, uint32(0xff000002), frame.At(2, 1))
	assert.Equal(t, uint32(0xff000003), frame.At(1, 2))
	assert.Equal(t, uint32(0xff000004), frame.At(2, 2))
	assert.Equal(t, uint32(0), frame.At(3, 3))
}

func TestServices_DrawPixelsRejectsHugeSource(t *testing.T) {
	rt := newRuntime(t, WithScreen(platform.NewMemoryScreen(4, 4)))
	task, err := rt.Spawn("test", func(ctx context.Context, core *engine.Core) (uint32, error) {
		h, err := core.RunFunction(ctx, service(t, rt, "create-canvas"), 4, 4)
		if err != nil {
			return 0, err
		}
		return core.RunFunction(ctx, service(t, rt, "draw-pixels"), h, 0, 0, 1, 2, 0, 0x7fffffff)
	})
	require.NoError(t, err)
	_ = rt.Run(context.Background())
	assert.True(t, errors.IsKind(task.Err(), errors.KindOutOfBounds), "got %v", task.Err())
}

func TestServices_File(t *testing.T) {
	rt := newRuntime(t, WithFilesystem(platform.NewFSFilesystem(fstest.MapFS{
		"res/level.dat": {Data: []byte("0123456789")},
	})))

	inTask(t, rt, func(ctx context.Context, core *engine.Core) (uint32, error) {
		call := func(name string, args ...uint32) uint32 {
			v, err := core.RunFunction(ctx, service(t, rt, name), args...)
			require.NoError(t, err, name)
			return v
		}

		assert.Equal(t, uint32(0xffffffff), call("open-file", cstring(t, core, "res/none")), "missing file is -1")

		h := call("open-file", cstring(t, core, "/res/level.dat"))
		assert.Equal(t, uint32(10), call("file-size", h))

		buf, err := core.Alloc(16)
		require.NoError(t, err)
		assert.Equal(t, uint32(4), call("read-file", h, buf, 4))
		got, err := core.Read(buf, 4)
		require.NoError(t, err)
		assert.Equal(t, []byte("0123"), got)

		call("seek-file", h, 8)
		assert.Equal(t, uint32(2), call("read-file", h, buf, 16), "short read at the end")
		got, err = core.Read(buf, 2)
		require.NoError(t, err)
		assert.Equal(t, []byte("89"), got)
		assert.Equal(t, uint32(0), call("read-file", h, buf, 16), "read at the end is empty")

		call("close-file", h)
		_, err = core.RunFunction(ctx, service(t, rt, "file-size"), h)
		assert.True(t, errors.IsKind(err, errors.KindNotFound), "got %v", err)
		return 0, nil
	})
	assert.Zero(t, rt.System().Resources.Len())
}

// gatedFS holds every ReadAt until gate is closed.
type gatedFS struct {
	fstest.MapFS
	reading *atomic.Bool
	gate    chan struct{}
}

func (g gatedFS) Open(name string) (fs.File, error) {
	f, err := g.MapFS.Open(name)
	if err != nil {
		return nil, err
	}
	return gatedFile{File: f, fs: g}, nil
}

type gatedFile struct {
	fs.File
	fs gatedFS
}

func (g gatedFile) ReadAt(p []byte, off int64) (int, error) {
	g.fs.reading.Store(true)
	<-g.fs.gate
	return g.File.(io.ReaderAt).ReadAt(p, off)
}

func TestServices_ReadLetsOtherTasksRun(t *testing.T) {
	fsys := gatedFS{
		MapFS:   fstest.MapFS{"save.dat": {Data: []byte("state")}},
		reading: new(atomic.Bool),
		gate:    make(chan struct{}),
	}
	rt := newRuntime(t, WithFilesystem(platform.NewFSFilesystem(fsys)))

	var order []string
	var got []byte
	reader, err := rt.Spawn("reader", func(ctx context.Context, core *engine.Core) (uint32, error) {
		h, err := core.RunFunction(ctx, service(t, rt, "open-file"), cstring(t, core, "save.dat"))
		if err != nil {
			return 0, err
		}
		buf, err := core.Alloc(8)
		if err != nil {
			return 0, err
		}
		n, err := core.RunFunction(ctx, service(t, rt, "read-file"), h, buf, 8)
		if err != nil {
			return 0, err
		}
		order = append(order, "read")
		got, err = core.Read(buf, n)
		return 0, err
	})
	require.NoError(t, err)

	other, err := rt.Spawn("other", func(ctx context.Context, core *engine.Core) (uint32, error) {
		for !fsys.reading.Load() {
			if err := core.Yield(ctx); err != nil {
				return 0, err
			}
		}
		order = append(order, "other")
		close(fsys.gate)
		return 0, nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, rt.Run(ctx))
	require.NoError(t, reader.Err())
	require.NoError(t, other.Err())

	assert.Equal(t, []string{"other", "read"}, order)
	assert.Equal(t, []byte("state"), got)
}
