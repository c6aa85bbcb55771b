package runtime

import (
	"context"
	"encoding/binary"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/arm-runtime/engine"
	"github.com/wippyai/arm-runtime/errors"
	"github.com/wippyai/arm-runtime/platform"
	"github.com/wippyai/arm-runtime/resource"
)

// ServicesNamespace is the namespace of the built-in platform module.
const ServicesNamespace = "platform"

// MaxTransferSize bounds a single record or file transfer.
const MaxTransferSize = 1 << 20

// Services exposes the platform collaborators to guest code. Handles
// returned to the guest index the system resource table.
type Services struct{}

func (*Services) Namespace() string { return ServicesNamespace }

// CurrentTime returns the wall clock in epoch milliseconds.
func (*Services) CurrentTime(core *engine.Core) uint64 { return core.Now() }

// Sleep suspends the calling task for ms milliseconds.
func (*Services) Sleep(ctx context.Context, core *engine.Core, ms uint32) error {
	return core.Sleep(ctx, time.Duration(ms)*time.Millisecond)
}

// Yield lets other ready tasks run.
func (*Services) Yield(ctx context.Context, core *engine.Core) error {
	return core.Yield(ctx)
}

// Spawn starts a guest task calling fn with arg.
func (*Services) Spawn(core *engine.Core, fn, arg uint32) (uint32, error) {
	t, err := core.SpawnFunction("guest", fn, arg)
	if err != nil {
		return 0, err
	}
	return uint32(t.ID()), nil
}

// Alloc reserves guest heap memory.
func (*Services) Alloc(core *engine.Core, size uint32) (uint32, error) {
	return core.Alloc(size)
}

// Free releases guest heap memory.
func (*Services) Free(core *engine.Core, addr uint32) error {
	return core.Free(addr)
}

// Print logs a guest message.
func (*Services) Print(msg string) {
	Logger().Info("guest", zap.String("msg", msg))
}

// CreateCanvas allocates an off-screen canvas.
func (*Services) CreateCanvas(sys *platform.System, width, height uint32) (uint32, error) {
	h, err := sys.CreateCanvas(width, height)
	return uint32(h), err
}

// LoadCanvas decodes an image file into a new canvas.
func (*Services) LoadCanvas(sys *platform.System, path string) (uint32, error) {
	h, err := sys.LoadCanvas(path)
	return uint32(h), err
}

// CanvasSize returns width<<16 | height.
func (*Services) CanvasSize(sys *platform.System, h uint32) (uint32, error) {
	c, err := sys.Canvas(resource.Handle(h))
	if err != nil {
		return 0, err
	}
	return c.Width<<16 | c.Height&0xffff, nil
}

// FillRect fills a clipped rectangle with an ARGB color.
func (*Services) FillRect(sys *platform.System, h, x, y, w, hgt, argb uint32) error {
	c, err := sys.Canvas(resource.Handle(h))
	if err != nil {
		return err
	}
	c.Fill(x, y, w, hgt, argb)
	return nil
}

// DrawCanvas blits a w x h block of src at (sx, sy) onto dst at (dx, dy).
func (*Services) DrawCanvas(sys *platform.System, dst, dx, dy, src, sx, sy, w, h uint32) error {
	d, err := sys.Canvas(resource.Handle(dst))
	if err != nil {
		return err
	}
	s, err := sys.Canvas(resource.Handle(src))
	if err != nil {
		return err
	}
	return d.Draw(dx, dy, w, h, s, sx, sy)
}

// DrawPixels blits ARGB words from guest memory. lineSize is the row pitch
// of the buffer in pixels.
func (*Services) DrawPixels(core *engine.Core, sys *platform.System, dst, dx, dy, w, h, buf, lineSize uint32) error {
	d, err := sys.Canvas(resource.Handle(dst))
	if err != nil {
		return err
	}
	if w == 0 || h == 0 {
		return nil
	}
	if lineSize < w {
		return errors.InvalidInput(errors.PhaseHost, "line size smaller than width")
	}
	n := uint64(lineSize)*uint64(h-1) + uint64(w)
	if n > math.MaxUint32/4 {
		return errors.OutOfBounds(errors.PhaseHost, buf, math.MaxUint32, uint64(core.Memory().Size()))
	}
	raw, err := core.Read(buf, uint32(n)*4)
	if err != nil {
		return err
	}
	pix := make([]uint32, n)
	for i := range pix {
		pix[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}
	return d.DrawPixels(dx, dy, w, h, pix, 0, 0, lineSize)
}

// Repaint presents a canvas on the screen.
func (*Services) Repaint(sys *platform.System, h uint32) error {
	return sys.Repaint(resource.Handle(h))
}

// DestroyCanvas releases a canvas handle.
func (*Services) DestroyCanvas(sys *platform.System, h uint32) error {
	return sys.DestroyCanvas(resource.Handle(h))
}

// OpenRecordStore opens or creates a named record store.
func (*Services) OpenRecordStore(sys *platform.System, name string) (uint32, error) {
	h, err := sys.OpenRecordStore(name)
	return uint32(h), err
}

// CloseRecordStore releases a record store handle.
func (*Services) CloseRecordStore(sys *platform.System, h uint32) error {
	return sys.CloseRecordStore(resource.Handle(h))
}

// Record store and file natives run their host I/O through Await, so the
// calling task suspends and other tasks keep running. Guest memory is only
// touched before and after the wait, never from the I/O goroutine.

// CountRecords returns the number of records in a store.
func (*Services) CountRecords(ctx context.Context, core *engine.Core, sys *platform.System, h uint32) (uint32, error) {
	s, err := sys.RecordStore(resource.Handle(h))
	if err != nil {
		return 0, err
	}
	n, err := core.Await(ctx, func(context.Context) (uint64, error) {
		n, err := s.Count()
		return uint64(n), err
	})
	return uint32(n), err
}

// AddRecord stores size bytes at buf as a new record and returns its id.
func (*Services) AddRecord(ctx context.Context, core *engine.Core, sys *platform.System, h, buf, size uint32) (uint32, error) {
	s, err := sys.RecordStore(resource.Handle(h))
	if err != nil {
		return 0, err
	}
	data, err := guestBytes(core, buf, size)
	if err != nil {
		return 0, err
	}
	id, err := core.Await(ctx, func(context.Context) (uint64, error) {
		id, err := s.Add(data)
		return uint64(id), err
	})
	return uint32(id), err
}

// SetRecord replaces the record id with size bytes at buf. It returns -1
// if the record does not exist.
func (*Services) SetRecord(ctx context.Context, core *engine.Core, sys *platform.System, h, id, buf, size uint32) (int32, error) {
	s, err := sys.RecordStore(resource.Handle(h))
	if err != nil {
		return 0, err
	}
	data, err := guestBytes(core, buf, size)
	if err != nil {
		return 0, err
	}
	_, err = core.Await(ctx, func(context.Context) (uint64, error) {
		return 0, s.Set(id, data)
	})
	if errors.IsKind(err, errors.KindNotFound) {
		return -1, nil
	}
	return 0, err
}

// GetRecord copies up to capacity bytes of a record to buf and returns the
// full record size, or -1 if the record does not exist.
func (*Services) GetRecord(ctx context.Context, core *engine.Core, sys *platform.System, h, id, buf, capacity uint32) (int32, error) {
	s, err := sys.RecordStore(resource.Handle(h))
	if err != nil {
		return 0, err
	}
	var data []byte
	_, err = core.Await(ctx, func(context.Context) (uint64, error) {
		var err error
		data, err = s.Get(id)
		return 0, err
	})
	if errors.IsKind(err, errors.KindNotFound) {
		return -1, nil
	}
	if err != nil {
		return 0, err
	}
	n := min(uint32(len(data)), capacity)
	if err := core.Write(buf, data[:n]); err != nil {
		return 0, err
	}
	return int32(len(data)), nil
}

// DeleteRecord removes a record.
func (*Services) DeleteRecord(ctx context.Context, core *engine.Core, sys *platform.System, h, id uint32) error {
	s, err := sys.RecordStore(resource.Handle(h))
	if err != nil {
		return err
	}
	_, err = core.Await(ctx, func(context.Context) (uint64, error) {
		return 0, s.Delete(id)
	})
	return err
}

// OpenFile opens a file for reading and returns its handle, or -1 if the
// file does not exist.
func (*Services) OpenFile(ctx context.Context, core *engine.Core, sys *platform.System, name string) (int32, error) {
	var f *platform.File
	_, err := core.Await(ctx, func(context.Context) (uint64, error) {
		var err error
		f, err = sys.OpenFile(name)
		return 0, err
	})
	if errors.IsKind(err, errors.KindNotFound) {
		return -1, nil
	}
	if err != nil {
		return 0, err
	}
	h, err := sys.AddFile(f)
	if err != nil {
		_ = f.Drop()
		return 0, err
	}
	return int32(h), nil
}

// ReadFile reads up to size bytes from the file position into buf and
// returns the number of bytes read, 0 at the end of the file.
func (*Services) ReadFile(ctx context.Context, core *engine.Core, sys *platform.System, h, buf, size uint32) (uint32, error) {
	f, err := sys.File(resource.Handle(h))
	if err != nil {
		return 0, err
	}
	if size > MaxTransferSize {
		return 0, errors.InvalidInput(errors.PhaseHost, "read too large")
	}
	if uint64(buf)+uint64(size) > uint64(core.Memory().Size()) {
		return 0, errors.OutOfBounds(errors.PhaseHost, buf, size, uint64(core.Memory().Size()))
	}
	data := make([]byte, size)
	n, err := core.Await(ctx, func(context.Context) (uint64, error) {
		n, err := f.Read(data)
		return uint64(n), err
	})
	if err != nil {
		return 0, err
	}
	if err := core.Write(buf, data[:n]); err != nil {
		return 0, err
	}
	return uint32(n), nil
}

// SeekFile moves the file position to pos bytes from the start.
func (*Services) SeekFile(sys *platform.System, h, pos uint32) error {
	f, err := sys.File(resource.Handle(h))
	if err != nil {
		return err
	}
	return f.Seek(int64(pos))
}

// FileSize returns the size of an open file in bytes.
func (*Services) FileSize(sys *platform.System, h uint32) (uint32, error) {
	f, err := sys.File(resource.Handle(h))
	if err != nil {
		return 0, err
	}
	return uint32(f.Size()), nil
}

// CloseFile closes a file handle.
func (*Services) CloseFile(sys *platform.System, h uint32) error {
	return sys.CloseFile(resource.Handle(h))
}

// guestBytes copies a record payload out of guest memory.
func guestBytes(core *engine.Core, buf, size uint32) ([]byte, error) {
	if size > MaxTransferSize {
		return nil, errors.InvalidInput(errors.PhaseHost, "record too large")
	}
	data := make([]byte, size)
	if err := core.Memory().ReadInto(buf, data); err != nil {
		return nil, err
	}
	return data, nil
}
