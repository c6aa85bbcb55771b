package ktf

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/arm-runtime/engine"
	"github.com/wippyai/arm-runtime/errors"
	"github.com/wippyai/arm-runtime/record"
)

// maxNameLen bounds the executable name read from WipiExe.
const maxNameLen = 256

// Image locates an executable already placed in guest memory. The entry
// point is the Thumb function at Base.
type Image struct {
	Base    uint32
	BSSSize uint32
}

// InterfaceFunc builds a named interface table and returns its guest
// address.
type InterfaceFunc func(ctx context.Context, core *engine.Core) (uint32, error)

// Java is the class-library collaborator behind the Java entries of
// InitParam4. Nil functions log a warning and return 0.
type Java struct {
	Throw     engine.HostFunc
	New       engine.HostFunc
	ArrayNew  engine.HostFunc
	ClassLoad engine.HostFunc

	// InitContext builds the context data stored in the PEB. vtables is
	// the address of InitParam2.
	InitContext func(ctx context.Context, core *engine.Core, vtables uint32) (uint32, error)
}

// Env supplies the host side of the boot protocol.
type Env struct {
	Interfaces map[string]InterfaceFunc
	Java       Java
}

// ModuleInfo describes a booted executable.
type ModuleInfo struct {
	Name       string
	Params     [5]uint32
	WipiExe    uint32
	FnInit     uint32
	FnGetClass uint32
}

// Init runs the vendor boot sequence for img. It must be called from a
// guest task since it calls into the image.
func Init(ctx context.Context, core *engine.Core, img Image, env Env) (ModuleInfo, error) {
	var info ModuleInfo

	exe, err := core.RunFunction(ctx, img.Base|1, img.BSSSize)
	if err != nil {
		return info, errors.Load("image entry point", err)
	}
	info.WipiExe = exe
	Logger().Debug("image entry returned", zap.Uint32("wipi_exe", exe))

	if info.Params, err = writeParams(ctx, core, env); err != nil {
		return info, err
	}

	var peb Peb
	if env.Java.InitContext != nil {
		peb.PtrJavaContextData, err = env.Java.InitContext(ctx, core, info.Params[2])
		if err != nil {
			return info, errors.Load("java context", err)
		}
	}
	if err := core.MapNamed("peb", PebBase, PebSize); err != nil {
		return info, errors.Load("map peb", err)
	}
	if err := record.Write(core.Memory(), PebBase, peb); err != nil {
		return info, errors.Load("write peb", err)
	}

	wipi, err := record.Read[WipiExe](core.Memory(), exe)
	if err != nil {
		return info, errors.Load("read WipiExe", err)
	}
	iface, err := record.Read[ExeInterface](core.Memory(), wipi.PtrExeInterface)
	if err != nil {
		return info, errors.Load("read ExeInterface", err)
	}
	fns, err := record.Read[ExeInterfaceFunctions](core.Memory(), iface.PtrFunctions)
	if err != nil {
		return info, errors.Load("read ExeInterfaceFunctions", err)
	}
	if wipi.PtrName != 0 {
		if info.Name, err = core.Memory().ReadCString(wipi.PtrName, maxNameLen); err != nil {
			return info, errors.Load("read executable name", err)
		}
	}

	Logger().Debug("calling image init", zap.Uint32("fn_init", fns.FnInit))
	p := info.Params
	res, err := core.RunFunction(ctx, fns.FnInit, p[0], p[1], p[2], p[3], p[4])
	if err != nil {
		return info, errors.Load("image init", err)
	}
	if res != 0 {
		return info, errors.New(errors.PhaseLoad, errors.KindFault).
			Detail("init failed with code %#x", res).
			Value(res).
			Build()
	}

	info.FnInit = wipi.FnInit
	info.FnGetClass = fns.FnGetClass
	Logger().Info("executable initialized",
		zap.String("name", info.Name),
		zap.Uint32("fn_get_class", info.FnGetClass))
	return info, nil
}

func writeParams(ctx context.Context, core *engine.Core, env Env) ([5]uint32, error) {
	var p [5]uint32
	var err error

	if p[0], err = place(core, InitParam0{}); err != nil {
		return p, err
	}
	unk, err := place(core, InitParam1Unk{})
	if err != nil {
		return p, err
	}
	if p[1], err = place(core, InitParam1{PtrUnkStruct: unk}); err != nil {
		return p, err
	}
	if p[2], err = place(core, InitParam2{}); err != nil {
		return p, err
	}
	if p[3], err = place(core, primitiveTypes()); err != nil {
		return p, err
	}

	services, err := registerServices(core, env)
	if err != nil {
		return p, err
	}
	if p[4], err = place(core, services); err != nil {
		return p, err
	}
	return p, nil
}

// place allocates a heap block for v and writes it there.
func place[T any](core *engine.Core, v T) (uint32, error) {
	size, err := record.Size[T]()
	if err != nil {
		return 0, err
	}
	addr, err := core.Alloc(size)
	if err != nil {
		return 0, errors.Load("allocate init parameter", err)
	}
	if err := record.Write(core.Memory(), addr, v); err != nil {
		return 0, err
	}
	debugf("placed %T (%d bytes) at %#x", v, size, addr)
	return addr, nil
}

func registerServices(core *engine.Core, env Env) (InitParam4, error) {
	var p InitParam4
	var err error

	p.FnGetInterface, err = core.RegisterNamedFunc("get_interface",
		func(ctx context.Context, core *engine.Core, name string) (uint32, error) {
			build, ok := env.Interfaces[name]
			if !ok {
				Logger().Warn("unknown interface requested", zap.String("name", name))
				return 0, nil
			}
			return build(ctx, core)
		})
	if err != nil {
		return p, err
	}

	java := []struct {
		slot *uint32
		name string
		fn   engine.HostFunc
	}{
		{&p.FnJavaThrow, "java_throw", env.Java.Throw},
		{&p.FnJavaNew, "java_new", env.Java.New},
		{&p.FnJavaArrayNew, "java_array_new", env.Java.ArrayNew},
		{&p.FnJavaClassLoad, "java_class_load", env.Java.ClassLoad},
	}
	for _, j := range java {
		fn := j.fn
		if fn == nil {
			fn = unimplemented(j.name)
		}
		if *j.slot, err = core.RegisterNamedFunction(j.name, fn); err != nil {
			return p, err
		}
	}

	p.FnAlloc, err = core.RegisterNamedFunc("alloc", func(core *engine.Core, size uint32) (uint32, error) {
		return core.Alloc(size)
	})
	return p, err
}

func unimplemented(name string) engine.HostFunc {
	return func(_ context.Context, _ *engine.Core, a0, a1, a2 uint32) (uint32, error) {
		Logger().Warn("unimplemented native called",
			zap.String("name", name),
			zap.Uint32("a0", a0),
			zap.Uint32("a1", a1),
			zap.Uint32("a2", a2))
		return 0, nil
	}
}
