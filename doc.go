// Package armruntime provides a Go runtime for legacy feature-phone applications.
//
// The library executes unmodified ARM/Thumb application binaries written for
// a vendor handset platform. Its core is an ARM interpreter whose single
// register file is time-shared, through a cooperative scheduler, by many
// guest calls that interleave with host-implemented native functions and
// asynchronous host I/O.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	armruntime/          Root package with core Memory and Allocator interfaces
//	├── runtime/         High-level API for loading images and running entry points
//	├── engine/          Guest execution core: native bridge, run_function, guest tasks
//	├── scheduler/       Cooperative single-thread task scheduler with timers
//	├── arm/             Register file and ARM/Thumb instruction interpreter
//	│   └── asm/         Instruction encoder for tests and tooling
//	├── memory/          Guest address space
//	├── record/          Fixed-layout record transfer for vendor ABI structures
//	├── heap/            Guest heap allocator
//	├── platform/        Host collaborators: clock, database, filesystem, screen
//	├── resource/        Handle tables for host objects
//	├── ktf/             KTF vendor boot sequence
//	└── errors/          Structured error types for debugging
//
// # Quick Start
//
// Load an image and run its entry point:
//
//	rt, err := runtime.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close()
//
//	img, err := rt.LoadImage("app.bin", 0x100000, data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	task, err := rt.Start("main", img.Base|1)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := rt.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(task.Result())
//
// # Native Functions
//
// Register Go functions that guest code can call through a function pointer:
//
//	stub, err := core.RegisterFunc(func(ctx context.Context, core *engine.Core, size uint32) (uint32, error) {
//	    return core.Alloc(size)
//	})
//
// The returned stub address is stored into guest function-pointer tables.
//
// # Thread Safety
//
// The guest core is single-threaded by construction. Memory, heap and the
// register file are only touched by the scheduler loop or by the one guest
// task it has resumed. Host code must not call into a Core from goroutines
// the scheduler does not own; use engine.Await to run blocking host I/O.
package armruntime
