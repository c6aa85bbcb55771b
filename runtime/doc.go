// Package runtime provides the high-level API for running feature-phone
// executables.
//
// # Quick Start
//
//	rt, err := runtime.New(runtime.WithFilesystem(fsys))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close()
//
//	img, err := rt.LoadFile("app.bin", 0x00010000)
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
// # Host Modules
//
// Go functions become native functions with a guest address. A host module
// is a struct whose exported methods are registered under its namespace:
//
//	type Debug struct{}
//
//	func (*Debug) Namespace() string { return "debug" }
//	func (*Debug) PrintInt(v int32)   { fmt.Println(v) }
//
//	rt.RegisterHost(&Debug{})
//	addr, _ := rt.Hosts().Lookup("debug", "print-int")
//
// Method names are converted to kebab-case. Hosts implementing
// ExplicitRegistrar name their functions themselves. The built-in
// "platform" module exposes time, sleep, canvases and record stores.
//
// Images that expect a table of function pointers get one from
// HostRegistry.InterfaceTable.
//
// # KTF Executables
//
// BootKTF runs the vendor boot sequence of package ktf in a task:
//
//	boot, _ := rt.BootKTF(img, bssSize, ktf.Env{Interfaces: ifaces})
//	if err := rt.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("get_class at %#x\n", boot.Info.FnGetClass)
package runtime
