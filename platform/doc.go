// Package platform provides the host collaborators a guest program talks
// to through native functions: a clock, a LevelDB-backed record store
// database, a read-only filesystem, ARGB canvases and a screen.
//
// System bundles them and hands out resource handles for canvases and
// open record stores so guest code only ever holds integers.
//
//	sys := platform.NewSystem(
//		platform.WithClock(platform.NewVirtualClock().Clock),
//		platform.WithDatabase(db),
//		platform.WithScreen(platform.NewMemoryScreen(240, 320)),
//	)
//	h, err := sys.CreateCanvas(240, 320)
//
// Failures reported by a collaborator are wrapped as host I/O errors.
package platform
