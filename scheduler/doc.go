// Package scheduler interleaves guest tasks cooperatively.
//
// Each task body runs on its own goroutine, but control is handed over
// strictly: the scheduler loop and at most one task ever run at the same
// time. A task gives up the CPU only by calling one of the suspension
// helpers with the context it was started with:
//
//	err := scheduler.Sleep(ctx, 100*time.Millisecond)
//	err = scheduler.Yield(ctx)
//	n, err := scheduler.WaitIO(ctx, scheduler.OpFunc(readFile))
//
// Sleepers resume in deadline order with ties broken first-in first-out.
// Host I/O runs off the scheduler goroutine and the waiting task becomes
// ready when it completes. Hooks on each task let the owner swap per-task
// state, such as a saved register file, in and out around every switch.
package scheduler
