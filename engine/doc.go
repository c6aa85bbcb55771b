// Package engine ties the guest execution core together.
//
// A Core owns one guest address space, the heap inside it, the single ARM
// register file and a cooperative scheduler. Host code reaches the guest
// through four operations:
//
//	addr, _ := core.RegisterFunc(func(ctx context.Context, x, y int32) int32 {
//		return x + y
//	})
//	core.Map(base, size)                    // reserve guest memory
//	task, _ := core.Spawn("main", body)     // start a guest task
//	r, _ := core.RunFunction(ctx, pc, args...) // call guest code from a task
//
// # Native functions
//
// Each registered function gets a 4-byte slot in the stub region holding an
// ARM BX LR. When the interpreter is about to execute a slot, the bridge
// calls the Go function with the argument registers instead and returns to
// LR with the result in R0. Slots are handed out in order and never reused.
//
// # Tasks
//
// Every task runs on its own stack allocated from the guest heap. The live
// register file is swapped in when the task is scheduled and saved when it
// suspends, so guest code on different tasks never observes each other's
// registers. Native functions suspend the calling task with Sleep, Yield or
// Await; other tasks run in the meantime. The stack is freed when the task
// ends, whether it returned, faulted, panicked or was torn down by Close.
//
// # Calling convention
//
// RunFunction follows AAPCS: R0-R3 carry the first four arguments, further
// arguments are stored at SP, LR is the configured return sentinel and bit
// 0 of the target address selects Thumb state.
package engine
