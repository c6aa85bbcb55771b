package scheduler

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// Reason is why a task is suspended.
type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonTimer
	ReasonIOWait
	ReasonYield
)

func (r Reason) String() string {
	switch r {
	case ReasonTimer:
		return "timer"
	case ReasonIOWait:
		return "io-wait"
	case ReasonYield:
		return "yield"
	default:
		return "none"
	}
}

// TaskState is the lifecycle state of a task.
type TaskState uint8

const (
	TaskReady TaskState = iota
	TaskRunning
	TaskSuspended
	TaskDone
	TaskFaulted
)

func (s TaskState) String() string {
	switch s {
	case TaskReady:
		return "ready"
	case TaskRunning:
		return "running"
	case TaskSuspended:
		return "suspended"
	case TaskDone:
		return "done"
	case TaskFaulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// Func is the body of a task. It runs with a context from which the
// suspension helpers find their task.
type Func func(ctx context.Context) (uint32, error)

// Hooks run on the scheduler side of every context switch. Enter runs
// before each resumption, Leave after each suspension or completion, Exit
// exactly once when the task ends for any reason.
type Hooks struct {
	Enter func()
	Leave func()
	Exit  func()
}

// PendingOp is host work a task waits on without holding the CPU.
type PendingOp interface {
	Execute(ctx context.Context) (uint64, error)
}

// OpFunc adapts a function to PendingOp.
type OpFunc func(ctx context.Context) (uint64, error)

// Execute calls f.
func (f OpFunc) Execute(ctx context.Context) (uint64, error) { return f(ctx) }

// Task is one logical thread of guest execution.
type Task struct {
	fn     Func
	sched  *Scheduler
	span   trace.Span
	err    error
	ioErr  error
	resume chan struct{}
	parked chan struct{}
	done   chan struct{}
	hooks  Hooks
	name   string

	id       uint64
	deadline int64
	ioResult uint64
	result   uint32

	state   TaskState
	reason  Reason
	started bool
	aborted bool
}

// ID returns the task's scheduler-unique id.
func (t *Task) ID() uint64 { return t.id }

// Name returns the name given at spawn.
func (t *Task) Name() string { return t.name }

// State returns the current lifecycle state.
func (t *Task) State() TaskState { return t.state }

// Reason returns the suspension reason while suspended.
func (t *Task) Reason() Reason { return t.reason }

// Done is closed when the task completes or faults.
func (t *Task) Done() <-chan struct{} { return t.done }

// Err returns the fault that ended the task, if any.
func (t *Task) Err() error { return t.err }

// Result returns the value returned by the task body.
func (t *Task) Result() uint32 { return t.result }

func (t *Task) finished() bool {
	return t.state == TaskDone || t.state == TaskFaulted
}
