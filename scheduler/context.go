package scheduler

import (
	"context"
	"time"

	"github.com/wippyai/arm-runtime/errors"
)

type ctxKeyTask struct{}

// WithTask returns a context carrying t.
func WithTask(ctx context.Context, t *Task) context.Context {
	return context.WithValue(ctx, ctxKeyTask{}, t)
}

// TaskFrom returns the task carried by ctx, or nil.
func TaskFrom(ctx context.Context) *Task {
	if v := ctx.Value(ctxKeyTask{}); v != nil {
		return v.(*Task)
	}
	return nil
}

func current(ctx context.Context, op string) (*Task, error) {
	t := TaskFrom(ctx)
	if t == nil || t.state != TaskRunning {
		return nil, errors.New(errors.PhaseSchedule, errors.KindNotInitialized).
			Detail("%s called outside a running task", op).
			Build()
	}
	return t, nil
}

// Sleep suspends the calling task for at least d.
func Sleep(ctx context.Context, d time.Duration) error {
	t, err := current(ctx, "sleep")
	if err != nil {
		return err
	}
	if d < 0 {
		d = 0
	}
	t.deadline = t.sched.clock.Nanotime() + int64(d)
	t.park(ReasonTimer)
	return nil
}

// SleepUntil suspends the calling task until the clock reads at least
// deadline nanoseconds.
func SleepUntil(ctx context.Context, deadline int64) error {
	t, err := current(ctx, "sleep")
	if err != nil {
		return err
	}
	t.deadline = deadline
	t.park(ReasonTimer)
	return nil
}

// Yield moves the calling task to the back of the ready queue.
func Yield(ctx context.Context) error {
	t, err := current(ctx, "yield")
	if err != nil {
		return err
	}
	t.park(ReasonYield)
	return nil
}

// WaitIO runs op on a separate goroutine and suspends the calling task
// until it completes. Other tasks run in the meantime.
func WaitIO(ctx context.Context, op PendingOp) (uint64, error) {
	t, err := current(ctx, "wait-io")
	if err != nil {
		return 0, err
	}
	s := t.sched
	go func() {
		res, err := op.Execute(ctx)
		t.ioResult, t.ioErr = res, err
		s.io <- t
	}()
	t.park(ReasonIOWait)

	res, err := t.ioResult, t.ioErr
	t.ioResult, t.ioErr = 0, nil
	return res, err
}
