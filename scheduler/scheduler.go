package scheduler

import (
	"container/heap"
	"context"
	"runtime"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/arm-runtime/errors"
)

const tracerName = "github.com/wippyai/arm-runtime/scheduler"

// Clock is the time source the scheduler sleeps on.
type Clock interface {
	Nanotime() int64
	Nanosleep(ns int64)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithTracer sets the tracer used for task spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Scheduler) {
		if t != nil {
			s.tracer = t
		}
	}
}

// Scheduler runs tasks cooperatively. Exactly one of the scheduler loop or
// a single task executes at any instant; control passes only when a task
// suspends or ends. A Scheduler must be driven from one goroutine.
type Scheduler struct {
	clock  Clock
	tracer trace.Tracer
	io     chan *Task
	ready  []*Task
	timers timerQueue
	faults []error
	live   map[uint64]*Task

	// running is the task holding the CPU, nil while the loop runs.
	running *Task

	nextID    uint64
	seq       uint64
	ioWaiting int
	closed    bool
}

// New creates a scheduler on clock.
func New(clock Clock, opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:  clock,
		tracer: otel.Tracer(tracerName),
		io:     make(chan *Task, 64),
		live:   make(map[uint64]*Task),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Clock returns the scheduler's time source.
func (s *Scheduler) Clock() Clock { return s.clock }

// Spawn registers a new ready task. It may be called from inside a running
// task; the new task first runs after the caller suspends.
func (s *Scheduler) Spawn(name string, fn Func, hooks Hooks) *Task {
	s.nextID++
	t := &Task{
		id:     s.nextID,
		name:   name,
		fn:     fn,
		hooks:  hooks,
		sched:  s,
		resume: make(chan struct{}),
		parked: make(chan struct{}),
		done:   make(chan struct{}),
	}
	if s.closed {
		t.state = TaskFaulted
		t.err = errors.NotInitialized(errors.PhaseSchedule, "scheduler")
		if hooks.Exit != nil {
			hooks.Exit()
		}
		close(t.done)
		return t
	}
	s.live[t.id] = t
	s.ready = append(s.ready, t)
	debugf("spawn task %d %q", t.id, name)
	return t
}

// Live returns the number of tasks that have not finished.
func (s *Scheduler) Live() int { return len(s.live) }

// Tasks returns the unfinished tasks. Order is unspecified.
func (s *Scheduler) Tasks() []*Task {
	out := make([]*Task, 0, len(s.live))
	for _, t := range s.live {
		out = append(out, t)
	}
	return out
}

// Tick runs one scheduling step: it wakes due timers and completed I/O,
// then resumes the oldest ready task. With nothing ready it sleeps until
// the next wakeup. It reports whether unfinished tasks remain.
func (s *Scheduler) Tick(ctx context.Context) (bool, error) {
	if s.closed {
		return false, errors.NotInitialized(errors.PhaseSchedule, "scheduler")
	}
	if err := ctx.Err(); err != nil {
		return len(s.live) > 0, err
	}

	s.promoteTimers()
	s.drainIO(false)

	if len(s.ready) > 0 {
		t := s.ready[0]
		s.ready[0] = nil
		s.ready = s.ready[1:]
		s.switchTo(ctx, t)
		return len(s.live) > 0, nil
	}

	if len(s.live) == 0 {
		return false, nil
	}

	s.idle(ctx)
	return true, nil
}

// Run drives tasks until none remain. It returns the faults of tasks that
// ended during the run, or the context error if ctx is cancelled first.
func (s *Scheduler) Run(ctx context.Context) error {
	s.faults = nil
	for {
		more, err := s.Tick(ctx)
		if err != nil {
			return multierr.Append(err, multierr.Combine(s.faults...))
		}
		if !more {
			return multierr.Combine(s.faults...)
		}
	}
}

// RunUntil drives tasks until t finishes.
func (s *Scheduler) RunUntil(ctx context.Context, t *Task) error {
	for !t.finished() {
		more, err := s.Tick(ctx)
		if err != nil {
			return err
		}
		if !more {
			break
		}
	}
	return t.err
}

func (s *Scheduler) promoteTimers() {
	if s.timers.Len() == 0 {
		return
	}
	now := s.clock.Nanotime()
	for s.timers.Len() > 0 && s.timers[0].deadline <= now {
		e := heap.Pop(&s.timers).(timerEntry)
		s.ready = append(s.ready, e.task)
	}
}

func (s *Scheduler) drainIO(block bool) {
	for s.ioWaiting > 0 {
		if block {
			t := <-s.io
			s.wakeIO(t)
			block = false
			continue
		}
		select {
		case t := <-s.io:
			s.wakeIO(t)
		default:
			return
		}
	}
}

func (s *Scheduler) wakeIO(t *Task) {
	s.ioWaiting--
	s.ready = append(s.ready, t)
}

func (s *Scheduler) idle(ctx context.Context) {
	if s.timers.Len() == 0 {
		if s.ioWaiting > 0 {
			select {
			case t := <-s.io:
				s.wakeIO(t)
			case <-ctx.Done():
			}
		}
		return
	}

	wait := s.timers[0].deadline - s.clock.Nanotime()
	if wait <= 0 {
		return
	}
	if s.ioWaiting > 0 {
		if !s.awaitIO(ctx, wait) {
			return
		}
		// a virtual clock has not moved while we waited in real time
		wait = s.timers[0].deadline - s.clock.Nanotime()
		if wait <= 0 {
			return
		}
	}
	debugf("idle %dns", wait)
	s.clock.Nanosleep(wait)
}

// awaitIO blocks for up to wait nanoseconds of real time for an I/O
// completion. It reports whether the wait ran out first.
func (s *Scheduler) awaitIO(ctx context.Context, wait int64) bool {
	timer := time.NewTimer(time.Duration(wait))
	defer timer.Stop()
	select {
	case t := <-s.io:
		s.wakeIO(t)
		return false
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// switchTo hands the CPU to t and blocks until t parks again.
func (s *Scheduler) switchTo(ctx context.Context, t *Task) {
	if t.hooks.Enter != nil {
		t.hooks.Enter()
	}
	t.state = TaskRunning
	t.reason = ReasonNone
	s.running = t

	if !t.started {
		t.started = true
		taskCtx, span := s.tracer.Start(ctx, "task "+t.name,
			trace.WithAttributes(
				attribute.Int64("task.id", int64(t.id)),
				attribute.String("task.name", t.name),
			))
		t.span = span
		go t.main(WithTask(taskCtx, t))
	} else {
		t.span.AddEvent("resume")
		t.resume <- struct{}{}
	}
	<-t.parked
	s.running = nil

	if t.hooks.Leave != nil {
		t.hooks.Leave()
	}

	if t.finished() {
		s.retire(t)
		return
	}

	t.span.AddEvent("suspend", trace.WithAttributes(attribute.String("reason", t.reason.String())))
	switch t.reason {
	case ReasonTimer:
		s.seq++
		heap.Push(&s.timers, timerEntry{deadline: t.deadline, seq: s.seq, task: t})
	case ReasonIOWait:
		s.ioWaiting++
	default:
		s.ready = append(s.ready, t)
	}
}

func (s *Scheduler) retire(t *Task) {
	delete(s.live, t.id)
	if t.err != nil {
		s.faults = append(s.faults, t.err)
		t.span.RecordError(t.err)
		t.span.SetStatus(codes.Error, t.err.Error())
		Logger().Debug("task faulted",
			zap.Uint64("id", t.id),
			zap.String("name", t.name),
			zap.Error(t.err))
	}
	t.span.End()
	if t.hooks.Exit != nil {
		t.hooks.Exit()
	}
	close(t.done)
}

// main is the task goroutine body.
func (t *Task) main(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			t.err = errors.Panic(errors.PhaseTask, "task "+t.name, r)
			t.state = TaskFaulted
		} else if t.aborted {
			t.err = errors.New(errors.PhaseSchedule, errors.KindNotInitialized).
				Detail("task %q aborted by scheduler shutdown", t.name).
				Build()
			t.state = TaskFaulted
		}
		t.parked <- struct{}{}
	}()

	res, err := t.fn(ctx)
	t.result = res
	if err != nil {
		t.err = err
		t.state = TaskFaulted
		return
	}
	t.state = TaskDone
}

// park suspends the calling task until the scheduler resumes it.
func (t *Task) park(reason Reason) {
	t.state = TaskSuspended
	t.reason = reason
	t.parked <- struct{}{}
	<-t.resume
	if t.aborted {
		runtime.Goexit()
	}
}

// Close aborts every unfinished task. Suspended tasks unwind through
// runtime.Goexit so their deferred cleanup and Exit hooks run.
//
// Called from inside a running task, Close aborts the other tasks and then
// unwinds the caller the same way, so it does not return. The loop retires
// the caller once it has parked.
func (s *Scheduler) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	cur := s.running
	for _, t := range s.Tasks() {
		if t == cur {
			continue
		}
		if t.started {
			t.aborted = true
			t.resume <- struct{}{}
			<-t.parked
			if t.hooks.Leave != nil {
				t.hooks.Leave()
			}
		} else {
			t.state = TaskFaulted
			t.err = errors.New(errors.PhaseSchedule, errors.KindNotInitialized).
				Detail("task %q never ran", t.name).
				Build()
			t.span = trace.SpanFromContext(context.Background())
		}
		s.retire(t)
	}

	// outstanding I/O completions are dropped
	s.ready = nil
	s.timers = nil
	s.ioWaiting = 0

	if cur != nil {
		debugf("close from inside task %d %q", cur.id, cur.name)
		cur.aborted = true
		runtime.Goexit()
	}
	return nil
}
