package scheduler

type timerEntry struct {
	task     *Task
	deadline int64
	seq      uint64
}

// timerQueue orders sleepers by deadline, then by the order they slept.
type timerQueue []timerEntry

func (q timerQueue) Len() int { return len(q) }

func (q timerQueue) Less(i, j int) bool {
	if q[i].deadline != q[j].deadline {
		return q[i].deadline < q[j].deadline
	}
	return q[i].seq < q[j].seq
}

func (q timerQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *timerQueue) Push(x any) { *q = append(*q, x.(timerEntry)) }

func (q *timerQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = timerEntry{}
	*q = old[:n-1]
	return e
}

// NextDeadline returns the earliest pending timer deadline.
func (s *Scheduler) NextDeadline() (int64, bool) {
	if len(s.timers) == 0 {
		return 0, false
	}
	return s.timers[0].deadline, true
}
