package platform

import (
	"sync"
	"time"

	"github.com/tetratelabs/wazero/sys"
)

// Clock is the host time source seen by the guest. It is assembled from
// the same function types wazero uses for its module clocks.
type Clock struct {
	walltime  sys.Walltime
	nanotime  sys.Nanotime
	nanosleep sys.Nanosleep
}

// NewClock builds a clock from its parts.
func NewClock(walltime sys.Walltime, nanotime sys.Nanotime, nanosleep sys.Nanosleep) *Clock {
	return &Clock{walltime: walltime, nanotime: nanotime, nanosleep: nanosleep}
}

// NewSystemClock returns a clock backed by the host.
func NewSystemClock() *Clock {
	base := time.Now()
	return NewClock(
		func() (int64, int32) {
			t := time.Now()
			return t.Unix(), int32(t.Nanosecond())
		},
		func() int64 { return time.Since(base).Nanoseconds() },
		func(ns int64) { time.Sleep(time.Duration(ns)) },
	)
}

// Nanotime returns monotonic nanoseconds since an arbitrary origin.
func (c *Clock) Nanotime() int64 { return c.nanotime() }

// Nanosleep blocks for ns nanoseconds.
func (c *Clock) Nanosleep(ns int64) {
	if ns > 0 {
		c.nanosleep(ns)
	}
}

// Walltime returns the wall clock as seconds and nanoseconds since the epoch.
func (c *Clock) Walltime() (sec int64, nsec int32) { return c.walltime() }

// Now returns milliseconds since the Unix epoch.
func (c *Clock) Now() uint64 {
	sec, nsec := c.walltime()
	return uint64(sec)*1000 + uint64(nsec)/1_000_000
}

// FakeEpoch is the wall time a VirtualClock starts at, midnight UTC
// 2022-01-01.
const FakeEpoch = int64(1640995200000000000)

// VirtualClock is a Clock that only moves when slept on or advanced.
type VirtualClock struct {
	*Clock
	mu  sync.Mutex
	now int64
}

// NewVirtualClock returns a clock stopped at FakeEpoch.
func NewVirtualClock() *VirtualClock {
	v := &VirtualClock{}
	v.Clock = NewClock(v.walltime, v.nanotimeNow, v.Advance)
	return v
}

// Advance moves the clock forward by ns nanoseconds.
func (v *VirtualClock) Advance(ns int64) {
	if ns <= 0 {
		return
	}
	v.mu.Lock()
	v.now += ns
	v.mu.Unlock()
}

// Elapsed returns how far the clock has moved since creation.
func (v *VirtualClock) Elapsed() time.Duration {
	return time.Duration(v.nanotimeNow())
}

func (v *VirtualClock) nanotimeNow() int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.now
}

func (v *VirtualClock) walltime() (int64, int32) {
	t := FakeEpoch + v.nanotimeNow()
	return t / 1e9, int32(t % 1e9)
}
