package interval

import (
	"sync/atomic"
	"time"
)

// Clock is a process-wide simulated wall clock expressed as an integer
// microsecond offset from real time. Reads are lock-free; writes are
// administrative and expected to happen outside normal request paths
// (spec.md §5's shared-resource model for the simulated clock).
type Clock struct {
	offsetMicros int64
}

// NewClock returns a clock with a zero offset (real time).
func NewClock() *Clock {
	return &Clock{}
}

// Now returns the current simulated time: real time plus the clock's
// offset.
func (c *Clock) Now() time.Time {
	offset := atomic.LoadInt64(&c.offsetMicros)
	return time.Now().Add(time.Duration(offset) * time.Microsecond)
}

// SetNow sets the clock so that Now() returns exactly t at the moment of
// the call, by computing and storing the corresponding offset.
func (c *Clock) SetNow(t time.Time) {
	offset := t.Sub(time.Now())
	atomic.StoreInt64(&c.offsetMicros, offset.Microseconds())
}

// SetOffset sets the clock's offset directly, relative to real time.
func (c *Clock) SetOffset(d time.Duration) {
	atomic.StoreInt64(&c.offsetMicros, d.Microseconds())
}

// Offset returns the clock's current offset from real time.
func (c *Clock) Offset() time.Duration {
	return time.Duration(atomic.LoadInt64(&c.offsetMicros)) * time.Microsecond
}

// IsRealTime reports whether the clock's offset is zero.
func (c *Clock) IsRealTime() bool {
	return atomic.LoadInt64(&c.offsetMicros) == 0
}
