package engine

import "sync/atomic"

// Clock numbers recorded executions. A journal keeps one sequence across
// every run it holds, so a resumed journal starts the clock at its last seq.
type Clock struct {
	last atomic.Int64
}

// NewClock numbers executions from 1.
func NewClock() *Clock {
	return NewClockAt(0)
}

// NewClockAt numbers executions from last+1.
func NewClockAt(last int64) *Clock {
	c := new(Clock)
	c.last.Store(last)
	return c
}

// Stamp assigns exec the next sequence number.
func (c *Clock) Stamp(exec *Execution) {
	exec.Seq = c.last.Add(1)
}

// Last is the latest number stamped, or the starting point.
func (c *Clock) Last() int64 {
	return c.last.Load()
}
