package workers

import (
	"github.com/esportsplus/workers/core"
)

// Caller is the path-accumulating accessor returned by Pool.With. Each Get
// extends the accumulated dotted path and returns the same record, so
// chains like pool.Get("ns").Get("method").Call(args...) compose; Call
// submits the accumulated path and clears the accumulator. A Caller that
// never fires Call has no side effect.
//
// A Caller is not safe for concurrent use; build one per call chain.
type Caller struct {
	pool *Pool
	opts core.ScheduleOptions
	path string
}

// Get appends one path segment to the accumulator.
func (c *Caller) Get(name string) *Caller {
	if c.path == "" {
		c.path = name
	} else {
		c.path = c.path + "." + name
	}
	return c
}

// Call submits a task for the accumulated path with the Caller's schedule
// options, then resets the accumulator so the record can be reused.
func (c *Caller) Call(args ...any) *core.Handle {
	path := c.path
	c.path = ""
	return c.pool.sched.Schedule(path, args, c.opts)
}
