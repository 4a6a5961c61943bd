package workers

import (
	"github.com/esportsplus/workers/core"
)

// Pool is the callable façade over the scheduler. Invocations are built by
// chaining Get calls into a dotted path and firing Call, or by calling a
// path directly; either way the returned handle is wired for events before
// the worker ever replies.
type Pool struct {
	sched *core.Scheduler
}

// New creates a pool over an arbitrary worker factory. The factory is
// invoked whenever the scheduler needs a fresh worker, up to the
// configured limit.
func New(factory core.WorkerFactory, config *core.PoolConfig) *Pool {
	return &Pool{sched: core.NewScheduler(factory, config)}
}

// NewPool creates a pool of in-process goroutine workers serving the given
// action tree. This is the common construction path.
func NewPool(tree core.Actions, config *core.PoolConfig) *Pool {
	return New(core.GoroutineWorker(tree), config)
}

// With returns a Caller carrying per-task schedule options. Property-style
// chains on the Caller accumulate the action path:
//
//	pool.With(workers.ScheduleOptions{Timeout: time.Second}).
//		Get("image").Get("resize").Call(src, 128)
func (p *Pool) With(opts core.ScheduleOptions) *Caller {
	return &Caller{pool: p, opts: opts}
}

// Get starts a path chain with default schedule options.
func (p *Pool) Get(name string) *Caller {
	return p.With(core.ScheduleOptions{}).Get(name)
}

// Call submits a task for the given dotted path. The handle returns
// promptly, before the worker replies.
func (p *Pool) Call(path string, args ...any) *core.Handle {
	return p.sched.Schedule(path, args, core.ScheduleOptions{})
}

// Stats returns a point-in-time snapshot of the pool.
func (p *Pool) Stats() core.PoolStats {
	return p.sched.Stats()
}

// Shutdown stops admissions and drains the pool. The returned handle
// settles once every executing and retained task has finished and all
// workers are terminated.
func (p *Pool) Shutdown() *core.Handle {
	return p.sched.Shutdown()
}
