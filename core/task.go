package core

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ScheduleOptions are the per-task knobs accepted at admission.
type ScheduleOptions struct {
	// Context is the task's abort signal. A context already done at
	// admission settles the handle with ErrTaskAborted before any
	// transport traffic; a context cancelled while the task executes
	// terminates its worker.
	Context context.Context

	// Timeout bounds execution. Zero disables. A task that outlives its
	// timeout settles with a TimeoutError; its worker is terminated (its
	// state is unknowable) and replaced immediately.
	Timeout time.Duration
}

// task is one invocation of an action: the correlation identity, the wire
// payload, and the bookkeeping the scheduler tracks across its lifetime.
// A task is in exactly one of: queued, executing, settled.
type task struct {
	uuid string
	path string
	args []any
	opts ScheduleOptions

	handle  *Handle
	started time.Time

	// Guarded by the scheduler mutex.
	aborted  bool
	retained bool
	worker   *workerRecord
	timeout  *time.Timer

	// stopAbort cancels the context watcher; every settlement path calls
	// it so the abort listener fires at most once.
	stopAbort func()
}

func newTask(path string, args []any, opts ScheduleOptions) *task {
	return &task{
		uuid:   uuid.NewString(),
		path:   path,
		args:   args,
		opts:   opts,
		handle: newHandle(),
	}
}

// stopTimers disarms the timeout timer and the abort watcher. Callers hold
// the scheduler mutex.
func (t *task) stopTimers() {
	if t.timeout != nil {
		t.timeout.Stop()
		t.timeout = nil
	}
	if t.stopAbort != nil {
		t.stopAbort()
		t.stopAbort = nil
	}
}
