package core

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors surfaced through task handles. The strings are part of the
// public contract; callers match on them with errors.Is.
var (
	// ErrTaskAborted settles a task whose abort signal fired.
	ErrTaskAborted = errors.New("task aborted")

	// ErrPoolClosing settles tasks rejected or drained because the pool is
	// shutting down.
	ErrPoolClosing = errors.New("pool closing")

	// ErrQueueFull settles a task admitted while the overflow queue is at
	// capacity. Overflow is always loud, never a silent drop.
	ErrQueueFull = errors.New("task queue full")

	// ErrPortClosed is returned by Post on a closed port.
	ErrPortClosed = errors.New("port closed")
)

// Rejection reasons reported to Metrics.RecordTaskRejected.
const (
	rejectedShuttingDown = "pool is shutting down"
	rejectedPreAborted   = "task aborted"
	rejectedQueueFull    = "task queue full"
)

// TimeoutError settles a task whose timeout timer fired before the worker
// replied.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("task timed out after %dms", e.Timeout.Milliseconds())
}

// PathError is produced by the worker-side dispatcher when a request names
// a path with no registered action.
type PathError struct {
	Path string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("path does not exist '%s'", e.Path)
}

// RemoteError carries a failure reported by the worker side: an action that
// returned an error, an action that panicked, or a transport crash. Stack is
// only set when the worker captured one.
type RemoteError struct {
	Message string
	Stack   string
}

func (e *RemoteError) Error() string {
	return e.Message
}

// remoteError lifts a wire ErrorInfo into the error surfaced on the handle.
func remoteError(info *ErrorInfo) *RemoteError {
	info = NormalizeError(info)
	return &RemoteError{Message: info.Message, Stack: info.Stack}
}
