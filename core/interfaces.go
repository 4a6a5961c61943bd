package core

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// PanicHandler: Interface for handling action panics
// =============================================================================

// PanicHandler is called when a worker-side action panics during execution.
// The panic is always converted to an error frame as well; the handler is
// for logging and recovery strategies on top of that.
//
// Implementations should be thread-safe as they may be called concurrently.
type PanicHandler interface {
	// HandlePanic is called when an action panics.
	//
	// Parameters:
	// - ctx: The worker context of the panicked invocation
	// - path: The dotted path of the action that panicked, or "release"
	//   when a retained invocation's cleanup hook panicked
	// - panicInfo: The panic value recovered from the action
	// - stackTrace: The stack trace at the time of panic
	HandlePanic(ctx context.Context, path string, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler provides a basic panic handler that logs to stdout.
type DefaultPanicHandler struct{}

// HandlePanic prints panic information to stdout.
func (h *DefaultPanicHandler) HandlePanic(ctx context.Context, path string, panicInfo any, stackTrace []byte) {
	fmt.Printf("[Action %s] Panic: %v\nStack trace:\n%s", path, panicInfo, stackTrace)
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting pool execution metrics.
// Implementations can send metrics to monitoring systems (Prometheus, StatsD, etc.).
//
// Methods should be non-blocking and fast to avoid impacting scheduling.
type Metrics interface {
	// RecordTaskDuration records how long a settled task executed for.
	//
	// Parameters:
	// - poolName: The name of the pool
	// - path: The dotted action path the task invoked
	// - duration: Wall time between dispatch and settlement
	RecordTaskDuration(poolName string, path string, duration time.Duration)

	// RecordTaskFailed records a task settled as a failure.
	//
	// Parameters:
	// - poolName: The name of the pool
	// - reason: Failure class ("error", "timeout", "aborted", "crash")
	RecordTaskFailed(poolName string, reason string)

	// RecordTaskRejected records a task turned away at admission
	// (shutdown, pre-aborted signal, or a full queue).
	RecordTaskRejected(poolName string, reason string)

	// RecordQueueDepth records the current overflow queue depth.
	RecordQueueDepth(poolName string, depth int)

	// RecordWorkerReplaced records a worker terminated outside the normal
	// recycle path.
	//
	// Parameters:
	// - poolName: The name of the pool
	// - cause: Why the worker went away ("timeout", "abort", "crash", "idle")
	RecordWorkerReplaced(poolName string, cause string)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

// RecordTaskDuration is a no-op.
func (m *NilMetrics) RecordTaskDuration(poolName string, path string, duration time.Duration) {}

// RecordTaskFailed is a no-op.
func (m *NilMetrics) RecordTaskFailed(poolName string, reason string) {}

// RecordTaskRejected is a no-op.
func (m *NilMetrics) RecordTaskRejected(poolName string, reason string) {}

// RecordQueueDepth is a no-op.
func (m *NilMetrics) RecordQueueDepth(poolName string, depth int) {}

// RecordWorkerReplaced is a no-op.
func (m *NilMetrics) RecordWorkerReplaced(poolName string, cause string) {}
