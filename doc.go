// Package workers provides a worker-pool RPC runtime for Go.
//
// This library multiplexes method-like invocations onto a bounded set of
// worker contexts. Each invocation names a dotted path into a nested action
// tree served on the worker side; the pool tracks the task across a frame
// protocol, streams its events back to the caller, and enforces
// cancellation, timeout, idle-eviction, and graceful-shutdown semantics.
//
// # Quick Start
//
// Define an action tree and start a pool of in-process workers:
//
//	pool := workers.NewPool(workers.Actions{
//		"math": workers.Actions{
//			"add": func(c *workers.Call, args ...any) (any, error) {
//				return args[0].(int) + args[1].(int), nil
//			},
//		},
//	}, nil)
//	defer func() { pool.Shutdown().Await(context.Background()) }()
//
//	handle := pool.Get("math").Get("add").Call(2, 3)
//	sum, err := handle.Await(context.Background())
//
// # Key Concepts
//
// Action: a callable registered on the worker side, addressable by a dotted
// path. Actions receive a per-invocation Call context exposing event
// dispatch and the retain/release surface for long-lived tasks.
//
// Handle: the future-like object returned by an invocation. It settles
// exactly once and carries the task's event subscriptions:
//
//	pool.Call("files.scan", dir).
//		On("progress", func(data any) { ... }).
//		Await(ctx)
//
// Retained tasks: an action that calls Retain stays bound to its worker and
// streams events until it calls Release or the pool asks it to stop. This
// is how long-lived, event-emitting work holds a worker across many turns.
//
// # Pool Semantics
//
// Parallelism comes strictly from the worker count, bounded by
// PoolConfig.Limit (default: hardware concurrency minus one). Queued tasks
// dispatch in FIFO order onto a LIFO ready list, so hot workers stay busy
// while the cold tail hits its idle timers. Cancellation is cooperative at
// admission and preemptive during execution: aborting or timing out an
// executing task terminates its worker.
//
// For more details, see https://github.com/esportsplus/workers
package workers
