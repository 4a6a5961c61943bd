package core

import (
	"time"
)

// WorkerFactory creates the pool-side port of a fresh worker context. The
// concrete transport behind the port is the caller's business: a goroutine
// in this process, an OS process, anything that speaks the frame protocol.
type WorkerFactory func() (Port, error)

// GoroutineWorker returns a factory spawning in-process workers: each
// worker is a dispatcher serving the action tree over one end of a channel
// pair, and the factory hands the pool the other end.
func GoroutineWorker(tree Actions) WorkerFactory {
	return GoroutineWorkerWithConfig(tree, nil)
}

// GoroutineWorkerWithConfig is GoroutineWorker with explicit worker-side
// collaborators.
func GoroutineWorkerWithConfig(tree Actions, config *DispatcherConfig) WorkerFactory {
	return func() (Port, error) {
		local, remote := PortPair()
		ServeWithConfig(remote, tree, config)
		return local, nil
	}
}

// workerRecord is the scheduler's view of one live worker: its port and
// lifetime state. At most one task is bound to a worker at any time.
type workerRecord struct {
	port Port

	// Guarded by the scheduler mutex.
	idle       *time.Timer
	terminated bool
}

// stopIdle disarms the idle eviction timer. Callers hold the scheduler
// mutex.
func (w *workerRecord) stopIdle() {
	if w.idle != nil {
		w.idle.Stop()
		w.idle = nil
	}
}

// terminate closes the worker's port. The dispatcher behind it observes
// the closure and cancels its context; a non-cooperative action keeps its
// goroutine until it returns, but the pool no longer owns it.
func (w *workerRecord) terminate() {
	if w.terminated {
		return
	}
	w.terminated = true
	w.stopIdle()
	_ = w.port.Close()
}
