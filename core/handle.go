package core

import (
	"context"
	"sync"
)

// EventHandler receives one event payload from an executing task.
type EventHandler func(data any)

// =============================================================================
// Handle: Future-like settlement plus per-task event subscriptions
// =============================================================================

// Handle is the object a caller gets back from scheduling a task: a
// single-settlement future that also carries the task's event
// subscriptions and, for retained tasks, the release hook.
//
// A handle settles exactly once. Events received after settlement are
// dropped, and handlers registered after an event fired are not replayed.
type Handle struct {
	mu        sync.Mutex
	done      chan struct{}
	settled   bool
	value     any
	err       error
	listeners map[string][]EventHandler
	release   func()
	released  bool
}

func newHandle() *Handle {
	return &Handle{done: make(chan struct{})}
}

// On subscribes fn to the named event and returns the handle for chaining.
// Subscribing the same handler twice makes it fire twice, in insertion
// order.
func (h *Handle) On(event string, fn EventHandler) *Handle {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.listeners == nil {
		h.listeners = make(map[string][]EventHandler)
	}
	h.listeners[event] = append(h.listeners[event], fn)
	return h
}

// Done returns a channel closed when the handle settles.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Result returns the settlement. Before the handle settles both returns
// are zero; callers wait on Done or use Await.
func (h *Handle) Result() (any, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.value, h.err
}

// Await blocks until the handle settles or ctx is done.
func (h *Handle) Await(ctx context.Context) (any, error) {
	select {
	case <-h.done:
		return h.Result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release asks the worker to end a retained task. On a task the worker
// never reported retained this is a no-op. Release is idempotent.
func (h *Handle) Release() {
	h.mu.Lock()
	fn := h.release
	fired := h.released
	h.released = true
	h.mu.Unlock()

	if fn != nil && !fired {
		fn()
	}
}

// resolve settles the handle with a value. Reports whether this call won
// the settlement.
func (h *Handle) resolve(value any) bool {
	return h.settle(value, nil)
}

// reject settles the handle with a failure.
func (h *Handle) reject(err error) bool {
	return h.settle(nil, err)
}

func (h *Handle) settle(value any, err error) bool {
	h.mu.Lock()
	if h.settled {
		h.mu.Unlock()
		return false
	}
	h.settled = true
	h.value = value
	h.err = err
	h.listeners = nil
	h.mu.Unlock()

	close(h.done)
	return true
}

// dispatch fans an event out to the current subscribers, synchronously and
// in insertion order. Events landing after settlement are dropped.
func (h *Handle) dispatch(event string, data any) {
	h.mu.Lock()
	if h.settled {
		h.mu.Unlock()
		return
	}
	handlers := make([]EventHandler, len(h.listeners[event]))
	copy(handlers, h.listeners[event])
	h.mu.Unlock()

	for _, fn := range handlers {
		fn(data)
	}
}

// bindRelease wires the release hook once the worker reports the task
// retained. If the caller already asked for release, the hook fires
// immediately.
func (h *Handle) bindRelease(fn func()) {
	h.mu.Lock()
	h.release = fn
	fire := h.released
	h.mu.Unlock()

	if fire {
		fn()
	}
}
