package core

import (
	"sync"
	"time"
)

// =============================================================================
// Scheduler: Owns worker lifecycles and the pending-task machinery
// =============================================================================

// Scheduler multiplexes tasks onto a bounded set of workers. It owns the
// ready worker list (LIFO), the overflow queue (FIFO), the pending and
// correlation maps, idle eviction, timeouts, cancellation, crash
// replacement, and graceful shutdown.
//
// All scheduler state is guarded by one mutex; port callbacks, timer
// callbacks, and admission calls all serialise on it and run to
// completion, so no field is ever observed torn. Handles settle after the
// mutex is released, with one exception: a task turned away because the
// overflow queue is full settles inside Schedule while the mutex is held.
type Scheduler struct {
	factory WorkerFactory

	name        string
	limit       int
	idleTimeout time.Duration
	logger      Logger
	metrics     Metrics

	mu        sync.Mutex
	workers   map[*workerRecord]struct{}
	available []*workerRecord
	pending   map[*workerRecord]*task
	tasks     map[string]*task
	queue     *taskQueue
	completed uint64

	shuttingDown   bool
	shutdownDone   bool
	shutdownHandle *Handle
}

// NewScheduler creates a scheduler over the given worker factory. When the
// idle timeout is zero the pool pre-warms to its limit; otherwise workers
// are created lazily on demand.
func NewScheduler(factory WorkerFactory, config *PoolConfig) *Scheduler {
	cfg := config.normalize()
	s := &Scheduler{
		factory:     factory,
		name:        cfg.Name,
		limit:       cfg.Limit,
		idleTimeout: cfg.IdleTimeout,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
		workers:     make(map[*workerRecord]struct{}),
		pending:     make(map[*workerRecord]*task),
		tasks:       make(map[string]*task),
		queue:       newTaskQueue(cfg.QueueCapacity),
	}

	if s.idleTimeout == 0 {
		s.mu.Lock()
		for len(s.workers) < s.limit {
			w, err := s.spawnLocked()
			if err != nil {
				s.logger.Error("pre-warm spawn failed", F("error", err))
				break
			}
			s.parkLocked(w)
		}
		s.mu.Unlock()
	}

	return s
}

// =============================================================================
// Admission
// =============================================================================

// Schedule admits one task and returns its handle. The handle is wired for
// events before this returns; all outcomes, including rejection, flow
// through it. Schedule never blocks on the worker.
func (s *Scheduler) Schedule(path string, args []any, opts ScheduleOptions) *Handle {
	t := newTask(path, args, opts)

	s.mu.Lock()
	if s.shuttingDown {
		s.mu.Unlock()
		s.metrics.RecordTaskRejected(s.name, rejectedShuttingDown)
		t.handle.reject(ErrPoolClosing)
		return t.handle
	}

	if ctx := opts.Context; ctx != nil {
		if ctx.Err() != nil {
			s.mu.Unlock()
			s.metrics.RecordTaskRejected(s.name, rejectedPreAborted)
			t.handle.reject(ErrTaskAborted)
			return t.handle
		}
		t.stopAbort = s.watchAbort(t)
	}

	s.admitLocked(t)
	s.mu.Unlock()
	return t.handle
}

// admitLocked dispatches immediately when a worker slot is free, otherwise
// enqueues in FIFO order. A full queue settles the handle with ErrQueueFull.
func (s *Scheduler) admitLocked(t *task) {
	w := s.popReadyLocked()
	if w == nil {
		if !s.queue.Push(t) {
			t.stopTimers()
			s.metrics.RecordTaskRejected(s.name, rejectedQueueFull)
			t.handle.reject(ErrQueueFull)
			return
		}
		s.metrics.RecordQueueDepth(s.name, s.queue.Len())
		return
	}
	s.startLocked(w, t)
}

// popReadyLocked returns a worker ready to execute: the most recently used
// available worker, or a fresh one when under the limit. LIFO keeps hot
// workers busy and lets the cold tail hit its idle timers.
func (s *Scheduler) popReadyLocked() *workerRecord {
	for n := len(s.available); n > 0; n = len(s.available) {
		w := s.available[n-1]
		s.available[n-1] = nil
		s.available = s.available[:n-1]
		if w.terminated {
			continue
		}
		w.stopIdle()
		return w
	}

	if len(s.workers) < s.limit {
		w, err := s.spawnLocked()
		if err != nil {
			s.logger.Error("worker spawn failed", F("error", err))
			return nil
		}
		return w
	}
	return nil
}

// startLocked binds t to w and sends the request frame.
func (s *Scheduler) startLocked(w *workerRecord, t *task) {
	if t.aborted {
		// Aborted between admission and dispatch: never touches the wire.
		s.parkLocked(w)
		return
	}

	t.worker = w
	t.started = time.Now()
	s.pending[w] = t
	s.tasks[t.uuid] = t

	if t.opts.Timeout > 0 {
		t.timeout = time.AfterFunc(t.opts.Timeout, func() {
			s.timeoutTask(t)
		})
	}

	if err := w.port.Post(RequestFrame(t.uuid, t.path, t.args), FindTransferables(t.args)); err != nil {
		// The port died between recycle and dispatch; treat as a crash.
		// The handle settles off this goroutine because callers still hold
		// the mutex.
		info := NormalizeError(err)
		t.stopTimers()
		t.worker = nil
		delete(s.tasks, t.uuid)
		s.removeWorkerLocked(w)
		s.metrics.RecordWorkerReplaced(s.name, "crash")
		s.metrics.RecordTaskFailed(s.name, "crash")
		s.logger.Warn("dispatch failed", F("pool", s.name), F("error", info.Message))
		go t.handle.reject(remoteError(info))
	}
}

// =============================================================================
// Worker lifecycle
// =============================================================================

func (s *Scheduler) spawnLocked() (*workerRecord, error) {
	port, err := s.factory()
	if err != nil {
		return nil, err
	}

	w := &workerRecord{port: port}
	s.workers[w] = struct{}{}

	port.OnError(func(err error) {
		s.onTransportError(w, err)
	})
	port.OnMessage(func(f Frame) {
		s.onFrame(f)
	})

	s.logger.Debug("worker spawned", F("pool", s.name), F("workers", len(s.workers)))
	return w, nil
}

// parkLocked returns w to the ready list, arming its idle timer when
// eviction is configured.
func (s *Scheduler) parkLocked(w *workerRecord) {
	if w.terminated || s.shuttingDown {
		return
	}
	s.available = append(s.available, w)

	if s.idleTimeout > 0 {
		w.idle = time.AfterFunc(s.idleTimeout, func() {
			s.evictIdle(w)
		})
	}
}

// removeWorkerLocked terminates w and drops it from every structure.
func (s *Scheduler) removeWorkerLocked(w *workerRecord) {
	delete(s.workers, w)
	delete(s.pending, w)
	for i, ready := range s.available {
		if ready == w {
			s.available = append(s.available[:i], s.available[i+1:]...)
			break
		}
	}
	w.terminate()
}

// evictIdle fires on a worker's idle timer. No replacement is created; the
// next admission creates one lazily if needed.
func (s *Scheduler) evictIdle(w *workerRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w.terminated || s.shuttingDown {
		return
	}
	if _, executing := s.pending[w]; executing {
		// Lost the race with a dispatch; the timer was already disarmed.
		return
	}

	s.removeWorkerLocked(w)
	s.metrics.RecordWorkerReplaced(s.name, "idle")
	s.logger.Debug("idle worker evicted", F("pool", s.name), F("workers", len(s.workers)))
}

// =============================================================================
// Reply handling
// =============================================================================

func (s *Scheduler) onFrame(f Frame) {
	s.mu.Lock()
	t, ok := s.tasks[f.UUID]
	if !ok {
		s.mu.Unlock()
		return
	}

	switch f.Kind {
	case FrameEvent:
		h := t.handle
		s.mu.Unlock()
		h.dispatch(f.Event, f.Data)

	case FrameRetained:
		// The worker stays bound to the task until final settlement; only
		// the timeout is off the table now.
		t.retained = true
		if t.timeout != nil {
			t.timeout.Stop()
			t.timeout = nil
		}
		h, port, uuid := t.handle, t.worker.port, t.uuid
		closing := s.shuttingDown
		s.mu.Unlock()
		h.bindRelease(func() {
			_ = port.Post(ReleaseFrame(uuid), nil)
		})
		if closing {
			// Shutdown already swept pending; a task reported retained
			// after the sweep is asked to release right away.
			_ = port.Post(ReleaseFrame(uuid), nil)
		}

	case FrameResult:
		s.settleFrameLocked(t, f.Result, nil)

	case FrameError:
		s.metrics.RecordTaskFailed(s.name, "error")
		s.settleFrameLocked(t, nil, remoteError(f.Err))

	default:
		s.mu.Unlock()
		s.logger.Debug("ignoring unexpected frame", F("kind", f.Kind), F("uuid", f.UUID))
	}
}

// settleFrameLocked finishes a task whose worker replied: the worker is
// recycled, the queue re-driven, and the handle settled after unlock.
// Called with the mutex held; releases it.
func (s *Scheduler) settleFrameLocked(t *task, value any, err error) {
	t.stopTimers()
	w := t.worker
	t.worker = nil
	delete(s.tasks, t.uuid)
	if w != nil {
		delete(s.pending, w)
		s.parkLocked(w)
	}
	s.completed++
	s.metrics.RecordTaskDuration(s.name, t.path, time.Since(t.started))

	finish := s.maybeFinishShutdownLocked()
	s.driveLocked()
	s.mu.Unlock()

	if err != nil {
		t.handle.reject(err)
	} else {
		t.handle.resolve(value)
	}
	if finish != nil {
		finish()
	}
}

// driveLocked feeds queued tasks to ready workers until one side runs dry.
func (s *Scheduler) driveLocked() {
	if s.shuttingDown {
		return
	}
	for s.queue.Len() > 0 {
		w := s.popReadyLocked()
		if w == nil {
			return
		}
		t, ok := s.queue.Pop()
		if !ok {
			s.parkLocked(w)
			return
		}
		s.metrics.RecordQueueDepth(s.name, s.queue.Len())
		s.startLocked(w, t)
	}
}

// =============================================================================
// Failure paths: crash, timeout, abort
// =============================================================================

// onTransportError handles a worker port reporting a failure. The in-flight
// task, if any, settles with the transport's message; the worker is
// discarded and replaced lazily by the next admission.
func (s *Scheduler) onTransportError(w *workerRecord, err error) {
	s.mu.Lock()
	if w.terminated {
		s.mu.Unlock()
		return
	}
	if _, live := s.workers[w]; !live {
		s.mu.Unlock()
		return
	}
	s.failWorkerLocked(w, NormalizeError(err))
}

// failWorkerLocked discards a crashed worker. Called with the mutex held;
// releases it.
func (s *Scheduler) failWorkerLocked(w *workerRecord, info *ErrorInfo) {
	t := s.pending[w]
	if t != nil {
		t.stopTimers()
		t.worker = nil
		delete(s.tasks, t.uuid)
	}
	s.removeWorkerLocked(w)
	s.metrics.RecordWorkerReplaced(s.name, "crash")
	if t != nil {
		s.metrics.RecordTaskFailed(s.name, "crash")
	}
	s.logger.Warn("worker crashed", F("pool", s.name), F("error", info.Message))

	finish := s.maybeFinishShutdownLocked()
	s.driveLocked()
	s.mu.Unlock()

	if t != nil {
		t.handle.reject(remoteError(info))
	}
	if finish != nil {
		finish()
	}
}

// timeoutTask fires on a task's timeout timer. The worker's state is
// unknowable, so it is terminated; a replacement is created immediately to
// preserve pool capacity.
func (s *Scheduler) timeoutTask(t *task) {
	s.mu.Lock()
	if _, live := s.tasks[t.uuid]; !live || t.retained {
		s.mu.Unlock()
		return
	}

	t.stopTimers()
	w := t.worker
	t.worker = nil
	delete(s.tasks, t.uuid)
	if w != nil {
		s.removeWorkerLocked(w)
	}
	s.metrics.RecordWorkerReplaced(s.name, "timeout")
	s.metrics.RecordTaskFailed(s.name, "timeout")

	if !s.shuttingDown && len(s.workers) < s.limit {
		if replacement, err := s.spawnLocked(); err == nil {
			s.parkLocked(replacement)
		} else {
			s.logger.Error("replacement spawn failed", F("error", err))
		}
	}

	finish := s.maybeFinishShutdownLocked()
	s.driveLocked()
	timeout := t.opts.Timeout
	s.mu.Unlock()

	t.handle.reject(&TimeoutError{Timeout: timeout})
	if finish != nil {
		finish()
	}
}

// watchAbort observes the task's context. The watcher stops on settlement,
// so the abort path runs at most once no matter how the context ends.
func (s *Scheduler) watchAbort(t *task) func() {
	ctx := t.opts.Context
	stop := make(chan struct{})
	var once sync.Once

	go func() {
		select {
		case <-ctx.Done():
			s.abortTask(t)
		case <-stop:
		}
	}()

	return func() {
		once.Do(func() { close(stop) })
	}
}

// abortTask handles an external abort. Queued tasks settle without touching
// a worker; executing tasks terminate theirs, and a replacement preserves
// capacity.
func (s *Scheduler) abortTask(t *task) {
	s.mu.Lock()
	t.aborted = true

	if t.worker == nil {
		// Queued or never dispatched: the queue skips aborted entries.
		t.stopTimers()
		s.mu.Unlock()
		t.handle.reject(ErrTaskAborted)
		return
	}

	t.stopTimers()
	w := t.worker
	t.worker = nil
	delete(s.tasks, t.uuid)
	s.removeWorkerLocked(w)
	s.metrics.RecordWorkerReplaced(s.name, "abort")
	s.metrics.RecordTaskFailed(s.name, "aborted")

	if !s.shuttingDown && len(s.workers) < s.limit {
		if replacement, err := s.spawnLocked(); err == nil {
			s.parkLocked(replacement)
		} else {
			s.logger.Error("replacement spawn failed", F("error", err))
		}
	}

	finish := s.maybeFinishShutdownLocked()
	s.driveLocked()
	s.mu.Unlock()

	t.handle.reject(ErrTaskAborted)
	if finish != nil {
		finish()
	}
}

// =============================================================================
// Stats and shutdown
// =============================================================================

// Stats returns a point-in-time snapshot of the pool.
func (s *Scheduler) Stats() PoolStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return PoolStats{
		Workers:   len(s.workers),
		Busy:      len(s.pending),
		Idle:      len(s.available),
		Queued:    s.queue.Len(),
		Completed: s.completed,
	}
}

// Shutdown stops admissions, drains the queue with ErrPoolClosing, asks
// retained tasks to release, and lets executing tasks finish. The returned
// handle settles once the last pending task does and every worker is
// terminated. Shutdown is idempotent; later calls return the same handle.
func (s *Scheduler) Shutdown() *Handle {
	s.mu.Lock()
	if s.shutdownHandle != nil {
		h := s.shutdownHandle
		s.mu.Unlock()
		return h
	}

	s.shuttingDown = true
	h := newHandle()
	s.shutdownHandle = h

	for _, w := range s.available {
		w.stopIdle()
	}

	dropped := s.queue.Drain()
	for _, t := range dropped {
		t.stopTimers()
	}

	for w, t := range s.pending {
		if t.retained {
			_ = w.port.Post(ReleaseFrame(t.uuid), nil)
		}
	}

	finish := s.maybeFinishShutdownLocked()
	s.mu.Unlock()

	for _, t := range dropped {
		s.metrics.RecordTaskRejected(s.name, rejectedShuttingDown)
		t.handle.reject(ErrPoolClosing)
	}
	if finish != nil {
		finish()
	}
	return h
}

// maybeFinishShutdownLocked terminates the pool once shutdown is pending
// and the last task settled. It returns the completion step to run after
// the mutex is released, or nil.
func (s *Scheduler) maybeFinishShutdownLocked() func() {
	if !s.shuttingDown || s.shutdownDone || len(s.pending) > 0 {
		return nil
	}
	s.shutdownDone = true

	for w := range s.workers {
		w.terminate()
	}
	s.workers = make(map[*workerRecord]struct{})
	s.available = nil
	s.pending = make(map[*workerRecord]*task)
	s.tasks = make(map[string]*task)

	h := s.shutdownHandle
	s.logger.Info("pool shut down", F("pool", s.name), F("completed", s.completed))
	return func() {
		h.resolve(nil)
	}
}
