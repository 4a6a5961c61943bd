package core

import (
	"context"
	"runtime/debug"
	"sync"
)

// =============================================================================
// Actions: The user-supplied nested action tree
// =============================================================================

// Action is a callable registered on the worker side. The Call receiver
// exposes event dispatch and the retain/release surface; args arrive
// exactly as the caller passed them.
type Action func(c *Call, args ...any) (any, error)

// Actions is a nested mapping of named callables. Values are either Action
// functions or nested Actions maps; anything else is ignored during
// registration. Nesting is arbitrary depth.
type Actions map[string]any

// flattenActions turns the nested tree into a dotted path → callable table.
// Only function leaves register; collisions are last-write-wins.
func flattenActions(tree Actions) map[string]Action {
	table := make(map[string]Action)
	flattenInto(table, "", tree)
	return table
}

func flattenInto(table map[string]Action, prefix string, tree Actions) {
	for name, value := range tree {
		path := name
		if prefix != "" {
			path = prefix + "." + name
		}

		switch leaf := value.(type) {
		case Action:
			table[path] = leaf
		case func(c *Call, args ...any) (any, error):
			table[path] = leaf
		case Actions:
			flattenInto(table, path, leaf)
		case map[string]any:
			flattenInto(table, path, leaf)
		default:
			// Non-function, non-mapping values carry no behavior.
		}
	}
}

// =============================================================================
// Call: Per-invocation context passed to actions
// =============================================================================

// Call is the per-invocation receiver handed to an action. It is built
// fresh for every request and exposes the invocation's uuid-correlated
// surface back to the pool: event dispatch, retain, and release.
type Call struct {
	uuid string
	d    *Dispatcher

	mu       sync.Mutex
	retained bool
	released bool
	cleanup  func() any
}

// Context is done once the worker's port closes; long actions watch it to
// stop cooperatively.
func (c *Call) Context() context.Context {
	return c.d.ctx
}

// Dispatch emits a named event back to the task handle, with transferables
// discovered from data. Events carry no lifecycle meaning.
func (c *Call) Dispatch(event string, data any) {
	c.d.post(EventFrame(c.uuid, event, data), FindTransferables(data))
}

// Retain marks the invocation as long-lived. The action's return value is
// ignored; instead the dispatcher acknowledges with a retained frame once
// the action's initial phase completes and keeps the invocation open until
// Release is called or a release frame arrives. cleanup, if non-nil, runs
// when the pool asks for release; its return value settles the task.
func (c *Call) Retain(cleanup func() any) {
	c.mu.Lock()
	c.retained = true
	c.cleanup = cleanup
	c.mu.Unlock()

	c.d.register(c)
}

// Release settles a retained invocation early with result. Subsequent
// releases are no-ops.
func (c *Call) Release(result any) {
	c.mu.Lock()
	if c.released {
		c.mu.Unlock()
		return
	}
	c.released = true
	c.mu.Unlock()

	c.d.unregister(c.uuid)
	c.d.post(ResultFrame(c.uuid, result), FindTransferables(result))
}

func (c *Call) isRetained() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.retained
}

func (c *Call) isReleased() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.released
}

// takeCleanup detaches the cleanup hook so it runs at most once.
func (c *Call) takeCleanup() func() any {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn := c.cleanup
	c.cleanup = nil
	c.released = true
	return fn
}

// =============================================================================
// Dispatcher: The worker-side runtime
// =============================================================================

// DispatcherConfig carries the worker-side collaborators. Nil fields fall
// back to defaults.
type DispatcherConfig struct {
	Logger       Logger
	PanicHandler PanicHandler
}

// Dispatcher is the worker-side runtime: it resolves request paths over
// the flattened action table, invokes actions, and emits response, event,
// and retained frames. It holds no scheduling state; the pool guarantees
// one request at a time per worker, so the only concurrent inbound frame
// is a release for an already-retained invocation.
type Dispatcher struct {
	actions map[string]Action
	port    Port

	ctx    context.Context
	cancel context.CancelFunc

	logger       Logger
	panicHandler PanicHandler

	mu       sync.Mutex
	retained map[string]*Call
}

// Serve binds a dispatcher for the action tree to port and starts serving
// request frames. This is the worker side's entry point.
func Serve(port Port, tree Actions) *Dispatcher {
	return ServeWithConfig(port, tree, nil)
}

// ServeWithConfig is Serve with explicit worker-side collaborators.
func ServeWithConfig(port Port, tree Actions, config *DispatcherConfig) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		actions:  flattenActions(tree),
		port:     port,
		ctx:      ctx,
		cancel:   cancel,
		retained: make(map[string]*Call),
	}

	if config != nil {
		d.logger = config.Logger
		d.panicHandler = config.PanicHandler
	}
	if d.logger == nil {
		d.logger = NewNoOpLogger()
	}
	if d.panicHandler == nil {
		d.panicHandler = &DefaultPanicHandler{}
	}

	port.OnError(func(err error) {
		d.cancel()
	})
	port.OnMessage(d.handle)
	return d
}

// Close stops the dispatcher and closes its port.
func (d *Dispatcher) Close() error {
	d.cancel()
	return d.port.Close()
}

func (d *Dispatcher) handle(f Frame) {
	switch f.Kind {
	case FrameRequest:
		go d.invoke(f)
	case FrameRelease:
		go d.release(f.UUID)
	default:
		d.logger.Debug("ignoring unexpected frame", F("kind", f.Kind), F("uuid", f.UUID))
	}
}

// invoke runs one request end to end. Every code path replies with exactly
// one settlement frame unless the invocation retained itself.
func (d *Dispatcher) invoke(f Frame) {
	action, ok := d.actions[f.Path]
	if !ok {
		d.post(ErrorFrame(f.UUID, &ErrorInfo{Message: (&PathError{Path: f.Path}).Error()}), nil)
		return
	}

	call := &Call{uuid: f.UUID, d: d}

	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			d.panicHandler.HandlePanic(d.ctx, f.Path, r, stack)
			d.unregister(f.UUID)
			info := NormalizeError(r)
			info.Stack = string(stack)
			d.post(ErrorFrame(f.UUID, info), nil)
		}
	}()

	result, err := action(call, f.Args...)
	switch {
	case err != nil:
		d.unregister(f.UUID)
		d.post(ErrorFrame(f.UUID, NormalizeError(err)), nil)
	case call.isRetained():
		// Initial phase complete. If the action already released, the
		// result frame settled the task and an ack would be stale.
		if !call.isReleased() {
			d.post(RetainedFrame(f.UUID), nil)
		}
	default:
		d.post(ResultFrame(f.UUID, result), FindTransferables(result))
	}
}

// release ends a retained invocation at the pool's request: the registered
// cleanup runs and its return value settles the task.
func (d *Dispatcher) release(uuid string) {
	d.mu.Lock()
	call := d.retained[uuid]
	delete(d.retained, uuid)
	d.mu.Unlock()

	if call == nil {
		// Nothing retained under this uuid; settle with no value.
		d.post(ResultFrame(uuid, nil), nil)
		return
	}

	cleanup := call.takeCleanup()
	if cleanup == nil {
		d.post(ResultFrame(uuid, nil), nil)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			d.panicHandler.HandlePanic(d.ctx, "release", r, stack)
			info := NormalizeError(r)
			info.Stack = string(stack)
			d.post(ErrorFrame(uuid, info), nil)
		}
	}()

	result := cleanup()
	d.post(ResultFrame(uuid, result), FindTransferables(result))
}

func (d *Dispatcher) register(c *Call) {
	d.mu.Lock()
	d.retained[c.uuid] = c
	d.mu.Unlock()
}

func (d *Dispatcher) unregister(uuid string) {
	d.mu.Lock()
	delete(d.retained, uuid)
	d.mu.Unlock()
}

func (d *Dispatcher) post(f Frame, transfers []Transferable) {
	if err := d.port.Post(f, transfers); err != nil {
		d.logger.Debug("dropping frame on closed port", F("uuid", f.UUID))
	}
}
