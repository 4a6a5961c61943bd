package workers

import "github.com/esportsplus/workers/core"

// Re-export commonly used types from core package for convenience.
// This allows users to import only the workers package for most use cases.

// Actions is the nested mapping of named callables served on the worker side
type Actions = core.Actions

// Action is one callable leaf in the action tree
type Action = core.Action

// Call is the per-invocation context handed to actions
type Call = core.Call

// Handle is the future-like object returned by an invocation
type Handle = core.Handle

// EventHandler receives event payloads subscribed via Handle.On
type EventHandler = core.EventHandler

// ScheduleOptions carries the per-task abort signal and timeout
type ScheduleOptions = core.ScheduleOptions

// PoolConfig carries the pool-wide knobs and collaborators
type PoolConfig = core.PoolConfig

// PoolStats is the snapshot returned by Pool.Stats
type PoolStats = core.PoolStats

// WorkerFactory creates the pool-side port of a fresh worker context
type WorkerFactory = core.WorkerFactory

// Port is the uniform transport surface between pool and worker
type Port = core.Port

// Transferable marks values whose ownership moves across the transport
type Transferable = core.Transferable

// Buffer is the raw byte buffer transferable
type Buffer = core.Buffer

// Logger is the structured logging interface used by the pool
type Logger = core.Logger

// Metrics is the observability interface used by the pool
type Metrics = core.Metrics

// Sentinel errors surfaced through task handles
var (
	ErrTaskAborted = core.ErrTaskAborted
	ErrPoolClosing = core.ErrPoolClosing
	ErrQueueFull   = core.ErrQueueFull
)

// Convenience constructors re-exported from core
var (
	NewBuffer         = core.NewBuffer
	DefaultPoolConfig = core.DefaultPoolConfig
	DefaultLimit      = core.DefaultLimit
	GoroutineWorker   = core.GoroutineWorker
	Serve             = core.Serve
	PortPair          = core.PortPair
	FindTransferables = core.FindTransferables
)
