package core

// PoolStats represents runtime observability state for a pool.
type PoolStats struct {
	// Workers is the number of live worker contexts.
	Workers int

	// Busy counts workers currently bound to a task, retained tasks
	// included.
	Busy int

	// Idle counts workers on the ready list.
	Idle int

	// Queued counts tasks waiting in the overflow queue.
	Queued int

	// Completed counts tasks settled by a worker reply (result or error)
	// over the pool's lifetime. Tasks that time out, are aborted, lose
	// their worker to a crash, or are rejected at admission are not counted.
	Completed uint64
}
