package core

import (
	"context"
	"testing"
	"time"
)

// waitUntil polls cond until it holds or the timeout expires.
func waitUntil(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v: %s", timeout, msg)
}

// awaitHandle settles h within timeout or fails the test.
func awaitHandle(t *testing.T, h *Handle, timeout time.Duration) (any, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	value, err := h.Await(ctx)
	if ctx.Err() != nil {
		t.Fatalf("handle did not settle within %v", timeout)
	}
	return value, err
}

// testActions is the action tree most scheduler tests run against.
func testActions() Actions {
	return Actions{
		"math": Actions{
			"add": func(c *Call, args ...any) (any, error) {
				return args[0].(int) + args[1].(int), nil
			},
		},
		"sleep": func(c *Call, args ...any) (any, error) {
			d := args[0].(time.Duration)
			select {
			case <-time.After(d):
				return d, nil
			case <-c.Context().Done():
				return nil, c.Context().Err()
			}
		},
		"forever": func(c *Call, args ...any) (any, error) {
			<-c.Context().Done()
			return nil, c.Context().Err()
		},
		"fail": func(c *Call, args ...any) (any, error) {
			return nil, &ErrorInfo{Message: "kaboom"}
		},
		"stream": func(c *Call, args ...any) (any, error) {
			n := args[0].(int)
			c.Retain(nil)
			// Give the caller a beat to register its event handlers.
			time.Sleep(20 * time.Millisecond)
			for i := 0; i < n; i++ {
				c.Dispatch("progress", map[string]int{"i": i})
			}
			c.Release(n)
			return nil, nil
		},
		"hold": func(c *Call, args ...any) (any, error) {
			c.Retain(func() any {
				return "released"
			})
			return nil, nil
		},
	}
}

// newTestScheduler builds a scheduler over goroutine workers with logging
// and metrics silenced.
func newTestScheduler(limit int, idleTimeout time.Duration) *Scheduler {
	return NewScheduler(GoroutineWorker(testActions()), &PoolConfig{
		Name:        "test",
		Limit:       limit,
		IdleTimeout: idleTimeout,
	})
}
