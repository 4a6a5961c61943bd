package workers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func demoActions() Actions {
	return Actions{
		"math": Actions{
			"add": func(c *Call, args ...any) (any, error) {
				return args[0].(int) + args[1].(int), nil
			},
			"mul": func(c *Call, args ...any) (any, error) {
				return args[0].(int) * args[1].(int), nil
			},
		},
		"echo": func(c *Call, args ...any) (any, error) {
			return args[0], nil
		},
	}
}

func TestPool_CallByPath(t *testing.T) {
	pool := NewPool(demoActions(), &PoolConfig{Name: "facade", Limit: 2})
	defer func() { pool.Shutdown().Await(context.Background()) }()

	value, err := pool.Call("math.add", 2, 3).Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, value)
}

func TestCaller_PathAccumulation(t *testing.T) {
	pool := NewPool(demoActions(), &PoolConfig{Name: "facade", Limit: 2})
	defer func() { pool.Shutdown().Await(context.Background()) }()

	value, err := pool.Get("math").Get("add").Call(4, 5).Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 9, value)

	// Call clears the accumulator, so the same record starts a fresh chain.
	caller := pool.With(ScheduleOptions{})
	_, err = caller.Get("math").Get("mul").Call(3, 3).Await(context.Background())
	require.NoError(t, err)

	value, err = caller.Get("echo").Call("fresh").Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", value)
}

func TestCaller_ScheduleOptionsApply(t *testing.T) {
	actions := Actions{
		"stall": func(c *Call, args ...any) (any, error) {
			<-c.Context().Done()
			return nil, c.Context().Err()
		},
	}
	pool := NewPool(actions, &PoolConfig{Name: "facade", Limit: 1})
	defer func() { pool.Shutdown().Await(context.Background()) }()

	_, err := pool.With(ScheduleOptions{Timeout: 15 * time.Millisecond}).
		Get("stall").Call().Await(context.Background())
	require.Error(t, err)
	assert.Equal(t, "task timed out after 15ms", err.Error())
}

func TestPool_StatsAndShutdown(t *testing.T) {
	pool := NewPool(demoActions(), &PoolConfig{Name: "facade", Limit: 1})

	_, err := pool.Call("echo", "x").Await(context.Background())
	require.NoError(t, err)

	stats := pool.Stats()
	assert.Equal(t, uint64(1), stats.Completed)
	assert.Equal(t, 1, stats.Workers)

	_, err = pool.Shutdown().Await(context.Background())
	require.NoError(t, err)

	stats = pool.Stats()
	assert.Zero(t, stats.Workers)
	assert.Zero(t, stats.Idle)

	_, err = pool.Call("echo", "late").Await(context.Background())
	assert.ErrorIs(t, err, ErrPoolClosing)
}

func TestPool_EventSubscriptionChaining(t *testing.T) {
	actions := Actions{
		"feed": func(c *Call, args ...any) (any, error) {
			c.Retain(nil)
			time.Sleep(20 * time.Millisecond)
			c.Dispatch("item", "a")
			c.Dispatch("item", "b")
			c.Release(2)
			return nil, nil
		},
	}
	pool := NewPool(actions, &PoolConfig{Name: "facade", Limit: 1})
	defer func() { pool.Shutdown().Await(context.Background()) }()

	var items []string
	handle := pool.Call("feed").On("item", func(data any) {
		items = append(items, data.(string))
	})

	value, err := handle.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, value)
	assert.Equal(t, []string{"a", "b"}, items)
}
