package prometheus

import (
	"context"
	"testing"
	"time"

	"github.com/esportsplus/workers/core"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type staticPool struct {
	stats core.PoolStats
}

func (p *staticPool) Stats() core.PoolStats {
	return p.stats
}

func TestSnapshotPoller_ExportsPoolGauges(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewSnapshotPoller failed: %v", err)
	}

	poller.AddPool("pool-a", &staticPool{stats: core.PoolStats{
		Workers:   3,
		Busy:      2,
		Idle:      1,
		Queued:    4,
		Completed: 17,
	}})

	poller.Start(context.Background())
	defer poller.Stop()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if testutil.ToFloat64(poller.poolWorkers.WithLabelValues("pool-a")) == 3 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if got := testutil.ToFloat64(poller.poolWorkers.WithLabelValues("pool-a")); got != 3 {
		t.Fatalf("pool workers = %v, want 3", got)
	}
	if got := testutil.ToFloat64(poller.poolBusy.WithLabelValues("pool-a")); got != 2 {
		t.Fatalf("pool busy = %v, want 2", got)
	}
	if got := testutil.ToFloat64(poller.poolIdle.WithLabelValues("pool-a")); got != 1 {
		t.Fatalf("pool idle = %v, want 1", got)
	}
	if got := testutil.ToFloat64(poller.poolQueued.WithLabelValues("pool-a")); got != 4 {
		t.Fatalf("pool queued = %v, want 4", got)
	}
	if got := testutil.ToFloat64(poller.poolCompleted.WithLabelValues("pool-a")); got != 17 {
		t.Fatalf("pool completed = %v, want 17", got)
	}
}

func TestSnapshotPoller_StartStopIdempotent(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewSnapshotPoller failed: %v", err)
	}

	poller.Start(context.Background())
	poller.Start(context.Background())
	poller.Stop()
	poller.Stop()
}
