package prometheus

import (
	"context"
	"sync"
	"time"

	"github.com/esportsplus/workers/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// PoolSnapshotProvider provides current pool stats snapshots.
type PoolSnapshotProvider interface {
	Stats() core.PoolStats
}

// SnapshotPoller periodically exports pool Stats() snapshots into
// Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	poolsMu sync.RWMutex
	pools   map[string]PoolSnapshotProvider

	poolWorkers   *prom.GaugeVec
	poolBusy      *prom.GaugeVec
	poolIdle      *prom.GaugeVec
	poolQueued    *prom.GaugeVec
	poolCompleted *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	poolWorkers := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "workers",
		Name:      "pool_workers",
		Help:      "Live worker count per pool.",
	}, []string{"pool"})
	poolBusy := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "workers",
		Name:      "pool_busy",
		Help:      "Workers bound to a task per pool.",
	}, []string{"pool"})
	poolIdle := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "workers",
		Name:      "pool_idle",
		Help:      "Workers on the ready list per pool.",
	}, []string{"pool"})
	poolQueued := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "workers",
		Name:      "pool_queued",
		Help:      "Tasks waiting in the overflow queue per pool.",
	}, []string{"pool"})
	poolCompleted := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: "workers",
		Name:      "pool_completed",
		Help:      "Tasks settled by a worker reply over the pool's lifetime.",
	}, []string{"pool"})

	var err error
	if poolWorkers, err = registerCollector(reg, poolWorkers); err != nil {
		return nil, err
	}
	if poolBusy, err = registerCollector(reg, poolBusy); err != nil {
		return nil, err
	}
	if poolIdle, err = registerCollector(reg, poolIdle); err != nil {
		return nil, err
	}
	if poolQueued, err = registerCollector(reg, poolQueued); err != nil {
		return nil, err
	}
	if poolCompleted, err = registerCollector(reg, poolCompleted); err != nil {
		return nil, err
	}

	return &SnapshotPoller{
		interval:      interval,
		pools:         make(map[string]PoolSnapshotProvider),
		poolWorkers:   poolWorkers,
		poolBusy:      poolBusy,
		poolIdle:      poolIdle,
		poolQueued:    poolQueued,
		poolCompleted: poolCompleted,
	}, nil
}

// AddPool adds or replaces a pool snapshot provider by name.
func (p *SnapshotPoller) AddPool(name string, provider PoolSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "pool")
	p.poolsMu.Lock()
	p.pools[name] = provider
	p.poolsMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll()
		}
	}
}

// poll exports one snapshot per registered pool.
func (p *SnapshotPoller) poll() {
	p.poolsMu.RLock()
	defer p.poolsMu.RUnlock()

	for name, provider := range p.pools {
		stats := provider.Stats()
		p.poolWorkers.WithLabelValues(name).Set(float64(stats.Workers))
		p.poolBusy.WithLabelValues(name).Set(float64(stats.Busy))
		p.poolIdle.WithLabelValues(name).Set(float64(stats.Idle))
		p.poolQueued.WithLabelValues(name).Set(float64(stats.Queued))
		p.poolCompleted.WithLabelValues(name).Set(float64(stats.Completed))
	}
}
