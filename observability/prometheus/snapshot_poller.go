package prometheus

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/Swind/go-task-manager/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// PoolSnapshotProvider provides current pool stats snapshots. *taskmanager.TaskManager
// and *core.TaskScheduler both satisfy it.
type PoolSnapshotProvider interface {
	Stats() core.PoolStats
}

// WorkerSnapshotProvider provides per-worker snapshots. Pools that also implement it get
// worker gauges.
type WorkerSnapshotProvider interface {
	Workers() []core.WorkerStats
}

var workerStates = []core.WorkerState{
	core.WorkerIdle,
	core.WorkerRunning,
	core.WorkerDraining,
	core.WorkerStopped,
}

var queuedPriorities = []core.Priority{
	core.PriorityHigh,
	core.PriorityNormal,
	core.PriorityLow,
	core.PriorityInternal,
}

// SnapshotPoller periodically exports pool and worker Stats() snapshots into Prometheus
// gauges.
type SnapshotPoller struct {
	interval time.Duration

	poolsMu sync.RWMutex
	pools   map[string]PoolSnapshotProvider

	poolQueued    *prom.GaugeVec
	poolActive    *prom.GaugeVec
	poolDelayed   *prom.GaugeVec
	poolWorkers   *prom.GaugeVec
	poolRunning   *prom.GaugeVec
	poolExecuted  *prom.GaugeVec
	poolFailed    *prom.GaugeVec
	poolDiscarded *prom.GaugeVec

	workerState    *prom.GaugeVec
	workerExecuted *prom.GaugeVec
	workerFailed   *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(namespace string, reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	namespace = normalizeLabel(namespace, DefaultNamespace)
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	gauge := func(name, help string, labels ...string) *prom.GaugeVec {
		return prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, labels)
	}

	p := &SnapshotPoller{
		interval: interval,
		pools:    make(map[string]PoolSnapshotProvider),

		poolQueued:    gauge("pool_queued", "Queued tasks per pool and priority.", "pool", "priority"),
		poolActive:    gauge("pool_active", "Active tasks per pool.", "pool"),
		poolDelayed:   gauge("pool_delayed", "Delayed tasks per pool.", "pool"),
		poolWorkers:   gauge("pool_workers", "Worker count per pool.", "pool"),
		poolRunning:   gauge("pool_running", "Pool running state (1=running, 0=stopped).", "pool"),
		poolExecuted:  gauge("pool_executed_total", "Pool executed task count snapshot.", "pool"),
		poolFailed:    gauge("pool_failed_total", "Pool failed task count snapshot.", "pool"),
		poolDiscarded: gauge("pool_discarded_total", "Pool discarded task count snapshot.", "pool"),

		workerState:    gauge("worker_state", "Worker lifecycle state (1 for the current state).", "pool", "worker", "state"),
		workerExecuted: gauge("worker_executed_total", "Worker executed task count snapshot.", "pool", "worker"),
		workerFailed:   gauge("worker_failed_total", "Worker failed task count snapshot.", "pool", "worker"),
	}

	for _, g := range []**prom.GaugeVec{
		&p.poolQueued, &p.poolActive, &p.poolDelayed, &p.poolWorkers, &p.poolRunning,
		&p.poolExecuted, &p.poolFailed, &p.poolDiscarded,
		&p.workerState, &p.workerExecuted, &p.workerFailed,
	} {
		registered, err := registerCollector(reg, *g)
		if err != nil {
			return nil, err
		}
		*g = registered
	}

	return p, nil
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

// RemovePool stops exporting the named pool and deletes its series.
func (p *SnapshotPoller) RemovePool(name string) {
	if p == nil {
		return
	}
	name = normalizeLabel(name, "pool")
	p.poolsMu.Lock()
	delete(p.pools, name)
	p.poolsMu.Unlock()

	labels := prom.Labels{"pool": name}
	for _, g := range []*prom.GaugeVec{
		p.poolQueued, p.poolActive, p.poolDelayed, p.poolWorkers, p.poolRunning,
		p.poolExecuted, p.poolFailed, p.poolDiscarded,
		p.workerState, p.workerExecuted, p.workerFailed,
	} {
		g.DeletePartialMatch(labels)
	}
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

	go p.loop(pollCtx, p.done)
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

func (p *SnapshotPoller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.CollectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.CollectOnce()
		}
	}
}

// CollectOnce takes one snapshot of every pool.
func (p *SnapshotPoller) CollectOnce() {
	p.poolsMu.RLock()
	defer p.poolsMu.RUnlock()

	for name, provider := range p.pools {
		stats := provider.Stats()
		for _, prio := range queuedPriorities {
			p.poolQueued.WithLabelValues(name, prio.String()).Set(float64(stats.Queued[prio]))
		}
		p.poolActive.WithLabelValues(name).Set(float64(stats.Active))
		p.poolDelayed.WithLabelValues(name).Set(float64(stats.Delayed))
		p.poolWorkers.WithLabelValues(name).Set(float64(stats.Workers))
		p.poolExecuted.WithLabelValues(name).Set(float64(stats.Executed))
		p.poolFailed.WithLabelValues(name).Set(float64(stats.Failed))
		p.poolDiscarded.WithLabelValues(name).Set(float64(stats.Discarded))
		if stats.Running {
			p.poolRunning.WithLabelValues(name).Set(1)
		} else {
			p.poolRunning.WithLabelValues(name).Set(0)
		}

		if wp, ok := provider.(WorkerSnapshotProvider); ok {
			p.collectWorkers(name, wp.Workers())
		}
	}
}

func (p *SnapshotPoller) collectWorkers(pool string, workers []core.WorkerStats) {
	for _, w := range workers {
		id := strconv.Itoa(w.ID)
		for _, state := range workerStates {
			v := 0.0
			if w.State == state {
				v = 1
			}
			p.workerState.WithLabelValues(pool, id, state.String()).Set(v)
		}
		p.workerExecuted.WithLabelValues(pool, id).Set(float64(w.Executed))
		p.workerFailed.WithLabelValues(pool, id).Set(float64(w.Failed))
	}
}
