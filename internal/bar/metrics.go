package bar

import (
	"expvar"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics counts what the bar does. It uses Go's expvar package for
// exposition, served under /debug/vars by --debug-addr.
//
// Thread-safe for concurrent use.
type Metrics struct {
	renders     atomic.Int64
	blockStarts atomic.Int64
	blockErrors atomic.Int64
	restarts    atomic.Int64
	clicks      atomic.Int64
	signals     atomic.Int64

	renderLatencyNs    atomic.Int64
	renderLatencyCount atomic.Int64

	runningBlocks atomic.Int32

	registered atomic.Bool
}

// NewMetrics creates a new Metrics instance.
// Call RegisterExpvar() to expose metrics via the /debug/vars endpoint.
func NewMetrics() *Metrics {
	return &Metrics{}
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the process-wide Metrics.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		defaultMetrics = NewMetrics()
	})
	return defaultMetrics
}

// RegisterExpvar publishes the metrics under barstatus_* names. Safe to
// call multiple times; subsequent calls are no-ops. Only one Metrics per
// process may be registered.
func (m *Metrics) RegisterExpvar() {
	if m.registered.Swap(true) {
		return
	}

	expvar.Publish("barstatus_renders_total", expvar.Func(func() any { return m.renders.Load() }))
	expvar.Publish("barstatus_block_starts_total", expvar.Func(func() any { return m.blockStarts.Load() }))
	expvar.Publish("barstatus_block_errors_total", expvar.Func(func() any { return m.blockErrors.Load() }))
	expvar.Publish("barstatus_restarts_total", expvar.Func(func() any { return m.restarts.Load() }))
	expvar.Publish("barstatus_clicks_total", expvar.Func(func() any { return m.clicks.Load() }))
	expvar.Publish("barstatus_signals_total", expvar.Func(func() any { return m.signals.Load() }))
	expvar.Publish("barstatus_running_blocks", expvar.Func(func() any { return m.runningBlocks.Load() }))
	expvar.Publish("barstatus_render_latency_avg_ms", expvar.Func(func() any {
		count := m.renderLatencyCount.Load()
		if count == 0 {
			return float64(0)
		}
		return float64(m.renderLatencyNs.Load()) / float64(count) / 1e6
	}))
}

// MetricsSnapshot is a point-in-time copy of all metrics.
type MetricsSnapshot struct {
	Renders     int64
	BlockStarts int64
	BlockErrors int64
	Restarts    int64
	Clicks      int64
	Signals     int64

	RunningBlocks int

	RenderLatencyAvg time.Duration
}

// Snapshot returns a point-in-time copy of all metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Renders:          m.renders.Load(),
		BlockStarts:      m.blockStarts.Load(),
		BlockErrors:      m.blockErrors.Load(),
		Restarts:         m.restarts.Load(),
		Clicks:           m.clicks.Load(),
		Signals:          m.signals.Load(),
		RunningBlocks:    int(m.runningBlocks.Load()),
		RenderLatencyAvg: safeDivide(m.renderLatencyNs.Load(), m.renderLatencyCount.Load()),
	}
}

// IncrementBlockErrors records a block failure.
func (m *Metrics) IncrementBlockErrors() {
	m.blockErrors.Add(1)
}

// IncrementRestarts records the restart of a failed block.
func (m *Metrics) IncrementRestarts() {
	m.restarts.Add(1)
}

// IncrementClicks records a click event.
func (m *Metrics) IncrementClicks() {
	m.clicks.Add(1)
}

// IncrementSignals records a received signal.
func (m *Metrics) IncrementSignals() {
	m.signals.Add(1)
}

// BlockStarted records a block goroutine start.
func (m *Metrics) BlockStarted() {
	m.blockStarts.Add(1)
	m.runningBlocks.Add(1)
}

// BlockStopped records a block goroutine exit.
func (m *Metrics) BlockStopped() {
	m.runningBlocks.Add(-1)
}

// RecordRender records one printed status line and how long it took.
func (m *Metrics) RecordRender(d time.Duration) {
	m.renders.Add(1)
	m.renderLatencyNs.Add(d.Nanoseconds())
	m.renderLatencyCount.Add(1)
}

func safeDivide(total, count int64) time.Duration {
	if count == 0 {
		return 0
	}
	return time.Duration(total / count)
}
