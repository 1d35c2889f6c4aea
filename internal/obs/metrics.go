package obs

import (
	"sync/atomic"
	"time"
)

// Metrics collects lightweight counters and latency stats for the trading
// core. All methods are nil-safe so callers can skip wiring in tests.
type Metrics struct {
	ticks           uint64
	triggers        uint64
	riskBlocks      uint64
	submitted       uint64
	filled          uint64
	rejected        uint64
	cancelled       uint64
	expired         uint64
	queueDrops      uint64
	notifyDelivered uint64
	notifyFailed    uint64

	triggerLatency LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

func (s *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	v := uint64(d)
	atomic.AddUint64(&s.count, 1)
	atomic.AddUint64(&s.sum, v)
	for {
		cur := atomic.LoadUint64(&s.min)
		if cur != 0 && v >= cur {
			break
		}
		if atomic.CompareAndSwapUint64(&s.min, cur, v) {
			break
		}
	}
	for {
		cur := atomic.LoadUint64(&s.max)
		if v <= cur {
			break
		}
		if atomic.CompareAndSwapUint64(&s.max, cur, v) {
			break
		}
	}
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

func (s *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&s.count)
	out := LatencySnapshot{
		Count: count,
		Min:   time.Duration(atomic.LoadUint64(&s.min)),
		Max:   time.Duration(atomic.LoadUint64(&s.max)),
	}
	if count > 0 {
		out.Avg = time.Duration(atomic.LoadUint64(&s.sum) / count)
	}
	return out
}

// Snapshot captures the current counter values.
type Snapshot struct {
	Ticks           uint64
	Triggers        uint64
	RiskBlocks      uint64
	Submitted       uint64
	Filled          uint64
	Rejected        uint64
	Cancelled       uint64
	Expired         uint64
	QueueDrops      uint64
	NotifyDelivered uint64
	NotifyFailed    uint64
	TriggerLatency  LatencySnapshot
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) inc(p *uint64) {
	if m == nil {
		return
	}
	atomic.AddUint64(p, 1)
}

func (m *Metrics) IncTick()            { m.inc(&m.ticks) }
func (m *Metrics) IncTrigger()         { m.inc(&m.triggers) }
func (m *Metrics) IncRiskBlock()       { m.inc(&m.riskBlocks) }
func (m *Metrics) IncSubmitted()       { m.inc(&m.submitted) }
func (m *Metrics) IncFilled()          { m.inc(&m.filled) }
func (m *Metrics) IncRejected()        { m.inc(&m.rejected) }
func (m *Metrics) IncCancelled()       { m.inc(&m.cancelled) }
func (m *Metrics) IncExpired()         { m.inc(&m.expired) }
func (m *Metrics) IncQueueDrop()       { m.inc(&m.queueDrops) }
func (m *Metrics) IncNotifyDelivered() { m.inc(&m.notifyDelivered) }
func (m *Metrics) IncNotifyFailed()    { m.inc(&m.notifyFailed) }

// ObserveTriggerLatency tracks trigger-to-dispatch latency.
func (m *Metrics) ObserveTriggerLatency(d time.Duration) {
	if m == nil {
		return
	}
	m.triggerLatency.Observe(d)
}

// Stats returns a copy of all counters.
func (m *Metrics) Stats() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	return Snapshot{
		Ticks:           atomic.LoadUint64(&m.ticks),
		Triggers:        atomic.LoadUint64(&m.triggers),
		RiskBlocks:      atomic.LoadUint64(&m.riskBlocks),
		Submitted:       atomic.LoadUint64(&m.submitted),
		Filled:          atomic.LoadUint64(&m.filled),
		Rejected:        atomic.LoadUint64(&m.rejected),
		Cancelled:       atomic.LoadUint64(&m.cancelled),
		Expired:         atomic.LoadUint64(&m.expired),
		QueueDrops:      atomic.LoadUint64(&m.queueDrops),
		NotifyDelivered: atomic.LoadUint64(&m.notifyDelivered),
		NotifyFailed:    atomic.LoadUint64(&m.notifyFailed),
		TriggerLatency:  m.triggerLatency.Snapshot(),
	}
}
