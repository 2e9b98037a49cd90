package observability

import (
	"sync/atomic"
	"time"
)

// RelayStats is a point-in-time snapshot of the relay counters.
type RelayStats struct {
	ActiveConnections int64  `json:"active_connections"`
	Delivered         uint64 `json:"delivered"`
	Undeliverable     uint64 `json:"undeliverable"`
	Dropped           uint64 `json:"dropped"`
	AuthFailures      uint64 `json:"auth_failures"`
	Uptime            string `json:"uptime"`
}

// RelayMonitor aggregates delivery and connection counters.
// All counters are atomic; reads never block the routing path.
type RelayMonitor struct {
	startedAt time.Time

	activeConnections int64
	delivered         uint64
	undeliverable     uint64
	dropped           uint64
	authFailures      uint64
}

func NewRelayMonitor() *RelayMonitor {
	return &RelayMonitor{startedAt: time.Now()}
}

func (m *RelayMonitor) IncrConnections() { atomic.AddInt64(&m.activeConnections, 1) }
func (m *RelayMonitor) DecrConnections() { atomic.AddInt64(&m.activeConnections, -1) }
func (m *RelayMonitor) IncrDelivered()   { atomic.AddUint64(&m.delivered, 1) }
func (m *RelayMonitor) IncrUndeliverable() {
	atomic.AddUint64(&m.undeliverable, 1)
}
func (m *RelayMonitor) IncrDropped()      { atomic.AddUint64(&m.dropped, 1) }
func (m *RelayMonitor) IncrAuthFailures() { atomic.AddUint64(&m.authFailures, 1) }

func (m *RelayMonitor) Snapshot() RelayStats {
	return RelayStats{
		ActiveConnections: atomic.LoadInt64(&m.activeConnections),
		Delivered:         atomic.LoadUint64(&m.delivered),
		Undeliverable:     atomic.LoadUint64(&m.undeliverable),
		Dropped:           atomic.LoadUint64(&m.dropped),
		AuthFailures:      atomic.LoadUint64(&m.authFailures),
		Uptime:            time.Since(m.startedAt).Round(time.Second).String(),
	}
}
