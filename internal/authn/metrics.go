package authn

import "sync"

// Metrics counts authentication outcomes at the gateway boundary. Counters
// are process-local; they reset on restart.
type Metrics struct {
	mu         sync.Mutex
	authorized uint64
	rejected   uint64
}

// MetricsSnapshot is a point-in-time copy, shaped for the metrics endpoint.
type MetricsSnapshot struct {
	Authorized uint64 `json:"authorized"`
	Rejected   uint64 `json:"rejected"`
}

func (m *Metrics) recordAuthorized() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.authorized++
	m.mu.Unlock()
}

func (m *Metrics) recordRejected() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.rejected++
	m.mu.Unlock()
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return MetricsSnapshot{Authorized: m.authorized, Rejected: m.rejected}
}
