// Package metrics tracks per-profile request counters and rolling latency
// (§3 "Metrics"). Entries are created lazily and live for process lifetime.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/claudex-proxy/claudex/internal/logging"
)

// ProfileMetrics holds one profile's atomic counters and latency ring
// buffer. All counter fields are updated without locking; the ring buffer
// has its own short internal lock.
type ProfileMetrics struct {
	TotalRequests int64
	TotalTokens   int64
	SuccessCount  int64
	FailureCount  int64
	latencies     *logging.LatencyRingBuffer
}

// Record applies the result of one dispatched request (Dispatcher step 8):
// increments the relevant counters and appends the latency sample.
func (p *ProfileMetrics) Record(success bool, elapsed time.Duration, tokens int64) {
	atomic.AddInt64(&p.TotalRequests, 1)
	atomic.AddInt64(&p.TotalTokens, tokens)
	if success {
		atomic.AddInt64(&p.SuccessCount, 1)
	} else {
		atomic.AddInt64(&p.FailureCount, 1)
	}
	p.latencies.Record(elapsed)
}

// AverageLatency returns the rolling mean over the last 100 recorded
// latencies (0 if none recorded yet).
func (p *ProfileMetrics) AverageLatency() time.Duration {
	return p.latencies.Average()
}

// Snapshot is a point-in-time copy of a profile's counters, safe to expose
// outside the registry.
type Snapshot struct {
	TotalRequests   int64
	TotalTokens     int64
	SuccessCount    int64
	FailureCount    int64
	AverageLatency  time.Duration
}

// Snapshot reads the current counter values without mutating state.
func (p *ProfileMetrics) Snapshot() Snapshot {
	return Snapshot{
		TotalRequests:  atomic.LoadInt64(&p.TotalRequests),
		TotalTokens:    atomic.LoadInt64(&p.TotalTokens),
		SuccessCount:   atomic.LoadInt64(&p.SuccessCount),
		FailureCount:   atomic.LoadInt64(&p.FailureCount),
		AverageLatency: p.AverageLatency(),
	}
}

// Registry is the process-wide map of profile name to ProfileMetrics.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*ProfileMetrics
}

// NewRegistry returns an empty metrics registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*ProfileMetrics)}
}

// Get returns the named profile's metrics, creating them lazily on first
// access.
func (r *Registry) Get(profile string) *ProfileMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.entries[profile]
	if !ok {
		m = &ProfileMetrics{latencies: logging.NewLatencyRingBuffer(logging.DefaultLatencyBufferSize)}
		r.entries[profile] = m
	}
	return m
}
