// Package metrics provides session lifecycle and refresh metrics.
// This is a lightweight metrics foundation using atomic counters.
package metrics

import (
	"sync/atomic"
	"time"
)

// Metrics holds application metrics using atomic counters for thread safety.
type Metrics struct {
	// Adapter lifecycle
	constructions        atomic.Int64
	constructionFailures atomic.Int64
	deferredConstructs   atomic.Int64
	connects             atomic.Int64
	disconnects          atomic.Int64
	staleEvents          atomic.Int64
	teardownErrors       atomic.Int64

	// Refresh
	refreshRuns    atomic.Int64
	refreshSkips   atomic.Int64
	refreshErrors  atomic.Int64
	refreshLatency atomic.Int64

	// Backend calls
	backendCalls  atomic.Int64
	backendErrors atomic.Int64
}

// Global is the global metrics instance.
// Use this for recording metrics throughout the application.
//
//nolint:gochecknoglobals // Intentional global for metrics access
var Global = &Metrics{}

// New returns an empty metrics set.
func New() *Metrics {
	return &Metrics{}
}

// RecordConstruction records an adapter construction attempt.
func (m *Metrics) RecordConstruction(deferred bool, err error) {
	m.constructions.Add(1)
	if deferred {
		m.deferredConstructs.Add(1)
	}
	if err != nil {
		m.constructionFailures.Add(1)
	}
}

// RecordConnect records a connect event from the active adapter.
func (m *Metrics) RecordConnect() {
	m.connects.Add(1)
}

// RecordDisconnect records a disconnect event from the active adapter.
func (m *Metrics) RecordDisconnect() {
	m.disconnects.Add(1)
}

// RecordStaleEvent records an event discarded because its adapter was retired.
func (m *Metrics) RecordStaleEvent() {
	m.staleEvents.Add(1)
}

// RecordTeardownError records a failed best-effort disconnect during retirement.
func (m *Metrics) RecordTeardownError() {
	m.teardownErrors.Add(1)
}

// RecordRefresh records one refresh action run.
func (m *Metrics) RecordRefresh(duration time.Duration, err error) {
	m.refreshRuns.Add(1)
	m.refreshLatency.Add(duration.Nanoseconds())
	if err != nil {
		m.refreshErrors.Add(1)
	}
}

// RecordRefreshSkip records a tick that did not run its action.
func (m *Metrics) RecordRefreshSkip() {
	m.refreshSkips.Add(1)
}

// RecordBackendCall records a call to the account backend.
func (m *Metrics) RecordBackendCall(err error) {
	m.backendCalls.Add(1)
	if err != nil {
		m.backendErrors.Add(1)
	}
}

// Snapshot is a point-in-time copy of all metrics.
type Snapshot struct {
	Constructions        int64 `json:"constructions"`
	ConstructionFailures int64 `json:"constructionFailures"`
	DeferredConstructs   int64 `json:"deferredConstructs"`
	Connects             int64 `json:"connects"`
	Disconnects          int64 `json:"disconnects"`
	StaleEvents          int64 `json:"staleEvents"`
	TeardownErrors       int64 `json:"teardownErrors"`
	RefreshRuns          int64 `json:"refreshRuns"`
	RefreshSkips         int64 `json:"refreshSkips"`
	RefreshErrors        int64 `json:"refreshErrors"`
	RefreshLatencyNanos  int64 `json:"refreshLatencyNanos"`
	BackendCalls         int64 `json:"backendCalls"`
	BackendErrors        int64 `json:"backendErrors"`
}

// Snapshot returns a point-in-time copy of all metrics.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Constructions:        m.constructions.Load(),
		ConstructionFailures: m.constructionFailures.Load(),
		DeferredConstructs:   m.deferredConstructs.Load(),
		Connects:             m.connects.Load(),
		Disconnects:          m.disconnects.Load(),
		StaleEvents:          m.staleEvents.Load(),
		TeardownErrors:       m.teardownErrors.Load(),
		RefreshRuns:          m.refreshRuns.Load(),
		RefreshSkips:         m.refreshSkips.Load(),
		RefreshErrors:        m.refreshErrors.Load(),
		RefreshLatencyNanos:  m.refreshLatency.Load(),
		BackendCalls:         m.backendCalls.Load(),
		BackendErrors:        m.backendErrors.Load(),
	}
}

// RefreshLatencyAvgMs returns the average refresh latency in milliseconds.
// Returns 0 if no refresh has run.
func (m *Metrics) RefreshLatencyAvgMs() float64 {
	runs := m.refreshRuns.Load()
	if runs == 0 {
		return 0
	}
	return float64(m.refreshLatency.Load()) / float64(runs) / 1e6
}

// Reset resets all metrics to zero.
// Useful for testing.
func (m *Metrics) Reset() {
	m.constructions.Store(0)
	m.constructionFailures.Store(0)
	m.deferredConstructs.Store(0)
	m.connects.Store(0)
	m.disconnects.Store(0)
	m.staleEvents.Store(0)
	m.teardownErrors.Store(0)
	m.refreshRuns.Store(0)
	m.refreshSkips.Store(0)
	m.refreshErrors.Store(0)
	m.refreshLatency.Store(0)
	m.backendCalls.Store(0)
	m.backendErrors.Store(0)
}
