// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package scheduler

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus instrumentation for one build. It is
// lazily constructed with sync.Once, the same pattern the teacher uses
// for its ingestion metrics: a package-visible set of counters and
// histograms, registered exactly once no matter how many Schedulers a
// process constructs.
type Metrics struct {
	once sync.Once

	unitsStarted  prometheus.Counter
	unitsFresh    prometheus.Counter
	unitsCompiled prometheus.Counter
	unitsFailed   prometheus.Counter
	unitDuration  prometheus.Histogram

	backtracks       prometheus.Counter
	gcBytesReclaimed prometheus.Counter
}

var defaultMetrics Metrics

// NewMetrics returns the process-wide scheduler metrics, registering
// them with the default Prometheus registry on first call. Pass the
// result as Options.Metrics; a nil *Metrics disables instrumentation
// entirely (every method is nil-receiver safe).
func NewMetrics() *Metrics {
	defaultMetrics.init()
	return &defaultMetrics
}

func (m *Metrics) init() {
	if m == nil {
		return
	}
	m.once.Do(func() {
		m.unitsStarted = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cargo_core_units_started_total", Help: "Units dispatched to a worker.",
		})
		m.unitsFresh = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cargo_core_units_fresh_total", Help: "Units whose fingerprint was already valid.",
		})
		m.unitsCompiled = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cargo_core_units_compiled_total", Help: "Units that ran the compiler and succeeded.",
		})
		m.unitsFailed = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cargo_core_units_failed_total", Help: "Units that failed to compile or refresh.",
		})
		m.unitDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cargo_core_unit_duration_seconds",
			Help:    "Wall-clock time spent on one unit, fresh or compiled.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		})
		m.backtracks = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cargo_core_resolver_backtracks_total", Help: "Backtracking steps taken by the dependency resolver.",
		})
		m.gcBytesReclaimed = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cargo_core_cache_gc_bytes_reclaimed_total", Help: "Bytes reclaimed by global cache garbage collection.",
		})

		prometheus.MustRegister(
			m.unitsStarted, m.unitsFresh, m.unitsCompiled, m.unitsFailed, m.unitDuration,
			m.backtracks, m.gcBytesReclaimed,
		)
	})
}

func (m *Metrics) RecordUnitStart() {
	if m == nil {
		return
	}
	m.unitsStarted.Inc()
}

func (m *Metrics) RecordUnitFresh() {
	if m == nil {
		return
	}
	m.unitsFresh.Inc()
}

func (m *Metrics) RecordUnitCompiled() {
	if m == nil {
		return
	}
	m.unitsCompiled.Inc()
}

func (m *Metrics) RecordUnitFailed() {
	if m == nil {
		return
	}
	m.unitsFailed.Inc()
}

func (m *Metrics) RecordUnitDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.unitDuration.Observe(d.Seconds())
}

// RecordBacktrack lets a resolver.Resolve call site report one
// backtracking step without pkg/resolver importing pkg/scheduler.
func (m *Metrics) RecordBacktrack() {
	if m == nil {
		return
	}
	m.backtracks.Inc()
}

// RecordGCReclaimed lets a cache-gc call site report bytes freed
// without pkg/cachetracker importing pkg/scheduler.
func (m *Metrics) RecordGCReclaimed(bytes int64) {
	if m == nil {
		return
	}
	m.gcBytesReclaimed.Add(float64(bytes))
}
