// Package metrics exposes Prometheus collectors for the update cycle.
// A nil *Collector is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "questwatch"

// Collector groups the cycle metrics.
type Collector struct {
	Cycles          prometheus.Counter
	FetchFailures   prometheus.Counter
	PersistFailures prometheus.Counter
	NewItems        prometheus.Counter
	UpdatedItems    prometheus.Counter
	TrackedItems    prometheus.Gauge
	CycleDuration   prometheus.Histogram
}

// NewCollector creates the collectors and registers them on reg.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		Cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Update cycles started.",
		}),
		FetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_failures_total",
			Help:      "Update cycles abandoned because the fetch failed.",
		}),
		PersistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_failures_total",
			Help:      "Merges whose result could not be persisted.",
		}),
		NewItems: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "new_items_total",
			Help:      "Identities seen for the first time.",
		}),
		UpdatedItems: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updated_items_total",
			Help:      "Known identities whose view or answer totals changed.",
		}),
		TrackedItems: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tracked_items",
			Help:      "Identities currently held by the store.",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of one fetch and merge.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}

	for _, col := range []prometheus.Collector{
		c.Cycles, c.FetchFailures, c.PersistFailures,
		c.NewItems, c.UpdatedItems, c.TrackedItems, c.CycleDuration,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// CycleStarted counts one cycle.
func (c *Collector) CycleStarted() {
	if c == nil {
		return
	}
	c.Cycles.Inc()
}

// FetchFailed counts an abandoned cycle.
func (c *Collector) FetchFailed() {
	if c == nil {
		return
	}
	c.FetchFailures.Inc()
}

// PersistFailed counts a merge that could not be written.
func (c *Collector) PersistFailed() {
	if c == nil {
		return
	}
	c.PersistFailures.Inc()
}

// Merged records the outcome of a merge.
func (c *Collector) Merged(newItems, updated, tracked int) {
	if c == nil {
		return
	}
	c.NewItems.Add(float64(newItems))
	c.UpdatedItems.Add(float64(updated))
	c.TrackedItems.Set(float64(tracked))
}

// ObserveCycle records a cycle's duration in seconds.
func (c *Collector) ObserveCycle(seconds float64) {
	if c == nil {
		return
	}
	c.CycleDuration.Observe(seconds)
}
