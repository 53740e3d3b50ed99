// Package metrics exposes conversion counters in Prometheus form. A batch
// conversion has no scrape endpoint, so the registry is written to a
// textfile for the node exporter's textfile collector.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Conversion holds the counters of one conversion run. A nil *Conversion
// is valid and records nothing.
type Conversion struct {
	registry   *prometheus.Registry
	documents  prometheus.Counter
	slots      prometheus.Counter
	nodes      *prometheus.CounterVec
	undeclared prometheus.Gauge
	missing    prometheus.Gauge
	docSeconds prometheus.Histogram
}

// New registers the conversion metrics on a fresh registry.
func New() *Conversion {
	c := &Conversion{
		registry: prometheus.NewRegistry(),
		documents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "junipertf_documents_total",
			Help: "Number of markup documents walked",
		}),
		slots: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "junipertf_slots_total",
			Help: "Number of slots created",
		}),
		nodes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "junipertf_nodes_total",
				Help: "Number of non-slot nodes created",
			},
			[]string{"otype"},
		),
		undeclared: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "junipertf_undeclared_features",
			Help: "Features produced without a declaration",
		}),
		missing: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "junipertf_unproduced_features",
			Help: "Declared features that never occurred",
		}),
		docSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "junipertf_document_duration_seconds",
			Help:    "Time spent reading, parsing and walking one document",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		}),
	}
	c.registry.MustRegister(c.documents, c.slots, c.nodes, c.undeclared, c.missing, c.docSeconds)
	return c
}

// Registry returns the underlying registry.
func (c *Conversion) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// DocumentDone records one finished document.
func (c *Conversion) DocumentDone(d time.Duration) {
	if c == nil {
		return
	}
	c.documents.Inc()
	c.docSeconds.Observe(d.Seconds())
}

// Slot records one slot.
func (c *Conversion) Slot() {
	if c == nil {
		return
	}
	c.slots.Inc()
}

// Node records one node of the given type.
func (c *Conversion) Node(otype string) {
	if c == nil {
		return
	}
	c.nodes.WithLabelValues(otype).Inc()
}

// Reconciled records the outcome of feature metadata reconciliation.
func (c *Conversion) Reconciled(undeclared, missing int) {
	if c == nil {
		return
	}
	c.undeclared.Set(float64(undeclared))
	c.missing.Set(float64(missing))
}

// WriteTextfile writes all metrics in the text exposition format.
func (c *Conversion) WriteTextfile(path string) error {
	if c == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, c.registry)
}
