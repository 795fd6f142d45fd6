// Package metrics exposes batch aggregation counters for Prometheus.
//
// claimagg is a batch tool, so the registry is written to a node_exporter
// textfile after each run rather than served over HTTP.
package metrics

import (
	"errors"
	"time"

	"github.com/bigdatavik/databricks-struct-demo/pkg/aggregate"
	"github.com/bigdatavik/databricks-struct-demo/pkg/claims"
	"github.com/prometheus/client_golang/prometheus"
)

// Registry owns the claimagg collectors.
type Registry struct {
	reg *prometheus.Registry

	Claims        *prometheus.CounterVec
	Lines         prometheus.Counter
	Skipped       prometheus.Counter
	InvalidInput  prometheus.Counter
	Discrepancies *prometheus.CounterVec
	BatchSeconds  prometheus.Histogram
}

// NewRegistry creates a registry with every collector registered.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		Claims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "claimagg_claims_total",
			Help: "Claims read, by outcome.",
		}, []string{"outcome"}),
		Lines: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "claimagg_lines_total",
			Help: "Claim details folded into aggregates.",
		}),
		Skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "claimagg_skipped_total",
			Help: "Claims skipped because they failed to aggregate.",
		}),
		InvalidInput: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "claimagg_invalid_input_total",
			Help: "Invalid input errors encountered.",
		}),
		Discrepancies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "claimagg_discrepancies_total",
			Help: "Claims whose declared total differs from the recomputed total, by severity.",
		}, []string{"severity"}),
		BatchSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "claimagg_batch_seconds",
			Help:    "Time spent aggregating a batch.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	r.reg.MustRegister(r.Claims, r.Lines, r.Skipped, r.InvalidInput, r.Discrepancies, r.BatchSeconds)
	return r
}

// ObserveBatch records the outcome of aggregate.Batch.
func (r *Registry) ObserveBatch(report *aggregate.BatchReport, d time.Duration) {
	r.BatchSeconds.Observe(d.Seconds())
	if report == nil {
		return
	}
	r.Claims.WithLabelValues("aggregated").Add(float64(len(report.Results)))
	r.Claims.WithLabelValues("skipped").Add(float64(len(report.Skipped)))
	r.Lines.Add(float64(report.Lines))
	r.Skipped.Add(float64(len(report.Skipped)))
	for _, s := range report.Skipped {
		if errors.Is(s.Err, claims.ErrInvalidInput) {
			r.InvalidInput.Inc()
		}
	}
}

// ObserveError counts a run-level failure.
func (r *Registry) ObserveError(err error) {
	if errors.Is(err, claims.ErrInvalidInput) {
		r.InvalidInput.Inc()
	}
}

// ObserveDiscrepancy counts one discrepancy of the given severity.
func (r *Registry) ObserveDiscrepancy(severity string) {
	r.Discrepancies.WithLabelValues(severity).Inc()
}

// WriteTextfile writes the registry in the text exposition format, for the
// node_exporter textfile collector.
func (r *Registry) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.reg)
}
