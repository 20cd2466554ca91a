// Package prompush implements a metrics.Backend that pushes to a Prometheus
// Pushgateway.
//
// A projector run is a batch job, so metrics are collected in a private
// registry and pushed on Flush rather than scraped.
package prompush

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"projector/internal/metrics"
)

// Options configures the Pushgateway backend.
type Options struct {
	// URL is the Pushgateway base URL, e.g. http://pushgateway:9091.
	URL string
	// JobName is the Pushgateway job. Defaults to "projector".
	JobName string
	// Grouping adds grouping key labels, e.g. {"instance": "host-1"}.
	Grouping map[string]string
}

// Backend buffers metrics in a Prometheus registry.
type Backend struct {
	pusher *push.Pusher

	steps     *prometheus.CounterVec
	durations *prometheus.HistogramVec
	records   *prometheus.CounterVec
	batches   prometheus.Counter
	httpReqs  *prometheus.CounterVec
	httpDur   *prometheus.HistogramVec
}

// New registers projector's collectors and prepares a pusher.
func New(opts Options) (*Backend, error) {
	if strings.TrimSpace(opts.URL) == "" {
		return nil, fmt.Errorf("prompush: pushgateway url is empty")
	}
	job := opts.JobName
	if job == "" {
		job = "projector"
	}

	b := &Backend{
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Pipeline steps run, by step and status.",
		}, []string{"step", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metrics.StepDuration,
			Help:    "Pipeline step duration in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"step", "status"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RecordsTotal,
			Help: "Records processed, by kind.",
		}, []string{"kind"}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metrics.BatchesTotal,
			Help: "Sink batches written.",
		}),
		httpReqs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.HTTPRequestsTotal,
			Help: "Source HTTP requests, by status.",
		}, []string{"status"}),
		httpDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metrics.HTTPRequestDuration,
			Help:    "Source HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(b.steps, b.durations, b.records, b.batches, b.httpReqs, b.httpDur)

	b.pusher = push.New(opts.URL, job).Gatherer(reg)
	for k, v := range opts.Grouping {
		b.pusher = b.pusher.Grouping(k, v)
	}
	return b, nil
}

// IncCounter implements metrics.Backend. Unknown names are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}
	switch name {
	case metrics.StepTotal:
		b.steps.WithLabelValues(labels["step"], labels["status"]).Add(delta)
	case metrics.RecordsTotal:
		if labels["kind"] == "" {
			return
		}
		b.records.WithLabelValues(labels["kind"]).Add(delta)
	case metrics.BatchesTotal:
		b.batches.Add(delta)
	case metrics.HTTPRequestsTotal:
		b.httpReqs.WithLabelValues(statusOrUnknown(labels)).Add(delta)
	}
}

// ObserveHistogram implements metrics.Backend. Unknown names are ignored.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 {
		return
	}
	switch name {
	case metrics.StepDuration:
		b.durations.WithLabelValues(labels["step"], labels["status"]).Observe(value)
	case metrics.HTTPRequestDuration:
		b.httpDur.WithLabelValues(statusOrUnknown(labels)).Observe(value)
	}
}

// Flush replaces the job's metric group on the Pushgateway.
func (b *Backend) Flush() error {
	if err := b.pusher.Push(); err != nil {
		return fmt.Errorf("prompush: push: %w", err)
	}
	return nil
}

func statusOrUnknown(labels metrics.Labels) string {
	if s := labels["status"]; s != "" {
		return s
	}
	return "unknown"
}

var _ metrics.Backend = (*Backend)(nil)
