// Package metrics is the process-wide metrics facade.
//
// Core packages record through the package functions; cmd/project picks a
// Backend (Datadog, Pushgateway) at startup. Until SetBackend is called
// every call is a no-op.
package metrics

import (
	"strconv"
	"sync"
	"time"
)

// Metric names recorded by projector.
const (
	StepTotal           = "projector_step_total"
	StepDuration        = "projector_step_duration_seconds"
	RecordsTotal        = "projector_records_total"
	BatchesTotal        = "projector_batches_total"
	HTTPRequestsTotal   = "projector_http_requests_total"
	HTTPRequestDuration = "projector_http_request_duration_seconds"
)

// Labels are metric dimensions.
type Labels map[string]string

// Backend receives metrics. Implementations must be safe for concurrent use.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Flush() error
}

type nop struct{}

func (nop) IncCounter(string, float64, Labels)       {}
func (nop) ObserveHistogram(string, float64, Labels) {}
func (nop) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nop{}
)

// SetBackend installs b. A nil b restores the no-op backend.
func SetBackend(b Backend) {
	if b == nil {
		b = nop{}
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// IncCounter adds delta to the named counter.
func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

// ObserveHistogram records one sample of the named histogram.
func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// Flush pushes buffered metrics through the installed backend.
func Flush() error {
	return current().Flush()
}

// RecordStep counts one run of a pipeline step and observes its duration.
// status is "ok" when err is nil and "error" otherwise.
func RecordStep(step string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	l := Labels{"step": step, "status": status}
	IncCounter(StepTotal, 1, l)
	ObserveHistogram(StepDuration, time.Since(start).Seconds(), l)
}

// RecordRecords adds n to the records counter for kind.
func RecordRecords(kind string, n int) {
	if n <= 0 {
		return
	}
	IncCounter(RecordsTotal, float64(n), Labels{"kind": kind})
}

// RecordHTTP counts one HTTP request. code 0 means the request failed
// before a response arrived.
func RecordHTTP(code int, d time.Duration) {
	status := "error"
	if code > 0 {
		status = strconv.Itoa(code)
	}
	l := Labels{"status": status}
	IncCounter(HTTPRequestsTotal, 1, l)
	ObserveHistogram(HTTPRequestDuration, d.Seconds(), l)
}
