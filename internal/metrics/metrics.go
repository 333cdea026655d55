// Package metrics is a small, backend-agnostic seam for recording
// operational metrics from the ingestion pipeline and query engine.
//
// A global, pluggable backend defaults to a no-op implementation, so metric
// calls are always safe even when nothing is configured. Concrete systems
// (Prometheus Pushgateway) live in subpackages and register via SetBackend,
// keeping the core free of any metrics-system dependency.
package metrics

import "time"

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface a metrics system must implement.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveDuration records a latency-style observation.
	ObserveDuration(name string, value float64, labels Labels)
	// Flush pushes buffered metrics if the backend needs it.
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)      {}
func (nopBackend) ObserveDuration(string, float64, Labels) {}
func (nopBackend) Flush() error                            { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the current one.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordStep measures one pipeline step: latency plus a success/failure
// counter, labeled by job and step.
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{"job": job, "step": step, "status": status}
	backend.IncCounter("txnstore_step_total", 1, lbls)
	backend.ObserveDuration("txnstore_step_duration_seconds", d.Seconds(), lbls)
}

// RecordRows increments a row-level counter. Typical kinds: "accepted",
// "rejected", "persisted".
func RecordRows(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter("txnstore_rows_total", float64(delta), Labels{"job": job, "kind": kind})
}

// RecordBatches increments the committed-batch counter.
func RecordBatches(job string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter("txnstore_batches_total", float64(delta), Labels{"job": job})
}
