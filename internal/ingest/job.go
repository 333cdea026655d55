// Package ingest runs one CSV upload end to end: streaming parse, in-file
// dedup, and batched loading into the store, with a per-job tracker the
// boundary layer can poll.
package ingest

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Status is the job lifecycle state: pending → running → completed|failed.
// Terminal states are immutable.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// RejectedRow is one sampled reject. Line numbering counts the header line,
// so the first data row is line 2.
type RejectedRow struct {
	Line   int    `json:"row_number"`
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

// Job is the outcome (or in-flight snapshot) of one upload attempt.
//
// RowsAccepted counts rows that passed validation and were committed;
// RowsPersisted counts rows the store actually wrote, which can be lower
// under the "ignore" conflict policy. For a completed job
// RowsSeen == RowsAccepted + RowsRejected.
type Job struct {
	ID                string        `json:"job_id"`
	Filename          string        `json:"filename"`
	Status            Status        `json:"status"`
	RowsSeen          int64         `json:"rows_seen"`
	RowsAccepted      int64         `json:"rows_accepted"`
	RowsRejected      int64         `json:"rows_rejected"`
	RowsPersisted     int64         `json:"rows_persisted"`
	RejectedSamples   []RejectedRow `json:"rejected_samples,omitempty"`
	Error             string        `json:"error,omitempty"`
	StartedAt         time.Time     `json:"started_at,omitzero"`
	FinishedAt        time.Time     `json:"finished_at,omitzero"`
	ProcessingSeconds float64       `json:"processing_time_seconds"`
}

// Tracker owns one job's mutable state during a run. Counters are atomics so
// the loader goroutine can advance them at batch boundaries while the
// boundary layer polls Snapshot concurrently.
type Tracker struct {
	mu        sync.Mutex
	status    Status
	err       string
	samples   []RejectedRow
	sampleCap int
	started   time.Time
	finished  time.Time

	id       string
	filename string

	accepted  atomic.Int64
	rejected  atomic.Int64
	persisted atomic.Int64
}

// NewTracker creates a pending job tracker. sampleCap bounds the retained
// reject samples; the reject counter itself is exact.
func NewTracker(filename string, sampleCap int) *Tracker {
	return &Tracker{
		id:        uuid.NewString(),
		filename:  filename,
		status:    StatusPending,
		sampleCap: sampleCap,
	}
}

// ID returns the job id.
func (t *Tracker) ID() string { return t.id }

// Snapshot returns a consistent copy of the job for polling or as the final
// outcome.
func (t *Tracker) Snapshot() Job {
	t.mu.Lock()
	defer t.mu.Unlock()

	accepted := t.accepted.Load()
	rejected := t.rejected.Load()
	j := Job{
		ID:            t.id,
		Filename:      t.filename,
		Status:        t.status,
		RowsSeen:      accepted + rejected,
		RowsAccepted:  accepted,
		RowsRejected:  rejected,
		RowsPersisted: t.persisted.Load(),
		Error:         t.err,
		StartedAt:     t.started,
		FinishedAt:    t.finished,
	}
	j.RejectedSamples = append([]RejectedRow(nil), t.samples...)
	if !t.started.IsZero() {
		end := t.finished
		if end.IsZero() {
			end = time.Now()
		}
		j.ProcessingSeconds = end.Sub(t.started).Round(10 * time.Millisecond).Seconds()
	}
	return j
}

func (t *Tracker) markRunning() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status == StatusPending {
		t.status = StatusRunning
		t.started = time.Now()
	}
}

// finish moves the job to a terminal state. Once terminal, later calls are
// ignored.
func (t *Tracker) finish(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status == StatusCompleted || t.status == StatusFailed {
		return
	}
	t.finished = time.Now()
	if err != nil {
		t.status = StatusFailed
		t.err = err.Error()
		return
	}
	t.status = StatusCompleted
}

// failPending records a fatal pre-run error (header mismatch). The job never
// leaves pending: no row was processed and nothing was written.
func (t *Tracker) failPending(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status == StatusPending {
		t.err = err.Error()
	}
}

// reject records one rejected row, sampling up to the cap. Rejected rows
// never reach a batch, so this counter advances as rows are classified; the
// accepted and persisted counters advance at batch boundaries via addBatch.
// The atomic keeps the per-row updates contention-free against Snapshot.
func (t *Tracker) reject(line int, reason, detail string) {
	t.rejected.Add(1)
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.samples) < t.sampleCap {
		t.samples = append(t.samples, RejectedRow{Line: line, Reason: reason, Detail: detail})
	}
}

// addBatch advances the accepted/persisted counters after one committed
// batch.
func (t *Tracker) addBatch(accepted, persisted int64) {
	t.accepted.Add(accepted)
	t.persisted.Add(persisted)
}
