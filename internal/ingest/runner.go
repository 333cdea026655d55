// The runner wires one upload through the pipeline:
//
//	Reader (CSV stream, header-checked)
//	     → filter (optional in-file dedup)
//	     → Loader (batched commits into the store)
//
// Back-pressure comes from bounded channels, so peak memory stays around
// O(batchSize + channelBuffer) regardless of file size. A store failure
// cancels the upstream stages; batches committed before the failure stay
// committed.
package ingest

import (
	"context"
	"errors"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/WillPhil45/Transaction-API/internal/config"
	"github.com/WillPhil45/Transaction-API/internal/logctx"
	"github.com/WillPhil45/Transaction-API/internal/metrics"
	csvp "github.com/WillPhil45/Transaction-API/internal/parser/csv"
	"github.com/WillPhil45/Transaction-API/internal/storage"
	"github.com/WillPhil45/Transaction-API/internal/txn"
)

// Runner executes uploads against one repository. A Runner is reusable, but
// the single-writer discipline applies: run one job at a time per store.
type Runner struct {
	repo   storage.Repository
	cfg    config.Ingest
	limits txn.Limits
}

// NewRunner builds a Runner. Zero limits fall back to the defaults.
func NewRunner(repo storage.Repository, cfg config.Ingest, limits config.Limits) *Runner {
	l := txn.Limits{
		AmountMin:   limits.AmountMin,
		AmountMax:   limits.AmountMax,
		MaxFieldLen: limits.MaxFieldLen,
	}
	if l.AmountMin == 0 && l.AmountMax == 0 {
		d := txn.DefaultLimits()
		l.AmountMin, l.AmountMax = d.AmountMin, d.AmountMax
	}
	if l.MaxFieldLen == 0 {
		l.MaxFieldLen = txn.DefaultLimits().MaxFieldLen
	}
	return &Runner{repo: repo, cfg: cfg, limits: l}
}

// Run ingests src as tracker's job, returning when the stream is exhausted
// or the job fails. The returned error is nil for a completed job, even when
// rows were rejected; call tracker.Snapshot for the outcome.
//
// A header mismatch fails the upload before any row is processed and leaves
// the job in pending. Any store failure marks the job failed; batches
// committed before the failure are not rolled back, so a re-run needs the
// configured conflict policy (or downstream dedup) to cope with partial data.
func (r *Runner) Run(ctx context.Context, tracker *Tracker, src io.Reader) error {
	logger := logctx.From(ctx).With().
		Str("job_id", tracker.ID()).
		Str("filename", tracker.Snapshot().Filename).
		Logger()
	ctx = logctx.With(ctx, logger)

	start := time.Now()
	stream, err := csvp.NewStream(src, r.limits)
	if err != nil {
		var he *csvp.HeaderError
		if errors.As(err, &he) {
			tracker.failPending(he)
			logger.Error().Err(he).Msg("upload rejected before processing")
			metrics.RecordStep(tracker.ID(), "header", he, time.Since(start))
			return he
		}
		tracker.failPending(err)
		return err
	}

	tracker.markRunning()
	logger.Info().Int("batch_size", r.cfg.BatchSize).Bool("dedup", r.cfg.DedupInFile).Msg("ingestion started")

	runErr := r.pipeline(ctx, tracker, stream)
	tracker.finish(runErr)

	job := tracker.Snapshot()
	metrics.RecordRows(tracker.ID(), "accepted", job.RowsAccepted)
	metrics.RecordRows(tracker.ID(), "rejected", job.RowsRejected)
	metrics.RecordRows(tracker.ID(), "persisted", job.RowsPersisted)
	metrics.RecordStep(tracker.ID(), "ingest", runErr, time.Since(start))

	evt := logger.Info()
	if runErr != nil {
		evt = logger.Error().Err(runErr)
	}
	evt.Str("status", string(job.Status)).
		Int64("rows_seen", job.RowsSeen).
		Int64("rows_accepted", job.RowsAccepted).
		Int64("rows_rejected", job.RowsRejected).
		Float64("seconds", job.ProcessingSeconds).
		Msg("ingestion finished")
	return runErr
}

// pipeline runs the reader, filter, and loader stages and returns the first
// stage error. Cancellation is observed between rows and between batches.
func (r *Runner) pipeline(ctx context.Context, tracker *Tracker, stream *csvp.Stream) error {
	buf := r.cfg.ChannelBuffer
	if buf < 0 {
		buf = 0
	}
	rows := make(chan csvp.Row, buf)
	valid := make(chan txn.Transaction, buf)

	onReject := func(line int, reason csvp.Reason, detail string) {
		tracker.reject(line, string(reason), detail)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(rows)
		return stream.Run(ctx, rows, onReject)
	})

	g.Go(func() error {
		defer close(valid)
		var dd *dedup
		if r.cfg.DedupInFile {
			dd = newDedup()
		}
		for row := range rows {
			if dd != nil && dd.duplicate(row.Txn.TransactionID) {
				tracker.reject(row.Line, string(csvp.ReasonDuplicateKey), row.Txn.TransactionID)
				continue
			}
			select {
			case valid <- row.Txn:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	g.Go(func() error {
		_, err := storage.LoadBatches(ctx, valid, r.cfg.BatchSize, r.repo.CopyFrom,
			func(accepted, written int64) {
				tracker.addBatch(accepted, written)
				metrics.RecordBatches(tracker.ID(), 1)
			})
		return err
	})

	return g.Wait()
}
