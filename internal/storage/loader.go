// This file implements the batched loader: it drains validated transactions
// from a channel, groups them into fixed-size batches, and commits each batch
// through the backend's CopyFrom. One batch commit is one store transaction,
// so a crash or store failure can only ever lose the in-flight batch.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/WillPhil45/Transaction-API/internal/logctx"
	"github.com/WillPhil45/Transaction-API/internal/txn"
)

// CopyFn abstracts the backend's bulk insert. It must commit the whole batch
// or none of it, and cancel promptly when ctx is done.
type CopyFn func(ctx context.Context, batch []txn.Transaction) (int64, error)

// LoadBatches consumes rows from in until the channel closes, flushing a
// batch every batchSize rows and once more at the end. onBatch, if non-nil,
// is invoked after every successful flush with the batch's row count and the
// rows the store reported written (lower under the ignore conflict policy);
// callers use it to advance job counters at batch granularity rather than
// per row.
//
// The first copy error stops the load and is returned together with the
// total committed so far. Cancellation is cooperative: it is observed between
// batches, never mid-commit, returning (total, ctx.Err()).
func LoadBatches(
	ctx context.Context,
	in <-chan txn.Transaction,
	batchSize int,
	copyFn CopyFn,
	onBatch func(rows, written int64),
) (int64, error) {
	if batchSize <= 0 {
		return 0, fmt.Errorf("batchSize must be > 0")
	}
	if copyFn == nil {
		return 0, fmt.Errorf("copyFn must not be nil")
	}

	logger := logctx.From(ctx)

	var (
		total     int64
		batches   int64
		batch     = make([]txn.Transaction, 0, batchSize)
		start     = time.Now()
		lastFlush = start
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		batchRows := int64(len(batch))
		n, err := copyFn(ctx, batch)
		if err != nil {
			logger.Error().Err(err).
				Int64("total_committed", total).
				Int("batch_rows", len(batch)).
				Msg("batch commit failed")
			return err
		}
		total += n
		batches++
		batch = batch[:0] // keep capacity

		now := time.Now()
		sinceLast := now.Sub(lastFlush)
		rps := float64(0)
		if sinceLast > 0 {
			rps = float64(n) / sinceLast.Seconds()
		}
		logger.Info().
			Int64("batch", batches).
			Int64("rows", n).
			Str("total", humanize.Comma(total)).
			Float64("rows_per_sec", rps).
			Dur("elapsed", now.Sub(start).Truncate(time.Millisecond)).
			Msg("batch committed")
		lastFlush = now

		if onBatch != nil {
			onBatch(batchRows, n)
		}
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()

		case row, ok := <-in:
			if !ok {
				if err := flush(); err != nil {
					return total, err
				}
				logger.Info().
					Int64("batches", batches).
					Str("total", humanize.Comma(total)).
					Msg("loader finished")
				return total, nil
			}
			batch = append(batch, row)
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					return total, err
				}
			}
		}
	}
}
