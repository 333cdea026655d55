// Package postgres implements storage.Repository on pgx v5 for deployments
// that outgrow the embedded file store. Batches use the COPY protocol under
// the append policy and a batched INSERT ... ON CONFLICT under the ignore and
// replace policies.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/WillPhil45/Transaction-API/internal/storage"
	"github.com/WillPhil45/Transaction-API/internal/txn"
)

// Config holds Postgres repository configuration.
type Config struct {
	DSN        string // pgxpool connection string
	Table      string // target table name
	OnConflict string // "append", "ignore", or "replace" on transaction_id
}

// Repository is the Postgres-backed implementation of storage.Repository.
type Repository struct {
	pool *pgxpool.Pool
	cfg  Config
}

// NewRepository connects a pool and returns a Repository plus a close
// function.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("postgres: DSN must not be empty")
	}
	if strings.TrimSpace(cfg.Table) == "" {
		return nil, nil, fmt.Errorf("postgres: table must not be empty")
	}
	switch cfg.OnConflict {
	case "", "append", "ignore", "replace":
	default:
		return nil, nil, fmt.Errorf("postgres: unknown conflict policy %q", cfg.OnConflict)
	}

	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Repository{pool: pool, cfg: cfg}, pool.Close, nil
}

// CopyFrom persists one batch inside a single transaction. Append uses the
// COPY protocol; ignore/replace fall back to a pipelined INSERT with an ON
// CONFLICT clause on the transaction_id unique index.
func (r *Repository) CopyFrom(ctx context.Context, batch []txn.Transaction) (int64, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx) // no-op after commit

	var written int64
	if r.cfg.OnConflict == "" || r.cfg.OnConflict == "append" {
		rows := make([][]any, 0, len(batch))
		for _, row := range batch {
			rows = append(rows, []any{
				row.TransactionID, row.Date, row.Amount,
				nullable(row.Category), nullable(row.Memo),
			})
		}
		written, err = tx.CopyFrom(ctx, pgx.Identifier{r.cfg.Table}, txn.Columns, pgx.CopyFromRows(rows))
		if err != nil {
			return 0, fmt.Errorf("postgres: copy: %w", err)
		}
	} else {
		sql := r.upsertSQL()
		b := &pgx.Batch{}
		for _, row := range batch {
			b.Queue(sql,
				row.TransactionID, row.Date, row.Amount,
				nullable(row.Category), nullable(row.Memo),
			)
		}
		br := tx.SendBatch(ctx, b)
		for range batch {
			tag, err := br.Exec()
			if err != nil {
				_ = br.Close()
				return 0, fmt.Errorf("postgres: upsert: %w", err)
			}
			written += tag.RowsAffected()
		}
		if err := br.Close(); err != nil {
			return 0, fmt.Errorf("postgres: close batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("postgres: commit: %w", err)
	}
	return written, nil
}

func (r *Repository) upsertSQL() string {
	table := pgIdent(r.cfg.Table)
	cols := strings.Join(txn.Columns, ", ")
	base := fmt.Sprintf("INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5)", table, cols)
	if r.cfg.OnConflict == "ignore" {
		return base + " ON CONFLICT (transaction_id) DO NOTHING"
	}
	return base + " ON CONFLICT (transaction_id) DO UPDATE SET" +
		" date = EXCLUDED.date, amount = EXCLUDED.amount," +
		" category = EXCLUDED.category, memo = EXCLUDED.memo"
}

// Aggregate computes the one-pass summary over the inclusive date range.
func (r *Repository) Aggregate(ctx context.Context, start, end string) (storage.Aggregate, error) {
	q := fmt.Sprintf(
		"SELECT COUNT(*), COALESCE(SUM(amount), 0), MIN(amount), MAX(amount) FROM %s WHERE date >= $1 AND date <= $2",
		pgIdent(r.cfg.Table),
	)

	var (
		agg      storage.Aggregate
		min, max *float64
	)
	if err := r.pool.QueryRow(ctx, q, start, end).Scan(&agg.Count, &agg.Sum, &min, &max); err != nil {
		return storage.Aggregate{}, fmt.Errorf("postgres: aggregate: %w", err)
	}
	if min != nil {
		agg.Min = *min
	}
	if max != nil {
		agg.Max = *max
	}
	return agg, nil
}

// AggregateBy groups the range scan by the given field, ordered ascending.
// NULLS FIRST matches the sqlite backend's empty-key-first ordering.
func (r *Repository) AggregateBy(ctx context.Context, start, end, field string) ([]storage.GroupAggregate, error) {
	if !storage.GroupFields[field] {
		return nil, fmt.Errorf("postgres: unsupported group field %q", field)
	}
	col := pgIdent(field)
	// The key is cast to text so the date column scans as YYYY-MM-DD.
	q := fmt.Sprintf(
		"SELECT %s::text, COUNT(*), COALESCE(SUM(amount), 0), MIN(amount), MAX(amount) FROM %s WHERE date >= $1 AND date <= $2 GROUP BY %s ORDER BY %s ASC NULLS FIRST",
		col, pgIdent(r.cfg.Table), col, col,
	)

	rows, err := r.pool.Query(ctx, q, start, end)
	if err != nil {
		return nil, fmt.Errorf("postgres: aggregate by %s: %w", field, err)
	}
	defer rows.Close()

	var out []storage.GroupAggregate
	for rows.Next() {
		var (
			key      *string
			g        storage.GroupAggregate
			min, max *float64
		)
		if err := rows.Scan(&key, &g.Count, &g.Sum, &min, &max); err != nil {
			return nil, fmt.Errorf("postgres: scan group row: %w", err)
		}
		if key != nil {
			g.Key = *key
		}
		if min != nil {
			g.Min = *min
		}
		if max != nil {
			g.Max = *max
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: group rows: %w", err)
	}
	return out, nil
}

// Count returns the total number of persisted transactions.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var n int64
	q := fmt.Sprintf("SELECT COUNT(*) FROM %s", pgIdent(r.cfg.Table))
	if err := r.pool.QueryRow(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count: %w", err)
	}
	return n, nil
}

// Clear deletes every transaction and reports how many were removed.
func (r *Repository) Clear(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s", pgIdent(r.cfg.Table)))
	if err != nil {
		return 0, fmt.Errorf("postgres: clear: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Exec runs an arbitrary statement, typically DDL from the schema bootstrap.
func (r *Repository) Exec(ctx context.Context, sql string) error {
	if strings.TrimSpace(sql) == "" {
		return nil
	}
	if _, err := r.pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("postgres: exec: %w", err)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// pgIdent double-quotes an identifier, quoting each dotted segment.
func pgIdent(s string) string {
	parts := strings.Split(s, ".")
	for i, p := range parts {
		parts[i] = `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
	}
	return strings.Join(parts, ".")
}
