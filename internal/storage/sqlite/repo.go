// Package sqlite implements the file-backed storage.Repository on
// database/sql. Each batch is committed inside one transaction with a
// prepared statement; WAL journaling lets readers run concurrently with a
// batch commit while observing only fully committed batches.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // pure-Go driver, no cgo

	"github.com/WillPhil45/Transaction-API/internal/storage"
	"github.com/WillPhil45/Transaction-API/internal/txn"
)

// Repository is the SQLite-backed implementation of storage.Repository.
type Repository struct {
	db        *sql.DB
	cfg       Config
	insertSQL string
}

// NewRepository opens (creating if absent) the database at cfg.DSN and
// returns a Repository plus a close function.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("sqlite: DSN must not be empty")
	}
	if strings.TrimSpace(cfg.Table) == "" {
		return nil, nil, fmt.Errorf("sqlite: table must not be empty")
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: open: %w", err)
	}
	if strings.Contains(cfg.DSN, ":memory:") {
		// Each pooled connection would otherwise get its own private database.
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	// WAL keeps readers unblocked during batch commits; busy_timeout covers
	// the brief checkpoint locks. Both are no-ops for :memory: databases.
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA busy_timeout = 5000;",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("sqlite: %s: %w", strings.TrimSuffix(pragma, ";"), err)
		}
	}

	r := &Repository{db: db, cfg: cfg}
	r.insertSQL, err = buildInsertSQL(cfg)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return r, func() { db.Close() }, nil
}

// buildInsertSQL renders the batch insert statement once. The conflict policy
// picks the INSERT verb; "ignore" and "replace" rely on the unique index on
// transaction_id that the schema bootstrap creates for those policies.
func buildInsertSQL(cfg Config) (string, error) {
	verb := "INSERT"
	switch cfg.OnConflict {
	case "", "append":
	case "ignore":
		verb = "INSERT OR IGNORE"
	case "replace":
		verb = "INSERT OR REPLACE"
	default:
		return "", fmt.Errorf("sqlite: unknown conflict policy %q", cfg.OnConflict)
	}
	return fmt.Sprintf(
		"%s INTO %s (%s) VALUES (?, ?, ?, ?, ?)",
		verb, quoteIdent(cfg.Table), strings.Join(txn.Columns, ", "),
	), nil
}

// CopyFrom inserts one batch inside a single transaction. On any statement
// error the transaction is rolled back and nothing from the batch persists.
// The returned count is the number of rows actually written, which can be
// lower than len(batch) under the "ignore" policy.
func (r *Repository) CopyFrom(ctx context.Context, batch []txn.Transaction) (int64, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: begin tx: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, r.insertSQL)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("sqlite: prepare insert: %w", err)
	}
	defer stmt.Close()

	var written int64
	for _, row := range batch {
		res, err := stmt.ExecContext(ctx,
			row.TransactionID,
			row.Date,
			row.Amount,
			nullable(row.Category),
			nullable(row.Memo),
		)
		if err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("sqlite: insert: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			written += n
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: commit: %w", err)
	}
	return written, nil
}

// Aggregate computes the one-pass summary over the inclusive date range.
// The scan is bounded by the ascending date index; SUM is coalesced so an
// empty range yields zeros rather than NULL.
func (r *Repository) Aggregate(ctx context.Context, start, end string) (storage.Aggregate, error) {
	q := fmt.Sprintf(
		"SELECT COUNT(*), COALESCE(SUM(amount), 0), MIN(amount), MAX(amount) FROM %s WHERE date >= ? AND date <= ?",
		quoteIdent(r.cfg.Table),
	)

	var (
		agg      storage.Aggregate
		min, max sql.NullFloat64
	)
	if err := r.db.QueryRowContext(ctx, q, start, end).Scan(&agg.Count, &agg.Sum, &min, &max); err != nil {
		return storage.Aggregate{}, fmt.Errorf("sqlite: aggregate: %w", err)
	}
	agg.Min = min.Float64
	agg.Max = max.Float64
	return agg, nil
}

// AggregateBy groups the range scan by the given field, ordered ascending by
// group key. Rows with a NULL group value form the empty-string group.
func (r *Repository) AggregateBy(ctx context.Context, start, end, field string) ([]storage.GroupAggregate, error) {
	if !storage.GroupFields[field] {
		return nil, fmt.Errorf("sqlite: unsupported group field %q", field)
	}
	col := quoteIdent(field)
	q := fmt.Sprintf(
		"SELECT %s, COUNT(*), COALESCE(SUM(amount), 0), MIN(amount), MAX(amount) FROM %s WHERE date >= ? AND date <= ? GROUP BY %s ORDER BY %s ASC",
		col, quoteIdent(r.cfg.Table), col, col,
	)

	rows, err := r.db.QueryContext(ctx, q, start, end)
	if err != nil {
		return nil, fmt.Errorf("sqlite: aggregate by %s: %w", field, err)
	}
	defer rows.Close()

	var out []storage.GroupAggregate
	for rows.Next() {
		var (
			key      sql.NullString
			g        storage.GroupAggregate
			min, max sql.NullFloat64
		)
		if err := rows.Scan(&key, &g.Count, &g.Sum, &min, &max); err != nil {
			return nil, fmt.Errorf("sqlite: scan group row: %w", err)
		}
		g.Key = key.String
		g.Min = min.Float64
		g.Max = max.Float64
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: group rows: %w", err)
	}
	return out, nil
}

// Count returns the total number of persisted transactions.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var n int64
	q := fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteIdent(r.cfg.Table))
	if err := r.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count: %w", err)
	}
	return n, nil
}

// Clear deletes every transaction and reports how many were removed.
func (r *Repository) Clear(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", quoteIdent(r.cfg.Table)))
	if err != nil {
		return 0, fmt.Errorf("sqlite: clear: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: clear rows affected: %w", err)
	}
	return n, nil
}

// Exec runs an arbitrary statement, typically DDL from the schema bootstrap.
func (r *Repository) Exec(ctx context.Context, sqlText string) error {
	if strings.TrimSpace(sqlText) == "" {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, sqlText); err != nil {
		return fmt.Errorf("sqlite: exec: %w", err)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
