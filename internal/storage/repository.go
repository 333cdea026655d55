// Package storage contains the backend-agnostic store contract and the
// batched loader. Concrete backends (sqlite, postgres) register themselves
// with the factory at init time, so callers select a backend by config kind
// without importing driver packages.
package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/WillPhil45/Transaction-API/internal/txn"
)

// Config selects and parameterizes a backend.
type Config struct {
	Kind       string // "sqlite" or "postgres"
	DSN        string
	Table      string
	OnConflict string // "append", "ignore", or "replace" on transaction_id
}

// Aggregate is the single-pass summary of one date range, or of one group
// within it. Min and Max are only meaningful when Count > 0; the query layer
// maps the empty case to absent values.
type Aggregate struct {
	Count int64
	Sum   float64
	Min   float64
	Max   float64
}

// GroupAggregate pairs a group key with its aggregate. For rows with a NULL
// group column the key is the empty string.
type GroupAggregate struct {
	Key string
	Aggregate
}

// GroupFields lists the columns a summary may group by. Backends use it to
// guard interpolated identifiers.
var GroupFields = map[string]bool{"category": true, "date": true}

// Repository is the store contract. Implementations are safe for concurrent
// readers; writes follow the single-writer discipline (one ingestion job at
// a time).
type Repository interface {
	// CopyFrom persists one batch inside a single store transaction and
	// returns the number of rows written. A non-nil error means the batch
	// did not commit; previously committed batches are unaffected.
	CopyFrom(ctx context.Context, batch []txn.Transaction) (int64, error)

	// Aggregate scans the [start, end] date range (inclusive, normalized
	// YYYY-MM-DD) in one index-assisted pass.
	Aggregate(ctx context.Context, start, end string) (Aggregate, error)

	// AggregateBy is Aggregate with one result per distinct value of the
	// given group field inside the range, ordered ascending by key. The
	// field must be listed in GroupFields.
	AggregateBy(ctx context.Context, start, end, field string) ([]GroupAggregate, error)

	// Count returns the total number of persisted transactions.
	Count(ctx context.Context) (int64, error)

	// Clear deletes all rows and reports how many were removed.
	Clear(ctx context.Context) (int64, error)

	// Exec runs a raw statement, typically DDL from the schema bootstrap.
	Exec(ctx context.Context, sql string) error

	Close()
}

// Factory constructs a Repository for one backend kind.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register installs (or replaces) the factory for a backend kind. Called from
// backend packages' init functions.
func Register(kind string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	factories[kind] = f
}

// New opens the backend selected by cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	regMu.RLock()
	f, ok := factories[cfg.Kind]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no storage backend registered for kind=%q", cfg.Kind)
	}
	return f(ctx, cfg)
}
