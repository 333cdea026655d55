package storage

import (
	"context"
	"fmt"
	"sync"
)

// DDLBootstrapper ensures the transaction table and its indexes exist for one
// backend kind. Implementations must be idempotent and never destructive:
// CREATE ... IF NOT EXISTS only.
type DDLBootstrapper func(ctx context.Context, repo Repository, cfg Config) error

var (
	ddlMu  sync.RWMutex
	ddlFns = map[string]DDLBootstrapper{}
)

// RegisterDDL installs the schema bootstrapper for a backend kind.
func RegisterDDL(kind string, fn DDLBootstrapper) {
	ddlMu.Lock()
	defer ddlMu.Unlock()
	ddlFns[kind] = fn
}

// EnsureSchema runs the registered bootstrapper for cfg.Kind against repo.
// It is called once at startup and is safe to run on every restart.
func EnsureSchema(ctx context.Context, repo Repository, cfg Config) error {
	ddlMu.RLock()
	fn, ok := ddlFns[cfg.Kind]
	ddlMu.RUnlock()
	if !ok {
		return fmt.Errorf("no DDL bootstrapper registered for kind=%q", cfg.Kind)
	}
	return fn(ctx, repo, cfg)
}
