// Package storage defines the SQL sink a projected dataset is written to and
// the registry backends plug into.
//
// Backends live in subpackages (sqlite, postgres, mssql) and register
// themselves from init(). Import storage/all to link every backend.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	apperrors "projector/internal/errors"
)

// Config is the minimal configuration needed to open a Repository.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend; validation is backend-specific.
type Config struct {
	Kind string
	DSN  string
}

// Repository is a backend-agnostic single-table sink.
//
// Each backend implements these semantics in its own idiomatic way
// (Postgres ON CONFLICT, SQLite OR IGNORE, SQL Server NOT EXISTS).
type Repository interface {
	// Close releases backend resources. Call it once.
	Close()

	// EnsureTable creates the table and its constraints if it does not exist.
	EnsureTable(ctx context.Context, spec TableSpec) error

	// InsertRows inserts rows aligned with columns and returns the number of
	// rows written. With dedupeColumns set, rows whose dedupe key already
	// exists are skipped instead of failing the statement.
	InsertRows(ctx context.Context, table string, columns []string, rows [][]any, dedupeColumns []string) (int64, error)
}

// Factory opens a Repository for one backend kind.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers a backend under kind.
//
// Call Register from an init() function in a backend package.
//
// Panics:
//   - If kind is empty.
//   - If f is nil.
//   - If kind is already registered.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// New opens a Repository using the factory registered for cfg.Kind.
//
// Errors:
//   - CONFIG if cfg.Kind is empty or unsupported.
//   - STORAGE wrapping whatever the factory returns.
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, apperrors.NewConfigError("storage: missing kind", nil)
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, apperrors.NewConfigError(fmt.Sprintf("storage: unsupported kind=%s", cfg.Kind), nil).
			WithContext("kind", cfg.Kind)
	}
	repo, err := f(ctx, cfg)
	if err != nil {
		return nil, apperrors.NewStorageError("storage: open "+cfg.Kind, err).WithContext("kind", cfg.Kind)
	}
	return repo, nil
}

// Kinds returns the registered backend kinds, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
