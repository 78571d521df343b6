// Package repository persists the infrastructure graph: nodes, edges,
// statuses, projects and users. Every write path keeps the edge set acyclic.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	coreerrors "github.com/davidahmann/opsgraph/core/errors"
	"github.com/davidahmann/opsgraph/core/store"
)

// inClauseChunk keeps IN (...) lists well below SQLite's host parameter limit.
const inClauseChunk = 500

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

type Options struct {
	Now func() time.Time
}

type Repository struct {
	db  *sql.DB
	now func() time.Time
}

func New(db *sql.DB, opts Options) *Repository {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Repository{db: db, now: now}
}

func (r *Repository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return store.Classify(err, "begin transaction")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return store.Classify(err, "commit transaction")
	}
	return nil
}

func affected(result sql.Result, op string) (bool, error) {
	count, err := result.RowsAffected()
	if err != nil {
		return false, store.Classify(err, op)
	}
	return count > 0, nil
}

func malformed(entity, id string, cause error) error {
	return coreerrors.Wrap(
		fmt.Errorf("%s %q: %w", entity, id, cause),
		coreerrors.CategoryStorageFailure,
		coreerrors.CodeMalformedStoredData,
		"stored data is not a JSON object; repair the row",
		false,
	)
}

func placeholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}

func chunks(values []string) [][]string {
	out := make([][]string, 0, len(values)/inClauseChunk+1)
	for start := 0; start < len(values); start += inClauseChunk {
		end := min(start+inClauseChunk, len(values))
		out = append(out, values[start:end])
	}
	return out
}

func stringArgs(values []string) []any {
	args := make([]any, 0, len(values))
	for _, value := range values {
		args = append(args, value)
	}
	return args
}
