// Package audit appends one immutable row per graph mutation and reads the
// trail back most recent first.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	coreerrors "github.com/davidahmann/opsgraph/core/errors"
	"github.com/davidahmann/opsgraph/core/fsx"
	"github.com/davidahmann/opsgraph/core/model"
	"github.com/davidahmann/opsgraph/core/store"
	"github.com/davidahmann/opsgraph/internal/ctxlog"
)

type Options struct {
	// MirrorPath, when set, receives every recorded entry as a JSONL line.
	MirrorPath string
	Now        func() time.Time
}

type Recorder struct {
	db         *sql.DB
	mirrorPath string
	now        func() time.Time

	mu   sync.Mutex
	last time.Time
}

func New(db *sql.DB, opts Options) *Recorder {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Recorder{
		db:         db,
		mirrorPath: strings.TrimSpace(opts.MirrorPath),
		now:        now,
	}
}

// Record appends entry and returns it with its assigned id and timestamp.
// Timestamps never move backwards relative to rows already in the table.
func (r *Recorder) Record(ctx context.Context, entry model.AuditEntry) (model.AuditEntry, error) {
	if err := validateEntry(entry); err != nil {
		return model.AuditEntry{}, err
	}
	oldData, err := encodeSnapshot(entry.OldData)
	if err != nil {
		return model.AuditEntry{}, err
	}
	newData, err := encodeSnapshot(entry.NewData)
	if err != nil {
		return model.AuditEntry{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.AuditEntry{}, store.Classify(err, "begin audit transaction")
	}
	defer func() { _ = tx.Rollback() }()

	latest, err := r.latest(ctx, tx)
	if err != nil {
		return model.AuditEntry{}, err
	}
	createdAt := r.now().UTC()
	if createdAt.Before(latest) {
		createdAt = latest
	}
	result, err := tx.ExecContext(ctx, `
		INSERT INTO audit (entity_type, entity_id, action, old_data, new_data, actor_id, actor_ip, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(entry.EntityType), entry.EntityID, string(entry.Action),
		oldData, newData, entry.ActorID, entry.ActorIP, model.FormatTimestamp(createdAt))
	if err != nil {
		return model.AuditEntry{}, store.Classify(err, "insert audit row")
	}
	id, err := result.LastInsertId()
	if err != nil {
		return model.AuditEntry{}, store.Classify(err, "read audit row id")
	}
	if err := tx.Commit(); err != nil {
		return model.AuditEntry{}, store.Classify(err, "commit audit row")
	}
	r.last = createdAt
	entry.ID = id
	entry.CreatedAt = createdAt

	if r.mirrorPath != "" {
		if err := fsx.AppendJSONL(r.mirrorPath, entry); err != nil {
			ctxlog.FromContext(ctx).Error("audit mirror append failed",
				"path", r.mirrorPath, "audit_id", id, "error", err)
		}
	}
	return entry, nil
}

// latest returns the newest timestamp written by this recorder or any other
// writer of the same database.
func (r *Recorder) latest(ctx context.Context, tx *sql.Tx) (time.Time, error) {
	var stored sql.NullString
	if err := tx.QueryRowContext(ctx, `SELECT MAX(created_at) FROM audit`).Scan(&stored); err != nil {
		return time.Time{}, store.Classify(err, "select latest audit timestamp")
	}
	if !stored.Valid {
		return r.last, nil
	}
	parsed, err := model.ParseTimestamp(stored.String)
	if err != nil {
		return time.Time{}, coreerrors.Wrap(err, coreerrors.CategoryStorageFailure, coreerrors.CodeMalformedStoredData, "repair the audit row timestamp", false)
	}
	if parsed.Before(r.last) {
		return r.last, nil
	}
	return parsed, nil
}

// Logs returns up to limit entries, most recent first.
func (r *Recorder) Logs(ctx context.Context, limit int) ([]model.AuditEntry, error) {
	if limit < 1 {
		return nil, coreerrors.Invalid("audit log limit must be at least 1, got %d", limit)
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, entity_type, entity_id, action, old_data, new_data, actor_id, actor_ip, created_at
		FROM audit
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, store.Classify(err, "select audit rows")
	}
	defer func() { _ = rows.Close() }()

	entries := []model.AuditEntry{}
	for rows.Next() {
		var (
			entry      model.AuditEntry
			entityType string
			action     string
			oldData    sql.NullString
			newData    sql.NullString
			createdAt  string
		)
		if err := rows.Scan(&entry.ID, &entityType, &entry.EntityID, &action, &oldData, &newData,
			&entry.ActorID, &entry.ActorIP, &createdAt); err != nil {
			return nil, store.Classify(err, "scan audit row")
		}
		entry.EntityType = model.EntityType(entityType)
		entry.Action = model.AuditAction(action)
		if entry.OldData, err = decodeSnapshot(oldData, entry.ID); err != nil {
			return nil, err
		}
		if entry.NewData, err = decodeSnapshot(newData, entry.ID); err != nil {
			return nil, err
		}
		if entry.CreatedAt, err = model.ParseTimestamp(createdAt); err != nil {
			return nil, coreerrors.Wrap(err, coreerrors.CategoryStorageFailure, coreerrors.CodeMalformedStoredData, "repair the audit row timestamp", false)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Classify(err, "select audit rows")
	}
	return entries, nil
}

func validateEntry(entry model.AuditEntry) error {
	if strings.TrimSpace(string(entry.EntityType)) == "" {
		return coreerrors.Invalid("audit entity type is required")
	}
	if strings.TrimSpace(entry.EntityID) == "" {
		return coreerrors.Invalid("audit entity id is required")
	}
	switch entry.Action {
	case model.ActionInsert, model.ActionUpdate, model.ActionDelete:
		return nil
	default:
		return coreerrors.Invalid("unsupported audit action %q", entry.Action)
	}
}

func encodeSnapshot(data model.Data) (sql.NullString, error) {
	if data == nil {
		return sql.NullString{}, nil
	}
	encoded, err := model.EncodeData(data)
	if err != nil {
		return sql.NullString{}, coreerrors.Wrap(err, coreerrors.CategoryInvalidInput, coreerrors.CodeInvalidInput, "audit snapshots must be JSON encodable", false)
	}
	return sql.NullString{String: encoded, Valid: true}, nil
}

func decodeSnapshot(raw sql.NullString, id int64) (model.Data, error) {
	if !raw.Valid {
		return nil, nil
	}
	data, err := model.DecodeData(raw.String)
	if err != nil {
		return nil, coreerrors.Wrap(fmt.Errorf("audit row %d: %w", id, err), coreerrors.CategoryStorageFailure, coreerrors.CodeMalformedStoredData, "repair the audit row snapshot", false)
	}
	return data, nil
}
