package repository

import (
	"context"
	"database/sql"
	"errors"

	coreerrors "github.com/davidahmann/opsgraph/core/errors"
	"github.com/davidahmann/opsgraph/core/model"
	"github.com/davidahmann/opsgraph/core/store"
)

func scanStatus(row scanner) (model.Status, error) {
	var (
		status    model.Status
		value     string
		createdAt string
	)
	if err := row.Scan(&status.NodeID, &value, &createdAt); err != nil {
		return model.Status{}, err
	}
	status.Status = model.StatusValue(value)
	if createdAt != "" {
		parsed, err := model.ParseTimestamp(createdAt)
		if err != nil {
			return model.Status{}, malformed("status", status.NodeID, err)
		}
		status.CreatedAt = parsed
	}
	return status, nil
}

// GetStatuses returns one status per node ordered by node id. Nodes without
// a stored status report unknown.
func (r *Repository) GetStatuses(ctx context.Context) ([]model.Status, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT n.id, COALESCE(s.status, 'unknown'), COALESCE(s.created_at, '')
		FROM nodes n LEFT JOIN status s ON s.node_id = n.id
		ORDER BY n.id`)
	if err != nil {
		return nil, store.Classify(err, "select statuses")
	}
	defer func() { _ = rows.Close() }()
	statuses := []model.Status{}
	for rows.Next() {
		status, err := scanStatus(rows)
		if err != nil {
			return nil, store.Classify(err, "scan status")
		}
		statuses = append(statuses, status)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Classify(err, "select statuses")
	}
	return statuses, nil
}

// GetNodeStatus returns the status of the node, unknown when none is
// stored. The boolean is false when the node itself does not exist.
func (r *Repository) GetNodeStatus(ctx context.Context, nodeID string) (model.Status, bool, error) {
	status, err := scanStatus(r.db.QueryRowContext(ctx, `
		SELECT n.id, COALESCE(s.status, 'unknown'), COALESCE(s.created_at, '')
		FROM nodes n LEFT JOIN status s ON s.node_id = n.id
		WHERE n.id = ?`, nodeID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Status{}, false, nil
	}
	if err != nil {
		return model.Status{}, false, store.Classify(err, "select node status")
	}
	return status, true, nil
}

// LookupStatus returns the stored status row, reporting false when the node
// has never had a status recorded.
func (r *Repository) LookupStatus(ctx context.Context, nodeID string) (model.Status, bool, error) {
	status, err := scanStatus(r.db.QueryRowContext(ctx,
		`SELECT node_id, status, created_at FROM status WHERE node_id = ?`, nodeID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Status{}, false, nil
	}
	if err != nil {
		return model.Status{}, false, store.Classify(err, "select status")
	}
	return status, true, nil
}

// SetNodeStatus stores the status, replacing any previous one. It reports
// false when the node does not exist.
func (r *Repository) SetNodeStatus(ctx context.Context, status model.Status) (bool, error) {
	if err := status.Validate(); err != nil {
		return false, err
	}
	ok, err := r.upsertStatus(ctx, r.db, status)
	if coreerrors.Is(err, coreerrors.CategoryNotFound) {
		return false, nil
	}
	return ok, err
}

// SetNodeStatuses applies a batch of statuses in one transaction. Statuses
// for missing nodes are skipped; the result lists the applied ones.
func (r *Repository) SetNodeStatuses(ctx context.Context, statuses []model.Status) ([]model.Status, error) {
	for _, status := range statuses {
		if err := status.Validate(); err != nil {
			return nil, err
		}
	}
	applied := []model.Status{}
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		for _, status := range statuses {
			var exists int
			err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM nodes WHERE id = ?`, status.NodeID).Scan(&exists)
			if err != nil {
				return store.Classify(err, "select node")
			}
			if exists == 0 {
				continue
			}
			if _, err := r.upsertStatus(ctx, tx, status); err != nil {
				return err
			}
			applied = append(applied, status)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return applied, nil
}

func (r *Repository) upsertStatus(ctx context.Context, q querier, status model.Status) (bool, error) {
	result, err := q.ExecContext(ctx, `
		INSERT INTO status (node_id, status, created_at) VALUES (?, ?, ?)
		ON CONFLICT(node_id) DO UPDATE SET status = excluded.status, created_at = excluded.created_at`,
		status.NodeID, string(status.Status), model.FormatTimestamp(r.now()))
	if err != nil {
		return false, store.Classify(err, "upsert status")
	}
	return affected(result, "upsert status")
}
