package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/davidahmann/opsgraph/core/model"
	"github.com/davidahmann/opsgraph/core/store"
	"github.com/davidahmann/opsgraph/internal/ctxlog"
)

const nodeColumns = `id, label, category, type, data`

func scanNode(row scanner) (model.Node, error) {
	var (
		node     model.Node
		category string
		nodeType string
		rawData  string
	)
	if err := row.Scan(&node.ID, &node.Label, &category, &nodeType, &rawData); err != nil {
		return model.Node{}, err
	}
	node.Category = model.Category(category)
	node.Type = model.NodeType(nodeType)
	data, err := model.DecodeData(rawData)
	if err != nil {
		return model.Node{}, malformed("node", node.ID, err)
	}
	node.Data = data
	return node, nil
}

func collectNodes(rows *sql.Rows, op string) ([]model.Node, error) {
	defer func() { _ = rows.Close() }()
	nodes := []model.Node{}
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, store.Classify(err, op)
		}
		nodes = append(nodes, node)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Classify(err, op)
	}
	return nodes, nil
}

func (r *Repository) GetNode(ctx context.Context, id string) (model.Node, bool, error) {
	node, err := scanNode(r.db.QueryRowContext(ctx, `SELECT `+nodeColumns+` FROM nodes WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Node{}, false, nil
	}
	if err != nil {
		return model.Node{}, false, store.Classify(err, "select node")
	}
	return node, true, nil
}

func (r *Repository) GetNodes(ctx context.Context) ([]model.Node, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+nodeColumns+` FROM nodes ORDER BY id`)
	if err != nil {
		return nil, store.Classify(err, "select nodes")
	}
	return collectNodes(rows, "select nodes")
}

// NodeParents returns the nodes with an edge into id.
func (r *Repository) NodeParents(ctx context.Context, id string) ([]model.Node, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT n.id, n.label, n.category, n.type, n.data
		FROM nodes n JOIN edges e ON e.source = n.id
		WHERE e.target = ?
		ORDER BY n.id`, id)
	if err != nil {
		return nil, store.Classify(err, "select node parents")
	}
	return collectNodes(rows, "select node parents")
}

// NodeDependents returns the nodes id has an edge to.
func (r *Repository) NodeDependents(ctx context.Context, id string) ([]model.Node, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT n.id, n.label, n.category, n.type, n.data
		FROM nodes n JOIN edges e ON e.target = n.id
		WHERE e.source = ?
		ORDER BY n.id`, id)
	if err != nil {
		return nil, store.Classify(err, "select node dependents")
	}
	return collectNodes(rows, "select node dependents")
}

// InsertNode writes the node unless a node with the same id exists. The
// result reports whether a row was written.
func (r *Repository) InsertNode(ctx context.Context, node model.Node) (bool, error) {
	if err := node.Validate(); err != nil {
		return false, err
	}
	return insertNode(ctx, r.db, node)
}

// InsertNodes writes a batch of nodes in one transaction and returns the
// nodes that were actually written, in input order.
func (r *Repository) InsertNodes(ctx context.Context, nodes []model.Node) ([]model.Node, error) {
	for _, node := range nodes {
		if err := node.Validate(); err != nil {
			return nil, err
		}
	}
	inserted := []model.Node{}
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		for _, node := range nodes {
			ok, err := insertNode(ctx, tx, node)
			if err != nil {
				return err
			}
			if ok {
				inserted = append(inserted, node)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inserted, nil
}

func insertNode(ctx context.Context, q querier, node model.Node) (bool, error) {
	data, err := model.EncodeData(node.Data)
	if err != nil {
		return false, err
	}
	result, err := q.ExecContext(ctx,
		`INSERT OR IGNORE INTO nodes (id, label, category, type, data) VALUES (?, ?, ?, ?, ?)`,
		node.ID, node.Label, string(node.Category), string(node.Type), data)
	if err != nil {
		return false, store.Classify(err, "insert node")
	}
	ok, err := affected(result, "insert node")
	if err == nil && !ok {
		ctxlog.FromContext(ctx).Debug("node insert ignored", "node_id", node.ID)
	}
	return ok, err
}

func (r *Repository) UpdateNode(ctx context.Context, node model.Node) (bool, error) {
	if err := node.Validate(); err != nil {
		return false, err
	}
	data, err := model.EncodeData(node.Data)
	if err != nil {
		return false, err
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE nodes SET label = ?, category = ?, type = ?, data = ? WHERE id = ?`,
		node.Label, string(node.Category), string(node.Type), data, node.ID)
	if err != nil {
		return false, store.Classify(err, "update node")
	}
	return affected(result, "update node")
}

// DeleteNode removes the node; its edges, status and project memberships
// are removed by cascade.
func (r *Repository) DeleteNode(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM nodes WHERE id = ?`, id)
	if err != nil {
		return false, store.Classify(err, "delete node")
	}
	return affected(result, "delete node")
}

func (r *Repository) countNodes(ctx context.Context, q querier) (int, error) {
	var count int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM nodes`).Scan(&count); err != nil {
		return 0, store.Classify(err, "count nodes")
	}
	return count, nil
}

func (r *Repository) nodesByID(ctx context.Context, ids []string) (map[string]model.Node, error) {
	out := make(map[string]model.Node, len(ids))
	for _, chunk := range chunks(ids) {
		rows, err := r.db.QueryContext(ctx,
			`SELECT `+nodeColumns+` FROM nodes WHERE id IN (`+placeholders(len(chunk))+`)`,
			stringArgs(chunk)...)
		if err != nil {
			return nil, store.Classify(err, "select nodes by id")
		}
		nodes, err := collectNodes(rows, "select nodes by id")
		if err != nil {
			return nil, err
		}
		for _, node := range nodes {
			out[node.ID] = node
		}
	}
	return out, nil
}
