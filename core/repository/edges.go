package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	coreerrors "github.com/davidahmann/opsgraph/core/errors"
	"github.com/davidahmann/opsgraph/core/model"
	"github.com/davidahmann/opsgraph/core/store"
	"github.com/davidahmann/opsgraph/internal/ctxlog"
)

const edgeColumns = `id, source, target, label, data`

func scanEdge(row scanner) (model.Edge, error) {
	var (
		edge    model.Edge
		rawData string
	)
	if err := row.Scan(&edge.ID, &edge.Source, &edge.Target, &edge.Label, &rawData); err != nil {
		return model.Edge{}, err
	}
	data, err := model.DecodeData(rawData)
	if err != nil {
		return model.Edge{}, malformed("edge", edge.ID, err)
	}
	edge.Data = data
	return edge, nil
}

func collectEdges(rows *sql.Rows, op string) ([]model.Edge, error) {
	defer func() { _ = rows.Close() }()
	edges := []model.Edge{}
	for rows.Next() {
		edge, err := scanEdge(rows)
		if err != nil {
			return nil, store.Classify(err, op)
		}
		edges = append(edges, edge)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Classify(err, op)
	}
	return edges, nil
}

func (r *Repository) getEdge(ctx context.Context, query string, args ...any) (model.Edge, bool, error) {
	edge, err := scanEdge(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Edge{}, false, nil
	}
	if err != nil {
		return model.Edge{}, false, store.Classify(err, "select edge")
	}
	return edge, true, nil
}

func (r *Repository) GetEdge(ctx context.Context, source, target string) (model.Edge, bool, error) {
	return r.getEdge(ctx, `SELECT `+edgeColumns+` FROM edges WHERE source = ? AND target = ?`, source, target)
}

func (r *Repository) GetEdgeByID(ctx context.Context, id string) (model.Edge, bool, error) {
	return r.getEdge(ctx, `SELECT `+edgeColumns+` FROM edges WHERE id = ?`, id)
}

func (r *Repository) GetEdges(ctx context.Context) ([]model.Edge, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+edgeColumns+` FROM edges ORDER BY id`)
	if err != nil {
		return nil, store.Classify(err, "select edges")
	}
	return collectEdges(rows, "select edges")
}

// InsertEdge writes the edge unless it already exists or would close a
// cycle. Both cases report false without an error; callers that need to
// tell them apart look the edge up afterwards. An endpoint that does not
// exist yields a not_found error.
func (r *Repository) InsertEdge(ctx context.Context, edge model.Edge) (bool, error) {
	if err := edge.Validate(); err != nil {
		return false, err
	}
	inserted := false
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		cycle, err := r.wouldCreateCycle(ctx, tx, edge.Source, edge.Target)
		if err != nil {
			return err
		}
		if cycle {
			ctxlog.FromContext(ctx).Debug("edge insert refused: cycle", "source", edge.Source, "target", edge.Target)
			return nil
		}
		inserted, err = insertEdge(ctx, tx, edge)
		return err
	})
	if err != nil {
		return false, err
	}
	return inserted, nil
}

// InsertEdges checks each batch edge against the committed edges plus the
// batch edges written before it, all in one transaction.
// If any edge would close a cycle nothing is written and the returned
// conflict error names the offending pair. The result lists the edges that
// were written; edges that already existed are skipped.
func (r *Repository) InsertEdges(ctx context.Context, edges []model.Edge) ([]model.Edge, error) {
	for _, edge := range edges {
		if err := edge.Validate(); err != nil {
			return nil, err
		}
	}
	inserted := []model.Edge{}
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		graph, err := loadAdjacency(ctx, tx)
		if err != nil {
			return err
		}
		for _, edge := range edges {
			if graph.wouldCreateCycle(edge.Source, edge.Target) {
				return cycleError(edge.Source, edge.Target)
			}
			ok, err := insertEdge(ctx, tx, edge)
			if err != nil {
				return err
			}
			if ok {
				graph.add(edge.Source, edge.Target)
				inserted = append(inserted, edge)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inserted, nil
}

func cycleError(source, target string) error {
	return coreerrors.Wrap(
		fmt.Errorf("edge %s -> %s would create a cycle", source, target),
		coreerrors.CategoryConflict,
		coreerrors.CodeEdgeCycle,
		"remove the edge that closes the loop from the batch",
		false,
	)
}

// IsCycle reports whether err is the batch cycle rejection.
func IsCycle(err error) bool {
	return coreerrors.CategoryOf(err) == coreerrors.CategoryConflict && coreerrors.CodeOf(err) == coreerrors.CodeEdgeCycle
}

func insertEdge(ctx context.Context, q querier, edge model.Edge) (bool, error) {
	data, err := model.EncodeData(edge.Data)
	if err != nil {
		return false, err
	}
	result, err := q.ExecContext(ctx,
		`INSERT OR IGNORE INTO edges (id, source, target, label, data) VALUES (?, ?, ?, ?, ?)`,
		edge.ID, edge.Source, edge.Target, edge.Label, data)
	if err != nil {
		return false, store.Classify(err, fmt.Sprintf("insert edge %s", edge.ID))
	}
	return affected(result, "insert edge")
}

// UpdateEdge replaces the label and data of the edge between source and target.
func (r *Repository) UpdateEdge(ctx context.Context, edge model.Edge) (bool, error) {
	if err := edge.Validate(); err != nil {
		return false, err
	}
	data, err := model.EncodeData(edge.Data)
	if err != nil {
		return false, err
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE edges SET label = ?, data = ? WHERE source = ? AND target = ?`,
		edge.Label, data, edge.Source, edge.Target)
	if err != nil {
		return false, store.Classify(err, "update edge")
	}
	return affected(result, "update edge")
}

func (r *Repository) DeleteEdge(ctx context.Context, source, target string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM edges WHERE source = ? AND target = ?`, source, target)
	if err != nil {
		return false, store.Classify(err, "delete edge")
	}
	return affected(result, "delete edge")
}

func (r *Repository) DeleteEdgeByID(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM edges WHERE id = ?`, id)
	if err != nil {
		return false, store.Classify(err, "delete edge")
	}
	return affected(result, "delete edge")
}

// outgoingEdges returns the edges leaving any of sources, ordered by edge id.
func outgoingEdges(ctx context.Context, q querier, sources []string) ([]model.Edge, error) {
	edges := []model.Edge{}
	for _, chunk := range chunks(sources) {
		rows, err := q.QueryContext(ctx,
			`SELECT `+edgeColumns+` FROM edges WHERE source IN (`+placeholders(len(chunk))+`) ORDER BY id`,
			stringArgs(chunk)...)
		if err != nil {
			return nil, store.Classify(err, "select outgoing edges")
		}
		batch, err := collectEdges(rows, "select outgoing edges")
		if err != nil {
			return nil, err
		}
		edges = append(edges, batch...)
	}
	if len(sources) > inClauseChunk {
		sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })
	}
	return edges, nil
}
