package repository

import (
	"context"

	"github.com/davidahmann/opsgraph/core/store"
)

// successorsFunc returns the distinct targets of edges leaving any frontier node.
type successorsFunc func(ctx context.Context, frontier []string) ([]string, error)

// reaches walks outgoing edges breadth-first from start and reports whether
// goal is reachable. The walk visits each node at most once and never runs
// more than limit levels.
func reaches(ctx context.Context, start, goal string, limit int, successors successorsFunc) (bool, error) {
	if start == goal {
		return true, nil
	}
	visited := map[string]struct{}{start: {}}
	frontier := []string{start}
	for level := 0; len(frontier) > 0 && level <= limit; level++ {
		next, err := successors(ctx, frontier)
		if err != nil {
			return false, err
		}
		frontier = frontier[:0:0]
		for _, nodeID := range next {
			if nodeID == goal {
				return true, nil
			}
			if _, seen := visited[nodeID]; seen {
				continue
			}
			visited[nodeID] = struct{}{}
			frontier = append(frontier, nodeID)
		}
	}
	return false, nil
}

// WouldCreateCycle reports whether adding source -> target would close a
// directed cycle. Self-loops always do.
func (r *Repository) WouldCreateCycle(ctx context.Context, source, target string) (bool, error) {
	return r.wouldCreateCycle(ctx, r.db, source, target)
}

func (r *Repository) wouldCreateCycle(ctx context.Context, q querier, source, target string) (bool, error) {
	if source == target {
		return true, nil
	}
	limit, err := r.countNodes(ctx, q)
	if err != nil {
		return false, err
	}
	return reaches(ctx, target, source, limit, func(ctx context.Context, frontier []string) ([]string, error) {
		return successorIDs(ctx, q, frontier)
	})
}

func successorIDs(ctx context.Context, q querier, frontier []string) ([]string, error) {
	out := []string{}
	for _, chunk := range chunks(frontier) {
		rows, err := q.QueryContext(ctx,
			`SELECT DISTINCT target FROM edges WHERE source IN (`+placeholders(len(chunk))+`) ORDER BY target`,
			stringArgs(chunk)...)
		if err != nil {
			return nil, store.Classify(err, "select successors")
		}
		for rows.Next() {
			var target string
			if err := rows.Scan(&target); err != nil {
				_ = rows.Close()
				return nil, store.Classify(err, "scan successor")
			}
			out = append(out, target)
		}
		err = rows.Err()
		_ = rows.Close()
		if err != nil {
			return nil, store.Classify(err, "select successors")
		}
	}
	return out, nil
}

// adjacency is an in-memory copy of the edge set used to validate batches.
type adjacency struct {
	successors map[string][]string
	edges      map[[2]string]struct{}
	vertices   map[string]struct{}
}

func newAdjacency() *adjacency {
	return &adjacency{
		successors: map[string][]string{},
		edges:      map[[2]string]struct{}{},
		vertices:   map[string]struct{}{},
	}
}

func loadAdjacency(ctx context.Context, q querier) (*adjacency, error) {
	rows, err := q.QueryContext(ctx, `SELECT source, target FROM edges ORDER BY id`)
	if err != nil {
		return nil, store.Classify(err, "load edges")
	}
	defer func() { _ = rows.Close() }()
	graph := newAdjacency()
	for rows.Next() {
		var source, target string
		if err := rows.Scan(&source, &target); err != nil {
			return nil, store.Classify(err, "scan edge")
		}
		graph.add(source, target)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Classify(err, "load edges")
	}
	return graph, nil
}

func (a *adjacency) add(source, target string) {
	key := [2]string{source, target}
	if _, exists := a.edges[key]; exists {
		return
	}
	a.edges[key] = struct{}{}
	a.successors[source] = append(a.successors[source], target)
	a.vertices[source] = struct{}{}
	a.vertices[target] = struct{}{}
}

func (a *adjacency) wouldCreateCycle(source, target string) bool {
	found, _ := reaches(context.Background(), target, source, len(a.vertices), func(_ context.Context, frontier []string) ([]string, error) {
		var next []string
		for _, nodeID := range frontier {
			next = append(next, a.successors[nodeID]...)
		}
		return next, nil
	})
	return found
}
