package repository

import (
	"context"
	"fmt"

	coreerrors "github.com/davidahmann/opsgraph/core/errors"
	"github.com/davidahmann/opsgraph/core/model"
	"github.com/davidahmann/opsgraph/internal/ctxlog"
)

// Graph returns every node and edge, ordered by id.
func (r *Repository) Graph(ctx context.Context) (model.GraphView, error) {
	nodes, err := r.GetNodes(ctx)
	if err != nil {
		return model.GraphView{}, err
	}
	edges, err := r.GetEdges(ctx)
	if err != nil {
		return model.GraphView{}, err
	}
	view := model.GraphView{
		Nodes: make([]model.ViewNode, 0, len(nodes)),
		Edges: make([]model.ViewEdge, 0, len(edges)),
	}
	for _, node := range nodes {
		view.Nodes = append(view.Nodes, model.ViewNode{Node: node})
	}
	for _, edge := range edges {
		view.Edges = append(view.Edges, model.ViewEdge{Edge: edge})
	}
	return view, nil
}

// ProjectGraph materializes the subgraph reachable from the project's member
// nodes by following outgoing edges. Each edge carries the smallest hop
// count at which it was reached, edges leaving members being depth zero.
// Nodes and edges are ordered by depth, then by discovery. The boolean is
// false when the project does not exist.
func (r *Repository) ProjectGraph(ctx context.Context, projectID string) (model.GraphView, bool, error) {
	exists, err := r.projectExists(ctx, projectID)
	if err != nil || !exists {
		return model.GraphView{}, false, err
	}
	seeds, err := r.projectMembers(ctx, projectID)
	if err != nil {
		return model.GraphView{}, false, err
	}

	nodeDepth := make(map[string]int, len(seeds))
	nodeOrder := make([]string, 0, len(seeds))
	for _, nodeID := range seeds {
		nodeDepth[nodeID] = 0
		nodeOrder = append(nodeOrder, nodeID)
	}

	view := model.GraphView{Nodes: []model.ViewNode{}, Edges: []model.ViewEdge{}}
	seenEdges := map[string]struct{}{}
	expanded := map[string]struct{}{}
	frontier := seeds
	for depth := 0; len(frontier) > 0; depth++ {
		for _, nodeID := range frontier {
			expanded[nodeID] = struct{}{}
		}
		edges, err := outgoingEdges(ctx, r.db, frontier)
		if err != nil {
			return model.GraphView{}, false, err
		}
		queued := map[string]struct{}{}
		next := []string{}
		for _, edge := range edges {
			if _, seen := seenEdges[edge.ID]; seen {
				continue
			}
			seenEdges[edge.ID] = struct{}{}
			view.Edges = append(view.Edges, model.ViewEdge{Edge: edge, Depth: depth})
			if _, known := nodeDepth[edge.Target]; !known {
				nodeDepth[edge.Target] = depth + 1
				nodeOrder = append(nodeOrder, edge.Target)
			}
			if _, done := expanded[edge.Target]; done {
				continue
			}
			if _, already := queued[edge.Target]; already {
				continue
			}
			queued[edge.Target] = struct{}{}
			next = append(next, edge.Target)
		}
		frontier = next
	}

	nodes, err := r.nodesByID(ctx, nodeOrder)
	if err != nil {
		return model.GraphView{}, false, err
	}
	for _, nodeID := range nodeOrder {
		node, ok := nodes[nodeID]
		if !ok {
			return model.GraphView{}, false, coreerrors.Storage(fmt.Errorf("node %q referenced by project %q is missing", nodeID, projectID), "materialize project graph")
		}
		view.Nodes = append(view.Nodes, model.ViewNode{Node: node, Depth: nodeDepth[nodeID]})
	}
	ctxlog.FromContext(ctx).Debug("project graph materialized",
		"project_id", projectID, "nodes", len(view.Nodes), "edges", len(view.Edges))
	return view, true, nil
}
