package graph

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/davidahmann/opsgraph/core/authz"
	"github.com/davidahmann/opsgraph/core/model"
)

func (s *Service) GetEdge(ctx context.Context, caller model.Caller, source, target string) (edge model.Edge, found bool, err error) {
	ctx, span, err := s.begin(ctx, authz.OpGetEdge, caller)
	defer func() { end(span, err) }()
	if err != nil {
		return model.Edge{}, false, err
	}
	return s.repo.GetEdge(ctx, source, target)
}

func (s *Service) GetEdges(ctx context.Context, caller model.Caller) (edges []model.Edge, err error) {
	ctx, span, err := s.begin(ctx, authz.OpGetEdges, caller)
	defer func() { end(span, err) }()
	if err != nil {
		return nil, err
	}
	return s.repo.GetEdges(ctx)
}

// InsertEdge stores edge when it keeps the graph acyclic. An edge that would
// close a cycle, or that already exists, reports false without error.
func (s *Service) InsertEdge(ctx context.Context, caller model.Caller, edge model.Edge) (inserted bool, err error) {
	ctx, span, err := s.begin(ctx, authz.OpInsertEdge, caller)
	defer func() { end(span, err) }()
	if err != nil {
		return false, err
	}
	if err = edge.Validate(); err != nil {
		return false, err
	}

	s.write.Lock()
	defer s.write.Unlock()
	inserted, err = s.repo.InsertEdge(ctx, edge)
	if err != nil {
		return false, err
	}
	span.SetAttributes(attribute.Bool("opsgraph.inserted", inserted))
	if !inserted {
		return false, nil
	}
	s.recordInsert(ctx, caller, model.EntityEdge, edge.ID, edge.Snapshot())
	return true, nil
}

// InsertEdges stores a batch atomically. A cycle anywhere in the batch
// rejects the whole batch with a conflict error naming the offending pair.
func (s *Service) InsertEdges(ctx context.Context, caller model.Caller, edges []model.Edge) (count int, err error) {
	ctx, span, err := s.begin(ctx, authz.OpInsertEdges, caller)
	defer func() { end(span, err) }()
	if err != nil {
		return 0, err
	}

	s.write.Lock()
	defer s.write.Unlock()
	inserted, err := s.repo.InsertEdges(ctx, edges)
	if err != nil {
		return 0, err
	}
	for _, edge := range inserted {
		s.recordInsert(ctx, caller, model.EntityEdge, edge.ID, edge.Snapshot())
	}
	span.AddEvent("edges.inserted", trace.WithAttributes(attribute.Int("opsgraph.count", len(inserted))))
	return len(inserted), nil
}

// UpdateEdge replaces the label and data of an existing edge.
func (s *Service) UpdateEdge(ctx context.Context, caller model.Caller, edge model.Edge) (updated bool, err error) {
	ctx, span, err := s.begin(ctx, authz.OpUpdateEdge, caller)
	defer func() { end(span, err) }()
	if err != nil {
		return false, err
	}
	if err = edge.Validate(); err != nil {
		return false, err
	}

	s.write.Lock()
	defer s.write.Unlock()
	before, found, err := s.repo.GetEdge(ctx, edge.Source, edge.Target)
	if err != nil || !found {
		return false, err
	}
	updated, err = s.repo.UpdateEdge(ctx, edge)
	if err != nil || !updated {
		return false, err
	}
	s.recordUpdate(ctx, caller, model.EntityEdge, edge.ID, before.Snapshot(), edge.Snapshot())
	return true, nil
}

func (s *Service) DeleteEdge(ctx context.Context, caller model.Caller, source, target string) (deleted bool, err error) {
	ctx, span, err := s.begin(ctx, authz.OpDeleteEdge, caller)
	defer func() { end(span, err) }()
	if err != nil {
		return false, err
	}

	s.write.Lock()
	defer s.write.Unlock()
	before, found, err := s.repo.GetEdge(ctx, source, target)
	if err != nil || !found {
		return false, err
	}
	deleted, err = s.repo.DeleteEdge(ctx, source, target)
	if err != nil || !deleted {
		return false, err
	}
	s.recordDelete(ctx, caller, model.EntityEdge, before.ID, before.Snapshot())
	return true, nil
}

// GetGraph returns every node and edge.
func (s *Service) GetGraph(ctx context.Context, caller model.Caller) (view model.GraphView, err error) {
	ctx, span, err := s.begin(ctx, authz.OpGetGraph, caller)
	defer func() { end(span, err) }()
	if err != nil {
		return model.GraphView{}, err
	}
	return s.repo.Graph(ctx)
}
