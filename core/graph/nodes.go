package graph

import (
	"context"

	"github.com/davidahmann/opsgraph/core/authz"
	"github.com/davidahmann/opsgraph/core/model"
)

func (s *Service) GetNode(ctx context.Context, caller model.Caller, id string) (node model.Node, found bool, err error) {
	ctx, span, err := s.begin(ctx, authz.OpGetNode, caller)
	defer func() { end(span, err) }()
	if err != nil {
		return model.Node{}, false, err
	}
	return s.repo.GetNode(ctx, id)
}

func (s *Service) GetNodes(ctx context.Context, caller model.Caller) (nodes []model.Node, err error) {
	ctx, span, err := s.begin(ctx, authz.OpGetNodes, caller)
	defer func() { end(span, err) }()
	if err != nil {
		return nil, err
	}
	return s.repo.GetNodes(ctx)
}

// GetNodeParents lists the nodes with an edge into id.
func (s *Service) GetNodeParents(ctx context.Context, caller model.Caller, id string) (nodes []model.Node, err error) {
	ctx, span, err := s.begin(ctx, authz.OpGetNodeParents, caller)
	defer func() { end(span, err) }()
	if err != nil {
		return nil, err
	}
	return s.repo.NodeParents(ctx, id)
}

// GetNodeDependents lists the nodes id has an edge to.
func (s *Service) GetNodeDependents(ctx context.Context, caller model.Caller, id string) (nodes []model.Node, err error) {
	ctx, span, err := s.begin(ctx, authz.OpGetNodeDependents, caller)
	defer func() { end(span, err) }()
	if err != nil {
		return nil, err
	}
	return s.repo.NodeDependents(ctx, id)
}

// GetCategories lists the node categories in display order.
func (s *Service) GetCategories(ctx context.Context, caller model.Caller) (categories []model.Category, err error) {
	_, span, err := s.begin(ctx, authz.OpGetCategories, caller)
	defer func() { end(span, err) }()
	if err != nil {
		return nil, err
	}
	return model.Categories(), nil
}

func (s *Service) GetTypes(ctx context.Context, caller model.Caller) (types []model.NodeType, err error) {
	_, span, err := s.begin(ctx, authz.OpGetTypes, caller)
	defer func() { end(span, err) }()
	if err != nil {
		return nil, err
	}
	return model.Types(), nil
}

// InsertNode stores node unless its id is taken. Only a written row is
// audited.
func (s *Service) InsertNode(ctx context.Context, caller model.Caller, node model.Node) (inserted bool, err error) {
	ctx, span, err := s.begin(ctx, authz.OpInsertNode, caller)
	defer func() { end(span, err) }()
	if err != nil {
		return false, err
	}
	if err = node.Validate(); err != nil {
		return false, err
	}

	s.write.Lock()
	defer s.write.Unlock()
	inserted, err = s.repo.InsertNode(ctx, node)
	if err != nil || !inserted {
		return false, err
	}
	s.recordInsert(ctx, caller, model.EntityNode, node.ID, node.Snapshot())
	return true, nil
}

// InsertNodes stores a batch in one transaction and returns how many rows
// were written.
func (s *Service) InsertNodes(ctx context.Context, caller model.Caller, nodes []model.Node) (count int, err error) {
	ctx, span, err := s.begin(ctx, authz.OpInsertNodes, caller)
	defer func() { end(span, err) }()
	if err != nil {
		return 0, err
	}

	s.write.Lock()
	defer s.write.Unlock()
	inserted, err := s.repo.InsertNodes(ctx, nodes)
	if err != nil {
		return 0, err
	}
	for _, node := range inserted {
		s.recordInsert(ctx, caller, model.EntityNode, node.ID, node.Snapshot())
	}
	return len(inserted), nil
}

func (s *Service) UpdateNode(ctx context.Context, caller model.Caller, node model.Node) (updated bool, err error) {
	ctx, span, err := s.begin(ctx, authz.OpUpdateNode, caller)
	defer func() { end(span, err) }()
	if err != nil {
		return false, err
	}
	if err = node.Validate(); err != nil {
		return false, err
	}

	s.write.Lock()
	defer s.write.Unlock()
	before, found, err := s.repo.GetNode(ctx, node.ID)
	if err != nil || !found {
		return false, err
	}
	updated, err = s.repo.UpdateNode(ctx, node)
	if err != nil || !updated {
		return false, err
	}
	s.recordUpdate(ctx, caller, model.EntityNode, node.ID, before.Snapshot(), node.Snapshot())
	return true, nil
}

// DeleteNode removes the node together with its edges, status and project
// memberships. One audit row is written for the node.
func (s *Service) DeleteNode(ctx context.Context, caller model.Caller, id string) (deleted bool, err error) {
	ctx, span, err := s.begin(ctx, authz.OpDeleteNode, caller)
	defer func() { end(span, err) }()
	if err != nil {
		return false, err
	}

	s.write.Lock()
	defer s.write.Unlock()
	before, found, err := s.repo.GetNode(ctx, id)
	if err != nil || !found {
		return false, err
	}
	deleted, err = s.repo.DeleteNode(ctx, id)
	if err != nil || !deleted {
		return false, err
	}
	s.recordDelete(ctx, caller, model.EntityNode, id, before.Snapshot())
	return true, nil
}
