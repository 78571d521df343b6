package graph

import (
	"context"

	"github.com/davidahmann/opsgraph/core/authz"
	"github.com/davidahmann/opsgraph/core/model"
)

// GetStatuses reports the status of every node; nodes without a stored
// status report unknown.
func (s *Service) GetStatuses(ctx context.Context, caller model.Caller) (statuses []model.Status, err error) {
	ctx, span, err := s.begin(ctx, authz.OpGetStatuses, caller)
	defer func() { end(span, err) }()
	if err != nil {
		return nil, err
	}
	return s.repo.GetStatuses(ctx)
}

// GetNodeStatus reports the node's status. found is false when the node
// does not exist.
func (s *Service) GetNodeStatus(ctx context.Context, caller model.Caller, nodeID string) (status model.Status, found bool, err error) {
	ctx, span, err := s.begin(ctx, authz.OpGetNodeStatus, caller)
	defer func() { end(span, err) }()
	if err != nil {
		return model.Status{}, false, err
	}
	return s.repo.GetNodeStatus(ctx, nodeID)
}

// SetNodeStatus replaces the node's status. The audit row is an insert when
// the node had no stored status and an update otherwise.
func (s *Service) SetNodeStatus(ctx context.Context, caller model.Caller, status model.Status) (applied bool, err error) {
	ctx, span, err := s.begin(ctx, authz.OpSetNodeStatus, caller)
	defer func() { end(span, err) }()
	if err != nil {
		return false, err
	}
	if err = status.Validate(); err != nil {
		return false, err
	}

	s.write.Lock()
	defer s.write.Unlock()
	before, existed, err := s.repo.LookupStatus(ctx, status.NodeID)
	if err != nil {
		return false, err
	}
	applied, err = s.repo.SetNodeStatus(ctx, status)
	if err != nil || !applied {
		return false, err
	}
	s.recordStatus(ctx, caller, before, existed, status)
	return true, nil
}

// SetNodeStatuses applies a batch in one transaction, skipping statuses for
// nodes that do not exist, and returns how many were applied.
func (s *Service) SetNodeStatuses(ctx context.Context, caller model.Caller, statuses []model.Status) (count int, err error) {
	ctx, span, err := s.begin(ctx, authz.OpSetNodeStatuses, caller)
	defer func() { end(span, err) }()
	if err != nil {
		return 0, err
	}

	s.write.Lock()
	defer s.write.Unlock()
	return s.setStatuses(ctx, caller, statuses)
}

func (s *Service) setStatuses(ctx context.Context, caller model.Caller, statuses []model.Status) (int, error) {
	type previous struct {
		status  model.Status
		existed bool
	}
	befores := make(map[string]previous, len(statuses))
	for _, status := range statuses {
		if _, seen := befores[status.NodeID]; seen {
			continue
		}
		before, existed, err := s.repo.LookupStatus(ctx, status.NodeID)
		if err != nil {
			return 0, err
		}
		befores[status.NodeID] = previous{status: before, existed: existed}
	}
	applied, err := s.repo.SetNodeStatuses(ctx, statuses)
	if err != nil {
		return 0, err
	}
	for _, status := range applied {
		before := befores[status.NodeID]
		s.recordStatus(ctx, caller, before.status, before.existed, status)
		befores[status.NodeID] = previous{status: status, existed: true}
	}
	return len(applied), nil
}

func (s *Service) recordStatus(ctx context.Context, caller model.Caller, before model.Status, existed bool, after model.Status) {
	if existed {
		s.recordUpdate(ctx, caller, model.EntityStatus, after.NodeID, before.Snapshot(), after.Snapshot())
		return
	}
	s.recordInsert(ctx, caller, model.EntityStatus, after.NodeID, after.Snapshot())
}
