package graph

import (
	"context"

	"github.com/davidahmann/opsgraph/core/authz"
	"github.com/davidahmann/opsgraph/core/model"
)

func (s *Service) GetProject(ctx context.Context, caller model.Caller, id string) (project model.Project, found bool, err error) {
	ctx, span, err := s.begin(ctx, authz.OpGetProject, caller)
	defer func() { end(span, err) }()
	if err != nil {
		return model.Project{}, false, err
	}
	return s.repo.GetProject(ctx, id)
}

func (s *Service) GetProjects(ctx context.Context, caller model.Caller) (projects []model.Project, err error) {
	ctx, span, err := s.begin(ctx, authz.OpGetProjects, caller)
	defer func() { end(span, err) }()
	if err != nil {
		return nil, err
	}
	return s.repo.GetProjects(ctx)
}

// InsertProject stores the project and its membership together. An existing
// project id reports false; a member that is not a node is a not_found
// error and nothing is written.
func (s *Service) InsertProject(ctx context.Context, caller model.Caller, project model.Project) (stored model.Project, inserted bool, err error) {
	ctx, span, err := s.begin(ctx, authz.OpInsertProject, caller)
	defer func() { end(span, err) }()
	if err != nil {
		return model.Project{}, false, err
	}
	if err = project.Validate(); err != nil {
		return model.Project{}, false, err
	}

	s.write.Lock()
	defer s.write.Unlock()
	return s.insertProject(ctx, caller, project)
}

func (s *Service) insertProject(ctx context.Context, caller model.Caller, project model.Project) (model.Project, bool, error) {
	stored, inserted, err := s.repo.InsertProject(ctx, project)
	if err != nil || !inserted {
		return model.Project{}, false, err
	}
	s.recordInsert(ctx, caller, model.EntityProject, stored.ID, stored.Snapshot())
	return stored, true, nil
}

// UpdateProject replaces name, author and data. Membership is unchanged.
func (s *Service) UpdateProject(ctx context.Context, caller model.Caller, project model.Project) (updated bool, err error) {
	ctx, span, err := s.begin(ctx, authz.OpUpdateProject, caller)
	defer func() { end(span, err) }()
	if err != nil {
		return false, err
	}
	if err = project.Validate(); err != nil {
		return false, err
	}

	s.write.Lock()
	defer s.write.Unlock()
	before, found, err := s.repo.GetProject(ctx, project.ID)
	if err != nil || !found {
		return false, err
	}
	updated, err = s.repo.UpdateProject(ctx, project)
	if err != nil || !updated {
		return false, err
	}
	after := project
	after.NodeIDs = before.NodeIDs
	s.recordUpdate(ctx, caller, model.EntityProject, project.ID, before.Snapshot(), after.Snapshot())
	return true, nil
}

// DeleteProject removes the project and its membership rows. Member nodes
// and their edges are kept.
func (s *Service) DeleteProject(ctx context.Context, caller model.Caller, id string) (deleted bool, err error) {
	ctx, span, err := s.begin(ctx, authz.OpDeleteProject, caller)
	defer func() { end(span, err) }()
	if err != nil {
		return false, err
	}

	s.write.Lock()
	defer s.write.Unlock()
	before, found, err := s.repo.GetProject(ctx, id)
	if err != nil || !found {
		return false, err
	}
	deleted, err = s.repo.DeleteProject(ctx, id)
	if err != nil || !deleted {
		return false, err
	}
	s.recordDelete(ctx, caller, model.EntityProject, id, before.Snapshot())
	return true, nil
}

// AddProjectNode adds a member. It reports false when the membership exists
// or either the project or the node is missing.
func (s *Service) AddProjectNode(ctx context.Context, caller model.Caller, projectID, nodeID string) (added bool, err error) {
	ctx, span, err := s.begin(ctx, authz.OpAddProjectNode, caller)
	defer func() { end(span, err) }()
	if err != nil {
		return false, err
	}

	s.write.Lock()
	defer s.write.Unlock()
	added, err = s.repo.AddProjectNode(ctx, projectID, nodeID)
	if err != nil || !added {
		return false, err
	}
	s.recordInsert(ctx, caller, model.EntityProjectNode, model.MembershipID(projectID, nodeID), model.MembershipSnapshot(projectID, nodeID))
	return true, nil
}

func (s *Service) RemoveProjectNode(ctx context.Context, caller model.Caller, projectID, nodeID string) (removed bool, err error) {
	ctx, span, err := s.begin(ctx, authz.OpRemoveProjectNode, caller)
	defer func() { end(span, err) }()
	if err != nil {
		return false, err
	}

	s.write.Lock()
	defer s.write.Unlock()
	removed, err = s.repo.RemoveProjectNode(ctx, projectID, nodeID)
	if err != nil || !removed {
		return false, err
	}
	s.recordDelete(ctx, caller, model.EntityProjectNode, model.MembershipID(projectID, nodeID), model.MembershipSnapshot(projectID, nodeID))
	return true, nil
}

// GetProjectGraph materializes everything reachable from the project's
// members along outgoing edges. found is false when the project does not
// exist.
func (s *Service) GetProjectGraph(ctx context.Context, caller model.Caller, id string) (view model.GraphView, found bool, err error) {
	ctx, span, err := s.begin(ctx, authz.OpGetProjectGraph, caller)
	defer func() { end(span, err) }()
	if err != nil {
		return model.GraphView{}, false, err
	}
	return s.repo.ProjectGraph(ctx, id)
}
