package graph

import (
	"context"

	"github.com/davidahmann/opsgraph/core/authz"
	"github.com/davidahmann/opsgraph/core/model"
)

func (s *Service) GetUser(ctx context.Context, caller model.Caller, id string) (user model.User, found bool, err error) {
	ctx, span, err := s.begin(ctx, authz.OpGetUser, caller)
	defer func() { end(span, err) }()
	if err != nil {
		return model.User{}, false, err
	}
	return s.repo.GetUser(ctx, id)
}

func (s *Service) InsertUser(ctx context.Context, caller model.Caller, user model.User) (inserted bool, err error) {
	ctx, span, err := s.begin(ctx, authz.OpInsertUser, caller)
	defer func() { end(span, err) }()
	if err != nil {
		return false, err
	}
	if user, err = model.NewUser(user.ID, user.Role); err != nil {
		return false, err
	}

	s.write.Lock()
	defer s.write.Unlock()
	inserted, err = s.repo.InsertUser(ctx, user)
	if err != nil || !inserted {
		return false, err
	}
	s.recordInsert(ctx, caller, model.EntityUser, user.ID, user.Snapshot())
	return true, nil
}

// UpdateUser changes the role of an existing user.
func (s *Service) UpdateUser(ctx context.Context, caller model.Caller, user model.User) (updated bool, err error) {
	ctx, span, err := s.begin(ctx, authz.OpUpdateUser, caller)
	defer func() { end(span, err) }()
	if err != nil {
		return false, err
	}
	if user, err = model.NewUser(user.ID, user.Role); err != nil {
		return false, err
	}

	s.write.Lock()
	defer s.write.Unlock()
	before, found, err := s.repo.GetUser(ctx, user.ID)
	if err != nil || !found {
		return false, err
	}
	updated, err = s.repo.UpdateUser(ctx, user)
	if err != nil || !updated {
		return false, err
	}
	s.recordUpdate(ctx, caller, model.EntityUser, user.ID, before.Snapshot(), user.Snapshot())
	return true, nil
}
