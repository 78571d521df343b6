package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/davidahmann/opsgraph/core/model"
	"github.com/davidahmann/opsgraph/core/store"
)

func (r *Repository) GetUser(ctx context.Context, id string) (model.User, bool, error) {
	var (
		user model.User
		role string
	)
	err := r.db.QueryRowContext(ctx, `SELECT id, role FROM users WHERE id = ?`, id).Scan(&user.ID, &role)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, false, nil
	}
	if err != nil {
		return model.User{}, false, store.Classify(err, "select user")
	}
	user.Role = model.Role(role)
	return user, true, nil
}

func (r *Repository) InsertUser(ctx context.Context, user model.User) (bool, error) {
	if _, err := model.NewUser(user.ID, user.Role); err != nil {
		return false, err
	}
	result, err := r.db.ExecContext(ctx, `INSERT OR IGNORE INTO users (id, role) VALUES (?, ?)`, user.ID, string(user.Role))
	if err != nil {
		return false, store.Classify(err, "insert user")
	}
	return affected(result, "insert user")
}

func (r *Repository) UpdateUser(ctx context.Context, user model.User) (bool, error) {
	if _, err := model.NewUser(user.ID, user.Role); err != nil {
		return false, err
	}
	result, err := r.db.ExecContext(ctx, `UPDATE users SET role = ? WHERE id = ?`, string(user.Role), user.ID)
	if err != nil {
		return false, store.Classify(err, "update user")
	}
	return affected(result, "update user")
}
