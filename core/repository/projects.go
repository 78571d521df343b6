package repository

import (
	"context"
	"database/sql"
	"errors"

	coreerrors "github.com/davidahmann/opsgraph/core/errors"
	"github.com/davidahmann/opsgraph/core/model"
	"github.com/davidahmann/opsgraph/core/store"
)

const projectColumns = `id, name, author, data, created_at, updated_at`

func scanProject(row scanner) (model.Project, error) {
	var (
		project   model.Project
		rawData   string
		createdAt string
		updatedAt string
	)
	if err := row.Scan(&project.ID, &project.Name, &project.Author, &rawData, &createdAt, &updatedAt); err != nil {
		return model.Project{}, err
	}
	data, err := model.DecodeData(rawData)
	if err != nil {
		return model.Project{}, malformed("project", project.ID, err)
	}
	project.Data = data
	if project.CreatedAt, err = model.ParseTimestamp(createdAt); err != nil {
		return model.Project{}, malformed("project", project.ID, err)
	}
	if project.UpdatedAt, err = model.ParseTimestamp(updatedAt); err != nil {
		return model.Project{}, malformed("project", project.ID, err)
	}
	project.NodeIDs = []string{}
	return project, nil
}

func (r *Repository) GetProject(ctx context.Context, id string) (model.Project, bool, error) {
	project, err := scanProject(r.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Project{}, false, nil
	}
	if err != nil {
		return model.Project{}, false, store.Classify(err, "select project")
	}
	members, err := r.projectMembers(ctx, id)
	if err != nil {
		return model.Project{}, false, err
	}
	project.NodeIDs = members
	return project, true, nil
}

func (r *Repository) GetProjects(ctx context.Context) ([]model.Project, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY id`)
	if err != nil {
		return nil, store.Classify(err, "select projects")
	}
	projects := []model.Project{}
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			_ = rows.Close()
			return nil, store.Classify(err, "scan project")
		}
		projects = append(projects, project)
	}
	err = rows.Err()
	_ = rows.Close()
	if err != nil {
		return nil, store.Classify(err, "select projects")
	}

	memberships, err := r.db.QueryContext(ctx, `SELECT project_id, node_id FROM project_nodes ORDER BY project_id, node_id`)
	if err != nil {
		return nil, store.Classify(err, "select memberships")
	}
	defer func() { _ = memberships.Close() }()
	byProject := map[string][]string{}
	for memberships.Next() {
		var projectID, nodeID string
		if err := memberships.Scan(&projectID, &nodeID); err != nil {
			return nil, store.Classify(err, "scan membership")
		}
		byProject[projectID] = append(byProject[projectID], nodeID)
	}
	if err := memberships.Err(); err != nil {
		return nil, store.Classify(err, "select memberships")
	}
	for index := range projects {
		if members, ok := byProject[projects[index].ID]; ok {
			projects[index].NodeIDs = members
		}
	}
	return projects, nil
}

func (r *Repository) projectMembers(ctx context.Context, projectID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT node_id FROM project_nodes WHERE project_id = ? ORDER BY node_id`, projectID)
	if err != nil {
		return nil, store.Classify(err, "select project members")
	}
	defer func() { _ = rows.Close() }()
	members := []string{}
	for rows.Next() {
		var nodeID string
		if err := rows.Scan(&nodeID); err != nil {
			return nil, store.Classify(err, "scan project member")
		}
		members = append(members, nodeID)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Classify(err, "select project members")
	}
	return members, nil
}

// InsertProject writes the project and its membership rows in one
// transaction. An existing project id reports false and leaves the stored
// project untouched; a member that is not a node yields a not_found error.
func (r *Repository) InsertProject(ctx context.Context, project model.Project) (model.Project, bool, error) {
	if err := project.Validate(); err != nil {
		return model.Project{}, false, err
	}
	data, err := model.EncodeData(project.Data)
	if err != nil {
		return model.Project{}, false, err
	}
	now := r.now().UTC()
	stamp := model.FormatTimestamp(now)
	inserted := false
	err = r.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO projects (id, name, author, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
			project.ID, project.Name, project.Author, data, stamp, stamp)
		if err != nil {
			return store.Classify(err, "insert project")
		}
		if inserted, err = affected(result, "insert project"); err != nil || !inserted {
			return err
		}
		for _, nodeID := range project.NodeIDs {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO project_nodes (project_id, node_id) VALUES (?, ?)`, project.ID, nodeID); err != nil {
				return store.Classify(err, "insert project member "+nodeID)
			}
		}
		return nil
	})
	if err != nil {
		return model.Project{}, false, err
	}
	if !inserted {
		return model.Project{}, false, nil
	}
	stored := project
	stored.CreatedAt, _ = model.ParseTimestamp(stamp)
	stored.UpdatedAt = stored.CreatedAt
	if stored.NodeIDs == nil {
		stored.NodeIDs = []string{}
	}
	return stored, true, nil
}

// UpdateProject replaces name, author and data. Membership is managed with
// AddProjectNode and RemoveProjectNode.
func (r *Repository) UpdateProject(ctx context.Context, project model.Project) (bool, error) {
	if err := project.Validate(); err != nil {
		return false, err
	}
	data, err := model.EncodeData(project.Data)
	if err != nil {
		return false, err
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE projects SET name = ?, author = ?, data = ?, updated_at = ? WHERE id = ?`,
		project.Name, project.Author, data, model.FormatTimestamp(r.now()), project.ID)
	if err != nil {
		return false, store.Classify(err, "update project")
	}
	return affected(result, "update project")
}

// DeleteProject removes the project and its membership rows. Member nodes
// are not touched.
func (r *Repository) DeleteProject(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return false, store.Classify(err, "delete project")
	}
	return affected(result, "delete project")
}

// AddProjectNode adds nodeID to the project. It reports false when the
// membership already exists or either side is missing.
func (r *Repository) AddProjectNode(ctx context.Context, projectID, nodeID string) (bool, error) {
	if err := model.ValidateID("project", projectID); err != nil {
		return false, err
	}
	if err := model.ValidateID("node", nodeID); err != nil {
		return false, err
	}
	result, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO project_nodes (project_id, node_id) VALUES (?, ?)`, projectID, nodeID)
	if err != nil {
		classified := store.Classify(err, "insert project member")
		if coreerrors.Is(classified, coreerrors.CategoryNotFound) {
			return false, nil
		}
		return false, classified
	}
	return affected(result, "insert project member")
}

func (r *Repository) RemoveProjectNode(ctx context.Context, projectID, nodeID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM project_nodes WHERE project_id = ? AND node_id = ?`, projectID, nodeID)
	if err != nil {
		return false, store.Classify(err, "delete project member")
	}
	return affected(result, "delete project member")
}

func (r *Repository) projectExists(ctx context.Context, id string) (bool, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects WHERE id = ?`, id).Scan(&count); err != nil {
		return false, store.Classify(err, "select project")
	}
	return count > 0, nil
}
