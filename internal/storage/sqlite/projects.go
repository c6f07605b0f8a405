package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/managebug/managebug/internal/storage"
	"github.com/managebug/managebug/internal/types"
)

// CreateProject implements storage.Storage.
func (s *Store) CreateProject(ctx context.Context, project *types.Project) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (id, name, detail, manager_id, logo, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, project.ID, project.Name, project.Detail, project.ManagerID, project.Logo,
		project.CreatedAt, project.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("project %s: %w", project.ID, storage.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to insert project: %w", err)
	}
	return nil
}

// GetProject implements storage.Storage.
func (s *Store) GetProject(ctx context.Context, id string) (*types.Project, error) {
	var p types.Project
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, detail, manager_id, logo, created_at, updated_at
		FROM projects WHERE id = ?
	`, id).Scan(&p.ID, &p.Name, &p.Detail, &p.ManagerID, &p.Logo, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return &p, nil
}

// GetProjectsByManager implements storage.Storage.
func (s *Store) GetProjectsByManager(ctx context.Context, managerID string) ([]*types.Project, error) {
	return s.listProjects(ctx, `
		SELECT id, name, detail, manager_id, logo, created_at, updated_at
		FROM projects WHERE manager_id = ?
		ORDER BY created_at DESC, id
	`, managerID)
}

// GetProjectsForMember implements storage.Storage.
func (s *Store) GetProjectsForMember(ctx context.Context, userID string) ([]*types.Project, error) {
	return s.listProjects(ctx, `
		SELECT p.id, p.name, p.detail, p.manager_id, p.logo, p.created_at, p.updated_at
		FROM projects p
		JOIN project_members m ON m.project_id = p.id
		WHERE m.user_id = ?
		ORDER BY p.created_at DESC, p.id
	`, userID)
}

func (s *Store) listProjects(ctx context.Context, query string, args ...any) ([]*types.Project, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*types.Project
	for rows.Next() {
		var p types.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Detail, &p.ManagerID, &p.Logo, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// AddProjectMember implements storage.Storage.
func (s *Store) AddProjectMember(ctx context.Context, projectID, userID string) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO project_members (project_id, user_id, added_at)
		SELECT ?, ?, ?
		WHERE EXISTS (SELECT 1 FROM projects WHERE id = ?)
		  AND EXISTS (SELECT 1 FROM users WHERE id = ?)
	`, projectID, userID, time.Now(), projectID, userID)
	if isUniqueViolation(err) {
		return fmt.Errorf("member %s in project %s: %w", userID, projectID, storage.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("project %s or user %s: %w", projectID, userID, storage.ErrNotFound)
	}
	return nil
}

// GetProjectMembers implements storage.Storage.
func (s *Store) GetProjectMembers(ctx context.Context, projectID string) ([]*types.User, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.email, u.name, u.role, u.created_at, u.updated_at
		FROM users u
		JOIN project_members m ON m.user_id = u.id
		WHERE m.project_id = ?
		ORDER BY u.email
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*types.User
	for rows.Next() {
		var u types.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		out = append(out, &u)
	}
	return out, rows.Err()
}

// IsProjectMember implements storage.Storage.
func (s *Store) IsProjectMember(ctx context.Context, projectID, userID string) (bool, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return false, err
	}
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM project_members WHERE project_id = ? AND user_id = ?
	`, projectID, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return true, nil
}
