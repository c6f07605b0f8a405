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

const bugColumns = `id, project_id, type, title, detail, status, creator_id, assignee_id, deadline, attachment, created_at, updated_at`

// CreateBug implements storage.Storage.
func (s *Store) CreateBug(ctx context.Context, bug *types.Bug) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bugs (`+bugColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, bug.ID, bug.ProjectID, bug.Type, bug.Title, bug.Detail, bug.Status,
		bug.CreatorID, nullable(bug.AssigneeID), nullable(bug.Deadline), bug.Attachment,
		bug.CreatedAt, bug.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("title %q in project %s: %w", bug.Title, bug.ProjectID, storage.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to insert bug: %w", err)
	}
	return nil
}

// GetBug implements storage.Storage.
func (s *Store) GetBug(ctx context.Context, id string) (*types.Bug, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+bugColumns+` FROM bugs WHERE id = ?`, id)
	bug, err := scanBug(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("bug %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bug: %w", err)
	}
	return bug, nil
}

// GetBugsByProject implements storage.Storage. Newest first.
func (s *Store) GetBugsByProject(ctx context.Context, projectID string) ([]*types.Bug, error) {
	return s.listBugs(ctx, `
		SELECT `+bugColumns+` FROM bugs
		WHERE project_id = ?
		ORDER BY created_at DESC, id
	`, projectID)
}

// GetAllBugs implements storage.Storage. Newest first.
func (s *Store) GetAllBugs(ctx context.Context) ([]*types.Bug, error) {
	return s.listBugs(ctx, `
		SELECT `+bugColumns+` FROM bugs
		ORDER BY created_at DESC, id
	`)
}

// SaveBug implements storage.Storage. Last write wins; the stored
// updated_at reflects the write, not the caller's snapshot.
func (s *Store) SaveBug(ctx context.Context, bug *types.Bug) (*types.Bug, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE bugs
		SET title = ?, detail = ?, status = ?, assignee_id = ?, deadline = ?, attachment = ?, updated_at = ?
		WHERE id = ?
	`, bug.Title, bug.Detail, bug.Status, nullable(bug.AssigneeID), nullable(bug.Deadline),
		bug.Attachment, time.Now(), bug.ID)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("title %q in project %s: %w", bug.Title, bug.ProjectID, storage.ErrDuplicate)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update bug: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to update bug: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("bug %s: %w", bug.ID, storage.ErrNotFound)
	}
	return s.GetBug(ctx, bug.ID)
}

func (s *Store) listBugs(ctx context.Context, query string, args ...any) ([]*types.Bug, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bugs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*types.Bug
	for rows.Next() {
		bug, err := scanBug(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bug: %w", err)
		}
		out = append(out, bug)
	}
	return out, rows.Err()
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanBug(row rowScanner) (*types.Bug, error) {
	var b types.Bug
	var assignee, deadline sql.NullString
	err := row.Scan(&b.ID, &b.ProjectID, &b.Type, &b.Title, &b.Detail, &b.Status,
		&b.CreatorID, &assignee, &deadline, &b.Attachment, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if assignee.Valid {
		b.AssigneeID = &assignee.String
	}
	if deadline.Valid {
		b.Deadline = &deadline.String
	}
	return &b, nil
}

// nullable maps a nil or empty *string to SQL NULL.
func nullable(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}
