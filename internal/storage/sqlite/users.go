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

// CreateUser implements storage.Storage.
func (s *Store) CreateUser(ctx context.Context, user *types.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, role, profile_picture, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, user.ID, user.Email, user.Name, user.Role, user.ProfilePicture, user.PasswordHash,
		user.CreatedAt, user.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("user %s: %w", user.Email, storage.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetUser implements storage.Storage.
func (s *Store) GetUser(ctx context.Context, id string) (*types.User, error) {
	return s.getUser(ctx, "id = ?", id)
}

// GetUserByEmail implements storage.Storage.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*types.User, error) {
	return s.getUser(ctx, "email = ?", email)
}

func (s *Store) getUser(ctx context.Context, where string, arg any) (*types.User, error) {
	var u types.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, name, role, profile_picture, password_hash, created_at, updated_at
		FROM users WHERE `+where, arg,
	).Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.ProfilePicture, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %v: %w", arg, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// ListUsers implements storage.Storage.
func (s *Store) ListUsers(ctx context.Context) ([]*types.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, email, name, role, profile_picture, password_hash, created_at, updated_at
		FROM users ORDER BY email
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*types.User
	for rows.Next() {
		var u types.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.ProfilePicture, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		out = append(out, &u)
	}
	return out, rows.Err()
}

// SetUserPicture implements storage.Storage.
func (s *Store) SetUserPicture(ctx context.Context, userID, ref string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET profile_picture = ?, updated_at = ? WHERE id = ?
	`, ref, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("failed to set profile picture: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to set profile picture: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("user %s: %w", userID, storage.ErrNotFound)
	}
	return nil
}

// CreateSession implements storage.Storage.
func (s *Store) CreateSession(ctx context.Context, session *types.Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (token, user_id, created_at, expires_at)
		VALUES (?, ?, ?, ?)
	`, session.Token, session.UserID, session.CreatedAt, session.ExpiresAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("session: %w", storage.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// GetSession implements storage.Storage.
func (s *Store) GetSession(ctx context.Context, token string) (*types.Session, error) {
	var sess types.Session
	err := s.db.QueryRowContext(ctx, `
		SELECT token, user_id, created_at, expires_at
		FROM sessions WHERE token = ?
	`, token).Scan(&sess.Token, &sess.UserID, &sess.CreatedAt, &sess.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session: %w", storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &sess, nil
}

// DeleteSession implements storage.Storage.
func (s *Store) DeleteSession(ctx context.Context, token string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
