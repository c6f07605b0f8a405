package sqlite

import (
	"context"
	"fmt"

	"github.com/managebug/managebug/internal/storage"
	"github.com/managebug/managebug/internal/types"
)

// AddNotification implements storage.Storage.
func (s *Store) AddNotification(ctx context.Context, n *types.Notification) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, kind, title, message, link, read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, n.ID, n.UserID, n.Kind, n.Title, n.Message, n.Link, boolToInt(n.Read), n.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("notification %s: %w", n.ID, storage.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

// GetNotifications implements storage.Storage. Newest first.
func (s *Store) GetNotifications(ctx context.Context, userID string, limit int) ([]*types.Notification, error) {
	query := `
		SELECT id, user_id, kind, title, message, link, read, created_at
		FROM notifications
		WHERE user_id = ?
		ORDER BY created_at DESC, id`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*types.Notification
	for rows.Next() {
		var n types.Notification
		var read int
		if err := rows.Scan(&n.ID, &n.UserID, &n.Kind, &n.Title, &n.Message, &n.Link, &read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.Read = read != 0
		out = append(out, &n)
	}
	return out, rows.Err()
}

// MarkNotificationRead implements storage.Storage. The notification
// must belong to the given user.
func (s *Store) MarkNotificationRead(ctx context.Context, id, userID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET read = 1 WHERE id = ? AND user_id = ?
	`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("notification %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
