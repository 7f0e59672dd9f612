package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"mailmart/internal/model"
)

const notificationColumns = `id, user_id, type, title, message, related_id, is_read, created_at`

// CreateNotification ignores redelivered messages.
func (s *Store) CreateNotification(ctx context.Context, n model.Notification) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notifications (id, user_id, type, title, message, related_id, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`,
		n.ID, n.UserID, string(n.Type), n.Title, n.Message, n.RelatedID, n.IsRead, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *Store) Notifications(ctx context.Context, userID string, limit int) ([]model.Notification, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+notificationColumns+` FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (model.Notification, error) {
		var (
			n   model.Notification
			typ string
		)
		err := r.Scan(&n.ID, &n.UserID, &typ, &n.Title, &n.Message, &n.RelatedID, &n.IsRead, &n.CreatedAt)
		n.Type = model.NotificationType(typ)
		return n, err
	})
}

func (s *Store) UnreadCount(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM notifications WHERE user_id = $1 AND NOT is_read`, userID).Scan(&n)
	return n, err
}

func (s *Store) MarkRead(ctx context.Context, userID, id string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE notifications SET is_read = true WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (s *Store) MarkAllRead(ctx context.Context, userID string) (int, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE notifications SET is_read = true WHERE user_id = $1 AND NOT is_read`, userID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
