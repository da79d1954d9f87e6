package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/idyWilliams/nadinekollections-sub000/internal/model"
)

// CreateNotification сохраняет уведомление. Уведомление без пользователя считается общим для администраторов.
func (r *PostgresRepository) CreateNotification(ctx context.Context, n *model.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO notifications (id, user_id, title, message, type, link)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		n.ID, n.UserID, n.Title, n.Message, n.Type, n.Link,
	).Scan(&n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// ListNotifications возвращает уведомления пользователя и, для администраторов, общие уведомления.
// Признак прочтения вычисляется для конкретного пользователя.
func (r *PostgresRepository) ListNotifications(ctx context.Context, userID string, includeSystem bool, limit int) ([]model.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx,
		`SELECT n.id, n.user_id, n.title, n.message, n.type, n.link, n.created_at,
			EXISTS (SELECT 1 FROM notification_reads nr WHERE nr.notification_id = n.id AND nr.user_id = $1)
		 FROM notifications n
		 WHERE n.user_id = $1 OR ($2 AND n.user_id IS NULL)
		 ORDER BY n.created_at DESC
		 LIMIT $3`,
		userID, includeSystem, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select notifications: %w", err)
	}
	defer rows.Close()

	var res []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &n.Link, &n.CreatedAt, &n.IsRead); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		res = append(res, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// MarkNotificationRead отмечает уведомление прочитанным для конкретного пользователя.
// Общие уведомления доступны только при includeSystem.
func (r *PostgresRepository) MarkNotificationRead(ctx context.Context, id uuid.UUID, userID string, includeSystem bool) error {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO notification_reads (notification_id, user_id)
		 SELECT n.id, $2 FROM notifications n
		 WHERE n.id = $1 AND (n.user_id = $2 OR ($3 AND n.user_id IS NULL))
		 ON CONFLICT (notification_id, user_id) DO NOTHING`,
		id, userID, includeSystem,
	)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var visible bool
	err = r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM notifications n WHERE n.id = $1 AND (n.user_id = $2 OR ($3 AND n.user_id IS NULL)))`,
		id, userID, includeSystem,
	).Scan(&visible)
	if err != nil {
		return fmt.Errorf("check notification: %w", err)
	}
	if !visible {
		return ErrNotificationNotFound
	}
	return nil
}
