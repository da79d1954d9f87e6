package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/idyWilliams/nadinekollections-sub000/internal/model"
)

const notificationsLimit = 50

// ListNotifications возвращает уведомления пользователя. Администраторы видят и общие уведомления.
func (s *Service) ListNotifications(ctx context.Context, userID string, admin bool) ([]model.Notification, error) {
	return s.repo.ListNotifications(ctx, userID, admin, notificationsLimit)
}

// MarkNotificationRead отмечает уведомление прочитанным для пользователя.
func (s *Service) MarkNotificationRead(ctx context.Context, id uuid.UUID, userID string, admin bool) error {
	return s.repo.MarkNotificationRead(ctx, id, userID, admin)
}
