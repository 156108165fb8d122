package store

import (
	"context"

	"github.com/google/uuid"

	"sessionbook/backend/internal/domain"
)

type NotificationFilter struct {
	ProviderID uuid.UUID
	UnreadOnly bool
	Limit      int
	Offset     int
}

type NotificationRepository interface {
	ListNotifications(ctx context.Context, f NotificationFilter) ([]domain.Notification, int, error)
	MarkNotificationRead(ctx context.Context, providerID, id uuid.UUID) (domain.Notification, error)
	MarkAllNotificationsRead(ctx context.Context, providerID uuid.UUID) (int, error)
	CountUnreadNotifications(ctx context.Context, providerID uuid.UUID) (int, error)
	DeleteNotification(ctx context.Context, providerID, id uuid.UUID) error
}
