package notifications

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"sessionbook/backend/internal/domain"
	"sessionbook/backend/internal/store"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Service exposes a provider's in-app notifications. Every call is scoped
// to the provider, so one provider can never read or change another's.
type Service struct {
	repo store.NotificationRepository
}

func NewService(repo store.NotificationRepository) *Service {
	return &Service{repo: repo}
}

type ListInput struct {
	ProviderID uuid.UUID
	UnreadOnly bool
	Limit      int
	Offset     int
}

type Page struct {
	Items  []domain.Notification
	Total  int
	Limit  int
	Offset int
}

func (s *Service) List(ctx context.Context, in ListInput) (Page, error) {
	if in.ProviderID == uuid.Nil {
		return Page{}, domain.NewValidationError("provider_id is required")
	}
	if in.Offset < 0 {
		return Page{}, domain.NewValidationError("offset must not be negative")
	}
	limit := in.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	items, total, err := s.repo.ListNotifications(ctx, store.NotificationFilter{
		ProviderID: in.ProviderID,
		UnreadOnly: in.UnreadOnly,
		Limit:      limit,
		Offset:     in.Offset,
	})
	if err != nil {
		return Page{}, storageError("list notifications", err)
	}
	return Page{Items: items, Total: total, Limit: limit, Offset: in.Offset}, nil
}

func (s *Service) MarkRead(ctx context.Context, providerID, id uuid.UUID) (domain.Notification, error) {
	if err := requireIDs(providerID, id); err != nil {
		return domain.Notification{}, err
	}
	n, err := s.repo.MarkNotificationRead(ctx, providerID, id)
	if err != nil {
		return domain.Notification{}, mapError("mark notification read", err)
	}
	return n, nil
}

func (s *Service) MarkAllRead(ctx context.Context, providerID uuid.UUID) (int, error) {
	if providerID == uuid.Nil {
		return 0, domain.NewValidationError("provider_id is required")
	}
	n, err := s.repo.MarkAllNotificationsRead(ctx, providerID)
	if err != nil {
		return 0, storageError("mark all notifications read", err)
	}
	return n, nil
}

func (s *Service) UnreadCount(ctx context.Context, providerID uuid.UUID) (int, error) {
	if providerID == uuid.Nil {
		return 0, domain.NewValidationError("provider_id is required")
	}
	n, err := s.repo.CountUnreadNotifications(ctx, providerID)
	if err != nil {
		return 0, storageError("count unread notifications", err)
	}
	return n, nil
}

func (s *Service) Delete(ctx context.Context, providerID, id uuid.UUID) error {
	if err := requireIDs(providerID, id); err != nil {
		return err
	}
	if err := s.repo.DeleteNotification(ctx, providerID, id); err != nil {
		return mapError("delete notification", err)
	}
	return nil
}

func requireIDs(providerID, id uuid.UUID) error {
	if providerID == uuid.Nil {
		return domain.NewValidationError("provider_id is required")
	}
	if id == uuid.Nil {
		return domain.NewValidationError("notification_id is required")
	}
	return nil
}

func mapError(op string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: notification", domain.ErrNotFound)
	}
	return storageError(op, err)
}

func storageError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStorageUnavailable, err)
}
