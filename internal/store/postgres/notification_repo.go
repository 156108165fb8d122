package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"sessionbook/backend/internal/domain"
	"sessionbook/backend/internal/store"
)

type NotificationRepo struct {
	db *bun.DB
}

func NewNotificationRepo(db *bun.DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

func (r *NotificationRepo) ListNotifications(ctx context.Context, f store.NotificationFilter) ([]domain.Notification, int, error) {
	var rows []domain.Notification
	q := r.db.NewSelect().
		Model(&rows).
		Where("psychologist_id = ?", f.ProviderID).
		OrderExpr("created_at DESC").
		Limit(f.Limit).
		Offset(f.Offset)
	if f.UnreadOnly {
		q = q.Where("is_read = FALSE")
	}
	total, err := q.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *NotificationRepo) MarkNotificationRead(ctx context.Context, providerID, id uuid.UUID) (domain.Notification, error) {
	now := time.Now().UTC()
	res, err := r.db.NewUpdate().
		Model((*domain.Notification)(nil)).
		Set("is_read = TRUE").
		Set("read_at = COALESCE(read_at, ?)", now).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("psychologist_id = ?", providerID).
		Exec(ctx)
	if err != nil {
		return domain.Notification{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Notification{}, err
	}
	if affected == 0 {
		return domain.Notification{}, store.ErrNotFound
	}

	var n domain.Notification
	err = r.db.NewSelect().
		Model(&n).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Notification{}, notFoundIfNoRows(err)
	}
	return n, nil
}

func (r *NotificationRepo) MarkAllNotificationsRead(ctx context.Context, providerID uuid.UUID) (int, error) {
	now := time.Now().UTC()
	res, err := r.db.NewUpdate().
		Model((*domain.Notification)(nil)).
		Set("is_read = TRUE").
		Set("read_at = ?", now).
		Set("updated_at = ?", now).
		Where("psychologist_id = ?", providerID).
		Where("is_read = FALSE").
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func (r *NotificationRepo) CountUnreadNotifications(ctx context.Context, providerID uuid.UUID) (int, error) {
	return r.db.NewSelect().
		Model((*domain.Notification)(nil)).
		Where("psychologist_id = ?", providerID).
		Where("is_read = FALSE").
		Count(ctx)
}

func (r *NotificationRepo) DeleteNotification(ctx context.Context, providerID, id uuid.UUID) error {
	res, err := r.db.NewDelete().
		Model((*domain.Notification)(nil)).
		Where("id = ?", id).
		Where("psychologist_id = ?", providerID).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}
