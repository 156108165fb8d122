package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"sessionbook/backend/internal/domain"
	"sessionbook/backend/internal/store"
)

type AvailabilityRepo struct {
	db bun.IDB
}

func NewAvailabilityRepo(db bun.IDB) *AvailabilityRepo {
	return &AvailabilityRepo{db: db}
}

func (r *AvailabilityRepo) GetDay(ctx context.Context, providerID uuid.UUID, date domain.Date) (domain.AvailabilityDay, error) {
	var day domain.AvailabilityDay
	err := r.db.NewSelect().
		Model(&day).
		Where("psychologist_id = ?", providerID).
		Where("date = ?", date).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AvailabilityDay{ProviderID: providerID, Date: date}, nil
	}
	if err != nil {
		return domain.AvailabilityDay{}, err
	}
	return day, nil
}

func (r *AvailabilityRepo) ListDays(ctx context.Context, providerID uuid.UUID, from, to domain.Date) ([]domain.AvailabilityDay, error) {
	var rows []domain.AvailabilityDay
	err := r.db.NewSelect().
		Model(&rows).
		Where("psychologist_id = ?", providerID).
		Where("date >= ?", from).
		Where("date <= ?", to).
		OrderExpr("date ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// PublishDay replaces the slot list for the day, creating the record on
// first publish.
func (r *AvailabilityRepo) PublishDay(ctx context.Context, day domain.AvailabilityDay) (domain.AvailabilityDay, error) {
	m := domain.NewAvailabilityDay(day.ProviderID, day.Date, day.Slots())

	_, err := r.db.NewInsert().
		Model(&m).
		On("CONFLICT (psychologist_id, date) DO UPDATE").
		Set("time_slots = EXCLUDED.time_slots").
		Set("is_available = EXCLUDED.is_available").
		Set("updated_at = EXCLUDED.updated_at").
		Returning("*").
		Exec(ctx)
	if err != nil {
		return domain.AvailabilityDay{}, mapWriteError(err)
	}
	return m, nil
}

func (r *AvailabilityRepo) DeleteDay(ctx context.Context, providerID uuid.UUID, date domain.Date) error {
	res, err := r.db.NewDelete().
		Model((*domain.AvailabilityDay)(nil)).
		Where("psychologist_id = ?", providerID).
		Where("date = ?", date).
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

// RemoveSlot drops one slot in a single statement so that concurrent claims
// of different slots on the same day never overwrite each other.
func (r *AvailabilityRepo) RemoveSlot(ctx context.Context, key domain.SlotKey) (bool, error) {
	slot := int16(key.Slot)
	res, err := r.db.NewUpdate().
		Model((*domain.AvailabilityDay)(nil)).
		Set("time_slots = array_remove(time_slots, ?::smallint)", slot).
		Set("is_available = cardinality(array_remove(time_slots, ?::smallint)) > 0", slot).
		Set("updated_at = ?", time.Now().UTC()).
		Where("psychologist_id = ?", key.ProviderID).
		Where("date = ?", key.Date).
		Where("?::smallint = ANY(time_slots)", slot).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// RestoreSlot merges the slot back into the day, recreating the record if the
// provider deleted it in the meantime.
func (r *AvailabilityRepo) RestoreSlot(ctx context.Context, key domain.SlotKey) error {
	m := domain.NewAvailabilityDay(key.ProviderID, key.Date, domain.NewSlotSet(key.Slot))

	_, err := r.db.NewInsert().
		Model(&m).
		On("CONFLICT (psychologist_id, date) DO UPDATE").
		Set("time_slots = ARRAY(SELECT DISTINCT s FROM unnest(a.time_slots || EXCLUDED.time_slots) AS s ORDER BY s)").
		Set("is_available = TRUE").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return mapWriteError(err)
}
