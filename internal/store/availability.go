package store

import (
	"context"

	"github.com/google/uuid"

	"sessionbook/backend/internal/domain"
)

// AvailabilityStore persists the per-(provider, date) list of open slots.
// GetDay returns an unpublished empty day, not ErrNotFound, when no record
// exists. RemoveSlot and RestoreSlot are single atomic statements.
type AvailabilityStore interface {
	GetDay(ctx context.Context, providerID uuid.UUID, date domain.Date) (domain.AvailabilityDay, error)
	ListDays(ctx context.Context, providerID uuid.UUID, from, to domain.Date) ([]domain.AvailabilityDay, error)
	PublishDay(ctx context.Context, day domain.AvailabilityDay) (domain.AvailabilityDay, error)
	DeleteDay(ctx context.Context, providerID uuid.UUID, date domain.Date) error
	RemoveSlot(ctx context.Context, key domain.SlotKey) (bool, error)
	RestoreSlot(ctx context.Context, key domain.SlotKey) error
}
