package availability

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"sessionbook/backend/internal/domain"
	"sessionbook/backend/internal/store"
)

type dayReader interface {
	GetDay(ctx context.Context, providerID uuid.UUID, date domain.Date) (domain.AvailabilityDay, error)
}

type holderFinder interface {
	FindSlotHolder(ctx context.Context, key domain.SlotKey) (domain.Booking, error)
}

// Checker answers whether a slot can be booked. A slot is available only if
// it is published for its day and no booking in a holding status occupies
// it. It never writes.
type Checker struct {
	days     dayReader
	bookings holderFinder
}

func NewChecker(days dayReader, bookings holderFinder) *Checker {
	return &Checker{days: days, bookings: bookings}
}

func (c *Checker) IsAvailable(ctx context.Context, key domain.SlotKey) (bool, error) {
	return c.IsAvailableFor(ctx, key, uuid.Nil)
}

// IsAvailableFor ignores the booking identified by exclude, so a booking
// being moved does not block itself.
func (c *Checker) IsAvailableFor(ctx context.Context, key domain.SlotKey, exclude uuid.UUID) (bool, error) {
	day, err := c.days.GetDay(ctx, key.ProviderID, key.Date)
	if err != nil {
		return false, storageError("get availability", err)
	}
	if !day.Published() || !day.Slots().Contains(key.Slot) {
		return false, nil
	}

	holder, err := c.bookings.FindSlotHolder(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, storageError("find slot holder", err)
	}
	return exclude != uuid.Nil && holder.ID == exclude, nil
}

// CheckSlot parses the date and slot from their wire forms first, so every
// accepted spelling of a time gives the same answer.
func (c *Checker) CheckSlot(ctx context.Context, providerID uuid.UUID, date, slot string) (bool, error) {
	if providerID == uuid.Nil {
		return false, domain.NewValidationError("provider_id is required")
	}
	d, err := domain.ParseDate(date)
	if err != nil {
		return false, err
	}
	t, err := domain.ParseTimeOfDay(slot)
	if err != nil {
		return false, err
	}
	return c.IsAvailable(ctx, domain.SlotKey{ProviderID: providerID, Date: d, Slot: t})
}
