package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AvailabilityDay is a provider's open slots for one date. A slot's presence
// means it is open; absence means it was never offered or is already taken.
type AvailabilityDay struct {
	bun.BaseModel `bun:"table:availability,alias:a"`

	ID          uuid.UUID `bun:"id,pk,type:uuid"`
	ProviderID  uuid.UUID `bun:"psychologist_id,notnull,type:uuid"`
	Date        Date      `bun:"date,notnull,type:date"`
	TimeSlots   []int16   `bun:"time_slots,array,notnull"`
	IsAvailable bool      `bun:"is_available,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
	UpdatedAt   time.Time `bun:"updated_at,notnull"`
}

func NewAvailabilityDay(providerID uuid.UUID, date Date, slots SlotSet) AvailabilityDay {
	slots = NewSlotSet(slots...)
	return AvailabilityDay{
		ProviderID:  providerID,
		Date:        date,
		TimeSlots:   slots.Int16s(),
		IsAvailable: len(slots) > 0,
	}
}

func (d *AvailabilityDay) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if d.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			d.ID = id
		}
		if d.TimeSlots == nil {
			d.TimeSlots = []int16{}
		}
		if d.CreatedAt.IsZero() {
			d.CreatedAt = now
		}
		if d.UpdatedAt.IsZero() {
			d.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		d.UpdatedAt = now
	}
	return nil
}

func (d AvailabilityDay) Slots() SlotSet {
	return SlotSetFromInt16s(d.TimeSlots)
}

// Published mirrors is_available: false when no record exists or when every
// slot has been consumed.
func (d AvailabilityDay) Published() bool {
	return d.IsAvailable
}
