package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type BookingStatus string

const (
	StatusBooked              BookingStatus = "booked"
	StatusConfirmed           BookingStatus = "confirmed"
	StatusRescheduleRequested BookingStatus = "reschedule_requested"
	StatusRescheduled         BookingStatus = "rescheduled"
	StatusCanceled            BookingStatus = "canceled"
	StatusCompleted           BookingStatus = "completed"
)

// HoldingStatuses occupy their slot. A booking waiting on a reschedule
// decision keeps its original slot until the provider approves.
var HoldingStatuses = []BookingStatus{
	StatusBooked,
	StatusConfirmed,
	StatusRescheduleRequested,
	StatusRescheduled,
}

var transitions = map[BookingStatus][]BookingStatus{
	StatusBooked:              {StatusCanceled, StatusRescheduleRequested, StatusRescheduled, StatusCompleted},
	StatusRescheduleRequested: {StatusRescheduled, StatusBooked},
	StatusRescheduled:         {StatusCompleted},
	StatusConfirmed:           {StatusCompleted},
}

func (s BookingStatus) Valid() bool {
	switch s {
	case StatusBooked, StatusConfirmed, StatusRescheduleRequested, StatusRescheduled, StatusCanceled, StatusCompleted:
		return true
	}
	return false
}

func (s BookingStatus) HoldsSlot() bool {
	for _, h := range HoldingStatuses {
		if s == h {
			return true
		}
	}
	return false
}

func (s BookingStatus) Terminal() bool {
	return s == StatusCanceled || s == StatusCompleted
}

func (s BookingStatus) CanTransition(to BookingStatus) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition returns ErrInvalidStateTransition unless from -> to is allowed.
func Transition(from, to BookingStatus) error {
	if !from.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, from, to)
	}
	return nil
}

// Booking is one scheduled session between a client and a provider.
type Booking struct {
	bun.BaseModel `bun:"table:sessions,alias:s"`

	ID              uuid.UUID       `bun:"id,pk,type:uuid"`
	ClientID        uuid.UUID       `bun:"client_id,notnull,type:uuid"`
	ProviderID      uuid.UUID       `bun:"psychologist_id,notnull,type:uuid"`
	ClientPackageID *uuid.UUID      `bun:"client_package_id,type:uuid"`
	ScheduledDate   Date            `bun:"scheduled_date,notnull,type:date"`
	ScheduledMinute TimeOfDay       `bun:"scheduled_minute,notnull"`
	Status          BookingStatus   `bun:"status,notnull"`
	Price           decimal.Decimal `bun:"price,notnull,type:numeric(10,2)"`
	PaymentID       *string         `bun:"payment_id"`
	MeetingURL      *string         `bun:"meeting_url"`
	ExternalEventID *string         `bun:"external_event_id"`
	CreatedAt       time.Time       `bun:"created_at,notnull"`
	UpdatedAt       time.Time       `bun:"updated_at,notnull"`
}

func (b *Booking) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if b.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			b.ID = id
		}
		if b.CreatedAt.IsZero() {
			b.CreatedAt = now
		}
		if b.UpdatedAt.IsZero() {
			b.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		b.UpdatedAt = now
	}
	return nil
}

func (b Booking) Key() SlotKey {
	return SlotKey{ProviderID: b.ProviderID, Date: b.ScheduledDate, Slot: b.ScheduledMinute}
}

// SameRequest reports whether o describes the same booking request as b.
// Used to tell an idempotent replay apart from a key reused for other data.
func (b Booking) SameRequest(o Booking) bool {
	if b.ClientID != o.ClientID || b.ProviderID != o.ProviderID {
		return false
	}
	if b.ScheduledDate != o.ScheduledDate || b.ScheduledMinute != o.ScheduledMinute {
		return false
	}
	if !b.Price.Equal(o.Price) {
		return false
	}
	if (b.ClientPackageID == nil) != (o.ClientPackageID == nil) {
		return false
	}
	if b.ClientPackageID != nil && *b.ClientPackageID != *o.ClientPackageID {
		return false
	}
	return true
}

type Role string

const (
	RoleClient       Role = "client"
	RolePsychologist Role = "psychologist"
	RoleAdmin        Role = "admin"
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

func (a Actor) IsClientOf(b Booking) bool {
	return a.Role == RoleClient && a.ID == b.ClientID
}

func (a Actor) IsProviderOf(b Booking) bool {
	return a.Role == RolePsychologist && a.ID == b.ProviderID
}

func (a Actor) CanManage(b Booking) bool {
	return a.IsAdmin() || a.IsClientOf(b) || a.IsProviderOf(b)
}
