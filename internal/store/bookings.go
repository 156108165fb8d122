package store

import (
	"context"

	"github.com/google/uuid"

	"sessionbook/backend/internal/domain"
)

// BookingReader answers read-only questions about bookings. FindSlotHolder
// returns ErrNotFound when no booking holds the slot.
type BookingReader interface {
	GetBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error)
	FindSlotHolder(ctx context.Context, key domain.SlotKey) (domain.Booking, error)
	ListHeld(ctx context.Context, providerID uuid.UUID, from, to domain.Date) ([]domain.Booking, error)
}

// BookingFilter selects bookings for one client or one provider. A zero
// ClientID or ProviderID does not filter.
type BookingFilter struct {
	ClientID   uuid.UUID
	ProviderID uuid.UUID
	Status     domain.BookingStatus
	Limit      int
	Offset     int
}

type BookingRepository interface {
	BookingReader

	ListBookings(ctx context.Context, f BookingFilter) ([]domain.Booking, int, error)
	GetClientPackage(ctx context.Context, id uuid.UUID) (domain.ClientPackage, error)
	GetRescheduleRequest(ctx context.Context, id uuid.UUID) (domain.RescheduleRequest, error)
	SetMeeting(ctx context.Context, bookingID uuid.UUID, meeting domain.Meeting) error

	InBookingTransaction(ctx context.Context, fn func(ctx context.Context, tx BookingTx) error) error
}

// BookingTx is the set of writes that must commit together. InsertBooking
// and UpdateBooking return ErrConflict when another booking already holds
// the target slot. InsertBooking reports created=false when a booking with
// the same id and request already exists. ConsumePackageSession returns
// ErrNotFound unless the package belongs to both the client and the provider.
type BookingTx interface {
	InsertBooking(ctx context.Context, b domain.Booking) (out domain.Booking, created bool, err error)
	LockBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error)
	UpdateBooking(ctx context.Context, b domain.Booking) (domain.Booking, error)

	ConsumePackageSession(ctx context.Context, packageID, clientID, providerID uuid.UUID) error
	ReleasePackageSession(ctx context.Context, packageID uuid.UUID) error

	InsertRescheduleRequest(ctx context.Context, r domain.RescheduleRequest) (domain.RescheduleRequest, error)
	LockRescheduleRequest(ctx context.Context, id uuid.UUID) (domain.RescheduleRequest, error)
	UpdateRescheduleRequest(ctx context.Context, r domain.RescheduleRequest) (domain.RescheduleRequest, error)

	InsertNotification(ctx context.Context, n domain.Notification) (domain.Notification, error)
}
