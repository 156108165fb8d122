package booking

import (
	"context"

	"github.com/google/uuid"

	"sessionbook/backend/internal/domain"
)

type SlotChecker interface {
	IsAvailable(ctx context.Context, key domain.SlotKey) (bool, error)
	IsAvailableFor(ctx context.Context, key domain.SlotKey, exclude uuid.UUID) (bool, error)
}

// SlotIndex is the availability store as seen by booking: the open-slot list
// is kept in step with bookings on a best-effort basis.
type SlotIndex interface {
	RemoveSlot(ctx context.Context, key domain.SlotKey) (bool, error)
	RestoreSlot(ctx context.Context, key domain.SlotKey) error
}

type MeetingCreator interface {
	CreateMeeting(ctx context.Context, req domain.MeetingRequest) (domain.Meeting, error)
}

type Notifier interface {
	BookingConfirmed(ctx context.Context, b domain.Booking, p domain.Parties) error
	BookingCanceled(ctx context.Context, b domain.Booking, p domain.Parties) error
	BookingRescheduled(ctx context.Context, b domain.Booking, from domain.SlotKey, p domain.Parties) error
	RescheduleRequested(ctx context.Context, b domain.Booking, req domain.RescheduleRequest, p domain.Parties) error
	RescheduleRejected(ctx context.Context, b domain.Booking, req domain.RescheduleRequest, p domain.Parties) error
}

type ReceiptIssuer interface {
	Issue(ctx context.Context, b domain.Booking, p domain.Parties) (string, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, ev domain.BookingEvent) error
}

type ViewInvalidator interface {
	Invalidate(ctx context.Context, providerID uuid.UUID) error
}

// Collaborators are the external systems told about committed changes. Any
// of them may be nil.
type Collaborators struct {
	Meetings MeetingCreator
	Notifier Notifier
	Receipts ReceiptIssuer
	Events   EventPublisher
	Views    ViewInvalidator
}
