package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MeetingRequest describes the video meeting created for a booking.
type MeetingRequest struct {
	RequestID   string
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	Attendees   []string
	Location    string
}

type Meeting struct {
	URL             string
	ExternalEventID string
}

// Interval is a half-open span of time [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

type BookingEventType string

const (
	EventBookingCreated     BookingEventType = "booking.created"
	EventBookingCanceled    BookingEventType = "booking.canceled"
	EventBookingRescheduled BookingEventType = "booking.rescheduled"
	EventBookingFailed      BookingEventType = "booking.failed"
)

// BookingEvent is published after a booking change commits.
type BookingEvent struct {
	Type       BookingEventType `json:"event"`
	Version    int              `json:"version"`
	OccurredAt time.Time        `json:"occurred_at"`
	Data       BookingEventData `json:"data"`
}

type BookingEventData struct {
	BookingID     uuid.UUID       `json:"booking_id,omitempty"`
	ClientID      uuid.UUID       `json:"client_id"`
	ProviderID    uuid.UUID       `json:"psychologist_id"`
	ScheduledDate Date            `json:"scheduled_date"`
	ScheduledTime string          `json:"scheduled_time"`
	Status        BookingStatus   `json:"status,omitempty"`
	Price         decimal.Decimal `json:"price"`
	PaymentID     string          `json:"payment_id,omitempty"`
	PreviousDate  *Date           `json:"previous_date,omitempty"`
	PreviousTime  string          `json:"previous_time,omitempty"`
	Reason        string          `json:"reason,omitempty"`
}

func NewBookingEvent(typ BookingEventType, b Booking, at time.Time) BookingEvent {
	data := BookingEventData{
		BookingID:     b.ID,
		ClientID:      b.ClientID,
		ProviderID:    b.ProviderID,
		ScheduledDate: b.ScheduledDate,
		ScheduledTime: b.ScheduledMinute.Format(Style24h),
		Status:        b.Status,
		Price:         b.Price,
	}
	if b.PaymentID != nil {
		data.PaymentID = *b.PaymentID
	}
	return BookingEvent{Type: typ, Version: 1, OccurredAt: at.UTC(), Data: data}
}
