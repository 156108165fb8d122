package http

import (
	"time"

	"github.com/google/uuid"

	"sessionbook/backend/internal/domain"
	"sessionbook/backend/internal/service/availability"
)

type bookingJSON struct {
	ID              uuid.UUID  `json:"id"`
	ClientID        uuid.UUID  `json:"client_id"`
	ProviderID      uuid.UUID  `json:"psychologist_id"`
	ClientPackageID *uuid.UUID `json:"client_package_id,omitempty"`
	Date            string     `json:"scheduled_date"`
	Time            string     `json:"scheduled_time"`
	Status          string     `json:"status"`
	Price           string     `json:"price"`
	PaymentID       *string    `json:"payment_id,omitempty"`
	MeetingURL      *string    `json:"meeting_url,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (s *Server) bookingJSON(b domain.Booking) bookingJSON {
	return bookingJSON{
		ID:              b.ID,
		ClientID:        b.ClientID,
		ProviderID:      b.ProviderID,
		ClientPackageID: b.ClientPackageID,
		Date:            b.ScheduledDate.String(),
		Time:            b.ScheduledMinute.Format(s.style),
		Status:          string(b.Status),
		Price:           b.Price.StringFixed(2),
		PaymentID:       b.PaymentID,
		MeetingURL:      b.MeetingURL,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

type outcomeJSON struct {
	Booking  bookingJSON        `json:"booking"`
	Request  *rescheduleReqJSON `json:"reschedule_request,omitempty"`
	Replayed bool               `json:"replayed,omitempty"`
	Degraded bool               `json:"degraded,omitempty"`
	Warnings []string           `json:"warnings,omitempty"`
}

type rescheduleReqJSON struct {
	ID           uuid.UUID  `json:"id"`
	BookingID    uuid.UUID  `json:"booking_id"`
	RequestedBy  uuid.UUID  `json:"requested_by"`
	Date         string     `json:"proposed_date"`
	Time         string     `json:"proposed_time"`
	Reason       string     `json:"reason,omitempty"`
	Status       string     `json:"status"`
	DecisionNote *string    `json:"decision_note,omitempty"`
	DecidedBy    *uuid.UUID `json:"decided_by,omitempty"`
	DecidedAt    *time.Time `json:"decided_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

func (s *Server) requestJSON(r domain.RescheduleRequest) *rescheduleReqJSON {
	return &rescheduleReqJSON{
		ID:           r.ID,
		BookingID:    r.BookingID,
		RequestedBy:  r.RequestedBy,
		Date:         r.ProposedDate.String(),
		Time:         r.ProposedMinute.Format(s.style),
		Reason:       r.Reason,
		Status:       string(r.Status),
		DecisionNote: r.DecisionNote,
		DecidedBy:    r.DecidedBy,
		DecidedAt:    r.DecidedAt,
		CreatedAt:    r.CreatedAt,
	}
}

type dayJSON struct {
	ProviderID uuid.UUID `json:"psychologist_id"`
	Date       string    `json:"date"`
	Published  bool      `json:"published"`
	Slots      []string  `json:"slots"`
	Open       []string  `json:"open"`
	Booked     []string  `json:"booked"`
	Blocked    []string  `json:"blocked,omitempty"`
}

func (s *Server) slotStrings(set domain.SlotSet) []string {
	return set.Format(s.style)
}

func (s *Server) dayJSON(v availability.DayView) dayJSON {
	return dayJSON{
		ProviderID: v.ProviderID,
		Date:       v.Date.String(),
		Published:  v.Published,
		Slots:      s.slotStrings(v.All()),
		Open:       s.slotStrings(v.Open),
		Booked:     s.slotStrings(v.Booked),
		Blocked:    s.slotStrings(v.Blocked),
	}
}

type notificationJSON struct {
	ID        uuid.UUID  `json:"id"`
	BookingID *uuid.UUID `json:"session_id,omitempty"`
	ClientID  *uuid.UUID `json:"client_id,omitempty"`
	Kind      string     `json:"type"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	IsRead    bool       `json:"is_read"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func notificationToJSON(n domain.Notification) notificationJSON {
	return notificationJSON{
		ID:        n.ID,
		BookingID: n.BookingID,
		ClientID:  n.ClientID,
		Kind:      string(n.Kind),
		Title:     n.Title,
		Message:   n.Message,
		IsRead:    n.IsRead,
		ReadAt:    n.ReadAt,
		CreatedAt: n.CreatedAt,
	}
}
