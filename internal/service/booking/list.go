package booking

import (
	"context"

	"github.com/google/uuid"

	"sessionbook/backend/internal/domain"
	"sessionbook/backend/internal/store"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

type ListInput struct {
	Actor  domain.Actor
	Status domain.BookingStatus
	Limit  int
	Offset int
}

type Page struct {
	Items  []domain.Booking
	Total  int
	Limit  int
	Offset int
}

// List returns the actor's own sessions, newest first. Clients see the
// sessions they booked and psychologists the sessions booked with them.
func (s *Service) List(ctx context.Context, in ListInput) (Page, error) {
	if in.Actor.ID == uuid.Nil {
		return Page{}, domain.NewValidationError("actor is required")
	}
	f := store.BookingFilter{Status: in.Status}
	switch in.Actor.Role {
	case domain.RoleClient:
		f.ClientID = in.Actor.ID
	case domain.RolePsychologist:
		f.ProviderID = in.Actor.ID
	default:
		return Page{}, domain.NewValidationError("only clients and psychologists have sessions to list")
	}
	if in.Status != "" && !in.Status.Valid() {
		return Page{}, domain.NewValidationError("unknown status " + string(in.Status))
	}
	if in.Offset < 0 {
		return Page{}, domain.NewValidationError("offset must not be negative")
	}
	f.Limit = in.Limit
	if f.Limit <= 0 {
		f.Limit = defaultPageSize
	}
	if f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}
	f.Offset = in.Offset

	items, total, err := s.repo.ListBookings(ctx, f)
	if err != nil {
		return Page{}, storageError("list bookings", err)
	}
	return Page{Items: items, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}
