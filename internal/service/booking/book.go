package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"sessionbook/backend/internal/domain"
	"sessionbook/backend/internal/service/postcommit"
	"sessionbook/backend/internal/store"
)

const maxIdempotencyKeyLen = 256

type BookInput struct {
	ClientID        uuid.UUID
	ProviderID      uuid.UUID
	Date            domain.Date
	Slot            string
	// Price is ignored for package bookings, which are billed at the
	// package's session price.
	Price           decimal.Decimal
	ClientPackageID *uuid.UUID
	PaymentID       string
	// IdempotencyKey makes retries of the same request return the first
	// result. The payment path uses the payment transaction id.
	IdempotencyKey string
}

type BookResult struct {
	Booking domain.Booking
	// Replayed is set when the idempotency key matched an existing booking.
	// No side effects ran.
	Replayed bool
	// Degraded is set when the availability index could not be updated.
	Degraded bool
	Warnings []string
}

// Book creates a booking for a free slot.
func (s *Service) Book(ctx context.Context, in BookInput) (res BookResult, err error) {
	ctx, span := s.startSpan(ctx, "booking.Book",
		attribute.String("provider.id", in.ProviderID.String()),
		attribute.String("booking.date", in.Date.String()),
		attribute.String("booking.slot", in.Slot),
	)
	defer func() { finishSpan(span, err) }()

	b, err := s.newBooking(in)
	if err != nil {
		return BookResult{}, err
	}
	span.SetAttributes(attribute.String("booking.id", b.ID.String()))
	if b.ClientPackageID != nil {
		if err := s.priceFromPackage(ctx, &b); err != nil {
			return BookResult{}, err
		}
	}

	if b.ID != uuid.Nil {
		existing, err := s.repo.GetBooking(ctx, b.ID)
		switch {
		case err == nil:
			if !existing.SameRequest(b) {
				return BookResult{}, store.ErrIdempotencyConflict
			}
			return BookResult{Booking: existing, Replayed: true}, nil
		case !errors.Is(err, store.ErrNotFound):
			return BookResult{}, storageError("get booking", err)
		}
	}

	parties, err := s.parties(ctx, b.ClientID, b.ProviderID)
	if err != nil {
		return BookResult{}, err
	}
	if err := s.requireAvailable(ctx, b.Key(), uuid.Nil); err != nil {
		return BookResult{}, err
	}

	created := false
	err = s.repo.InBookingTransaction(ctx, func(ctx context.Context, tx store.BookingTx) error {
		out, ok, err := tx.InsertBooking(ctx, b)
		if err != nil {
			return err
		}
		b, created = out, ok
		if created && b.ClientPackageID != nil {
			return tx.ConsumePackageSession(ctx, *b.ClientPackageID, b.ClientID, b.ProviderID)
		}
		return nil
	})
	if err != nil {
		return BookResult{}, txError("create booking", err)
	}
	if !created {
		return BookResult{Booking: b, Replayed: true}, nil
	}

	res = BookResult{Booking: b}
	res.Degraded = !s.removeSlot(ctx, b.Key())

	var meeting *domain.Meeting
	first := []postcommit.Task{}
	if s.collab.Meetings != nil {
		first = append(first, postcommit.Task{Name: "meeting", Run: func(ctx context.Context) error {
			m, err := s.collab.Meetings.CreateMeeting(ctx, s.meetingRequest(b, parties))
			if err != nil {
				return err
			}
			meeting = &m
			return s.repo.SetMeeting(ctx, b.ID, m)
		}})
	}
	if s.collab.Receipts != nil {
		first = append(first, postcommit.Task{Name: "receipt", Run: func(ctx context.Context) error {
			_, err := s.collab.Receipts.Issue(ctx, b, parties)
			return err
		}})
	}
	first = append(first, s.eventTask(domain.NewBookingEvent(domain.EventBookingCreated, b, s.now()))...)
	first = append(first, s.viewsTask(b.ProviderID)...)
	failures := s.runner.Run(ctx, first...)

	if meeting != nil {
		b.MeetingURL = &meeting.URL
		b.ExternalEventID = &meeting.ExternalEventID
		res.Booking = b
	}

	// The confirmation goes out after the meeting exists so it can carry the
	// link.
	failures = append(failures, s.runner.Run(ctx, s.notifyTask(true, func(ctx context.Context, n Notifier) error {
		return n.BookingConfirmed(ctx, b, parties)
	})...)...)

	res.Warnings = postcommit.Messages(failures)
	return res, nil
}

func (s *Service) newBooking(in BookInput) (domain.Booking, error) {
	if in.ClientID == uuid.Nil {
		return domain.Booking{}, domain.NewValidationError("client_id is required")
	}
	if in.ProviderID == uuid.Nil {
		return domain.Booking{}, domain.NewValidationError("provider_id is required")
	}
	slot, err := s.parseTarget(in.Date, in.Slot)
	if err != nil {
		return domain.Booking{}, err
	}
	if in.Price.IsNegative() {
		return domain.Booking{}, domain.NewValidationError("price must not be negative")
	}
	if in.ClientPackageID != nil && *in.ClientPackageID == uuid.Nil {
		return domain.Booking{}, domain.NewValidationError("client_package_id is invalid")
	}

	b := domain.Booking{
		ClientID:        in.ClientID,
		ProviderID:      in.ProviderID,
		ClientPackageID: in.ClientPackageID,
		ScheduledDate:   in.Date,
		ScheduledMinute: slot,
		Status:          domain.StatusBooked,
		Price:           in.Price,
	}
	if p := strings.TrimSpace(in.PaymentID); p != "" {
		b.PaymentID = &p
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	if key != "" {
		if len(key) > maxIdempotencyKeyLen {
			return domain.Booking{}, domain.NewValidationError("idempotency_key too long")
		}
		b.ID = BookingIDForKey(in.ClientID, key)
	}
	return b, nil
}

// priceFromPackage checks that the package was bought by this client for
// this provider and bills the booking at its session price.
func (s *Service) priceFromPackage(ctx context.Context, b *domain.Booking) error {
	pkg, err := s.repo.GetClientPackage(ctx, *b.ClientPackageID)
	if err != nil {
		return lookupError("client package", err)
	}
	if pkg.ClientID != b.ClientID || pkg.ProviderID != b.ProviderID {
		return fmt.Errorf("%w: client package", domain.ErrNotFound)
	}
	b.Price = pkg.SessionPrice
	return nil
}

// BookingIDForKey derives the booking id a given client and idempotency key
// always map to.
func BookingIDForKey(clientID uuid.UUID, key string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("sessionbook:book:"+clientID.String()+":"+key))
}

func (s *Service) meetingRequest(b domain.Booking, p domain.Parties) domain.MeetingRequest {
	start := b.Key().Start(s.loc)
	return domain.MeetingRequest{
		RequestID:   b.ID.String(),
		Summary:     fmt.Sprintf("Session with %s", p.Provider.DisplayName()),
		Description: fmt.Sprintf("Therapy session for %s with %s.", p.Client.DisplayName(), p.Provider.DisplayName()),
		Start:       start,
		End:         start.Add(domain.SessionDuration),
		Attendees:   []string{p.Client.Email, p.Provider.Email},
	}
}
