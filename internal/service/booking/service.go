// Package booking creates, moves and cancels sessions. Every change commits
// in a single database transaction; the availability index and external
// collaborators are updated afterwards and never roll a change back.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"sessionbook/backend/internal/domain"
	"sessionbook/backend/internal/service/postcommit"
	"sessionbook/backend/internal/store"
)

const tracerName = "sessionbook/backend/internal/service/booking"

type Options struct {
	// Location is the clinic time zone. Dates are "in the future" when they
	// are after today there.
	Location *time.Location
	Now      func() time.Time
	Logger   *slog.Logger
	// CollaboratorTimeout bounds each post-commit task separately.
	CollaboratorTimeout time.Duration
	Tracer              trace.Tracer
}

type Service struct {
	repo    store.BookingRepository
	slots   SlotIndex
	checker SlotChecker
	dir     store.Directory
	collab  Collaborators
	runner  *postcommit.Runner
	loc     *time.Location
	now     func() time.Time
	log     *slog.Logger
	tracer  trace.Tracer
}

func NewService(repo store.BookingRepository, slots SlotIndex, checker SlotChecker, dir store.Directory, collab Collaborators, opts Options) *Service {
	s := &Service{
		repo:    repo,
		slots:   slots,
		checker: checker,
		dir:     dir,
		collab:  collab,
		loc:     opts.Location,
		now:     opts.Now,
		log:     opts.Logger,
		tracer:  opts.Tracer,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	s.log = s.log.With(slog.String("component", "booking"))
	s.runner = postcommit.NewRunner(opts.CollaboratorTimeout, s.log)
	return s
}

// Get returns one booking.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	if id == uuid.Nil {
		return domain.Booking{}, domain.NewValidationError("booking_id is required")
	}
	b, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return domain.Booking{}, lookupError("booking", err)
	}
	return b, nil
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// parseTarget validates a requested date and slot string.
func (s *Service) parseTarget(date domain.Date, slot string) (domain.TimeOfDay, error) {
	if date.IsZero() {
		return 0, domain.NewValidationError("date is required")
	}
	t, err := domain.ParseTimeOfDay(slot)
	if err != nil {
		return 0, err
	}
	if !date.IsFuture(s.now(), s.loc) {
		return 0, fmt.Errorf("%w: %s", domain.ErrPastDate, date)
	}
	return t, nil
}

func (s *Service) requireAvailable(ctx context.Context, key domain.SlotKey, exclude uuid.UUID) error {
	ok, err := s.checker.IsAvailableFor(ctx, key, exclude)
	if err != nil {
		return err
	}
	if !ok {
		return slotUnavailable(key)
	}
	return nil
}

func (s *Service) parties(ctx context.Context, clientID, providerID uuid.UUID) (domain.Parties, error) {
	provider, err := s.dir.GetProvider(ctx, providerID)
	if err != nil {
		return domain.Parties{}, lookupError("provider", err)
	}
	client, err := s.dir.GetClient(ctx, clientID)
	if err != nil {
		return domain.Parties{}, lookupError("client", err)
	}
	return domain.Parties{Client: client, Provider: provider}, nil
}

// removeSlot reports false when the index could not be updated; the booking
// itself still stands.
func (s *Service) removeSlot(ctx context.Context, key domain.SlotKey) bool {
	removed, err := s.slots.RemoveSlot(ctx, key)
	if err != nil {
		s.log.Warn("remove slot failed", slog.String("slot", key.String()), slog.Any("err", err))
		return false
	}
	if !removed {
		s.log.Debug("slot already absent from availability", slog.String("slot", key.String()))
	}
	return true
}

func (s *Service) restoreSlot(ctx context.Context, key domain.SlotKey) bool {
	if err := s.slots.RestoreSlot(ctx, key); err != nil {
		s.log.Warn("restore slot failed", slog.String("slot", key.String()), slog.Any("err", err))
		return false
	}
	return true
}

func (s *Service) moveSlot(ctx context.Context, from, to domain.SlotKey) bool {
	restored := s.restoreSlot(ctx, from)
	removed := s.removeSlot(ctx, to)
	return restored && removed
}

func (s *Service) eventTask(ev domain.BookingEvent) []postcommit.Task {
	if s.collab.Events == nil {
		return nil
	}
	return []postcommit.Task{{Name: "event", Run: func(ctx context.Context) error {
		return s.collab.Events.Publish(ctx, ev)
	}}}
}

func (s *Service) viewsTask(providerID uuid.UUID) []postcommit.Task {
	if s.collab.Views == nil {
		return nil
	}
	return []postcommit.Task{{Name: "availability_cache", Run: func(ctx context.Context) error {
		return s.collab.Views.Invalidate(ctx, providerID)
	}}}
}

func (s *Service) notifyTask(ok bool, run func(ctx context.Context, n Notifier) error) []postcommit.Task {
	if s.collab.Notifier == nil || !ok {
		return nil
	}
	return []postcommit.Task{{Name: "email", Run: func(ctx context.Context) error {
		return run(ctx, s.collab.Notifier)
	}}}
}

// afterCommit loads the parties when needed and runs the tasks. A parties
// lookup failure only costs the email.
func (s *Service) afterCommit(ctx context.Context, b domain.Booking, build func(p domain.Parties, ok bool) []postcommit.Task) []string {
	var warnings []string
	p, err := s.parties(ctx, b.ClientID, b.ProviderID)
	if err != nil {
		s.log.Warn("load booking parties failed", slog.String("booking_id", b.ID.String()), slog.Any("err", err))
		warnings = append(warnings, fmt.Errorf("%w: load parties: %w", domain.ErrCollaboratorFailed, err).Error())
	}
	failures := s.runner.Run(ctx, build(p, err == nil)...)
	return append(warnings, postcommit.Messages(failures)...)
}

func storageError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStorageUnavailable, err)
}

func lookupError(what string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, what)
	}
	return storageError("get "+what, err)
}

func slotUnavailable(key domain.SlotKey) error {
	return fmt.Errorf("%w: %s at %s", domain.ErrSlotUnavailable, key.Date, key.Slot)
}

// txError maps a failed booking transaction onto the domain taxonomy.
// Caller errors raised inside the transaction pass through unchanged.
func txError(op string, err error) error {
	switch {
	case domain.IsCallerError(err):
		return err
	case errors.Is(err, store.ErrConflict):
		return fmt.Errorf("%w: slot was taken by another booking", domain.ErrSlotUnavailable)
	case errors.Is(err, store.ErrIdempotencyConflict):
		return err
	case errors.Is(err, store.ErrPackageExhausted):
		return domain.NewValidationError("client package has no remaining sessions")
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w: %s", domain.ErrNotFound, op)
	default:
		return storageError(op, err)
	}
}

func bookingNotFound() error {
	return fmt.Errorf("%w: booking", domain.ErrNotFound)
}
