package availability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"sessionbook/backend/internal/domain"
	"sessionbook/backend/internal/store"
)

// MaxRangeDays bounds a single Range query.
const MaxRangeDays = 92

const defaultCalendarTimeout = 3 * time.Second

// DayView is a provider's schedule for one date as clients see it.
type DayView struct {
	ProviderID uuid.UUID      `json:"provider_id"`
	Date       domain.Date    `json:"date"`
	Published  bool           `json:"published"`
	Open       domain.SlotSet `json:"open"`
	Booked     domain.SlotSet `json:"booked"`
	// Blocked are published slots that clash with the provider's own
	// calendar. Only Day fills it.
	Blocked domain.SlotSet `json:"blocked,omitempty"`
}

// All is every slot the provider offered that day, open or taken.
func (v DayView) All() domain.SlotSet {
	all := append(append([]domain.TimeOfDay{}, v.Open...), v.Booked...)
	return domain.NewSlotSet(append(all, v.Blocked...)...)
}

// BusyCalendar reports when a provider is busy on an external calendar.
type BusyCalendar interface {
	BusyTimes(ctx context.Context, calendarID string, from, to time.Time) ([]domain.Interval, error)
}

// ViewCache stores Range results. Invalidate drops every cached range for a
// provider.
type ViewCache interface {
	GetRange(ctx context.Context, providerID uuid.UUID, from, to domain.Date) ([]DayView, bool, error)
	PutRange(ctx context.Context, providerID uuid.UUID, from, to domain.Date, views []DayView) error
	Invalidate(ctx context.Context, providerID uuid.UUID) error
}

type Options struct {
	// Location is the clinic time zone used for the past-date rule.
	Location *time.Location
	Now      func() time.Time
	Cache    ViewCache
	Logger   *slog.Logger
	// Calendar is consulted by Day. Failures are logged and ignored.
	Calendar        BusyCalendar
	CalendarTimeout time.Duration
}

type Service struct {
	days     store.AvailabilityStore
	bookings store.BookingReader
	dir      store.Directory
	cache    ViewCache
	calendar BusyCalendar
	calTO    time.Duration
	loc      *time.Location
	now      func() time.Time
	log      *slog.Logger
}

func NewService(days store.AvailabilityStore, bookings store.BookingReader, dir store.Directory, opts Options) *Service {
	s := &Service{
		days:     days,
		bookings: bookings,
		dir:      dir,
		cache:    opts.Cache,
		calendar: opts.Calendar,
		calTO:    opts.CalendarTimeout,
		loc:      opts.Location,
		now:      opts.Now,
		log:      opts.Logger,
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
	if s.calTO <= 0 {
		s.calTO = defaultCalendarTimeout
	}
	s.log = s.log.With(slog.String("component", "availability"))
	return s
}

type PublishInput struct {
	ProviderID uuid.UUID
	Date       domain.Date
	Slots      []string
}

// Publish replaces the open slots of one day. Slots already held by a
// booking cannot be republished.
func (s *Service) Publish(ctx context.Context, in PublishInput) (DayView, error) {
	if in.ProviderID == uuid.Nil {
		return DayView{}, domain.NewValidationError("provider_id is required")
	}
	if in.Date.IsZero() {
		return DayView{}, domain.NewValidationError("date is required")
	}
	slots, err := domain.ParseSlotSet(in.Slots)
	if err != nil {
		return DayView{}, err
	}
	if _, err := s.dir.GetProvider(ctx, in.ProviderID); err != nil {
		return DayView{}, lookupError("provider", err)
	}

	view, err := s.publishDay(ctx, in.ProviderID, in.Date, slots)
	if err != nil {
		return DayView{}, err
	}
	s.invalidate(ctx, in.ProviderID)
	return view, nil
}

type WeeklyInput struct {
	ProviderID uuid.UUID
	From       domain.Date
	Until      domain.Date
	// Weekdays are ISO numbered, 1 is Monday and 7 is Sunday.
	Weekdays []int16
	Interval int
	Slots    []string
}

type DayResult struct {
	Date domain.Date
	View DayView
	Err  error
}

// PublishWeekly publishes the same slots on every day matched by a weekly
// pattern. Days are published independently; one failing day does not stop
// the rest.
func (s *Service) PublishWeekly(ctx context.Context, in WeeklyInput) ([]DayResult, error) {
	if in.ProviderID == uuid.Nil {
		return nil, domain.NewValidationError("provider_id is required")
	}
	slots, err := domain.ParseSlotSet(in.Slots)
	if err != nil {
		return nil, err
	}
	if len(slots) == 0 {
		return nil, domain.NewValidationError("at least one slot is required")
	}
	dates, err := domain.WeeklyPattern{
		From:      in.From,
		Until:     in.Until,
		ByWeekday: in.Weekdays,
		Interval:  in.Interval,
	}.Dates()
	if err != nil {
		return nil, domain.NewValidationError(err.Error())
	}
	if _, err := s.dir.GetProvider(ctx, in.ProviderID); err != nil {
		return nil, lookupError("provider", err)
	}

	results := make([]DayResult, 0, len(dates))
	for _, d := range dates {
		view, err := s.publishDay(ctx, in.ProviderID, d, slots)
		results = append(results, DayResult{Date: d, View: view, Err: err})
		if errors.Is(err, domain.ErrStorageUnavailable) {
			s.log.Warn("weekly publish day failed", slog.String("provider_id", in.ProviderID.String()), slog.String("date", d.String()), slog.Any("err", err))
		}
	}
	s.invalidate(ctx, in.ProviderID)
	return results, nil
}

func (s *Service) publishDay(ctx context.Context, providerID uuid.UUID, date domain.Date, slots domain.SlotSet) (DayView, error) {
	if !date.IsFuture(s.now(), s.loc) {
		return DayView{}, fmt.Errorf("%w: %s", domain.ErrPastDate, date)
	}

	booked, err := s.heldSlots(ctx, providerID, date)
	if err != nil {
		return DayView{}, err
	}
	if clash := slots.Intersect(booked); len(clash) > 0 {
		return DayView{}, fmt.Errorf("%w: already booked: %s", domain.ErrSlotUnavailable, strings.Join(clash.Format(domain.Style24h), ", "))
	}

	day, err := s.days.PublishDay(ctx, domain.NewAvailabilityDay(providerID, date, slots))
	if err != nil {
		return DayView{}, storageError("publish availability", err)
	}
	return DayView{
		ProviderID: providerID,
		Date:       date,
		Published:  day.Published(),
		Open:       day.Slots(),
		Booked:     booked,
	}, nil
}

// Day returns the slots of one date, split into open, booked and blocked by
// the provider's calendar.
func (s *Service) Day(ctx context.Context, providerID uuid.UUID, date domain.Date) (DayView, error) {
	if providerID == uuid.Nil {
		return DayView{}, domain.NewValidationError("provider_id is required")
	}
	if date.IsZero() {
		return DayView{}, domain.NewValidationError("date is required")
	}

	day, err := s.days.GetDay(ctx, providerID, date)
	if err != nil {
		return DayView{}, storageError("get availability", err)
	}
	booked, err := s.heldSlots(ctx, providerID, date)
	if err != nil {
		return DayView{}, err
	}
	open := day.Slots().Without(booked)
	blocked := s.calendarBlocked(ctx, providerID, date, open)
	return DayView{
		ProviderID: providerID,
		Date:       date,
		Published:  day.Published(),
		Open:       open.Without(blocked),
		Booked:     booked,
		Blocked:    blocked,
	}, nil
}

// calendarBlocked returns the slots in open that overlap a busy period on
// the provider's calendar.
func (s *Service) calendarBlocked(ctx context.Context, providerID uuid.UUID, date domain.Date, open domain.SlotSet) domain.SlotSet {
	if s.calendar == nil || len(open) == 0 {
		return nil
	}
	log := s.log.With(slog.String("provider_id", providerID.String()), slog.String("date", date.String()))

	provider, err := s.dir.GetProvider(ctx, providerID)
	if err != nil {
		log.Warn("calendar check skipped", slog.Any("err", err))
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.calTO)
	defer cancel()

	dayStart := date.At(0, s.loc)
	busy, err := s.calendar.BusyTimes(ctx, provider.Email, dayStart, date.AddDays(1).At(0, s.loc))
	if err != nil {
		log.Warn("calendar busy lookup failed", slog.Any("err", err))
		return nil
	}
	return domain.NewSlotSet(lo.Filter(open, func(slot domain.TimeOfDay, _ int) bool {
		start := date.At(slot, s.loc)
		session := domain.Interval{Start: start, End: start.Add(domain.SessionDuration)}
		return lo.ContainsBy(busy, session.Overlaps)
	})...)
}

// Range lists the days between from and to inclusive that still have open
// slots.
func (s *Service) Range(ctx context.Context, providerID uuid.UUID, from, to domain.Date) ([]DayView, error) {
	if providerID == uuid.Nil {
		return nil, domain.NewValidationError("provider_id is required")
	}
	if from.IsZero() || to.IsZero() {
		return nil, domain.NewValidationError("from and to are required")
	}
	if to.Before(from) {
		return nil, domain.NewValidationError("to must not be before from")
	}
	if from.DaysUntil(to) > MaxRangeDays {
		return nil, domain.NewValidationError(fmt.Sprintf("range must not exceed %d days", MaxRangeDays))
	}

	if s.cache != nil {
		views, ok, err := s.cache.GetRange(ctx, providerID, from, to)
		if err != nil {
			s.log.Warn("availability cache read failed", slog.String("provider_id", providerID.String()), slog.Any("err", err))
		} else if ok {
			return views, nil
		}
	}

	days, err := s.days.ListDays(ctx, providerID, from, to)
	if err != nil {
		return nil, storageError("list availability", err)
	}
	held, err := s.bookings.ListHeld(ctx, providerID, from, to)
	if err != nil {
		return nil, storageError("list bookings", err)
	}
	bookedByDate := lo.GroupBy(held, func(b domain.Booking) domain.Date {
		return b.ScheduledDate
	})

	views := make([]DayView, 0, len(days))
	for _, day := range days {
		booked := domain.NewSlotSet(lo.Map(bookedByDate[day.Date], func(b domain.Booking, _ int) domain.TimeOfDay {
			return b.ScheduledMinute
		})...)
		open := day.Slots().Without(booked)
		if !day.Published() || len(open) == 0 {
			continue
		}
		views = append(views, DayView{
			ProviderID: providerID,
			Date:       day.Date,
			Published:  true,
			Open:       open,
			Booked:     booked,
		})
	}

	if s.cache != nil {
		if err := s.cache.PutRange(ctx, providerID, from, to, views); err != nil {
			s.log.Warn("availability cache write failed", slog.String("provider_id", providerID.String()), slog.Any("err", err))
		}
	}
	return views, nil
}

// Delete removes a day's availability record. Days with a booking holding
// any of their slots cannot be deleted.
func (s *Service) Delete(ctx context.Context, providerID uuid.UUID, date domain.Date) error {
	if providerID == uuid.Nil {
		return domain.NewValidationError("provider_id is required")
	}
	if date.IsZero() {
		return domain.NewValidationError("date is required")
	}

	booked, err := s.heldSlots(ctx, providerID, date)
	if err != nil {
		return err
	}
	if len(booked) > 0 {
		return fmt.Errorf("%w: %s has booked sessions", domain.ErrSlotUnavailable, date)
	}

	if err := s.days.DeleteDay(ctx, providerID, date); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: availability for %s", domain.ErrNotFound, date)
		}
		return storageError("delete availability", err)
	}
	s.invalidate(ctx, providerID)
	return nil
}

func (s *Service) heldSlots(ctx context.Context, providerID uuid.UUID, date domain.Date) (domain.SlotSet, error) {
	held, err := s.bookings.ListHeld(ctx, providerID, date, date)
	if err != nil {
		return nil, storageError("list bookings", err)
	}
	return domain.NewSlotSet(lo.Map(held, func(b domain.Booking, _ int) domain.TimeOfDay {
		return b.ScheduledMinute
	})...), nil
}

func (s *Service) invalidate(ctx context.Context, providerID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, providerID); err != nil {
		s.log.Warn("availability cache invalidate failed", slog.String("provider_id", providerID.String()), slog.Any("err", err))
	}
}
