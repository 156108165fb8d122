package availability

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"sessionbook/backend/internal/domain"
)

type fakeDays struct {
	getDayFn      func(ctx context.Context, providerID uuid.UUID, date domain.Date) (domain.AvailabilityDay, error)
	listDaysFn    func(ctx context.Context, providerID uuid.UUID, from, to domain.Date) ([]domain.AvailabilityDay, error)
	publishDayFn  func(ctx context.Context, day domain.AvailabilityDay) (domain.AvailabilityDay, error)
	deleteDayFn   func(ctx context.Context, providerID uuid.UUID, date domain.Date) error
	removeSlotFn  func(ctx context.Context, key domain.SlotKey) (bool, error)
	restoreSlotFn func(ctx context.Context, key domain.SlotKey) error
}

func (f *fakeDays) GetDay(ctx context.Context, providerID uuid.UUID, date domain.Date) (domain.AvailabilityDay, error) {
	if f.getDayFn == nil {
		panic("GetDay not configured")
	}
	return f.getDayFn(ctx, providerID, date)
}

func (f *fakeDays) ListDays(ctx context.Context, providerID uuid.UUID, from, to domain.Date) ([]domain.AvailabilityDay, error) {
	if f.listDaysFn == nil {
		panic("ListDays not configured")
	}
	return f.listDaysFn(ctx, providerID, from, to)
}

func (f *fakeDays) PublishDay(ctx context.Context, day domain.AvailabilityDay) (domain.AvailabilityDay, error) {
	if f.publishDayFn == nil {
		panic("PublishDay not configured")
	}
	return f.publishDayFn(ctx, day)
}

func (f *fakeDays) DeleteDay(ctx context.Context, providerID uuid.UUID, date domain.Date) error {
	if f.deleteDayFn == nil {
		panic("DeleteDay not configured")
	}
	return f.deleteDayFn(ctx, providerID, date)
}

func (f *fakeDays) RemoveSlot(ctx context.Context, key domain.SlotKey) (bool, error) {
	if f.removeSlotFn == nil {
		panic("RemoveSlot not configured")
	}
	return f.removeSlotFn(ctx, key)
}

func (f *fakeDays) RestoreSlot(ctx context.Context, key domain.SlotKey) error {
	if f.restoreSlotFn == nil {
		panic("RestoreSlot not configured")
	}
	return f.restoreSlotFn(ctx, key)
}

type fakeBookings struct {
	getBookingFn     func(ctx context.Context, id uuid.UUID) (domain.Booking, error)
	findSlotHolderFn func(ctx context.Context, key domain.SlotKey) (domain.Booking, error)
	listHeldFn       func(ctx context.Context, providerID uuid.UUID, from, to domain.Date) ([]domain.Booking, error)
}

func (f *fakeBookings) GetBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	if f.getBookingFn == nil {
		panic("GetBooking not configured")
	}
	return f.getBookingFn(ctx, id)
}

func (f *fakeBookings) FindSlotHolder(ctx context.Context, key domain.SlotKey) (domain.Booking, error) {
	if f.findSlotHolderFn == nil {
		panic("FindSlotHolder not configured")
	}
	return f.findSlotHolderFn(ctx, key)
}

func (f *fakeBookings) ListHeld(ctx context.Context, providerID uuid.UUID, from, to domain.Date) ([]domain.Booking, error) {
	if f.listHeldFn == nil {
		panic("ListHeld not configured")
	}
	return f.listHeldFn(ctx, providerID, from, to)
}

type fakeDirectory struct {
	getProviderFn func(ctx context.Context, id uuid.UUID) (domain.Provider, error)
	getClientFn   func(ctx context.Context, id uuid.UUID) (domain.Client, error)
}

func (f *fakeDirectory) GetProvider(ctx context.Context, id uuid.UUID) (domain.Provider, error) {
	if f.getProviderFn == nil {
		panic("GetProvider not configured")
	}
	return f.getProviderFn(ctx, id)
}

func (f *fakeDirectory) GetClient(ctx context.Context, id uuid.UUID) (domain.Client, error) {
	if f.getClientFn == nil {
		panic("GetClient not configured")
	}
	return f.getClientFn(ctx, id)
}

type fakeCalendar struct {
	busyTimesFn func(ctx context.Context, calendarID string, from, to time.Time) ([]domain.Interval, error)
}

func (f *fakeCalendar) BusyTimes(ctx context.Context, calendarID string, from, to time.Time) ([]domain.Interval, error) {
	if f.busyTimesFn == nil {
		panic("BusyTimes not configured")
	}
	return f.busyTimesFn(ctx, calendarID, from, to)
}

func anyProvider() *fakeDirectory {
	return &fakeDirectory{
		getProviderFn: func(ctx context.Context, id uuid.UUID) (domain.Provider, error) {
			return domain.Provider{ID: id}, nil
		},
	}
}

func noneHeld(ctx context.Context, providerID uuid.UUID, from, to domain.Date) ([]domain.Booking, error) {
	return nil, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
