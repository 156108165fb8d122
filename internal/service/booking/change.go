package booking

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"sessionbook/backend/internal/domain"
	"sessionbook/backend/internal/service/postcommit"
	"sessionbook/backend/internal/store"
)

// Outcome is the result of a committed change to an existing booking.
type Outcome struct {
	Booking  domain.Booking
	Degraded bool
	Warnings []string
}

type CancelInput struct {
	BookingID uuid.UUID
	Actor     domain.Actor
	Reason    string
}

// Cancel frees a future booked session and refunds its package credit.
func (s *Service) Cancel(ctx context.Context, in CancelInput) (out Outcome, err error) {
	ctx, span := s.startSpan(ctx, "booking.Cancel", attribute.String("booking.id", in.BookingID.String()))
	defer func() { finishSpan(span, err) }()

	if in.BookingID == uuid.Nil {
		return Outcome{}, domain.NewValidationError("booking_id is required")
	}

	var b domain.Booking
	err = s.repo.InBookingTransaction(ctx, func(ctx context.Context, tx store.BookingTx) error {
		cur, err := tx.LockBooking(ctx, in.BookingID)
		if err != nil {
			return err
		}
		if !in.Actor.CanManage(cur) {
			return bookingNotFound()
		}
		if err := domain.Transition(cur.Status, domain.StatusCanceled); err != nil {
			return err
		}
		if !cur.ScheduledDate.IsFuture(s.now(), s.loc) {
			return fmt.Errorf("%w: sessions can only be canceled before their day", domain.ErrPastDate)
		}

		cur.Status = domain.StatusCanceled
		updated, err := tx.UpdateBooking(ctx, cur)
		if err != nil {
			return err
		}
		if updated.ClientPackageID != nil {
			if err := tx.ReleasePackageSession(ctx, *updated.ClientPackageID); err != nil {
				return err
			}
		}
		b = updated
		return nil
	})
	if err != nil {
		return Outcome{}, txError("cancel booking", err)
	}

	out = Outcome{Booking: b}
	out.Degraded = !s.restoreSlot(ctx, b.Key())

	ev := domain.NewBookingEvent(domain.EventBookingCanceled, b, s.now())
	ev.Data.Reason = in.Reason
	out.Warnings = s.afterCommit(ctx, b, func(p domain.Parties, ok bool) []postcommit.Task {
		tasks := s.notifyTask(ok, func(ctx context.Context, n Notifier) error {
			return n.BookingCanceled(ctx, b, p)
		})
		tasks = append(tasks, s.eventTask(ev)...)
		return append(tasks, s.viewsTask(b.ProviderID)...)
	})
	return out, nil
}

type RescheduleInput struct {
	BookingID uuid.UUID
	Actor     domain.Actor
	Date      domain.Date
	Slot      string
}

// Reschedule moves a booked session straight to another free slot of the
// same provider.
func (s *Service) Reschedule(ctx context.Context, in RescheduleInput) (out Outcome, err error) {
	ctx, span := s.startSpan(ctx, "booking.Reschedule",
		attribute.String("booking.id", in.BookingID.String()),
		attribute.String("booking.date", in.Date.String()),
		attribute.String("booking.slot", in.Slot),
	)
	defer func() { finishSpan(span, err) }()

	if in.BookingID == uuid.Nil {
		return Outcome{}, domain.NewValidationError("booking_id is required")
	}
	slot, err := s.parseTarget(in.Date, in.Slot)
	if err != nil {
		return Outcome{}, err
	}

	cur, err := s.repo.GetBooking(ctx, in.BookingID)
	if err != nil {
		return Outcome{}, lookupError("booking", err)
	}
	if !in.Actor.CanManage(cur) {
		return Outcome{}, bookingNotFound()
	}
	if err := domain.Transition(cur.Status, domain.StatusRescheduled); err != nil {
		return Outcome{}, err
	}
	target := domain.SlotKey{ProviderID: cur.ProviderID, Date: in.Date, Slot: slot}
	if target == cur.Key() {
		return Outcome{}, domain.NewValidationError("new slot is the same as the current slot")
	}
	if err := s.requireAvailable(ctx, target, cur.ID); err != nil {
		return Outcome{}, err
	}

	var before, after domain.Booking
	err = s.repo.InBookingTransaction(ctx, func(ctx context.Context, tx store.BookingTx) error {
		locked, err := tx.LockBooking(ctx, in.BookingID)
		if err != nil {
			return err
		}
		if err := domain.Transition(locked.Status, domain.StatusRescheduled); err != nil {
			return err
		}
		before = locked
		locked.ScheduledDate = target.Date
		locked.ScheduledMinute = target.Slot
		locked.Status = domain.StatusRescheduled
		after, err = tx.UpdateBooking(ctx, locked)
		return err
	})
	if err != nil {
		return Outcome{}, txError("reschedule booking", err)
	}

	out = Outcome{Booking: after}
	out.Degraded = !s.moveSlot(ctx, before.Key(), after.Key())
	out.Warnings = s.afterCommit(ctx, after, s.rescheduledTasks(before, after))
	return out, nil
}

func (s *Service) rescheduledTasks(before, after domain.Booking) func(p domain.Parties, ok bool) []postcommit.Task {
	return func(p domain.Parties, ok bool) []postcommit.Task {
		ev := domain.NewBookingEvent(domain.EventBookingRescheduled, after, s.now())
		prev := before.ScheduledDate
		ev.Data.PreviousDate = &prev
		ev.Data.PreviousTime = before.ScheduledMinute.Format(domain.Style24h)

		tasks := s.notifyTask(ok, func(ctx context.Context, n Notifier) error {
			return n.BookingRescheduled(ctx, after, before.Key(), p)
		})
		tasks = append(tasks, s.eventTask(ev)...)
		return append(tasks, s.viewsTask(after.ProviderID)...)
	}
}

type CompleteInput struct {
	BookingID uuid.UUID
	Actor     domain.Actor
}

// Complete marks a held session as having taken place.
func (s *Service) Complete(ctx context.Context, in CompleteInput) (b domain.Booking, err error) {
	ctx, span := s.startSpan(ctx, "booking.Complete", attribute.String("booking.id", in.BookingID.String()))
	defer func() { finishSpan(span, err) }()

	if in.BookingID == uuid.Nil {
		return domain.Booking{}, domain.NewValidationError("booking_id is required")
	}

	err = s.repo.InBookingTransaction(ctx, func(ctx context.Context, tx store.BookingTx) error {
		cur, err := tx.LockBooking(ctx, in.BookingID)
		if err != nil {
			return err
		}
		if !in.Actor.CanManage(cur) {
			return bookingNotFound()
		}
		if !in.Actor.IsProviderOf(cur) && !in.Actor.IsAdmin() {
			return domain.NewValidationError("only the provider can complete a session")
		}
		if err := domain.Transition(cur.Status, domain.StatusCompleted); err != nil {
			return err
		}
		cur.Status = domain.StatusCompleted
		b, err = tx.UpdateBooking(ctx, cur)
		return err
	})
	if err != nil {
		return domain.Booking{}, txError("complete booking", err)
	}
	return b, nil
}
