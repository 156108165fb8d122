package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"sessionbook/backend/internal/domain"
	"sessionbook/backend/internal/service/postcommit"
	"sessionbook/backend/internal/store"
)

const maxReasonLen = 1000

type RequestRescheduleInput struct {
	BookingID uuid.UUID
	Actor     domain.Actor
	Date      domain.Date
	Slot      string
	Reason    string
}

type RequestOutcome struct {
	Booking  domain.Booking
	Request  domain.RescheduleRequest
	Warnings []string
}

// RequestReschedule records a client's proposal to move a booking. The
// booking keeps its slot until the provider decides.
func (s *Service) RequestReschedule(ctx context.Context, in RequestRescheduleInput) (out RequestOutcome, err error) {
	ctx, span := s.startSpan(ctx, "booking.RequestReschedule", attribute.String("booking.id", in.BookingID.String()))
	defer func() { finishSpan(span, err) }()

	if in.BookingID == uuid.Nil {
		return RequestOutcome{}, domain.NewValidationError("booking_id is required")
	}
	reason := strings.TrimSpace(in.Reason)
	if len(reason) > maxReasonLen {
		return RequestOutcome{}, domain.NewValidationError("reason too long")
	}
	slot, err := s.parseTarget(in.Date, in.Slot)
	if err != nil {
		return RequestOutcome{}, err
	}

	cur, err := s.repo.GetBooking(ctx, in.BookingID)
	if err != nil {
		return RequestOutcome{}, lookupError("booking", err)
	}
	if err := requireClient(in.Actor, cur); err != nil {
		return RequestOutcome{}, err
	}
	if err := domain.Transition(cur.Status, domain.StatusRescheduleRequested); err != nil {
		return RequestOutcome{}, err
	}
	target := domain.SlotKey{ProviderID: cur.ProviderID, Date: in.Date, Slot: slot}
	if target == cur.Key() {
		return RequestOutcome{}, domain.NewValidationError("new slot is the same as the current slot")
	}
	// Approval checks again; this only spares the provider a request that
	// could never be approved.
	if err := s.requireAvailable(ctx, target, cur.ID); err != nil {
		return RequestOutcome{}, err
	}
	parties, err := s.parties(ctx, cur.ClientID, cur.ProviderID)
	if err != nil {
		return RequestOutcome{}, err
	}

	err = s.repo.InBookingTransaction(ctx, func(ctx context.Context, tx store.BookingTx) error {
		locked, err := tx.LockBooking(ctx, in.BookingID)
		if err != nil {
			return err
		}
		if err := domain.Transition(locked.Status, domain.StatusRescheduleRequested); err != nil {
			return err
		}
		locked.Status = domain.StatusRescheduleRequested
		if out.Booking, err = tx.UpdateBooking(ctx, locked); err != nil {
			return err
		}

		out.Request, err = tx.InsertRescheduleRequest(ctx, domain.RescheduleRequest{
			BookingID:      locked.ID,
			RequestedBy:    in.Actor.ID,
			ProposedDate:   target.Date,
			ProposedMinute: target.Slot,
			Reason:         reason,
			Status:         domain.ReschedulePending,
		})
		if errors.Is(err, store.ErrConflict) {
			return fmt.Errorf("%w: a reschedule request is already pending", domain.ErrInvalidStateTransition)
		}
		if err != nil {
			return err
		}

		_, err = tx.InsertNotification(ctx, rescheduleNotification(locked, out.Request, parties))
		return err
	})
	if err != nil {
		return RequestOutcome{}, txError("request reschedule", err)
	}

	req := out.Request
	b := out.Booking
	failures := s.runner.Run(ctx, s.notifyTask(true, func(ctx context.Context, n Notifier) error {
		return n.RescheduleRequested(ctx, b, req, parties)
	})...)
	out.Warnings = postcommit.Messages(failures)
	return out, nil
}

func rescheduleNotification(b domain.Booking, req domain.RescheduleRequest, p domain.Parties) domain.Notification {
	clientID := b.ClientID
	bookingID := b.ID
	msg := fmt.Sprintf("%s asked to move the session on %s at %s to %s at %s.",
		p.Client.DisplayName(),
		b.ScheduledDate, b.ScheduledMinute.Format(domain.Style12h),
		req.ProposedDate, req.ProposedMinute.Format(domain.Style12h),
	)
	if req.Reason != "" {
		msg += " Reason: " + req.Reason
	}
	return domain.Notification{
		ProviderID: b.ProviderID,
		ClientID:   &clientID,
		BookingID:  &bookingID,
		Kind:       domain.NotificationRescheduleRequest,
		Title:      "Reschedule request",
		Message:    msg,
	}
}

type DecideRescheduleInput struct {
	RequestID uuid.UUID
	Actor     domain.Actor
	Note      string
}

type DecisionOutcome struct {
	Booking  domain.Booking
	Request  domain.RescheduleRequest
	Degraded bool
	Warnings []string
}

// ApproveReschedule moves the booking to the proposed slot if it is still
// free. Otherwise nothing changes and the request stays pending.
func (s *Service) ApproveReschedule(ctx context.Context, in DecideRescheduleInput) (out DecisionOutcome, err error) {
	ctx, span := s.startSpan(ctx, "booking.ApproveReschedule", attribute.String("reschedule_request.id", in.RequestID.String()))
	defer func() { finishSpan(span, err) }()

	req, cur, err := s.pendingRequest(ctx, in)
	if err != nil {
		return DecisionOutcome{}, err
	}
	target := req.Target(cur.ProviderID)
	if !target.Date.IsFuture(s.now(), s.loc) {
		return DecisionOutcome{}, fmt.Errorf("%w: proposed date %s has passed", domain.ErrPastDate, target.Date)
	}
	if err := s.requireAvailable(ctx, target, cur.ID); err != nil {
		return DecisionOutcome{}, err
	}

	var before domain.Booking
	err = s.repo.InBookingTransaction(ctx, func(ctx context.Context, tx store.BookingTx) error {
		lockedReq, err := tx.LockRescheduleRequest(ctx, in.RequestID)
		if err != nil {
			return err
		}
		if lockedReq.Status != domain.ReschedulePending {
			return fmt.Errorf("%w: request is %s", domain.ErrInvalidStateTransition, lockedReq.Status)
		}
		locked, err := tx.LockBooking(ctx, lockedReq.BookingID)
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
		if out.Booking, err = tx.UpdateBooking(ctx, locked); err != nil {
			return err
		}

		lockedReq.Decide(domain.RescheduleApproved, in.Actor.ID, strings.TrimSpace(in.Note), s.now())
		out.Request, err = tx.UpdateRescheduleRequest(ctx, lockedReq)
		return err
	})
	if err != nil {
		return DecisionOutcome{}, txError("approve reschedule", err)
	}

	out.Degraded = !s.moveSlot(ctx, before.Key(), out.Booking.Key())
	out.Warnings = s.afterCommit(ctx, out.Booking, s.rescheduledTasks(before, out.Booking))
	return out, nil
}

// RejectReschedule declines the request and returns the booking to booked
// on its original slot.
func (s *Service) RejectReschedule(ctx context.Context, in DecideRescheduleInput) (out DecisionOutcome, err error) {
	ctx, span := s.startSpan(ctx, "booking.RejectReschedule", attribute.String("reschedule_request.id", in.RequestID.String()))
	defer func() { finishSpan(span, err) }()

	if _, _, err := s.pendingRequest(ctx, in); err != nil {
		return DecisionOutcome{}, err
	}

	err = s.repo.InBookingTransaction(ctx, func(ctx context.Context, tx store.BookingTx) error {
		lockedReq, err := tx.LockRescheduleRequest(ctx, in.RequestID)
		if err != nil {
			return err
		}
		if lockedReq.Status != domain.ReschedulePending {
			return fmt.Errorf("%w: request is %s", domain.ErrInvalidStateTransition, lockedReq.Status)
		}
		locked, err := tx.LockBooking(ctx, lockedReq.BookingID)
		if err != nil {
			return err
		}
		if err := domain.Transition(locked.Status, domain.StatusBooked); err != nil {
			return err
		}

		locked.Status = domain.StatusBooked
		if out.Booking, err = tx.UpdateBooking(ctx, locked); err != nil {
			return err
		}
		lockedReq.Decide(domain.RescheduleRejected, in.Actor.ID, strings.TrimSpace(in.Note), s.now())
		out.Request, err = tx.UpdateRescheduleRequest(ctx, lockedReq)
		return err
	})
	if err != nil {
		return DecisionOutcome{}, txError("reject reschedule", err)
	}

	b, req := out.Booking, out.Request
	out.Warnings = s.afterCommit(ctx, b, func(p domain.Parties, ok bool) []postcommit.Task {
		return s.notifyTask(ok, func(ctx context.Context, n Notifier) error {
			return n.RescheduleRejected(ctx, b, req, p)
		})
	})
	return out, nil
}

// pendingRequest loads a request and its booking and checks that the actor
// may decide it.
func (s *Service) pendingRequest(ctx context.Context, in DecideRescheduleInput) (domain.RescheduleRequest, domain.Booking, error) {
	if in.RequestID == uuid.Nil {
		return domain.RescheduleRequest{}, domain.Booking{}, domain.NewValidationError("request_id is required")
	}
	req, err := s.repo.GetRescheduleRequest(ctx, in.RequestID)
	if err != nil {
		return domain.RescheduleRequest{}, domain.Booking{}, lookupError("reschedule request", err)
	}
	cur, err := s.repo.GetBooking(ctx, req.BookingID)
	if err != nil {
		return domain.RescheduleRequest{}, domain.Booking{}, lookupError("booking", err)
	}
	if !in.Actor.CanManage(cur) {
		return domain.RescheduleRequest{}, domain.Booking{}, fmt.Errorf("%w: reschedule request", domain.ErrNotFound)
	}
	if !in.Actor.IsProviderOf(cur) && !in.Actor.IsAdmin() {
		return domain.RescheduleRequest{}, domain.Booking{}, domain.NewValidationError("only the provider can decide a reschedule request")
	}
	if req.Status != domain.ReschedulePending {
		return domain.RescheduleRequest{}, domain.Booking{}, fmt.Errorf("%w: request is %s", domain.ErrInvalidStateTransition, req.Status)
	}
	return req, cur, nil
}

func requireClient(actor domain.Actor, b domain.Booking) error {
	if !actor.CanManage(b) {
		return bookingNotFound()
	}
	if !actor.IsClientOf(b) && !actor.IsAdmin() {
		return domain.NewValidationError("only the client can request a reschedule")
	}
	return nil
}
