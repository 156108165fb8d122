package http

import (
	"context"
	nethttp "net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"sessionbook/backend/internal/domain"
	"sessionbook/backend/internal/service/booking"
)

type bookRequest struct {
	ProviderID      uuid.UUID       `json:"psychologist_id"`
	ClientID        *uuid.UUID      `json:"client_id"`
	Date            string          `json:"date"`
	Time            string          `json:"time"`
	Price           decimal.Decimal `json:"price"`
	ClientPackageID *uuid.UUID      `json:"client_package_id"`
	PaymentID       string          `json:"payment_id"`
}

func (s *Server) book(c *gin.Context) {
	const op = "booking.book"
	var req bookRequest
	if !s.bindBody(c, op, &req, true) {
		return
	}

	actor := actorFrom(c)
	var clientID uuid.UUID
	switch {
	case actor.IsAdmin():
		if req.ClientID == nil {
			s.fail(c, op, domain.NewValidationError("client_id is required"))
			return
		}
		clientID = *req.ClientID
	case actor.Role == domain.RoleClient:
		if req.ClientID != nil && *req.ClientID != actor.ID {
			s.forbidden(c, "clients can only book for themselves")
			return
		}
		if !req.Price.IsZero() || strings.TrimSpace(req.PaymentID) != "" {
			s.forbidden(c, "price and payment_id are set by the clinic")
			return
		}
		clientID = actor.ID
	default:
		s.forbidden(c, "only clients can book sessions")
		return
	}

	date, err := domain.ParseDate(req.Date)
	if err != nil {
		s.fail(c, op, err)
		return
	}

	res, err := s.svc.Bookings.Book(c.Request.Context(), booking.BookInput{
		ClientID:        clientID,
		ProviderID:      req.ProviderID,
		Date:            date,
		Slot:            req.Time,
		Price:           req.Price,
		ClientPackageID: req.ClientPackageID,
		PaymentID:       req.PaymentID,
		IdempotencyKey:  idempotencyKey(c),
	})
	if err != nil {
		s.fail(c, op, err)
		return
	}

	status := nethttp.StatusCreated
	if res.Replayed {
		status = nethttp.StatusOK
	}
	c.JSON(status, outcomeJSON{
		Booking:  s.bookingJSON(res.Booking),
		Replayed: res.Replayed,
		Degraded: res.Degraded,
		Warnings: res.Warnings,
	})
}

func (s *Server) listBookings(c *gin.Context) {
	const op = "booking.list"
	limit, err := queryInt(c, "limit")
	if err != nil {
		s.badRequest(c, op, err)
		return
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		s.badRequest(c, op, err)
		return
	}

	page, err := s.svc.Bookings.List(c.Request.Context(), booking.ListInput{
		Actor:  actorFrom(c),
		Status: domain.BookingStatus(c.Query("status")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.fail(c, op, err)
		return
	}
	items := make([]bookingJSON, 0, len(page.Items))
	for _, b := range page.Items {
		items = append(items, s.bookingJSON(b))
	}
	c.JSON(nethttp.StatusOK, gin.H{
		"items":  items,
		"total":  page.Total,
		"limit":  page.Limit,
		"offset": page.Offset,
	})
}

func (s *Server) getBooking(c *gin.Context) {
	const op = "booking.get"
	id, ok := s.pathUUID(c, op, "bookingID")
	if !ok {
		return
	}
	b, err := s.svc.Bookings.Get(c.Request.Context(), id)
	if err == nil && !actorFrom(c).CanManage(b) {
		err = domain.ErrNotFound
	}
	if err != nil {
		s.fail(c, op, err)
		return
	}
	c.JSON(nethttp.StatusOK, gin.H{"booking": s.bookingJSON(b)})
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) cancel(c *gin.Context) {
	const op = "booking.cancel"
	id, ok := s.pathUUID(c, op, "bookingID")
	if !ok {
		return
	}
	var req cancelRequest
	if !s.bindBody(c, op, &req, false) {
		return
	}
	out, err := s.svc.Bookings.Cancel(c.Request.Context(), booking.CancelInput{
		BookingID: id,
		Actor:     actorFrom(c),
		Reason:    req.Reason,
	})
	if err != nil {
		s.fail(c, op, err)
		return
	}
	c.JSON(nethttp.StatusOK, outcomeJSON{
		Booking:  s.bookingJSON(out.Booking),
		Degraded: out.Degraded,
		Warnings: out.Warnings,
	})
}

type slotRequest struct {
	Date   string `json:"date"`
	Time   string `json:"time"`
	Reason string `json:"reason"`
}

func (s *Server) reschedule(c *gin.Context) {
	const op = "booking.reschedule"
	id, ok := s.pathUUID(c, op, "bookingID")
	if !ok {
		return
	}
	var req slotRequest
	if !s.bindBody(c, op, &req, true) {
		return
	}
	date, err := domain.ParseDate(req.Date)
	if err != nil {
		s.fail(c, op, err)
		return
	}
	out, err := s.svc.Bookings.Reschedule(c.Request.Context(), booking.RescheduleInput{
		BookingID: id,
		Actor:     actorFrom(c),
		Date:      date,
		Slot:      req.Time,
	})
	if err != nil {
		s.fail(c, op, err)
		return
	}
	c.JSON(nethttp.StatusOK, outcomeJSON{
		Booking:  s.bookingJSON(out.Booking),
		Degraded: out.Degraded,
		Warnings: out.Warnings,
	})
}

func (s *Server) requestReschedule(c *gin.Context) {
	const op = "booking.request_reschedule"
	id, ok := s.pathUUID(c, op, "bookingID")
	if !ok {
		return
	}
	var req slotRequest
	if !s.bindBody(c, op, &req, true) {
		return
	}
	date, err := domain.ParseDate(req.Date)
	if err != nil {
		s.fail(c, op, err)
		return
	}
	out, err := s.svc.Bookings.RequestReschedule(c.Request.Context(), booking.RequestRescheduleInput{
		BookingID: id,
		Actor:     actorFrom(c),
		Date:      date,
		Slot:      req.Time,
		Reason:    req.Reason,
	})
	if err != nil {
		s.fail(c, op, err)
		return
	}
	c.JSON(nethttp.StatusCreated, outcomeJSON{
		Booking:  s.bookingJSON(out.Booking),
		Request:  s.requestJSON(out.Request),
		Warnings: out.Warnings,
	})
}

type decisionRequest struct {
	Note string `json:"note"`
}

func (s *Server) approveReschedule(c *gin.Context) {
	s.decide(c, "booking.approve_reschedule", s.svc.Bookings.ApproveReschedule)
}

func (s *Server) rejectReschedule(c *gin.Context) {
	s.decide(c, "booking.reject_reschedule", s.svc.Bookings.RejectReschedule)
}

func (s *Server) decide(c *gin.Context, op string, run func(ctx context.Context, in booking.DecideRescheduleInput) (booking.DecisionOutcome, error)) {
	id, ok := s.pathUUID(c, op, "requestID")
	if !ok {
		return
	}
	var req decisionRequest
	if !s.bindBody(c, op, &req, false) {
		return
	}
	out, err := run(c.Request.Context(), booking.DecideRescheduleInput{
		RequestID: id,
		Actor:     actorFrom(c),
		Note:      req.Note,
	})
	if err != nil {
		s.fail(c, op, err)
		return
	}
	c.JSON(nethttp.StatusOK, outcomeJSON{
		Booking:  s.bookingJSON(out.Booking),
		Request:  s.requestJSON(out.Request),
		Degraded: out.Degraded,
		Warnings: out.Warnings,
	})
}

func (s *Server) complete(c *gin.Context) {
	const op = "booking.complete"
	id, ok := s.pathUUID(c, op, "bookingID")
	if !ok {
		return
	}
	b, err := s.svc.Bookings.Complete(c.Request.Context(), booking.CompleteInput{
		BookingID: id,
		Actor:     actorFrom(c),
	})
	if err != nil {
		s.fail(c, op, err)
		return
	}
	c.JSON(nethttp.StatusOK, gin.H{"booking": s.bookingJSON(b)})
}
