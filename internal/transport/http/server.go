// Package http exposes the booking core as a JSON API over gin.
package http

import (
	"context"
	"log/slog"
	nethttp "net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"sessionbook/backend/internal/domain"
	"sessionbook/backend/internal/service/availability"
	"sessionbook/backend/internal/service/booking"
	"sessionbook/backend/internal/service/notifications"
)

type availabilityService interface {
	Publish(ctx context.Context, in availability.PublishInput) (availability.DayView, error)
	PublishWeekly(ctx context.Context, in availability.WeeklyInput) ([]availability.DayResult, error)
	Day(ctx context.Context, providerID uuid.UUID, date domain.Date) (availability.DayView, error)
	Range(ctx context.Context, providerID uuid.UUID, from, to domain.Date) ([]availability.DayView, error)
	Delete(ctx context.Context, providerID uuid.UUID, date domain.Date) error
}

type slotChecker interface {
	CheckSlot(ctx context.Context, providerID uuid.UUID, date, slot string) (bool, error)
}

type bookingService interface {
	Book(ctx context.Context, in booking.BookInput) (booking.BookResult, error)
	Get(ctx context.Context, id uuid.UUID) (domain.Booking, error)
	List(ctx context.Context, in booking.ListInput) (booking.Page, error)
	Cancel(ctx context.Context, in booking.CancelInput) (booking.Outcome, error)
	Reschedule(ctx context.Context, in booking.RescheduleInput) (booking.Outcome, error)
	RequestReschedule(ctx context.Context, in booking.RequestRescheduleInput) (booking.RequestOutcome, error)
	ApproveReschedule(ctx context.Context, in booking.DecideRescheduleInput) (booking.DecisionOutcome, error)
	RejectReschedule(ctx context.Context, in booking.DecideRescheduleInput) (booking.DecisionOutcome, error)
	Complete(ctx context.Context, in booking.CompleteInput) (domain.Booking, error)
}

type notificationService interface {
	List(ctx context.Context, in notifications.ListInput) (notifications.Page, error)
	MarkRead(ctx context.Context, providerID, id uuid.UUID) (domain.Notification, error)
	MarkAllRead(ctx context.Context, providerID uuid.UUID) (int, error)
	UnreadCount(ctx context.Context, providerID uuid.UUID) (int, error)
	Delete(ctx context.Context, providerID, id uuid.UUID) error
}

type Services struct {
	Availability  availabilityService
	Slots         slotChecker
	Bookings      bookingService
	Notifications notificationService
}

type Options struct {
	Logger         *slog.Logger
	Style          domain.TimeStyle
	RequestTimeout time.Duration
	// RateLimit is the sustained requests per second allowed per client IP.
	// Zero disables limiting.
	RateLimit   float64
	RateBurst   int
	CORSOrigins []string
	Auth        *Authenticator
}

type Server struct {
	svc   Services
	log   *slog.Logger
	style domain.TimeStyle
}

// NewRouter builds the gin engine with middleware and every route.
func NewRouter(svc Services, opts Options) *gin.Engine {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		svc:   svc,
		log:   log.With(slog.String("component", "http")),
		style: opts.Style,
	}

	r := gin.New()
	r.Use(
		gin.CustomRecovery(s.recovered),
		requestLogger(s.log),
		corsMiddleware(opts.CORSOrigins),
	)
	if opts.RateLimit > 0 {
		r.Use(newRateLimiter(opts.RateLimit, opts.RateBurst, s.log).middleware())
	}
	r.Use(requestTimeout(opts.RequestTimeout))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(nethttp.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/v1", opts.Auth.Middleware())
	{
		p := v1.Group("/providers/:providerID")
		p.PUT("/availability/:date", s.publishDay)
		p.POST("/availability/weekly", s.publishWeekly)
		p.GET("/availability", s.availabilityRange)
		p.GET("/availability/:date", s.availabilityDay)
		p.DELETE("/availability/:date", s.deleteDay)
		p.GET("/slots/:date/:slot", s.checkSlot)

		v1.POST("/bookings", s.book)
		v1.GET("/bookings", s.listBookings)
		v1.GET("/bookings/:bookingID", s.getBooking)
		v1.POST("/bookings/:bookingID/cancel", s.cancel)
		v1.POST("/bookings/:bookingID/reschedule", s.reschedule)
		v1.POST("/bookings/:bookingID/reschedule-requests", s.requestReschedule)
		v1.POST("/bookings/:bookingID/complete", s.complete)
		v1.POST("/reschedule-requests/:requestID/approve", s.approveReschedule)
		v1.POST("/reschedule-requests/:requestID/reject", s.rejectReschedule)

		v1.GET("/notifications", s.listNotifications)
		v1.GET("/notifications/unread-count", s.unreadCount)
		v1.POST("/notifications/read-all", s.markAllRead)
		v1.POST("/notifications/:notificationID/read", s.markRead)
		v1.DELETE("/notifications/:notificationID", s.deleteNotification)
	}
	return r
}

func (s *Server) recovered(c *gin.Context, rec any) {
	s.log.Error("handler panic", slog.Any("panic", rec), slog.String("path", c.FullPath()))
	c.AbortWithStatusJSON(nethttp.StatusInternalServerError, errorBody("internal", "internal error"))
}
