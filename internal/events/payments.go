package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"

	"sessionbook/backend/internal/domain"
	"sessionbook/backend/internal/service/booking"
	"sessionbook/backend/internal/store"
)

const PaymentPaidKey = "payment.paid"

// PaymentPaid is the message the payment service emits once a session has
// been paid for.
type PaymentPaid struct {
	Event   string `json:"event"`
	Version int    `json:"version"`
	Data    struct {
		PaymentID       string          `json:"payment_id"`
		ClientID        uuid.UUID       `json:"client_id"`
		ProviderID      uuid.UUID       `json:"psychologist_id"`
		ScheduledDate   string          `json:"scheduled_date"`
		ScheduledTime   string          `json:"scheduled_time"`
		Amount          decimal.Decimal `json:"amount"`
		ClientPackageID *uuid.UUID      `json:"client_package_id,omitempty"`
	} `json:"data"`
}

type Booker interface {
	Book(ctx context.Context, in booking.BookInput) (booking.BookResult, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, ev domain.BookingEvent) error
}

type deliverySource interface {
	Deliveries(ctx context.Context) (<-chan amqp.Delivery, error)
}

type disposition int

const (
	ack disposition = iota
	drop
	requeue
)

// PaymentListener books the session a payment was made for. The payment id
// is the idempotency key, so redelivered messages replay the first booking.
type PaymentListener struct {
	source  deliverySource
	booker  Booker
	events  EventPublisher
	log     *slog.Logger
	now     func() time.Time
	timeout time.Duration
}

func NewPaymentListener(source deliverySource, booker Booker, events EventPublisher, log *slog.Logger) *PaymentListener {
	if log == nil {
		log = slog.Default()
	}
	return &PaymentListener{
		source:  source,
		booker:  booker,
		events:  events,
		log:     log.With(slog.String("component", "payment_listener")),
		now:     time.Now,
		timeout: 30 * time.Second,
	}
}

// ErrDeliveriesClosed is returned by Run when the broker closes the
// delivery channel while ctx is still live.
var ErrDeliveriesClosed = errors.New("payment deliveries closed")

// Run handles deliveries until ctx is canceled or the channel closes.
func (l *PaymentListener) Run(ctx context.Context) error {
	msgs, err := l.source.Deliveries(ctx)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrDeliveriesClosed
			}
			l.settle(d, l.handle(ctx, d.RoutingKey, d.Body))
		}
	}
}

func (l *PaymentListener) settle(d amqp.Delivery, disp disposition) {
	var err error
	switch disp {
	case ack:
		err = d.Ack(false)
	case drop:
		err = d.Nack(false, false)
	case requeue:
		err = d.Nack(false, true)
	}
	if err != nil {
		l.log.Error("settle delivery failed", slog.Uint64("delivery_tag", d.DeliveryTag), slog.Any("err", err))
	}
}

func (l *PaymentListener) handle(ctx context.Context, key string, body []byte) disposition {
	if key != PaymentPaidKey {
		return ack
	}
	var evt PaymentPaid
	if err := json.Unmarshal(body, &evt); err != nil {
		l.log.Warn("unreadable payment event", slog.Any("err", err))
		return drop
	}
	if evt.Data.PaymentID == "" {
		l.log.Warn("payment event without payment id")
		return ack
	}
	log := l.log.With(slog.String("payment_id", evt.Data.PaymentID))

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	date, err := domain.ParseDate(evt.Data.ScheduledDate)
	if err != nil {
		return l.failed(ctx, log, evt, err)
	}
	res, err := l.booker.Book(ctx, booking.BookInput{
		ClientID:        evt.Data.ClientID,
		ProviderID:      evt.Data.ProviderID,
		Date:            date,
		Slot:            evt.Data.ScheduledTime,
		Price:           evt.Data.Amount,
		ClientPackageID: evt.Data.ClientPackageID,
		PaymentID:       evt.Data.PaymentID,
		IdempotencyKey:  evt.Data.PaymentID,
	})
	switch {
	case err == nil:
		log.Info("booked from payment",
			slog.String("booking_id", res.Booking.ID.String()),
			slog.Bool("replayed", res.Replayed),
			slog.Int("warnings", len(res.Warnings)),
		)
		return ack
	case domain.IsCallerError(err), errors.Is(err, store.ErrIdempotencyConflict):
		return l.failed(ctx, log, evt, err)
	default:
		log.Error("booking from payment failed, will retry", slog.Any("err", err))
		return requeue
	}
}

// failed tells the payment side that the paid session could not be booked
// so it can refund.
func (l *PaymentListener) failed(ctx context.Context, log *slog.Logger, evt PaymentPaid, cause error) disposition {
	log.Warn("paid session not bookable", slog.Any("reason", cause))
	ev := domain.BookingEvent{
		Type:       domain.EventBookingFailed,
		Version:    1,
		OccurredAt: l.now().UTC(),
		Data: domain.BookingEventData{
			ClientID:      evt.Data.ClientID,
			ProviderID:    evt.Data.ProviderID,
			ScheduledTime: evt.Data.ScheduledTime,
			Price:         evt.Data.Amount,
			PaymentID:     evt.Data.PaymentID,
			Reason:        cause.Error(),
		},
	}
	if d, err := domain.ParseDate(evt.Data.ScheduledDate); err == nil {
		ev.Data.ScheduledDate = d
	}
	if err := l.events.Publish(ctx, ev); err != nil {
		log.Error("publish booking.failed", slog.Any("err", err))
		return requeue
	}
	return ack
}
