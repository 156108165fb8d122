// Package email sends booking notifications over SMTP.
package email

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-gomail/gomail"

	"sessionbook/backend/internal/domain"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// LocalName is sent in HELO/EHLO. Empty uses the SMTP client default.
	LocalName string
}

type sender interface {
	Send(ctx context.Context, msgs ...*gomail.Message) error
}

type Notifier struct {
	send  sender
	from  string
	loc   *time.Location
	style domain.TimeStyle
	log   *slog.Logger
}

func NewNotifier(cfg Config, loc *time.Location, style domain.TimeStyle, log *slog.Logger) *Notifier {
	return newNotifier(newSMTPSender(cfg), cfg.From, loc, style, log)
}

func newNotifier(send sender, from string, loc *time.Location, style domain.TimeStyle, log *slog.Logger) *Notifier {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = slog.Default()
	}
	return &Notifier{
		send:  send,
		from:  from,
		loc:   loc,
		style: style,
		log:   log.With(slog.String("component", "email")),
	}
}

type mail struct {
	to       string
	subject  string
	template string
	data     templateData
}

type templateData struct {
	Recipient    string
	ClientName   string
	ProviderName string
	Date         string
	Time         string
	Zone         string
	PreviousDate string
	PreviousTime string
	MeetingURL   string
	Reason       string
}

func (n *Notifier) data(b domain.Booking, p domain.Parties) templateData {
	d := templateData{
		ClientName:   p.Client.DisplayName(),
		ProviderName: p.Provider.DisplayName(),
		Date:         b.ScheduledDate.String(),
		Time:         b.ScheduledMinute.Format(n.style),
		Zone:         n.loc.String(),
	}
	if b.MeetingURL != nil {
		d.MeetingURL = *b.MeetingURL
	}
	return d
}

func (n *Notifier) BookingConfirmed(ctx context.Context, b domain.Booking, p domain.Parties) error {
	d := n.data(b, p)
	return n.deliver(ctx,
		mail{to: p.Client.Email, subject: "Your session is booked", template: "confirmed.client", data: d},
		mail{to: p.Provider.Email, subject: "New session booked", template: "confirmed.provider", data: d},
	)
}

func (n *Notifier) BookingCanceled(ctx context.Context, b domain.Booking, p domain.Parties) error {
	toClient := n.data(b, p)
	toClient.Recipient = toClient.ClientName
	toProvider := toClient
	toProvider.Recipient = toProvider.ProviderName
	return n.deliver(ctx,
		mail{to: p.Client.Email, subject: "Session canceled", template: "canceled", data: toClient},
		mail{to: p.Provider.Email, subject: "Session canceled", template: "canceled", data: toProvider},
	)
}

func (n *Notifier) BookingRescheduled(ctx context.Context, b domain.Booking, from domain.SlotKey, p domain.Parties) error {
	toClient := n.data(b, p)
	toClient.PreviousDate = from.Date.String()
	toClient.PreviousTime = from.Slot.Format(n.style)
	toClient.Recipient = toClient.ClientName
	toProvider := toClient
	toProvider.Recipient = toProvider.ProviderName
	return n.deliver(ctx,
		mail{to: p.Client.Email, subject: "Session rescheduled", template: "rescheduled", data: toClient},
		mail{to: p.Provider.Email, subject: "Session rescheduled", template: "rescheduled", data: toProvider},
	)
}

func (n *Notifier) RescheduleRequested(ctx context.Context, b domain.Booking, req domain.RescheduleRequest, p domain.Parties) error {
	d := n.requestData(b, req, p)
	return n.deliver(ctx, mail{to: p.Provider.Email, subject: "Reschedule request", template: "reschedule_requested", data: d})
}

func (n *Notifier) RescheduleRejected(ctx context.Context, b domain.Booking, req domain.RescheduleRequest, p domain.Parties) error {
	d := n.requestData(b, req, p)
	d.Reason = ""
	if req.DecisionNote != nil {
		d.Reason = *req.DecisionNote
	}
	return n.deliver(ctx, mail{to: p.Client.Email, subject: "Reschedule request declined", template: "reschedule_rejected", data: d})
}

// requestData describes a move from the booking's current slot to the
// proposed one.
func (n *Notifier) requestData(b domain.Booking, req domain.RescheduleRequest, p domain.Parties) templateData {
	d := n.data(b, p)
	d.PreviousDate = d.Date
	d.PreviousTime = d.Time
	d.Date = req.ProposedDate.String()
	d.Time = req.ProposedMinute.Format(n.style)
	d.Reason = req.Reason
	return d
}

func (n *Notifier) deliver(ctx context.Context, mails ...mail) error {
	msgs := make([]*gomail.Message, 0, len(mails))
	for _, m := range mails {
		if strings.TrimSpace(m.to) == "" {
			n.log.Warn("skipping email without recipient", slog.String("template", m.template))
			continue
		}
		var body bytes.Buffer
		if err := bodies.ExecuteTemplate(&body, m.template, m.data); err != nil {
			return fmt.Errorf("render %s: %w", m.template, err)
		}

		msg := gomail.NewMessage()
		msg.SetHeader("From", n.from)
		msg.SetHeader("To", m.to)
		msg.SetHeader("Subject", m.subject)
		msg.SetBody("text/plain", strings.TrimSpace(body.String()))
		msgs = append(msgs, msg)
	}
	if len(msgs) == 0 {
		return nil
	}

	if err := n.send.Send(ctx, msgs...); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}
