// Package google creates video meetings for bookings as Google Calendar
// events with a Meet conference attached.
package google

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"sessionbook/backend/internal/domain"
)

const (
	defaultCalendarID   = "primary"
	defaultPollInterval = 2 * time.Second
)

var errNoMeetingLink = errors.New("calendar event has no meeting link")

type Config struct {
	CredentialsFile string
	CalendarID      string
	// PollInterval is how often a pending conference is re-read.
	PollInterval time.Duration
}

type eventsAPI interface {
	Insert(ctx context.Context, calendarID string, ev *calendar.Event) (*calendar.Event, error)
	Get(ctx context.Context, calendarID, eventID string) (*calendar.Event, error)
}

type calendarEvents struct {
	svc *calendar.Service
}

func (c calendarEvents) Insert(ctx context.Context, calendarID string, ev *calendar.Event) (*calendar.Event, error) {
	return c.svc.Events.Insert(calendarID, ev).
		ConferenceDataVersion(1).
		SendUpdates("none").
		Context(ctx).
		Do()
}

func (c calendarEvents) Get(ctx context.Context, calendarID, eventID string) (*calendar.Event, error) {
	return c.svc.Events.Get(calendarID, eventID).Context(ctx).Do()
}

type MeetingCreator struct {
	events       eventsAPI
	calendarID   string
	loc          *time.Location
	pollInterval time.Duration
}

func NewMeetingCreator(ctx context.Context, cfg Config, loc *time.Location) (*MeetingCreator, error) {
	svc, err := calendar.NewService(ctx,
		option.WithCredentialsFile(cfg.CredentialsFile),
		option.WithScopes(calendar.CalendarEventsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("calendar service: %w", err)
	}
	return newMeetingCreator(calendarEvents{svc: svc}, cfg, loc), nil
}

func newMeetingCreator(events eventsAPI, cfg Config, loc *time.Location) *MeetingCreator {
	if loc == nil {
		loc = time.UTC
	}
	m := &MeetingCreator{
		events:       events,
		calendarID:   cfg.CalendarID,
		loc:          loc,
		pollInterval: cfg.PollInterval,
	}
	if m.calendarID == "" {
		m.calendarID = defaultCalendarID
	}
	if m.pollInterval <= 0 {
		m.pollInterval = defaultPollInterval
	}
	return m
}

// CreateMeeting inserts the event and waits, within ctx, for Google to
// finish creating its conference.
func (m *MeetingCreator) CreateMeeting(ctx context.Context, req domain.MeetingRequest) (domain.Meeting, error) {
	ev, err := m.events.Insert(ctx, m.calendarID, m.event(req))
	if err != nil {
		return domain.Meeting{}, fmt.Errorf("insert calendar event: %w", err)
	}

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()
	for {
		if link := meetingLink(ev); link != "" {
			return domain.Meeting{URL: link, ExternalEventID: ev.Id}, nil
		}
		if conferenceFailed(ev) {
			return domain.Meeting{}, fmt.Errorf("%w: conference creation failed for event %s", errNoMeetingLink, ev.Id)
		}

		select {
		case <-ctx.Done():
			return domain.Meeting{}, fmt.Errorf("%w: event %s: %w", errNoMeetingLink, ev.Id, ctx.Err())
		case <-ticker.C:
		}

		next, err := m.events.Get(ctx, m.calendarID, ev.Id)
		if err != nil {
			return domain.Meeting{}, fmt.Errorf("get calendar event: %w", err)
		}
		ev = next
	}
}

func (m *MeetingCreator) event(req domain.MeetingRequest) *calendar.Event {
	zone := m.loc.String()
	location := req.Location
	if location == "" {
		location = "Google Meet"
	}

	description := req.Description
	if len(req.Attendees) > 0 {
		// Attendees are listed rather than invited; inviting needs domain-wide
		// delegation on the service account.
		description += "\n\nAttendees:\n- " + strings.Join(req.Attendees, "\n- ")
	}

	return &calendar.Event{
		Summary:     req.Summary,
		Description: description,
		Location:    location,
		Start: &calendar.EventDateTime{
			DateTime: req.Start.In(m.loc).Format(time.RFC3339),
			TimeZone: zone,
		},
		End: &calendar.EventDateTime{
			DateTime: req.End.In(m.loc).Format(time.RFC3339),
			TimeZone: zone,
		},
		ConferenceData: &calendar.ConferenceData{
			CreateRequest: &calendar.CreateConferenceRequest{RequestId: req.RequestID},
		},
		Reminders: &calendar.EventReminders{
			UseDefault: false,
			Overrides: []*calendar.EventReminder{
				{Method: "email", Minutes: 24 * 60},
				{Method: "popup", Minutes: 15},
			},
			ForceSendFields: []string{"UseDefault"},
		},
	}
}

func meetingLink(ev *calendar.Event) string {
	if ev == nil {
		return ""
	}
	if ev.HangoutLink != "" {
		return ev.HangoutLink
	}
	if ev.ConferenceData == nil {
		return ""
	}
	for _, ep := range ev.ConferenceData.EntryPoints {
		if ep != nil && ep.EntryPointType == "video" && ep.Uri != "" {
			return ep.Uri
		}
	}
	return ""
}

func conferenceFailed(ev *calendar.Event) bool {
	if ev == nil || ev.ConferenceData == nil || ev.ConferenceData.CreateRequest == nil {
		return false
	}
	st := ev.ConferenceData.CreateRequest.Status
	return st != nil && st.StatusCode == "failure"
}
