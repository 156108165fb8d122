package google

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"sessionbook/backend/internal/domain"
)

type freebusyAPI interface {
	Query(ctx context.Context, req *calendar.FreeBusyRequest) (*calendar.FreeBusyResponse, error)
}

type calendarFreebusy struct {
	svc *calendar.Service
}

func (c calendarFreebusy) Query(ctx context.Context, req *calendar.FreeBusyRequest) (*calendar.FreeBusyResponse, error) {
	return c.svc.Freebusy.Query(req).Context(ctx).Do()
}

// BusyReader reads busy periods from calendars shared with the service
// account. A provider's calendar id is usually their email address.
type BusyReader struct {
	api freebusyAPI
	loc *time.Location
}

func NewBusyReader(ctx context.Context, cfg Config, loc *time.Location) (*BusyReader, error) {
	svc, err := calendar.NewService(ctx,
		option.WithCredentialsFile(cfg.CredentialsFile),
		option.WithScopes(calendar.CalendarReadonlyScope),
	)
	if err != nil {
		return nil, fmt.Errorf("calendar service: %w", err)
	}
	return newBusyReader(calendarFreebusy{svc: svc}, loc), nil
}

func newBusyReader(api freebusyAPI, loc *time.Location) *BusyReader {
	if loc == nil {
		loc = time.UTC
	}
	return &BusyReader{api: api, loc: loc}
}

// BusyTimes returns the busy periods of calendarID between from and to.
func (r *BusyReader) BusyTimes(ctx context.Context, calendarID string, from, to time.Time) ([]domain.Interval, error) {
	resp, err := r.api.Query(ctx, &calendar.FreeBusyRequest{
		TimeMin:  from.In(r.loc).Format(time.RFC3339),
		TimeMax:  to.In(r.loc).Format(time.RFC3339),
		TimeZone: r.loc.String(),
		Items:    []*calendar.FreeBusyRequestItem{{Id: calendarID}},
	})
	if err != nil {
		return nil, fmt.Errorf("query free/busy: %w", err)
	}

	cal, ok := resp.Calendars[calendarID]
	if !ok {
		return nil, nil
	}
	if len(cal.Errors) > 0 && cal.Errors[0] != nil {
		return nil, fmt.Errorf("free/busy for %s: %s", calendarID, cal.Errors[0].Reason)
	}

	out := make([]domain.Interval, 0, len(cal.Busy))
	for _, p := range cal.Busy {
		if p == nil {
			continue
		}
		start, err := time.Parse(time.RFC3339, p.Start)
		if err != nil {
			return nil, fmt.Errorf("busy period start %q: %w", p.Start, err)
		}
		end, err := time.Parse(time.RFC3339, p.End)
		if err != nil {
			return nil, fmt.Errorf("busy period end %q: %w", p.End, err)
		}
		out = append(out, domain.Interval{Start: start, End: end})
	}
	return out, nil
}
