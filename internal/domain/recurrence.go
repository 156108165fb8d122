package domain

import (
	"errors"
	"sort"
)

// MaxPatternDays bounds how far ahead a weekly pattern may publish.
const MaxPatternDays = 180

// WeeklyPattern repeats the same slots on chosen weekdays every Interval
// weeks between From and Until inclusive. Weekdays are ISO numbered, 1 is
// Monday and 7 is Sunday.
type WeeklyPattern struct {
	From      Date
	Until     Date
	ByWeekday []int16
	Interval  int
}

// Dates expands the pattern into the calendar days it covers, in order.
func (p WeeklyPattern) Dates() ([]Date, error) {
	if p.From.IsZero() || p.Until.IsZero() {
		return nil, errors.New("from and until are required")
	}
	if p.Until.Before(p.From) {
		return nil, errors.New("until must not be before from")
	}
	if p.From.DaysUntil(p.Until) > MaxPatternDays {
		return nil, errors.New("pattern spans more than 180 days")
	}

	weekdays := make([]int16, 0, len(p.ByWeekday))
	seen := make(map[int16]struct{}, len(p.ByWeekday))
	for _, wd := range p.ByWeekday {
		if wd < 1 || wd > 7 {
			return nil, errors.New("invalid weekday")
		}
		if _, ok := seen[wd]; ok {
			continue
		}
		seen[wd] = struct{}{}
		weekdays = append(weekdays, wd)
	}
	if len(weekdays) == 0 {
		return nil, errors.New("at least one weekday is required")
	}
	sort.Slice(weekdays, func(i, j int) bool { return weekdays[i] < weekdays[j] })

	interval := p.Interval
	if interval < 1 {
		interval = 1
	}

	out := make([]Date, 0, 16)
	for weekStart := mondayOf(p.From); !p.Until.Before(weekStart); weekStart = weekStart.AddDays(7 * interval) {
		for _, wd := range weekdays {
			d := weekStart.AddDays(weekdayOffsetFromMonday(wd))
			if d.Before(p.From) {
				continue
			}
			if d.After(p.Until) {
				return out, nil
			}
			out = append(out, d)
		}
	}
	return out, nil
}

func mondayOf(d Date) Date {
	offset := int(d.Weekday()) - 1
	if offset < 0 {
		offset = 6
	}
	return d.AddDays(-offset)
}

func weekdayOffsetFromMonday(weekday int16) int {
	if weekday == 7 {
		return 6
	}
	return int(weekday) - 1
}
