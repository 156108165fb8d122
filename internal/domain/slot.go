package domain

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// SessionDuration is the length of every bookable slot.
const SessionDuration = 60 * time.Minute

const minutesPerDay = 24 * 60

// TimeOfDay is a slot start time in minutes since local midnight. It is the
// only form used for comparison; strings exist only at the boundaries.
type TimeOfDay int16

type TimeStyle int

const (
	Style24h TimeStyle = iota
	Style12h
)

func ParseTimeStyle(s string) (TimeStyle, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "24h", "24":
		return Style24h, nil
	case "12h", "12":
		return Style12h, nil
	default:
		return Style24h, fmt.Errorf("unknown time style %q", s)
	}
}

// ParseTimeOfDay accepts "HH:MM", "HH:MM:00" and "H:MM AM|PM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	v := strings.ToUpper(strings.TrimSpace(s))

	meridiem := ""
	if strings.HasSuffix(v, "AM") || strings.HasSuffix(v, "PM") {
		meridiem = v[len(v)-2:]
		v = strings.TrimSpace(v[:len(v)-2])
	}

	parts := strings.Split(v, ":")
	if len(parts) < 2 || len(parts) > 3 || (meridiem != "" && len(parts) != 2) {
		return 0, invalidTimeOfDay(s)
	}

	hour, ok := parseDigits(parts[0], 1, 2)
	if !ok {
		return 0, invalidTimeOfDay(s)
	}
	minute, ok := parseDigits(parts[1], 2, 2)
	if !ok || minute > 59 {
		return 0, invalidTimeOfDay(s)
	}
	if len(parts) == 3 {
		sec, ok := parseDigits(parts[2], 2, 2)
		if !ok || sec != 0 {
			return 0, invalidTimeOfDay(s)
		}
	}

	if meridiem != "" {
		if hour < 1 || hour > 12 {
			return 0, invalidTimeOfDay(s)
		}
		hour %= 12
		if meridiem == "PM" {
			hour += 12
		}
	} else if hour > 23 {
		return 0, invalidTimeOfDay(s)
	}

	return TimeOfDay(hour*60 + minute), nil
}

func MustParseTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func invalidTimeOfDay(s string) error {
	return fmt.Errorf("%w: %q", ErrInvalidTimeFormat, s)
}

func parseDigits(s string, minLen, maxLen int) (int, bool) {
	if len(s) < minLen || len(s) > maxLen {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (t TimeOfDay) Valid() bool {
	return t >= 0 && t < minutesPerDay
}

func (t TimeOfDay) Hour() int {
	return int(t) / 60
}

func (t TimeOfDay) Minute() int {
	return int(t) % 60
}

func (t TimeOfDay) Format(style TimeStyle) string {
	if style == Style12h {
		h := t.Hour() % 12
		if h == 0 {
			h = 12
		}
		meridiem := "AM"
		if t.Hour() >= 12 {
			meridiem = "PM"
		}
		return fmt.Sprintf("%d:%02d %s", h, t.Minute(), meridiem)
	}
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

func (t TimeOfDay) String() string {
	return t.Format(Style24h)
}

// SlotSet is a sorted set of slot start times without duplicates.
type SlotSet []TimeOfDay

func NewSlotSet(slots ...TimeOfDay) SlotSet {
	out := SlotSet(lo.Uniq(slots))
	slices.Sort(out)
	return out
}

func ParseSlotSet(values []string) (SlotSet, error) {
	slots := make([]TimeOfDay, 0, len(values))
	for _, v := range values {
		t, err := ParseTimeOfDay(v)
		if err != nil {
			return nil, err
		}
		slots = append(slots, t)
	}
	return NewSlotSet(slots...), nil
}

func (s SlotSet) Contains(t TimeOfDay) bool {
	_, ok := slices.BinarySearch(s, t)
	return ok
}

func (s SlotSet) Without(other SlotSet) SlotSet {
	return NewSlotSet(lo.Filter(s, func(t TimeOfDay, _ int) bool {
		return !other.Contains(t)
	})...)
}

func (s SlotSet) Intersect(other SlotSet) SlotSet {
	return NewSlotSet(lo.Filter(s, func(t TimeOfDay, _ int) bool {
		return other.Contains(t)
	})...)
}

func (s SlotSet) Format(style TimeStyle) []string {
	return lo.Map(s, func(t TimeOfDay, _ int) string {
		return t.Format(style)
	})
}

func (s SlotSet) Int16s() []int16 {
	return lo.Map(s, func(t TimeOfDay, _ int) int16 {
		return int16(t)
	})
}

func SlotSetFromInt16s(values []int16) SlotSet {
	return NewSlotSet(lo.Map(values, func(v int16, _ int) TimeOfDay {
		return TimeOfDay(v)
	})...)
}

// SlotKey identifies one bookable slot.
type SlotKey struct {
	ProviderID uuid.UUID
	Date       Date
	Slot       TimeOfDay
}

func (k SlotKey) String() string {
	return k.ProviderID.String() + "/" + k.Date.String() + "/" + k.Slot.String()
}

// Start returns the instant the slot begins in loc.
func (k SlotKey) Start(loc *time.Location) time.Time {
	return k.Date.At(k.Slot, loc)
}
