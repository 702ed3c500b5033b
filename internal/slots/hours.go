package slots

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidHours is returned for business hours that cannot produce a grid.
var ErrInvalidHours = errors.New("invalid business hours")

// ClockTime is a wall-clock time of day in the business location.
type ClockTime struct {
	Hour   int
	Minute int
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

func (c ClockTime) minutes() int {
	return c.Hour*60 + c.Minute
}

// ParseClockTime parses HH:MM.
func ParseClockTime(s string) (ClockTime, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return ClockTime{}, fmt.Errorf("%w: %q is not HH:MM", ErrInvalidHours, s)
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

type BusinessHours struct {
	Opening      ClockTime
	Closing      ClockTime
	SlotDuration time.Duration
	Location     *time.Location
}

func ParseHours(opening, closing string, durationMin int, timeZone string) (BusinessHours, error) {
	open, err := ParseClockTime(opening)
	if err != nil {
		return BusinessHours{}, err
	}
	closeAt, err := ParseClockTime(closing)
	if err != nil {
		return BusinessHours{}, err
	}
	loc, err := time.LoadLocation(timeZone)
	if err != nil {
		return BusinessHours{}, fmt.Errorf("%w: unknown time zone %q", ErrInvalidHours, timeZone)
	}

	hours := BusinessHours{
		Opening:      open,
		Closing:      closeAt,
		SlotDuration: time.Duration(durationMin) * time.Minute,
		Location:     loc,
	}
	if err := hours.Validate(); err != nil {
		return BusinessHours{}, err
	}
	return hours, nil
}

func (h BusinessHours) Validate() error {
	if h.SlotDuration <= 0 {
		return fmt.Errorf("%w: slot duration must be positive, got %s", ErrInvalidHours, h.SlotDuration)
	}
	if h.Closing.minutes() <= h.Opening.minutes() {
		return fmt.Errorf("%w: closing %s must be after opening %s", ErrInvalidHours, h.Closing, h.Opening)
	}
	return nil
}

func (h BusinessHours) location() *time.Location {
	if h.Location == nil {
		return time.UTC
	}
	return h.Location
}

// StartOfDay returns local midnight of the business day containing t.
func (h BusinessHours) StartOfDay(t time.Time) time.Time {
	y, m, d := t.In(h.location()).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, h.location())
}

// DayRange returns the half-open range [startOfDay, startOfDay+1day) for
// the business day containing t.
func (h BusinessHours) DayRange(t time.Time) (time.Time, time.Time) {
	from := h.StartOfDay(t)
	return from, from.AddDate(0, 0, 1)
}

// ParseDay parses a YYYY-MM-DD calendar date in the business location.
func (h BusinessHours) ParseDay(s string) (time.Time, error) {
	return time.ParseInLocation(time.DateOnly, s, h.location())
}

// SameDay reports whether a and b fall on the same business-local date.
func (h BusinessHours) SameDay(a, b time.Time) bool {
	return sameDay(a, b, h.location())
}

func sameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}
