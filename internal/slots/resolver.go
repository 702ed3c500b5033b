package slots

import (
	"time"

	"slotbook/pkg/model"
)

// Resolve marks each grid slot available or not. A slot is unavailable when
// an occupying reservation starts at exactly that instant, or when the slot
// starts strictly before now on now's business-local day. Rejected
// reservations are ignored. The result depends only on the arguments.
func Resolve(grid []time.Time, reservations []*model.Reservation, now time.Time, loc *time.Location) []model.Slot {
	if loc == nil {
		loc = time.UTC
	}

	occupied := make(map[int64]*model.Reservation, len(reservations))
	for _, r := range reservations {
		if r == nil || !r.Status.Occupies() {
			continue
		}
		key := r.StartTime.UnixNano()
		if _, taken := occupied[key]; !taken {
			occupied[key] = r
		}
	}

	out := make([]model.Slot, 0, len(grid))
	for _, start := range grid {
		res := occupied[start.UnixNano()]
		past := start.Before(now) && sameDay(start, now, loc)
		out = append(out, model.Slot{
			Start:       start,
			Available:   res == nil && !past,
			Past:        past,
			Reservation: res,
		})
	}
	return out
}

// Availability evaluates a single start time against the grid and reservation set.
func Availability(start time.Time, hours BusinessHours, reservations []*model.Reservation, now time.Time) (model.Slot, bool) {
	grid, err := Generate(start, hours)
	if err != nil {
		return model.Slot{}, false
	}
	for _, s := range Resolve(grid, reservations, now, hours.location()) {
		if s.Start.Equal(start) {
			return s, true
		}
	}
	return model.Slot{}, false
}
