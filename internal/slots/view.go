package slots

import (
	"time"

	"slotbook/pkg/model"
)

// View assembles the DayView of the business day containing day from a full
// record set of that day.
func View(day time.Time, hours BusinessHours, records []*model.Reservation, now time.Time) (model.DayView, error) {
	grid, err := Generate(day, hours)
	if err != nil {
		return model.DayView{}, err
	}
	if records == nil {
		records = []*model.Reservation{}
	}
	return model.DayView{
		Day:          hours.StartOfDay(day),
		Slots:        Resolve(grid, records, now, hours.location()),
		Reservations: records,
		GeneratedAt:  now,
	}, nil
}

// DegradedView is published while the store cannot be reached: no slots
// are offered and the last known reservations are kept for display.
func DegradedView(day time.Time, hours BusinessHours, lastKnown []*model.Reservation, now time.Time) model.DayView {
	if lastKnown == nil {
		lastKnown = []*model.Reservation{}
	}
	return model.DayView{
		Day:          hours.StartOfDay(day),
		Slots:        []model.Slot{},
		Reservations: lastKnown,
		Degraded:     true,
		GeneratedAt:  now,
	}
}
