package slots

import "time"

// Generate returns the slot start times for the business day containing
// day, from opening inclusive to closing exclusive, stepped by the slot
// duration. The result is recomputed on every call.
func Generate(day time.Time, hours BusinessHours) ([]time.Time, error) {
	if err := hours.Validate(); err != nil {
		return nil, err
	}

	loc := hours.location()
	y, m, d := day.In(loc).Date()
	open := time.Date(y, m, d, hours.Opening.Hour, hours.Opening.Minute, 0, 0, loc)
	closeAt := time.Date(y, m, d, hours.Closing.Hour, hours.Closing.Minute, 0, 0, loc)

	grid := make([]time.Time, 0, int(closeAt.Sub(open)/hours.SlotDuration)+1)
	for t := open; t.Before(closeAt); t = t.Add(hours.SlotDuration) {
		grid = append(grid, t)
	}
	return grid, nil
}

// OnGrid reports whether t is exactly one of the slot starts of its day.
func OnGrid(t time.Time, hours BusinessHours) bool {
	grid, err := Generate(t, hours)
	if err != nil {
		return false
	}
	for _, s := range grid {
		if s.Equal(t) {
			return true
		}
	}
	return false
}
