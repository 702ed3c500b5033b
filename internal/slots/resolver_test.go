package slots

import (
	"testing"
	"time"

	"slotbook/pkg/model"
)

func at(h, m int) time.Time {
	return time.Date(2025, 3, 10, h, m, 0, 0, time.UTC)
}

func reservation(start time.Time, status model.ReservationStatus) *model.Reservation {
	return &model.Reservation{ID: start.Format("1504"), StartTime: start, Status: status}
}

func defaultGrid(t *testing.T) []time.Time {
	t.Helper()
	grid, err := Generate(at(0, 0), mustHours(t, "09:00", "19:00", 30))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return grid
}

func TestResolve_EmptyDayBeforeOpening(t *testing.T) {
	slots := Resolve(defaultGrid(t), nil, at(8, 0), time.UTC)
	if len(slots) != 20 {
		t.Fatalf("expected 20 slots, got %d", len(slots))
	}
	for _, s := range slots {
		if !s.Available {
			t.Errorf("slot %v should be available", s.Start)
		}
	}
}

func TestResolve_Rules(t *testing.T) {
	tests := []struct {
		name         string
		reservations []*model.Reservation
		now          time.Time
		slot         time.Time
		want         bool
	}{
		{"pending occupies", []*model.Reservation{reservation(at(9, 0), model.StatusPending)}, at(8, 0), at(9, 0), false},
		{"approved occupies", []*model.Reservation{reservation(at(9, 0), model.StatusApproved)}, at(8, 0), at(9, 0), false},
		{"rejected frees", []*model.Reservation{reservation(at(9, 0), model.StatusRejected)}, at(8, 0), at(9, 0), true},
		{"neighbour unaffected", []*model.Reservation{reservation(at(9, 0), model.StatusPending)}, at(8, 0), at(9, 30), true},
		{"off by one second does not match", []*model.Reservation{reservation(at(9, 0).Add(time.Second), model.StatusPending)}, at(8, 0), at(9, 0), true},
		{"past on current day", nil, at(9, 31), at(9, 0), false},
		{"slot starting now is available", nil, at(9, 30), at(9, 30), true},
		{"slot after now on current day", nil, at(9, 31), at(9, 30), false},
		{"future slot after 09:31", nil, at(9, 31), at(10, 0), true},
		{"earlier day is not marked past", nil, at(9, 31).AddDate(0, 0, 1), at(9, 0), true},
		{"later day before now's time of day", nil, at(12, 0).AddDate(0, 0, -1), at(9, 0), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var found bool
			for _, s := range Resolve(defaultGrid(t), tt.reservations, tt.now, time.UTC) {
				if s.Start.Equal(tt.slot) {
					found = true
					if s.Available != tt.want {
						t.Errorf("slot %v available = %v, want %v", tt.slot, s.Available, tt.want)
					}
				}
			}
			if !found {
				t.Fatalf("slot %v not in grid", tt.slot)
			}
		})
	}
}

func TestResolve_SameInstantDifferentLocation(t *testing.T) {
	zone := time.FixedZone("UZT", 5*60*60)
	res := reservation(at(9, 0).In(zone), model.StatusPending)

	slots := Resolve(defaultGrid(t), []*model.Reservation{res}, at(8, 0), time.UTC)
	if slots[0].Available {
		t.Error("reservation at the same instant in another zone must occupy the slot")
	}
	if slots[0].Reservation != res {
		t.Error("occupying reservation should be attached to the slot")
	}
}

func TestResolve_Idempotent(t *testing.T) {
	grid := defaultGrid(t)
	reservations := []*model.Reservation{
		reservation(at(9, 0), model.StatusApproved),
		reservation(at(10, 0), model.StatusRejected),
		reservation(at(11, 30), model.StatusPending),
	}
	now := at(10, 15)

	first := Resolve(grid, reservations, now, time.UTC)
	second := Resolve(grid, reservations, now, time.UTC)
	if len(first) != len(second) {
		t.Fatalf("lengths differ")
	}
	for i := range first {
		if !first[i].Start.Equal(second[i].Start) || first[i].Available != second[i].Available || first[i].Reservation != second[i].Reservation {
			t.Errorf("slot %d differs between runs", i)
		}
	}
}

func TestResolve_UnavailableIffRule(t *testing.T) {
	grid := defaultGrid(t)
	reservations := []*model.Reservation{
		reservation(at(9, 30), model.StatusApproved),
		reservation(at(12, 0), model.StatusPending),
		reservation(at(13, 0), model.StatusRejected),
		reservation(at(18, 30), model.StatusPending),
	}
	now := at(11, 45)

	occupied := map[int64]bool{}
	for _, r := range reservations {
		if r.Status != model.StatusRejected {
			occupied[r.StartTime.UnixNano()] = true
		}
	}

	for _, s := range Resolve(grid, reservations, now, time.UTC) {
		wantUnavailable := occupied[s.Start.UnixNano()] || s.Start.Before(now)
		if s.Available == wantUnavailable {
			t.Errorf("slot %v available = %v, want %v", s.Start.Format("15:04"), s.Available, !wantUnavailable)
		}
	}
}

func TestAvailability(t *testing.T) {
	hours := mustHours(t, "09:00", "19:00", 30)
	reservations := []*model.Reservation{reservation(at(9, 0), model.StatusPending)}

	if s, ok := Availability(at(9, 0), hours, reservations, at(8, 0)); !ok || s.Available {
		t.Errorf("09:00 should be on grid and taken, got ok=%v available=%v", ok, s.Available)
	}
	if s, ok := Availability(at(9, 30), hours, reservations, at(8, 0)); !ok || !s.Available {
		t.Errorf("09:30 should be on grid and free, got ok=%v available=%v", ok, s.Available)
	}
	if _, ok := Availability(at(9, 10), hours, reservations, at(8, 0)); ok {
		t.Error("09:10 is not a grid slot")
	}
}

func TestView(t *testing.T) {
	hours := mustHours(t, "09:00", "19:00", 30)
	day := at(0, 0)
	now := at(8, 0)

	view, err := View(day.Add(15*time.Hour), hours, nil, now)
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	if !view.Day.Equal(day) {
		t.Errorf("view day = %v, want %v", view.Day, day)
	}
	if len(view.Slots) != 20 || len(view.Available()) != 20 {
		t.Errorf("expected 20 available slots, got %d/%d", len(view.Available()), len(view.Slots))
	}
	if view.Reservations == nil || view.Degraded {
		t.Error("fresh view must have a non-nil reservation list and not be degraded")
	}

	degraded := DegradedView(day, hours, nil, now)
	if !degraded.Degraded || len(degraded.Slots) != 0 {
		t.Errorf("unexpected degraded view: %+v", degraded)
	}
}
