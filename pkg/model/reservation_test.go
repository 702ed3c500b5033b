package model

import (
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to ReservationStatus
		want     bool
	}{
		{StatusPending, StatusApproved, true},
		{StatusPending, StatusRejected, true},
		{StatusPending, StatusPending, false},
		{StatusApproved, StatusRejected, false},
		{StatusApproved, StatusApproved, false},
		{StatusRejected, StatusApproved, false},
		{StatusRejected, StatusPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestStatusOccupies(t *testing.T) {
	if !StatusPending.Occupies() || !StatusApproved.Occupies() {
		t.Error("pending and approved reservations must hold their slot")
	}
	if StatusRejected.Occupies() {
		t.Error("rejected reservations must free their slot")
	}
	if ReservationStatus("cancelled").Valid() {
		t.Error("unknown status reported as valid")
	}
}

func TestSlotClaimID_SameInstantDifferentZone(t *testing.T) {
	tashkent := time.FixedZone("UZT", 5*60*60)
	local := time.Date(2025, 3, 10, 14, 0, 0, 0, tashkent)
	utc := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	if SlotClaimID(local) != SlotClaimID(utc) {
		t.Errorf("claim ids differ for the same instant: %s vs %s", SlotClaimID(local), SlotClaimID(utc))
	}
	if SlotClaimID(utc) == SlotClaimID(utc.Add(30*time.Minute)) {
		t.Error("claim ids collide for different instants")
	}
}

func TestDayViewAvailable(t *testing.T) {
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	v := DayView{Slots: []Slot{
		{Start: base, Available: false},
		{Start: base.Add(30 * time.Minute), Available: true},
	}}
	got := v.Available()
	if len(got) != 1 || !got[0].Equal(base.Add(30*time.Minute)) {
		t.Errorf("Available() = %v", got)
	}
}
