package model

import "time"

type Slot struct {
	Start       time.Time    `json:"start"`
	Available   bool         `json:"available"`
	Past        bool         `json:"past,omitempty"`
	Reservation *Reservation `json:"reservation,omitempty"`
}

// DayView is a full snapshot of one business day. Consumers replace the
// previous view wholesale.
type DayView struct {
	Day          time.Time      `json:"day"`
	Slots        []Slot         `json:"slots"`
	Reservations []*Reservation `json:"reservations"`
	Degraded     bool           `json:"degraded,omitempty"`
	GeneratedAt  time.Time      `json:"generated_at"`
}

// Available returns the start times of the open slots.
func (v DayView) Available() []time.Time {
	var out []time.Time
	for _, s := range v.Slots {
		if s.Available {
			out = append(out, s.Start)
		}
	}
	return out
}
