package model

import "time"

// StatusChangedEvent is emitted after a reservation reaches a terminal status.
type StatusChangedEvent struct {
	ReservationID string            `json:"reservation_id"`
	CustomerPhone string            `json:"customer_phone"`
	CustomerName  string            `json:"customer_name"`
	Status        ReservationStatus `json:"status"`
	StartTime     time.Time         `json:"start_time"`
	OccurredAt    time.Time         `json:"occurred_at"`
}

func NewStatusChangedEvent(r *Reservation, at time.Time) StatusChangedEvent {
	return StatusChangedEvent{
		ReservationID: r.ID,
		CustomerPhone: r.CustomerPhone,
		CustomerName:  r.CustomerName,
		Status:        r.Status,
		StartTime:     r.StartTime,
		OccurredAt:    at,
	}
}
