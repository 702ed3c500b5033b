package model

import "time"

type ReservationStatus string

const (
	StatusPending  ReservationStatus = "pending"
	StatusApproved ReservationStatus = "approved"
	StatusRejected ReservationStatus = "rejected"
)

func (s ReservationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed from s.
func (s ReservationStatus) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Occupies reports whether a reservation in status s holds its slot.
func (s ReservationStatus) Occupies() bool {
	return s == StatusPending || s == StatusApproved
}

// CanTransition allows only Pending -> Approved and Pending -> Rejected.
func CanTransition(from, to ReservationStatus) bool {
	return from == StatusPending && to.IsTerminal()
}

type Reservation struct {
	ID            string            `json:"id" bson:"_id"`
	StartTime     time.Time         `json:"start_time" bson:"start_time" validate:"required"`
	CustomerName  string            `json:"customer_name" bson:"customer_name" validate:"required,min=1,max=100"`
	CustomerPhone string            `json:"customer_phone" bson:"customer_phone" validate:"required,supported_phone"`
	OwnerID       string            `json:"owner_id" bson:"owner_id" validate:"required"`
	Status        ReservationStatus `json:"status" bson:"status" validate:"required,reservation_status"`
	CreatedAt     time.Time         `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at" bson:"updated_at"`
}

// ReservationRequest is the caller supplied part of a new reservation.
type ReservationRequest struct {
	StartTime     time.Time `json:"start_time" validate:"required"`
	CustomerName  string    `json:"customer_name" validate:"required,min=1,max=100"`
	CustomerPhone string    `json:"customer_phone" validate:"required,supported_phone"`
}

// SlotClaim is the per-start-time uniqueness record held while a
// reservation occupies its slot.
type SlotClaim struct {
	ID            string    `bson:"_id" json:"id"`
	ReservationID string    `bson:"reservation_id" json:"reservation_id"`
	StartTime     time.Time `bson:"start_time" json:"start_time"`
	CreatedAt     time.Time `bson:"created_at" json:"created_at"`
}

// SlotClaimID is the claim key for a start instant. Instants that are equal
// produce the same key regardless of their location.
func SlotClaimID(start time.Time) string {
	return "slot_" + start.UTC().Format(time.RFC3339)
}
