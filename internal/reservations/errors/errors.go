package errors

import "errors"

var (
	ErrNotFound = errors.New("reservation not found")

	ErrInvalidID = errors.New("invalid reservation ID format")

	// ErrSlotTaken is returned by the store when another active reservation
	// already holds the start time.
	ErrSlotTaken = errors.New("slot already reserved")

	// ErrStatusChanged means a conditional status update found the
	// reservation in a different status than expected.
	ErrStatusChanged = errors.New("reservation status changed concurrently")

	ErrStoreUnavailable = errors.New("reservation store unavailable")

	ErrSubscriptionClosed = errors.New("subscription closed")
)
