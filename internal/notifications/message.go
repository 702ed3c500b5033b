package notifications

import (
	"errors"
	"fmt"

	"slotbook/pkg/model"
)

var ErrNoTemplate = errors.New("no message for status")

const (
	approvedTemplate = "Hurmatli %s, sizning sartaroshxonaga navbatingiz tasdiqlandi."
	rejectedTemplate = "Hurmatli %s, afsuski, sizning sartaroshxonaga navbatingiz rad etildi. Iltimos, boshqa vaqtni tanlang."
)

// Render returns the customer-facing text for a status change.
func Render(event model.StatusChangedEvent) (string, error) {
	switch event.Status {
	case model.StatusApproved:
		return fmt.Sprintf(approvedTemplate, event.CustomerName), nil
	case model.StatusRejected:
		return fmt.Sprintf(rejectedTemplate, event.CustomerName), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrNoTemplate, event.Status)
	}
}
