package notifications

import (
	"context"
	"errors"

	"slotbook/internal/sms"
	"slotbook/pkg/events"
	"slotbook/pkg/kafka"
	"slotbook/pkg/logger"
	"slotbook/pkg/model"
	"slotbook/pkg/sanitizer"
)

// Worker turns status events into SMS messages.
type Worker struct {
	sender sms.Sender
	log    *logger.Logger
}

func NewWorker(sender sms.Sender, log *logger.Logger) *Worker {
	return &Worker{sender: sender, log: log}
}

// Deliver renders and sends one event. The returned error is tagged for the
// Kafka consumer's retry policy: gateway outages are transient, everything
// else is final.
func (w *Worker) Deliver(ctx context.Context, event model.StatusChangedEvent) error {
	text, err := Render(event)
	if err != nil {
		return kafka.NewPermanentError("cannot render status event", err)
	}

	if err := w.sender.Send(ctx, event.CustomerPhone, text); err != nil {
		switch {
		case errors.Is(err, sms.ErrUnsupportedNumber):
			return kafka.NewBusinessError("phone not served by gateway", err)
		case errors.Is(err, sms.ErrGatewayAuth), errors.Is(err, sms.ErrGatewayRejected):
			return kafka.NewPermanentError("sms gateway refused message", err)
		default:
			return kafka.NewTransientError("sms gateway unreachable", err)
		}
	}

	w.log.Info("Status notification delivered",
		"reservation_id", event.ReservationID,
		"status", event.Status,
		"phone", sanitizer.MaskPhone(event.CustomerPhone),
	)
	return nil
}

// KafkaHandler adapts Deliver to the Kafka consumer. Messages of other event
// types are skipped.
func (w *Worker) KafkaHandler() kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		if t := msg.GetEventType(); t != "" && t != EventTypeStatusChanged {
			w.log.Debug("Skipping unrelated event", "event_type", t, "event_id", msg.GetEventID())
			return nil
		}
		var event model.StatusChangedEvent
		if err := msg.DecodeValue(&event); err != nil {
			return err
		}
		return w.Deliver(ctx, event)
	}
}

// NATSHandler adapts Deliver to a NATS queue subscription. NATS core has no
// redelivery, so failures are only logged.
func (w *Worker) NATSHandler(ctx context.Context) func(*events.Message) {
	return func(msg *events.Message) {
		var event model.StatusChangedEvent
		if err := msg.Decode(&event); err != nil {
			w.log.Error("Dropping undecodable status event", "subject", msg.Subject, "error", err)
			return
		}
		if err := w.Deliver(ctx, event); err != nil {
			w.log.Error("Failed to deliver status notification",
				"reservation_id", event.ReservationID,
				"error", err,
			)
		}
	}
}
