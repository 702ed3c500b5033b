package notifications

import (
	"context"

	"slotbook/pkg/events"
	"slotbook/pkg/kafka"
	"slotbook/pkg/model"
)

const schemaVersion = "1"

// KafkaPublisher keys events by customer phone so one customer's messages
// stay ordered on a partition.
type KafkaPublisher struct {
	producer *kafka.Producer
	source   string
}

func NewKafkaPublisher(producer *kafka.Producer, source string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, source: source}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event model.StatusChangedEvent) error {
	msg, err := NewKafkaMessage(event, p.source)
	if err != nil {
		return err
	}
	return p.producer.Publish(ctx, msg)
}

func NewKafkaMessage(event model.StatusChangedEvent, source string) (kafka.Message, error) {
	return kafka.NewMessage().
		WithKey(event.CustomerPhone).
		WithValue(event).
		WithEventType(EventTypeStatusChanged).
		WithSchemaVersion(schemaVersion).
		WithSource(source).
		WithCorrelationID(event.ReservationID).
		WithTimestamp(event.OccurredAt).
		Build()
}

type NATSPublisher struct {
	bus events.Publisher
}

func NewNATSPublisher(bus events.Publisher) *NATSPublisher {
	return &NATSPublisher{bus: bus}
}

func (p *NATSPublisher) Publish(ctx context.Context, event model.StatusChangedEvent) error {
	return p.bus.Publish(ctx, events.ReservationStatusChanged, event)
}
