package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"slotbook/pkg/logger"
)

const (
	ReservationStatusChanged = "reservation.status_changed"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data any) error
	Close() error
}

type Subscriber interface {
	QueueSubscribe(subject, queue string, handler func(msg *Message)) error
	Close() error
}

type EventBus interface {
	Publisher
	Subscriber
}

type Message struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
}

func (m *Message) Decode(v any) error {
	return json.Unmarshal(m.Data, v)
}

var ErrNoConnection = errors.New("nats connection is required")

type NATSEventBus struct {
	conn *nats.Conn
	log  *logger.Logger

	mu   sync.Mutex
	subs []*nats.Subscription
}

// NewNATSEventBus wraps an established connection. The connection is owned
// by the caller; Close only drains the bus's own subscriptions.
func NewNATSEventBus(conn *nats.Conn, log *logger.Logger) (*NATSEventBus, error) {
	if conn == nil {
		return nil, ErrNoConnection
	}
	return &NATSEventBus{conn: conn, log: log}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	n.log.Debug("Publishing event", "subject", subject, "bytes", len(payload))
	if err := n.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("failed to publish %s: %w", subject, err)
	}
	return nil
}

// QueueSubscribe delivers each message to one member of the queue group.
func (n *NATSEventBus) QueueSubscribe(subject, queue string, handler func(msg *Message)) error {
	sub, err := n.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
		})
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	n.mu.Lock()
	n.subs = append(n.subs, sub)
	n.mu.Unlock()
	return nil
}

func (n *NATSEventBus) Close() error {
	n.mu.Lock()
	subs := n.subs
	n.subs = nil
	n.mu.Unlock()

	var errs []error
	for _, sub := range subs {
		if err := sub.Drain(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
