// Package notifications carries reservation status changes from the
// lifecycle to the customer's phone. Publishing is fire and forget: a
// failure is logged and never undoes the status change.
package notifications

import (
	"context"
	"sync"
	"time"

	"slotbook/pkg/logger"
	"slotbook/pkg/model"
	"slotbook/pkg/sanitizer"
)

const EventTypeStatusChanged = "reservation.status_changed"

// Dispatcher accepts status events without blocking the caller.
type Dispatcher interface {
	Dispatch(event model.StatusChangedEvent)
}

// Publisher hands one event to a transport.
type Publisher interface {
	Publish(ctx context.Context, event model.StatusChangedEvent) error
}

type PublisherFunc func(ctx context.Context, event model.StatusChangedEvent) error

func (f PublisherFunc) Publish(ctx context.Context, event model.StatusChangedEvent) error {
	return f(ctx, event)
}

// AsyncDispatcher publishes each event on its own goroutine with a bounded
// timeout. Close waits for in-flight publishes.
type AsyncDispatcher struct {
	publisher Publisher
	timeout   time.Duration
	log       *logger.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewAsyncDispatcher(publisher Publisher, timeout time.Duration, log *logger.Logger) *AsyncDispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &AsyncDispatcher{publisher: publisher, timeout: timeout, log: log}
}

func (d *AsyncDispatcher) Dispatch(event model.StatusChangedEvent) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.log.Warn("Dropping status event after shutdown", "reservation_id", event.ReservationID)
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.publisher.Publish(ctx, event); err != nil {
			d.log.Error("Failed to publish status event",
				"reservation_id", event.ReservationID,
				"status", event.Status,
				"phone", sanitizer.MaskPhone(event.CustomerPhone),
				"error", err,
			)
			return
		}
		d.log.Debug("Status event published", "reservation_id", event.ReservationID, "status", event.Status)
	}()
}

func (d *AsyncDispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}

// Nop drops every event. It backs NOTIFY_TRANSPORT=none.
type Nop struct{}

func (Nop) Dispatch(model.StatusChangedEvent) {}
