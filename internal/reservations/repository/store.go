package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"slotbook/pkg/model"
)

// TimeRange is the half-open interval [From, To).
type TimeRange struct {
	From time.Time
	To   time.Time
}

func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.From) && t.Before(r.To)
}

// Snapshot is the full record set of a subscribed range. A non-nil Err
// reports that the store could not be reached; Records is empty then.
type Snapshot struct {
	Records []*model.Reservation
	Err     error
}

// Subscription delivers snapshots in store order. Only the most recent
// undelivered snapshot is kept. Events is closed by Close.
type Subscription interface {
	Events() <-chan Snapshot
	Close()
}

// ReservationStore is the durable owner of reservations. It enforces at
// most one occupying reservation per start time.
type ReservationStore interface {
	Subscribe(ctx context.Context, rng TimeRange) (Subscription, error)
	Query(ctx context.Context, rng TimeRange) ([]*model.Reservation, error)
	// Create returns ErrSlotTaken when an occupying reservation already
	// exists at the same start time.
	Create(ctx context.Context, r *model.Reservation) (*model.Reservation, error)
	// UpdateStatus moves a reservation from one status to another only if
	// it is still in from. Moving to a non-occupying status frees the slot.
	UpdateStatus(ctx context.Context, id string, from, to model.ReservationStatus) (*model.Reservation, error)
	FindByID(ctx context.Context, id string) (*model.Reservation, error)
	FindByOwner(ctx context.Context, ownerID string, limit int, offset int64) ([]*model.Reservation, error)
	CountByOwner(ctx context.Context, ownerID string) (int64, error)
	Ping(ctx context.Context) error
}

// feed is a latest-wins, buffer-of-one snapshot channel safe for
// concurrent publishers.
type feed struct {
	mu     sync.Mutex
	ch     chan Snapshot
	closed bool
}

func newFeed() *feed {
	return &feed{ch: make(chan Snapshot, 1)}
}

func (f *feed) publish(s Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	for {
		select {
		case f.ch <- s:
			return
		default:
		}
		select {
		case <-f.ch:
		default:
		}
	}
}

func (f *feed) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	select {
	case <-f.ch:
	default:
	}
	close(f.ch)
}

func sortByStart(records []*model.Reservation) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].StartTime.Before(records[j].StartTime)
	})
}

func clone(r *model.Reservation) *model.Reservation {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}
