package repository

import (
	"context"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	reservationserrors "slotbook/internal/reservations/errors"
	"slotbook/pkg/clock"
	"slotbook/pkg/model"
)

// memoryStore keeps reservations in process. Writes are serialized by one
// mutex, which is the sequencing point for slot claims.
type memoryStore struct {
	mu      sync.Mutex
	clock   clock.Clock
	records map[string]*model.Reservation
	claims  map[string]string
	subs    map[*memorySubscription]struct{}
}

func NewMemoryStore(c clock.Clock) ReservationStore {
	if c == nil {
		c = clock.Real()
	}
	return &memoryStore{
		clock:   c,
		records: make(map[string]*model.Reservation),
		claims:  make(map[string]string),
		subs:    make(map[*memorySubscription]struct{}),
	}
}

type memorySubscription struct {
	store *memoryStore
	rng   TimeRange
	feed  *feed
	once  sync.Once
}

func (s *memorySubscription) Events() <-chan Snapshot { return s.feed.ch }

func (s *memorySubscription) Close() {
	s.once.Do(func() {
		s.store.mu.Lock()
		delete(s.store.subs, s)
		s.store.mu.Unlock()
		s.feed.close()
	})
}

func (m *memoryStore) Subscribe(ctx context.Context, rng TimeRange) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sub := &memorySubscription{store: m, rng: rng, feed: newFeed()}

	m.mu.Lock()
	m.subs[sub] = struct{}{}
	sub.feed.publish(Snapshot{Records: m.inRangeLocked(rng)})
	m.mu.Unlock()
	return sub, nil
}

func (m *memoryStore) Query(ctx context.Context, rng TimeRange) ([]*model.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inRangeLocked(rng), nil
}

func (m *memoryStore) Create(ctx context.Context, r *model.Reservation) (*model.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	claimID := model.SlotClaimID(r.StartTime)
	if _, taken := m.claims[claimID]; taken {
		return nil, reservationserrors.ErrSlotTaken
	}

	now := m.clock.Now().UTC()
	stored := clone(r)
	stored.ID = primitive.NewObjectID().Hex()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	m.records[stored.ID] = stored
	if stored.Status.Occupies() {
		m.claims[claimID] = stored.ID
	}

	m.notifyLocked(stored)
	return clone(stored), nil
}

func (m *memoryStore) UpdateStatus(ctx context.Context, id string, from, to model.ReservationStatus) (*model.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !primitive.IsValidObjectID(id) {
		return nil, reservationserrors.ErrInvalidID
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[id]
	if !ok {
		return nil, reservationserrors.ErrNotFound
	}
	if r.Status != from {
		return nil, reservationserrors.ErrStatusChanged
	}

	r.Status = to
	r.UpdatedAt = m.clock.Now().UTC()
	claimID := model.SlotClaimID(r.StartTime)
	if !to.Occupies() && m.claims[claimID] == r.ID {
		delete(m.claims, claimID)
	}

	m.notifyLocked(r)
	return clone(r), nil
}

func (m *memoryStore) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !primitive.IsValidObjectID(id) {
		return nil, reservationserrors.ErrInvalidID
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[id]
	if !ok {
		return nil, reservationserrors.ErrNotFound
	}
	return clone(r), nil
}

func (m *memoryStore) FindByOwner(ctx context.Context, ownerID string, limit int, offset int64) ([]*model.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	owned := m.ownedLocked(ownerID)
	m.mu.Unlock()

	sort.SliceStable(owned, func(i, j int) bool {
		return owned[i].CreatedAt.After(owned[j].CreatedAt)
	})
	if offset >= int64(len(owned)) {
		return []*model.Reservation{}, nil
	}
	owned = owned[offset:]
	if limit > 0 && limit < len(owned) {
		owned = owned[:limit]
	}
	return owned, nil
}

func (m *memoryStore) CountByOwner(ctx context.Context, ownerID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.ownedLocked(ownerID))), nil
}

func (m *memoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *memoryStore) ownedLocked(ownerID string) []*model.Reservation {
	var out []*model.Reservation
	for _, r := range m.records {
		if r.OwnerID == ownerID {
			out = append(out, clone(r))
		}
	}
	return out
}

func (m *memoryStore) inRangeLocked(rng TimeRange) []*model.Reservation {
	out := []*model.Reservation{}
	for _, r := range m.records {
		if rng.Contains(r.StartTime) {
			out = append(out, clone(r))
		}
	}
	sortByStart(out)
	return out
}

func (m *memoryStore) notifyLocked(changed *model.Reservation) {
	for sub := range m.subs {
		if sub.rng.Contains(changed.StartTime) {
			sub.feed.publish(Snapshot{Records: m.inRangeLocked(sub.rng)})
		}
	}
}
