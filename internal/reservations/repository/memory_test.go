package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	reservationserrors "slotbook/internal/reservations/errors"
	"slotbook/pkg/clock"
	"slotbook/pkg/model"
)

var day = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func newReservation(start time.Time, owner string) *model.Reservation {
	return &model.Reservation{
		StartTime:     start,
		CustomerName:  "Aziz",
		CustomerPhone: "+998901234567",
		OwnerID:       owner,
		Status:        model.StatusPending,
	}
}

func dayRange() TimeRange {
	return TimeRange{From: day, To: day.AddDate(0, 0, 1)}
}

func receive(t *testing.T, sub Subscription) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-sub.Events():
		if !ok {
			t.Fatal("subscription closed unexpectedly")
		}
		return snap
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return Snapshot{}
}

func TestMemoryStore_CreateAssignsID(t *testing.T) {
	store := NewMemoryStore(clock.NewFake(day))
	ctx := context.Background()

	in := newReservation(day.Add(9*time.Hour), "u1")
	created, err := store.Create(ctx, in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected store-assigned id")
	}
	if in.ID != "" {
		t.Error("caller's record must not be mutated")
	}

	got, err := store.FindByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if !got.StartTime.Equal(in.StartTime) || got.Status != model.StatusPending {
		t.Errorf("unexpected record: %+v", got)
	}
}

func TestMemoryStore_SlotUniqueness(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := context.Background()
	start := day.Add(9 * time.Hour)

	first, err := store.Create(ctx, newReservation(start, "u1"))
	if err != nil {
		t.Fatalf("first Create: %v", err)
	}
	if _, err := store.Create(ctx, newReservation(start, "u2")); !errors.Is(err, reservationserrors.ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken, got %v", err)
	}

	if _, err := store.UpdateStatus(ctx, first.ID, model.StatusPending, model.StatusApproved); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := store.Create(ctx, newReservation(start, "u2")); !errors.Is(err, reservationserrors.ErrSlotTaken) {
		t.Fatalf("approved reservation must keep the slot, got %v", err)
	}
}

func TestMemoryStore_RejectReleasesClaim(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := context.Background()
	start := day.Add(10 * time.Hour)

	first, _ := store.Create(ctx, newReservation(start, "u1"))
	if _, err := store.UpdateStatus(ctx, first.ID, model.StatusPending, model.StatusRejected); err != nil {
		t.Fatalf("reject: %v", err)
	}
	second, err := store.Create(ctx, newReservation(start, "u1"))
	if err != nil {
		t.Fatalf("slot should be free after reject: %v", err)
	}
	if second.ID == first.ID {
		t.Error("rebooking must create a new reservation")
	}

	records, _ := store.Query(ctx, dayRange())
	if len(records) != 2 {
		t.Errorf("history must be retained, got %d records", len(records))
	}
}

func TestMemoryStore_ConcurrentCreate(t *testing.T) {
	store := NewMemoryStore(nil)
	start := day.Add(11 * time.Hour)

	const workers = 32
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Create(context.Background(), newReservation(start, "u"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, reservationserrors.ErrSlotTaken):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 || conflicts != workers-1 {
		t.Errorf("successes=%d conflicts=%d, want 1 and %d", successes, conflicts, workers-1)
	}
}

func TestMemoryStore_UpdateStatusErrors(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := context.Background()

	if _, err := store.UpdateStatus(ctx, "not-an-id", model.StatusPending, model.StatusApproved); !errors.Is(err, reservationserrors.ErrInvalidID) {
		t.Errorf("expected ErrInvalidID, got %v", err)
	}
	if _, err := store.UpdateStatus(ctx, "65f000000000000000000000", model.StatusPending, model.StatusApproved); !errors.Is(err, reservationserrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	r, _ := store.Create(ctx, newReservation(day.Add(12*time.Hour), "u1"))
	_, _ = store.UpdateStatus(ctx, r.ID, model.StatusPending, model.StatusApproved)
	if _, err := store.UpdateStatus(ctx, r.ID, model.StatusPending, model.StatusRejected); !errors.Is(err, reservationserrors.ErrStatusChanged) {
		t.Errorf("expected ErrStatusChanged, got %v", err)
	}
}

func TestMemoryStore_Subscribe(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := context.Background()

	sub, err := store.Subscribe(ctx, dayRange())
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	if snap := receive(t, sub); len(snap.Records) != 0 || snap.Err != nil {
		t.Fatalf("initial snapshot = %+v, want empty", snap)
	}

	created, _ := store.Create(ctx, newReservation(day.Add(9*time.Hour), "u1"))
	snap := receive(t, sub)
	if len(snap.Records) != 1 || snap.Records[0].ID != created.ID {
		t.Fatalf("snapshot after create = %+v", snap.Records)
	}

	// Out of range writes do not wake the subscriber.
	_, _ = store.Create(ctx, newReservation(day.AddDate(0, 0, 1).Add(9*time.Hour), "u1"))
	select {
	case snap := <-sub.Events():
		t.Fatalf("unexpected snapshot for other day: %+v", snap)
	default:
	}
}

func TestMemoryStore_SubscribeLatestWins(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := context.Background()

	sub, _ := store.Subscribe(ctx, dayRange())
	defer sub.Close()

	for h := 9; h < 13; h++ {
		if _, err := store.Create(ctx, newReservation(day.Add(time.Duration(h)*time.Hour), "u1")); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	snap := receive(t, sub)
	if len(snap.Records) != 4 {
		t.Errorf("expected the latest snapshot with 4 records, got %d", len(snap.Records))
	}
	for i := 1; i < len(snap.Records); i++ {
		if !snap.Records[i-1].StartTime.Before(snap.Records[i].StartTime) {
			t.Error("snapshot records must be ordered by start time")
		}
	}
}

func TestMemoryStore_CloseStopsDelivery(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := context.Background()

	sub, _ := store.Subscribe(ctx, dayRange())
	sub.Close()
	sub.Close()

	_, _ = store.Create(ctx, newReservation(day.Add(9*time.Hour), "u1"))
	if _, ok := <-sub.Events(); ok {
		t.Error("no snapshot may be delivered after Close")
	}
}

func TestMemoryStore_FindByOwner(t *testing.T) {
	c := clock.NewFake(day)
	store := NewMemoryStore(c)
	ctx := context.Background()

	for h := 9; h < 12; h++ {
		c.Advance(time.Minute)
		_, _ = store.Create(ctx, newReservation(day.Add(time.Duration(h)*time.Hour), "owner"))
	}
	_, _ = store.Create(ctx, newReservation(day.Add(15*time.Hour), "someone-else"))

	mine, err := store.FindByOwner(ctx, "owner", 2, 0)
	if err != nil {
		t.Fatalf("FindByOwner: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("expected 2 records, got %d", len(mine))
	}
	if mine[0].StartTime.Hour() != 11 {
		t.Errorf("expected newest first, got %v", mine[0].StartTime)
	}

	count, _ := store.CountByOwner(ctx, "owner")
	if count != 3 {
		t.Errorf("CountByOwner = %d, want 3", count)
	}
	rest, _ := store.FindByOwner(ctx, "owner", 10, 5)
	if len(rest) != 0 {
		t.Errorf("offset past end should be empty, got %d", len(rest))
	}
}

func TestTimeRangeContains(t *testing.T) {
	rng := dayRange()
	if !rng.Contains(day) {
		t.Error("range must include From")
	}
	if rng.Contains(day.AddDate(0, 0, 1)) {
		t.Error("range must exclude To")
	}
}
