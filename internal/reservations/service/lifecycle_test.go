package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"slotbook/internal/identity"
	reservationserrors "slotbook/internal/reservations/errors"
	"slotbook/internal/reservations/repository"
	"slotbook/internal/reservations/validator"
	"slotbook/internal/slots"
	"slotbook/pkg/clock"
	"slotbook/pkg/config"
	apperrors "slotbook/pkg/errors"
	"slotbook/pkg/logger"
	"slotbook/pkg/model"
)

var (
	testDay  = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	customer = &model.Identity{UserID: "customer-1", Phone: "+998901234567", Role: model.RoleCustomer}
	other    = &model.Identity{UserID: "customer-2", Phone: "+998907777777", Role: model.RoleCustomer}
	provider = &model.Identity{UserID: "provider-1", Phone: "+998907654321", Role: model.RoleProvider}
)

func at(h, m int) time.Time {
	return testDay.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func as(id *model.Identity) context.Context {
	return identity.WithIdentity(context.Background(), id)
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []model.StatusChangedEvent
}

func (d *recordingDispatcher) Dispatch(e model.StatusChangedEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, e)
}

type fixture struct {
	manager    LifecycleManager
	store      repository.ReservationStore
	clock      *clock.Fake
	dispatcher *recordingDispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	c := clock.NewFake(at(8, 0))
	return newFixtureWithStore(t, repository.NewMemoryStore(c), c)
}

func newFixtureWithStore(t *testing.T, store repository.ReservationStore, c *clock.Fake) *fixture {
	t.Helper()
	log := logger.New(logger.Config{Level: logger.ERROR, Service: "test"})
	cfg := &config.Config{Log: log, BusinessTimeZone: "UTC"}

	hours, err := slots.ParseHours("09:00", "19:00", 30, "UTC")
	if err != nil {
		t.Fatalf("ParseHours: %v", err)
	}

	d := &recordingDispatcher{}
	m := NewLifecycleManager(store, validator.NewReservationValidator(log), identity.ContextGate{}, d, hours, c, cfg)
	return &fixture{manager: m, store: store, clock: c, dispatcher: d}
}

func request(start time.Time) *model.ReservationRequest {
	return &model.ReservationRequest{
		StartTime:     start,
		CustomerName:  "Aziz",
		CustomerPhone: "+998901234567",
	}
}

func (f *fixture) mustCreate(t *testing.T, start time.Time) *model.Reservation {
	t.Helper()
	res, err := f.manager.Create(as(customer), request(start))
	if err != nil {
		t.Fatalf("Create(%v): %v", start, err)
	}
	return res
}

func (f *fixture) availability(t *testing.T, start time.Time) bool {
	t.Helper()
	view, err := f.manager.DayView(context.Background(), start)
	if err != nil {
		t.Fatalf("DayView: %v", err)
	}
	for _, s := range view.Slots {
		if s.Start.Equal(start) {
			return s.Available
		}
	}
	t.Fatalf("slot %v not on grid", start)
	return false
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	if !apperrors.HasCode(err, code) {
		t.Fatalf("expected %s, got %v", code, err)
	}
}

func TestCreate(t *testing.T) {
	f := newFixture(t)

	res, err := f.manager.Create(as(customer), &model.ReservationRequest{
		StartTime:     at(9, 0),
		CustomerName:  "  Aziz   Karimov ",
		CustomerPhone: "90 123 45 67",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if res.ID == "" {
		t.Error("expected a store-assigned id")
	}
	if res.Status != model.StatusPending {
		t.Errorf("expected pending, got %s", res.Status)
	}
	if res.OwnerID != customer.UserID {
		t.Errorf("owner = %q", res.OwnerID)
	}
	if res.CustomerName != "Aziz Karimov" || res.CustomerPhone != "+998901234567" {
		t.Errorf("input not normalized: %q %q", res.CustomerName, res.CustomerPhone)
	}
	if f.availability(t, at(9, 0)) {
		t.Error("booked slot must be unavailable")
	}
}

func TestCreate_Errors(t *testing.T) {
	tests := []struct {
		name  string
		ctx   context.Context
		req   *model.ReservationRequest
		setup func(t *testing.T, f *fixture)
		code  string
	}{
		{
			name: "anonymous caller",
			ctx:  context.Background(),
			req:  request(at(9, 0)),
			code: apperrors.CodeUnauthorized,
		},
		{
			name: "empty name",
			ctx:  as(customer),
			req:  &model.ReservationRequest{StartTime: at(9, 0), CustomerName: "   ", CustomerPhone: "+998901234567"},
			code: apperrors.CodeValidation,
		},
		{
			name: "malformed phone",
			ctx:  as(customer),
			req:  &model.ReservationRequest{StartTime: at(9, 0), CustomerName: "Aziz", CustomerPhone: "call me"},
			code: apperrors.CodeValidation,
		},
		{
			name: "off grid",
			ctx:  as(customer),
			req:  request(at(9, 15)),
			code: apperrors.CodeSlotUnavailable,
		},
		{
			name: "at closing time",
			ctx:  as(customer),
			req:  request(at(19, 0)),
			code: apperrors.CodeSlotUnavailable,
		},
		{
			name:  "in the past",
			ctx:   as(customer),
			req:   request(at(9, 0)),
			setup: func(_ *testing.T, f *fixture) { f.clock.Set(at(9, 31)) },
			code:  apperrors.CodeSlotInPast,
		},
		{
			name:  "already reserved",
			ctx:   as(other),
			req:   request(at(10, 0)),
			setup: func(t *testing.T, f *fixture) { f.mustCreate(t, at(10, 0)) },
			code:  apperrors.CodeSlotUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.setup != nil {
				tt.setup(t, f)
			}
			_, err := f.manager.Create(tt.ctx, tt.req)
			assertCode(t, err, tt.code)
		})
	}
}

func TestCreate_ConcurrentSameSlot(t *testing.T) {
	f := newFixture(t)

	const callers = 32
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer wg.Done()
			_, err := f.manager.Create(as(customer), request(at(11, 0)))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case apperrors.HasCode(err, apperrors.CodeSlotUnavailable):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 || conflicts != callers-1 {
		t.Errorf("expected 1 success and %d conflicts, got %d and %d", callers-1, successes, conflicts)
	}
}

// staleStore answers Query with an empty day so only the store's own
// uniqueness check can stop a duplicate.
type staleStore struct {
	repository.ReservationStore
}

func (staleStore) Query(context.Context, repository.TimeRange) ([]*model.Reservation, error) {
	return nil, nil
}

func TestCreate_StoreIsFinalArbiter(t *testing.T) {
	c := clock.NewFake(at(8, 0))
	f := newFixtureWithStore(t, staleStore{repository.NewMemoryStore(c)}, c)

	f.mustCreate(t, at(12, 0))
	_, err := f.manager.Create(as(other), request(at(12, 0)))
	assertCode(t, err, apperrors.CodeSlotUnavailable)
}

type failingStore struct {
	repository.ReservationStore
	err error
}

func (s failingStore) Query(context.Context, repository.TimeRange) ([]*model.Reservation, error) {
	return nil, s.err
}

func TestCreate_StoreUnavailable(t *testing.T) {
	c := clock.NewFake(at(8, 0))
	f := newFixtureWithStore(t, failingStore{repository.NewMemoryStore(c), reservationserrors.ErrStoreUnavailable}, c)

	_, err := f.manager.Create(as(customer), request(at(9, 0)))
	assertCode(t, err, apperrors.CodeUnavailable)

	_, err = f.manager.DayView(context.Background(), testDay)
	assertCode(t, err, apperrors.CodeUnavailable)
}

func TestApproveReject(t *testing.T) {
	f := newFixture(t)
	res := f.mustCreate(t, at(9, 0))

	_, err := f.manager.Approve(context.Background(), res.ID)
	assertCode(t, err, apperrors.CodeUnauthorized)

	_, err = f.manager.Approve(as(customer), res.ID)
	assertCode(t, err, apperrors.CodeUnauthorized)

	_, err = f.manager.Approve(as(provider), "000000000000000000000000")
	assertCode(t, err, apperrors.CodeNotFound)

	approved, err := f.manager.Approve(as(provider), res.ID)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if approved.Status != model.StatusApproved {
		t.Errorf("expected approved, got %s", approved.Status)
	}
	if approved.StartTime != res.StartTime || approved.OwnerID != res.OwnerID || approved.CustomerName != res.CustomerName {
		t.Error("approve must not change immutable fields")
	}

	_, err = f.manager.Reject(as(provider), res.ID)
	assertCode(t, err, apperrors.CodeInvalidTransition)
	_, err = f.manager.Approve(as(provider), res.ID)
	assertCode(t, err, apperrors.CodeInvalidTransition)

	stored, err := f.store.FindByID(context.Background(), res.ID)
	if err != nil || stored.Status != model.StatusApproved {
		t.Errorf("status reverted: %+v, %v", stored, err)
	}

	if len(f.dispatcher.events) != 1 {
		t.Fatalf("expected 1 dispatched event, got %d", len(f.dispatcher.events))
	}
	e := f.dispatcher.events[0]
	if e.Status != model.StatusApproved || e.CustomerPhone != "+998901234567" || e.CustomerName != "Aziz" {
		t.Errorf("unexpected event: %+v", e)
	}
}

func TestReject_ReopensSlot(t *testing.T) {
	f := newFixture(t)
	res := f.mustCreate(t, at(10, 0))

	if f.availability(t, at(10, 0)) {
		t.Fatal("pending reservation must occupy the slot")
	}
	if _, err := f.manager.Reject(as(provider), res.ID); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if !f.availability(t, at(10, 0)) {
		t.Fatal("rejected reservation must free the slot")
	}

	// The same customer can book the freed slot again.
	again, err := f.manager.Create(as(customer), request(at(10, 0)))
	if err != nil {
		t.Fatalf("rebook: %v", err)
	}
	if again.ID == res.ID {
		t.Error("rebooking must create a new reservation")
	}
	if f.dispatcher.events[0].Status != model.StatusRejected {
		t.Errorf("expected rejected event, got %+v", f.dispatcher.events)
	}
}

func TestEndToEndDay(t *testing.T) {
	f := newFixture(t)

	view, err := f.manager.DayView(context.Background(), testDay)
	if err != nil {
		t.Fatalf("DayView: %v", err)
	}
	if len(view.Slots) != 20 || len(view.Available()) != 20 {
		t.Fatalf("expected 20 available slots, got %d of %d", len(view.Available()), len(view.Slots))
	}

	first := f.mustCreate(t, at(9, 0))
	if f.availability(t, at(9, 0)) {
		t.Fatal("09:00 must be unavailable right after booking")
	}

	second, err := f.manager.Create(as(other), request(at(10, 0)))
	if err != nil {
		t.Fatalf("Create 10:00: %v", err)
	}

	if _, err := f.manager.Approve(as(provider), first.ID); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if _, err := f.manager.Reject(as(provider), second.ID); err != nil {
		t.Fatalf("Reject: %v", err)
	}

	if f.availability(t, at(9, 0)) {
		t.Error("approved 09:00 must stay unavailable")
	}
	if !f.availability(t, at(10, 0)) {
		t.Error("rejected 10:00 must be available again")
	}
}

func TestDayView_PastSlots(t *testing.T) {
	f := newFixture(t)
	f.clock.Set(at(9, 31))

	if f.availability(t, at(9, 0)) {
		t.Error("09:00 must be past at 09:31")
	}
	if f.availability(t, at(9, 30)) {
		t.Error("09:30 starts before 09:31 and must be past")
	}
	if !f.availability(t, at(10, 0)) {
		t.Error("10:00 is still ahead at 09:31")
	}

	f.clock.Set(at(9, 30))
	if !f.availability(t, at(9, 30)) {
		t.Error("a slot starting exactly now is still available")
	}
}

func TestGetByID(t *testing.T) {
	f := newFixture(t)
	res := f.mustCreate(t, at(9, 0))

	if _, err := f.manager.GetByID(as(customer), res.ID); err != nil {
		t.Errorf("owner: %v", err)
	}
	if _, err := f.manager.GetByID(as(provider), res.ID); err != nil {
		t.Errorf("provider: %v", err)
	}
	_, err := f.manager.GetByID(as(other), res.ID)
	assertCode(t, err, apperrors.CodeNotFound)

	_, err = f.manager.GetByID(as(customer), "not-an-id")
	assertCode(t, err, apperrors.CodeNotFound)

	_, err = f.manager.GetByID(as(customer), "")
	assertCode(t, err, apperrors.CodeInvalidInput)
}

func TestListMine(t *testing.T) {
	f := newFixture(t)
	f.mustCreate(t, at(9, 0))
	f.clock.Advance(time.Minute)
	f.mustCreate(t, at(9, 30))
	if _, err := f.manager.Create(as(other), request(at(10, 0))); err != nil {
		t.Fatal(err)
	}

	records, total, err := f.manager.ListMine(as(customer), 10, 0)
	if err != nil {
		t.Fatalf("ListMine: %v", err)
	}
	if total != 2 || len(records) != 2 {
		t.Fatalf("expected 2 reservations, got %d (total %d)", len(records), total)
	}
	if !records[0].StartTime.Equal(at(9, 30)) {
		t.Errorf("expected newest first, got %v", records[0].StartTime)
	}

	_, _, err = f.manager.ListMine(context.Background(), 10, 0)
	assertCode(t, err, apperrors.CodeUnauthorized)
}

func TestStoreError(t *testing.T) {
	f := newFixture(t)
	m := f.manager.(*lifecycleManager)

	assertCode(t, m.storeError("x", context.DeadlineExceeded), apperrors.CodeTimeout)
	assertCode(t, m.storeError("x", reservationserrors.ErrStoreUnavailable), apperrors.CodeUnavailable)
	assertCode(t, m.storeError("x", errors.New("boom")), apperrors.CodeInternal)
	assertCode(t, m.storeError("x", apperrors.SlotUnavailable("taken")), apperrors.CodeSlotUnavailable)
}
