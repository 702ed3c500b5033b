// Package liveview keeps one consumer's view of a selected business day in
// step with the reservation store. Each publication is a complete DayView;
// consumers replace what they have and never diff.
package liveview

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"slotbook/internal/reservations/repository"
	"slotbook/internal/slots"
	"slotbook/pkg/clock"
	"slotbook/pkg/logger"
	"slotbook/pkg/model"
)

var ErrClosed = errors.New("live view closed")

type State int

const (
	StateIdle State = iota
	StateSubscribing
	StateLive
	StateRefreshing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubscribing:
		return "subscribing"
	case StateLive:
		return "live"
	case StateRefreshing:
		return "refreshing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type Option func(*Synchronizer)

// WithRefreshInterval re-resolves the current view periodically so slots
// roll into the past without a store change. Zero disables it.
func WithRefreshInterval(d time.Duration) Option {
	return func(s *Synchronizer) { s.refreshEvery = d }
}

// Synchronizer owns at most one store subscription at a time. Selecting a
// day releases the previous subscription before the next one is opened.
type Synchronizer struct {
	store        repository.ReservationStore
	hours        slots.BusinessHours
	clock        clock.Clock
	log          *logger.Logger
	refreshEvery time.Duration

	// selectMu serializes SelectDay so close-then-open is never interleaved.
	selectMu sync.Mutex

	mu         sync.Mutex
	state      State
	day        time.Time
	generation uint64
	sub        repository.Subscription
	lastKnown  []*model.Reservation
	current    *model.DayView
	observers  map[chan model.DayView]struct{}
	done       chan struct{}
}

func New(store repository.ReservationStore, hours slots.BusinessHours, c clock.Clock, log *logger.Logger, opts ...Option) *Synchronizer {
	if c == nil {
		c = clock.Real()
	}
	s := &Synchronizer{
		store:     store,
		hours:     hours,
		clock:     c,
		log:       log,
		observers: make(map[chan model.DayView]struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.refreshEvery > 0 {
		go s.refreshLoop()
	}
	return s
}

func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Day returns local midnight of the selected day, or the zero time.
func (s *Synchronizer) Day() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.day
}

// Current returns the last published view.
func (s *Synchronizer) Current() (model.DayView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return model.DayView{}, false
	}
	return *s.current, true
}

// SelectDay switches the view to the business day containing day. A store
// that cannot be subscribed yields a degraded view and the error.
func (s *Synchronizer) SelectDay(ctx context.Context, day time.Time) error {
	s.selectMu.Lock()
	defer s.selectMu.Unlock()
	return s.selectDayLocked(ctx, day)
}

// resubscribe retries a selected day whose subscription could not be
// opened. It does nothing once another day was selected meanwhile.
func (s *Synchronizer) resubscribe(day time.Time) bool {
	s.selectMu.Lock()
	defer s.selectMu.Unlock()

	s.mu.Lock()
	detached := s.state == StateLive && s.sub == nil && s.day.Equal(day)
	s.mu.Unlock()
	if !detached {
		return false
	}

	s.log.Info("Retrying live view subscription", "day", day.Format(time.DateOnly))
	if err := s.selectDayLocked(context.Background(), day); errors.Is(err, ErrClosed) {
		return false
	}
	return true
}

func (s *Synchronizer) selectDayLocked(ctx context.Context, day time.Time) error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return ErrClosed
	}
	prev := s.sub
	s.sub = nil
	s.generation++
	gen := s.generation
	if s.state == StateLive {
		s.state = StateRefreshing
	} else {
		s.state = StateSubscribing
	}
	s.day = s.hours.StartOfDay(day)
	s.lastKnown = nil
	s.current = nil
	selected := s.day
	s.mu.Unlock()

	if prev != nil {
		prev.Close()
	}

	from, to := s.hours.DayRange(selected)
	sub, err := s.store.Subscribe(ctx, repository.TimeRange{From: from, To: to})
	if err != nil {
		s.log.Warn("Failed to subscribe to day", "day", selected.Format(time.DateOnly), "error", err)
		s.apply(gen, selected, repository.Snapshot{Err: err})
		return err
	}

	s.mu.Lock()
	if s.state == StateClosed || gen != s.generation {
		s.mu.Unlock()
		sub.Close()
		return ErrClosed
	}
	s.sub = sub
	s.mu.Unlock()

	go s.pump(gen, selected, sub)

	s.log.Debug("Day selected", "day", selected.Format(time.DateOnly), "generation", gen)
	return nil
}

func (s *Synchronizer) pump(gen uint64, day time.Time, sub repository.Subscription) {
	for snap := range sub.Events() {
		s.apply(gen, day, snap)
	}
}

// apply turns one store snapshot into a published view. Snapshots of a
// superseded subscription are dropped.
func (s *Synchronizer) apply(gen uint64, day time.Time, snap repository.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed || gen != s.generation {
		return
	}

	now := s.clock.Now()
	var view model.DayView
	if snap.Err != nil {
		view = slots.DegradedView(day, s.hours, s.lastKnown, now)
		s.log.Warn("Live view degraded", "day", day.Format(time.DateOnly), "error", snap.Err)
	} else {
		s.lastKnown = snap.Records
		v, err := slots.View(day, s.hours, snap.Records, now)
		if err != nil {
			s.log.Error("Failed to resolve day", "day", day.Format(time.DateOnly), "error", err)
			v = slots.DegradedView(day, s.hours, snap.Records, now)
		}
		view = v
	}

	s.state = StateLive
	s.publishLocked(view)
}

// Refresh republishes the current view with a fresh clock reading. A day
// left without a subscription by a failed Subscribe is subscribed again.
// It reports false when there is nothing live to refresh.
func (s *Synchronizer) Refresh() bool {
	s.mu.Lock()
	detached := s.state == StateLive && s.sub == nil
	day := s.day
	s.mu.Unlock()
	if detached {
		return s.resubscribe(day)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateLive || s.current == nil {
		return false
	}

	now := s.clock.Now()
	var view model.DayView
	if s.current.Degraded {
		view = slots.DegradedView(s.day, s.hours, s.lastKnown, now)
	} else {
		v, err := slots.View(s.day, s.hours, s.lastKnown, now)
		if err != nil {
			return false
		}
		view = v
	}
	s.publishLocked(view)
	return true
}

func (s *Synchronizer) publishLocked(view model.DayView) {
	s.current = &view
	for ch := range s.observers {
		select {
		case <-ch:
		default:
		}
		ch <- view
	}
}

// Observe returns a channel carrying the latest view, starting with the
// current one if any. Undelivered views are replaced by newer ones. The
// channel is closed by cancel or Close.
func (s *Synchronizer) Observe() (<-chan model.DayView, func()) {
	ch := make(chan model.DayView, 1)

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.observers[ch] = struct{}{}
	if s.current != nil {
		ch <- *s.current
	}
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.observers[ch]; ok {
				delete(s.observers, ch)
				close(ch)
			}
		})
	}
	return ch, cancel
}

// Close stops delivery at once and releases the subscription.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	s.generation++
	sub := s.sub
	s.sub = nil
	for ch := range s.observers {
		delete(s.observers, ch)
		close(ch)
	}
	close(s.done)
	s.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
}

// CloseOnSignOut closes the synchronizer when the identity stream reports
// a sign-out after a sign-in.
func (s *Synchronizer) CloseOnSignOut(changes <-chan *model.Identity) {
	go func() {
		signedIn := false
		for {
			select {
			case <-s.done:
				return
			case id, ok := <-changes:
				if !ok {
					return
				}
				if id != nil {
					signedIn = true
					continue
				}
				if signedIn {
					s.log.Debug("Identity signed out, closing live view")
					s.Close()
					return
				}
			}
		}
	}()
}

func (s *Synchronizer) refreshLoop() {
	ticker := time.NewTicker(s.refreshEvery)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.Refresh()
		}
	}
}
