package identity

import (
	"context"
	"sync"

	"slotbook/pkg/model"
)

// Session is an in-process gate for embedded callers holding a single
// signed-in identity. Observers of Changes receive the latest identity, or
// nil after sign-out.
type Session struct {
	mu        sync.Mutex
	current   *model.Identity
	observers map[chan *model.Identity]struct{}
}

func NewSession() *Session {
	return &Session{observers: make(map[chan *model.Identity]struct{})}
}

func (s *Session) CurrentIdentity(context.Context) (*model.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, false
	}
	id := *s.current
	return &id, true
}

func (s *Session) SignIn(id *model.Identity) {
	copied := *id
	s.set(&copied)
}

func (s *Session) SignOut() {
	s.set(nil)
}

// Changes returns a stream of identity changes starting with the current
// one. Only the latest undelivered change is kept. Call cancel to stop.
func (s *Session) Changes() (<-chan *model.Identity, func()) {
	ch := make(chan *model.Identity, 1)

	s.mu.Lock()
	s.observers[ch] = struct{}{}
	ch <- s.current
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.observers, ch)
			close(ch)
			s.mu.Unlock()
		})
	}
	return ch, cancel
}

func (s *Session) set(id *model.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = id
	for ch := range s.observers {
		select {
		case <-ch:
		default:
		}
		ch <- id
	}
}
