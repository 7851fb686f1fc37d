package store

import (
	"sync"

	"token-pulse/internal/models"
)

// Store is the single source of truth for token data.
// Writes are serialized; every dispatch is observed by readers as one step.
type Store struct {
	mu    sync.RWMutex
	state State

	subs    map[uint64]chan State
	nextSub uint64
}

// New creates an empty store.
func New() *Store {
	return &Store{
		subs: make(map[uint64]chan State),
	}
}

// Snapshot returns the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state
}

// Dispatch applies actions in order as one atomic step and returns the resulting state.
// Subscribers are notified once, and only if something changed.
func (s *Store) Dispatch(actions ...Action) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.dispatchLocked(actions)
}

// DispatchAt is Dispatch guarded by the version the actions were computed from.
// If the store has moved past version nothing is applied and ok is false.
func (s *Store) DispatchAt(version uint64, actions ...Action) (st State, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Version != version {
		return s.state, false
	}
	return s.dispatchLocked(actions), true
}

func (s *Store) dispatchLocked(actions []Action) State {
	next := s.state
	owned := false
	dirty := false
	for _, a := range actions {
		var changed bool
		next, changed, owned = reduce(next, a, owned)
		dirty = dirty || changed
	}
	if !dirty {
		return s.state
	}

	next.Version = s.state.Version + 1
	s.state = next
	for _, ch := range s.subs {
		publish(ch, next)
	}
	return next
}

// SetTokens replaces all items and clears the loading flag.
func (s *Store) SetTokens(tokens []models.Token) State {
	return s.Dispatch(SetTokens{Tokens: tokens})
}

// UpdateTokenPrice sets price and 24h change of the token with the given id, if it exists.
func (s *Store) UpdateTokenPrice(id string, price, change24h float64) State {
	return s.Dispatch(UpdateTokenPrice{ID: id, Price: price, Change24h: change24h})
}

// SetLoading sets the loading flag.
func (s *Store) SetLoading(loading bool) State {
	return s.Dispatch(SetLoading{Loading: loading})
}

// SetError sets the error message; "" clears it.
func (s *Store) SetError(message string) State {
	return s.Dispatch(SetError{Message: message})
}

// Subscribe returns a channel that receives the newest state after each change.
// A slow reader skips intermediate states. The returned func releases the subscription.
func (s *Store) Subscribe() (<-chan State, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan State, 1)
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// publish replaces any pending value in ch with st.
func publish(ch chan State, st State) {
	select {
	case ch <- st:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- st:
	default:
	}
}
