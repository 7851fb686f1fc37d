package store

import (
	"token-pulse/internal/models"
)

// Action is a single mutation of the token state.
type Action interface {
	isAction()
}

// SetTokens replaces the items wholesale and clears the loading flag.
type SetTokens struct {
	Tokens []models.Token
}

// UpdateTokenPrice overwrites price and 24h change of one token. Unknown ids are ignored.
type UpdateTokenPrice struct {
	ID        string
	Price     float64
	Change24h float64
}

// SetLoading sets the loading flag.
type SetLoading struct {
	Loading bool
}

// SetError sets the error message. An empty message clears it.
type SetError struct {
	Message string
}

func (SetTokens) isAction()        {}
func (UpdateTokenPrice) isAction() {}
func (SetLoading) isAction()       {}
func (SetError) isAction()         {}

// State is an immutable view of the token store.
// Items must be treated as read-only; the store never writes to a published slice.
type State struct {
	Items   []models.Token
	Loading bool
	Error   string
	// Version advances on every dispatch that changed something.
	Version uint64

	index map[string]int
}

// Token returns the token with the given id.
func (s State) Token(id string) (models.Token, bool) {
	i, ok := s.find(id)
	if !ok {
		return models.Token{}, false
	}
	return s.Items[i], true
}

func (s State) find(id string) (int, bool) {
	if s.index != nil {
		i, ok := s.index[id]
		return i, ok
	}
	for i := range s.Items {
		if s.Items[i].ID == id {
			return i, true
		}
	}
	return 0, false
}

// Reduce applies a to s and returns the next state. s is not modified.
func Reduce(s State, a Action) State {
	next, _, _ := reduce(s, a, false)
	return next
}

// reduce applies one action. owned reports whether next.Items is a private copy that
// may be written in place; it lets a batch of price updates share one copy.
func reduce(s State, a Action, owned bool) (next State, changed bool, ownedOut bool) {
	switch a := a.(type) {
	case SetTokens:
		items := make([]models.Token, 0, len(a.Tokens))
		index := make(map[string]int, len(a.Tokens))
		for _, t := range a.Tokens {
			if _, dup := index[t.ID]; dup {
				continue
			}
			index[t.ID] = len(items)
			items = append(items, t)
		}
		s.Items = items
		s.index = index
		s.Loading = false
		return s, true, true

	case UpdateTokenPrice:
		i, ok := s.find(a.ID)
		if !ok {
			return s, false, owned
		}
		cur := s.Items[i]
		if cur.Price == a.Price && cur.Change24h == a.Change24h {
			return s, false, owned
		}
		if !owned {
			s.Items = append([]models.Token(nil), s.Items...)
			owned = true
		}
		s.Items[i].Price = a.Price
		s.Items[i].Change24h = a.Change24h
		return s, true, owned

	case SetLoading:
		if s.Loading == a.Loading {
			return s, false, owned
		}
		s.Loading = a.Loading
		return s, true, owned

	case SetError:
		if s.Error == a.Message {
			return s, false, owned
		}
		s.Error = a.Message
		return s, true, owned
	}

	return s, false, owned
}
