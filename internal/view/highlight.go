package view

import (
	"sync"
	"time"

	"token-pulse/internal/models"
)

// Highlight is the direction of a token's most recent price change while it is still on display.
type Highlight string

const (
	Neutral Highlight = "neutral"
	Up      Highlight = "up"
	Down    Highlight = "down"
)

// DefaultHighlightWindow is how long a price change stays highlighted.
const DefaultHighlightWindow = time.Second

type mark struct {
	dir   Highlight
	until time.Time
}

// Tracker derives per-token highlights by comparing successive prices.
type Tracker struct {
	window time.Duration
	now    func() time.Time

	mu    sync.Mutex
	last  map[string]float64
	marks map[string]mark
}

// NewTracker creates a tracker. A nil clock uses time.Now.
func NewTracker(window time.Duration, now func() time.Time) *Tracker {
	if window <= 0 {
		window = DefaultHighlightWindow
	}
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		window: window,
		now:    now,
		last:   make(map[string]float64),
		marks:  make(map[string]mark),
	}
}

// Observe records the prices in items and reports whether any new highlight started.
// A token seen for the first time is not highlighted. Tokens missing from items are forgotten.
func (t *Tracker) Observe(items []models.Token) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	seen := make(map[string]struct{}, len(items))
	changed := false

	for _, tok := range items {
		seen[tok.ID] = struct{}{}
		prev, ok := t.last[tok.ID]
		t.last[tok.ID] = tok.Price
		if !ok || prev == tok.Price {
			continue
		}
		dir := Down
		if tok.Price > prev {
			dir = Up
		}
		t.marks[tok.ID] = mark{dir: dir, until: now.Add(t.window)}
		changed = true
	}

	for id := range t.last {
		if _, ok := seen[id]; !ok {
			delete(t.last, id)
			delete(t.marks, id)
		}
	}
	return changed
}

// Direction returns the highlight of id at the current time.
func (t *Tracker) Direction(id string) Highlight {
	t.mu.Lock()
	defer t.mu.Unlock()

	m, ok := t.marks[id]
	if !ok {
		return Neutral
	}
	if !t.now().Before(m.until) {
		delete(t.marks, id)
		return Neutral
	}
	return m.dir
}

// NextExpiry returns when the earliest active highlight reverts to neutral.
func (t *Tracker) NextExpiry() (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	var next time.Time
	found := false
	for id, m := range t.marks {
		if !now.Before(m.until) {
			delete(t.marks, id)
			continue
		}
		if !found || m.until.Before(next) {
			next = m.until
			found = true
		}
	}
	return next, found
}
