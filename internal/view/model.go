package view

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"token-pulse/internal/models"
	"token-pulse/internal/store"

	"go.uber.org/zap"
)

// Row is one rendered token with its highlight.
type Row struct {
	models.Token
	Highlight Highlight `json:"highlight"`
}

// Frame is everything the display needs to render the token table.
type Frame struct {
	Rows    []Row  `json:"rows"`
	Loading bool   `json:"loading"`
	Error   string `json:"error,omitempty"`
	Query   Query  `json:"query"`
	Version uint64 `json:"version"`
}

// Model holds the sticky query state of one display and renders frames from the store.
type Model struct {
	logger  *zap.Logger
	store   *store.Store
	tracker *Tracker

	mu    sync.RWMutex
	query Query

	subsMu  sync.Mutex
	subs    map[uint64]chan Frame
	nextSub uint64
}

// NewModel creates a view model over st starting from initial.
// An empty sort in initial selects DefaultSort.
func NewModel(logger *zap.Logger, st *store.Store, tracker *Tracker, initial Query) (*Model, error) {
	if !initial.Category.Valid() {
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownCategory, initial.Category)
	}
	if initial.Sort.Key == "" {
		initial.Sort = DefaultSort
	}
	if initial.Sort.Direction == "" {
		initial.Sort.Direction = Descending
	}
	if tracker == nil {
		tracker = NewTracker(DefaultHighlightWindow, nil)
	}
	return &Model{
		logger:  logger.Named("view"),
		store:   st,
		tracker: tracker,
		query:   initial,
		subs:    make(map[uint64]chan Frame),
	}, nil
}

// Query returns the active query.
func (m *Model) Query() Query {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.query
}

// SelectCategory switches the displayed category.
func (m *Model) SelectCategory(c models.Category) error {
	if !c.Valid() {
		return fmt.Errorf("%w: %q", models.ErrUnknownCategory, c)
	}
	m.update(func(q *Query) { q.Category = c })
	return nil
}

// SetSearchTerm sets the free-text filter; an empty term shows everything.
func (m *Model) SetSearchTerm(term string) {
	term = strings.TrimSpace(term)
	m.update(func(q *Query) { q.Search = term })
}

// SetSortKey behaves like a click on a column header, see SortSpec.Select.
func (m *Model) SetSortKey(key SortKey) error {
	parsed, err := ParseSortKey(string(key))
	if err != nil {
		return err
	}
	m.update(func(q *Query) { q.Sort = q.Sort.Select(parsed) })
	return nil
}

// ToggleSortDirection flips the direction of the active sort key.
func (m *Model) ToggleSortDirection() {
	m.update(func(q *Query) { q.Sort = q.Sort.Toggle() })
}

func (m *Model) update(fn func(q *Query)) {
	m.mu.Lock()
	fn(&m.query)
	q := m.query
	m.mu.Unlock()

	m.logger.Debug("Query changed",
		zap.String("category", string(q.Category)),
		zap.String("search", q.Search),
		zap.String("sort_key", string(q.Sort.Key)),
		zap.String("sort_dir", string(q.Sort.Direction)))
	m.broadcast()
}

// Frame projects the current store snapshot with the active query.
func (m *Model) Frame() Frame {
	q := m.Query()
	st := m.store.Snapshot()

	tokens := Project(st.Items, q)
	rows := make([]Row, len(tokens))
	for i, t := range tokens {
		rows[i] = Row{Token: t, Highlight: m.tracker.Direction(t.ID)}
	}

	return Frame{
		Rows:    rows,
		Loading: st.Loading,
		Error:   st.Error,
		Query:   q,
		Version: st.Version,
	}
}

// Subscribe returns a channel carrying the newest frame after every store or query change.
func (m *Model) Subscribe() (<-chan Frame, func()) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()

	id := m.nextSub
	m.nextSub++
	ch := make(chan Frame, 1)
	m.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.subsMu.Lock()
			delete(m.subs, id)
			m.subsMu.Unlock()
		})
	}
}

// Run follows the store until ctx is done: it feeds the highlight tracker and publishes frames,
// including one when a highlight reverts to neutral.
func (m *Model) Run(ctx context.Context) {
	updates, unsubscribe := m.store.Subscribe()
	defer unsubscribe()

	m.tracker.Observe(m.store.Snapshot().Items)

	expiry := time.NewTimer(time.Hour)
	expiry.Stop()
	defer expiry.Stop()
	var expiryC <-chan time.Time

	rearm := func() {
		next, ok := m.tracker.NextExpiry()
		if !ok {
			expiryC = nil
			return
		}
		expiry.Reset(next.Sub(m.tracker.now()))
		expiryC = expiry.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case st := <-updates:
			if m.tracker.Observe(st.Items) {
				rearm()
			}
			m.broadcast()
		case <-expiryC:
			m.broadcast()
			rearm()
		}
	}
}

func (m *Model) broadcast() {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()

	if len(m.subs) == 0 {
		return
	}
	f := m.Frame()
	for _, ch := range m.subs {
		publishFrame(ch, f)
	}
}

func publishFrame(ch chan Frame, f Frame) {
	select {
	case ch <- f:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- f:
	default:
	}
}
