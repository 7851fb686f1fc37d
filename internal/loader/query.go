package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Status is the observable state of a query.
type Status int

const (
	StatusIdle Status = iota
	StatusPending
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusPending:
		return "pending"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Result is a query's state. Data holds the last successful value and survives later failures.
type Result[T any] struct {
	Status    Status
	Data      T
	HasData   bool
	Err       error
	UpdatedAt time.Time
}

// Fetcher loads the value of a query.
type Fetcher[T any] func(ctx context.Context) (T, error)

// Options controls caching and background refresh of a query.
type Options struct {
	// StaleTime is how long a successful value is served without refetching. Zero means always stale.
	StaleTime time.Duration
	// RefetchInterval is the refresh period while the query has subscribers. Zero disables it.
	RefetchInterval time.Duration
	// Timeout bounds a single fetch. Zero means no bound.
	Timeout time.Duration
}

// ErrKeyType is returned when a key is registered again with a different value type.
var ErrKeyType = errors.New("query key registered with another type")

// Client owns queries by key and coalesces concurrent fetches of the same key.
type Client struct {
	logger *zap.Logger
	group  singleflight.Group
	now    func() time.Time

	mu      sync.Mutex
	queries map[string]any
}

// NewClient creates an empty query client.
func NewClient(logger *zap.Logger) *Client {
	return &Client{
		logger:  logger.Named("loader"),
		now:     time.Now,
		queries: make(map[string]any),
	}
}

// Register returns the query for key, creating it with fetch and opts on first use.
// Later registrations of the same key return the existing query and ignore fetch and opts.
func Register[T any](c *Client, key string, fetch Fetcher[T], opts Options) (*Query[T], error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.queries[key]; ok {
		q, ok := existing.(*Query[T])
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrKeyType, key)
		}
		return q, nil
	}

	q := &Query[T]{
		key:    key,
		client: c,
		fetch:  fetch,
		opts:   opts,
		logger: c.logger.With(zap.String("query", key)),
		subs:   make(map[uint64]chan Result[T]),
	}
	c.queries[key] = q
	return q, nil
}

// Query is a cached, de-duplicated, optionally self-refreshing data request.
type Query[T any] struct {
	key    string
	client *Client
	fetch  Fetcher[T]
	opts   Options
	logger *zap.Logger

	mu      sync.Mutex
	result  Result[T]
	subs    map[uint64]chan Result[T]
	nextSub uint64

	stopRefresh context.CancelFunc
	refreshDone chan struct{}
}

// Key returns the query identity.
func (q *Query[T]) Key() string {
	return q.key
}

// Result returns the current state of the query.
func (q *Query[T]) Result() Result[T] {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.result
}

// Fetch returns the cached value if it is still fresh, otherwise it fetches.
func (q *Query[T]) Fetch(ctx context.Context) (T, error) {
	q.mu.Lock()
	if q.freshLocked() {
		data := q.result.Data
		q.mu.Unlock()
		return data, nil
	}
	q.mu.Unlock()

	return q.run(ctx)
}

// Refetch fetches regardless of staleness. It joins a fetch that is already in flight.
func (q *Query[T]) Refetch(ctx context.Context) (T, error) {
	return q.run(ctx)
}

func (q *Query[T]) freshLocked() bool {
	if !q.result.HasData || q.opts.StaleTime <= 0 {
		return false
	}
	return q.client.now().Sub(q.result.UpdatedAt) < q.opts.StaleTime
}

// run waits for the shared fetch of this key. Cancelling ctx abandons the wait only;
// the fetch keeps running for the other callers.
func (q *Query[T]) run(ctx context.Context) (T, error) {
	ch := q.client.group.DoChan(q.key, func() (any, error) {
		return q.execute(context.WithoutCancel(ctx))
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return zero, r.Err
		}
		data, _ := r.Val.(T)
		return data, nil
	}
}

func (q *Query[T]) execute(ctx context.Context) (T, error) {
	if q.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.opts.Timeout)
		defer cancel()
	}

	q.mu.Lock()
	q.result.Status = StatusPending
	q.broadcastLocked()
	q.mu.Unlock()

	q.logger.Debug("Fetching query")
	data, err := q.fetch(ctx)

	q.mu.Lock()
	defer q.mu.Unlock()

	if err != nil {
		q.result.Status = StatusError
		q.result.Err = err
		q.logger.Warn("Query fetch failed", zap.Error(err))
	} else {
		q.result = Result[T]{
			Status:    StatusSuccess,
			Data:      data,
			HasData:   true,
			UpdatedAt: q.client.now(),
		}
	}
	q.broadcastLocked()
	return data, err
}

// Subscribe returns a channel carrying the newest query state, starting with the current one.
// The first subscriber starts the background refresh; releasing the last one stops it.
func (q *Query[T]) Subscribe() (<-chan Result[T], func()) {
	q.mu.Lock()
	defer q.mu.Unlock()

	id := q.nextSub
	q.nextSub++
	ch := make(chan Result[T], 1)
	q.subs[id] = ch
	publish(ch, q.result)

	if len(q.subs) == 1 {
		ctx, cancel := context.WithCancel(context.Background())
		q.stopRefresh = cancel
		q.refreshDone = make(chan struct{})
		go q.refreshLoop(ctx, q.refreshDone)
	}

	var once sync.Once
	return ch, func() {
		once.Do(func() { q.unsubscribe(id) })
	}
}

// Subscribers returns the number of active subscriptions.
func (q *Query[T]) Subscribers() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.subs)
}

func (q *Query[T]) unsubscribe(id uint64) {
	q.mu.Lock()
	delete(q.subs, id)
	var (
		stop context.CancelFunc
		done chan struct{}
	)
	if len(q.subs) == 0 {
		stop, done = q.stopRefresh, q.refreshDone
		q.stopRefresh, q.refreshDone = nil, nil
	}
	q.mu.Unlock()

	if stop != nil {
		stop()
		<-done
	}
}

func (q *Query[T]) refreshLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	q.mu.Lock()
	fresh := q.freshLocked()
	q.mu.Unlock()
	if !fresh {
		_, _ = q.run(ctx)
	}

	if q.opts.RefetchInterval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(q.opts.RefetchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = q.run(ctx)
		}
	}
}

func (q *Query[T]) broadcastLocked() {
	for _, ch := range q.subs {
		publish(ch, q.result)
	}
}

// publish replaces any pending value in ch with r.
func publish[T any](ch chan Result[T], r Result[T]) {
	select {
	case ch <- r:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- r:
	default:
	}
}
