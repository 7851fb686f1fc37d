package feed

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"

	"token-pulse/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	// DefaultInterval is the tick period used when none is configured.
	DefaultInterval = 5 * time.Second

	// maxDelta bounds the fractional price move of one tick: [-maxDelta, +maxDelta).
	maxDelta = 0.01

	pricePlaces  = 4
	changePlaces = 2

	// maxTickAttempts bounds recomputation when other writers keep moving the store.
	maxTickAttempts = 3
)

// ErrAlreadyRunning is returned by Start on a simulator that has not been stopped.
var ErrAlreadyRunning = errors.New("price feed already running")

// Simulator emulates a live market-data stream by walking every token's price
// through the same store mutation a real feed would use.
type Simulator struct {
	logger   *zap.Logger
	store    *store.Store
	interval time.Duration
	rand     func() float64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option customizes a Simulator.
type Option func(*Simulator)

// WithRand replaces the uniform [0,1) random source.
func WithRand(fn func() float64) Option {
	return func(s *Simulator) {
		s.rand = fn
	}
}

// NewSimulator creates a price feed simulator for st. A non-positive interval selects DefaultInterval.
func NewSimulator(logger *zap.Logger, st *store.Store, interval time.Duration, opts ...Option) *Simulator {
	if interval <= 0 {
		interval = DefaultInterval
	}
	s := &Simulator{
		logger:   logger.Named("feed"),
		store:    st,
		interval: interval,
		rand:     rand.Float64,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins ticking in a background goroutine until Stop is called or ctx is done.
func (s *Simulator) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(ctx, s.done)
	return nil
}

// Stop cancels the tick loop and waits for it to exit. It is safe to call more than once.
func (s *Simulator) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Simulator) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("Starting price feed", zap.Duration("interval", s.interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Stopping price feed")
			return
		case <-ticker.C:
			n := s.Tick()
			s.logger.Debug("Price feed tick", zap.Int("updates", n))
		}
	}
}

// Tick moves every token currently in the store once and returns the number of updates applied.
// All updates of a tick are dispatched together against the state they were computed from;
// if another write lands in between, the tick is recomputed.
func (s *Simulator) Tick() int {
	for attempt := 1; attempt <= maxTickAttempts; attempt++ {
		snapshot := s.store.Snapshot()
		if len(snapshot.Items) == 0 {
			return 0
		}

		updates := s.step(snapshot)
		if len(updates) == 0 {
			return 0
		}
		if _, ok := s.store.DispatchAt(snapshot.Version, updates...); ok {
			return len(updates)
		}
		s.logger.Debug("Store changed during tick, recomputing", zap.Int("attempt", attempt))
	}

	s.logger.Warn("Dropping price feed tick after repeated concurrent writes", zap.Int("attempts", maxTickAttempts))
	return 0
}

func (s *Simulator) step(snapshot store.State) []store.Action {
	updates := make([]store.Action, 0, len(snapshot.Items))
	for _, tok := range snapshot.Items {
		if !validPrice(tok.Price) || math.IsNaN(tok.Change24h) || math.IsInf(tok.Change24h, 0) {
			s.logger.Warn("Skipping token with malformed market data",
				zap.String("id", tok.ID),
				zap.Float64("price", tok.Price),
				zap.Float64("change24h", tok.Change24h))
			continue
		}

		delta := (s.rand() - 0.5) * 2 * maxDelta
		price, change := Step(tok.Price, tok.Change24h, delta)
		if !validPrice(price) {
			s.logger.Warn("Skipping update that would make price non-positive",
				zap.String("id", tok.ID),
				zap.Float64("price", tok.Price),
				zap.Float64("delta", delta))
			continue
		}

		updates = append(updates, store.UpdateTokenPrice{ID: tok.ID, Price: price, Change24h: change})
	}
	return updates
}

// Step applies a fractional delta to price (multiplicatively) and to change24h (in percent points),
// rounding to 4 and 2 decimal places.
func Step(price, change24h, delta float64) (float64, float64) {
	p := decimal.NewFromFloat(price).
		Mul(decimal.NewFromFloat(1 + delta)).
		Round(pricePlaces)
	c := decimal.NewFromFloat(change24h).
		Add(decimal.NewFromFloat(delta * 100)).
		Round(changePlaces)
	return p.InexactFloat64(), c.InexactFloat64()
}

func validPrice(p float64) bool {
	return p > 0 && !math.IsInf(p, 1)
}
