package pulse

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"token-pulse/internal/config"
	"token-pulse/internal/feed"
	"token-pulse/internal/loader"
	"token-pulse/internal/models"
	"token-pulse/internal/store"
	"token-pulse/internal/view"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrInvalidPrice is returned when an external price update is not a finite positive number.
var ErrInvalidPrice = errors.New("price must be a finite positive number")

// Engine owns the token store and everything that writes to or renders from it.
type Engine struct {
	logger *zap.Logger
	store  *store.Store
	loader *loader.TokenLoader
	feed   *feed.Simulator
	model  *view.Model

	UUID      string
	Name      string
	StartTime time.Time

	mu      sync.Mutex
	running bool
}

// Status summarizes the running instance.
type Status struct {
	UUID      string `json:"uuid"`
	Name      string `json:"name"`
	StartTime string `json:"start_time"`
	Uptime    string `json:"uptime"`
	Loading   bool   `json:"loading"`
	Error     string `json:"error,omitempty"`
	Tokens    int    `json:"tokens"`
	Version   uint64 `json:"version"`
}

// NewEngine wires a store, loader, price feed and view model around src.
func NewEngine(logger *zap.Logger, cfg *config.Config, src loader.Source, opts ...feed.Option) (*Engine, error) {
	st := store.New()

	tokenLoader, err := loader.NewTokenLoader(logger, loader.NewClient(logger), st, src, loader.Options{
		StaleTime:       cfg.Loader.StaleTime,
		RefetchInterval: cfg.Loader.RefreshInterval,
		Timeout:         cfg.Loader.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create token loader: %w", err)
	}

	category, err := models.ParseCategory(cfg.View.DefaultCategory)
	if err != nil {
		return nil, err
	}
	sortKey, err := view.ParseSortKey(cfg.View.DefaultSortKey)
	if err != nil {
		return nil, err
	}
	tracker := view.NewTracker(cfg.View.HighlightWindow, nil)
	model, err := view.NewModel(logger, st, tracker, view.Query{
		Category: category,
		Sort:     view.SortSpec{Key: sortKey, Direction: view.Descending},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create view model: %w", err)
	}

	return &Engine{
		logger:    logger.Named("engine"),
		store:     st,
		loader:    tokenLoader,
		feed:      feed.NewSimulator(logger, st, cfg.Feed.TickInterval, opts...),
		model:     model,
		UUID:      uuid.NewString(),
		Name:      cfg.App.Name,
		StartTime: time.Now(),
	}, nil
}

// Model returns the view model that renders the store.
func (e *Engine) Model() *view.Model {
	return e.model
}

// Store returns the token store.
func (e *Engine) Store() *store.Store {
	return e.store
}

// Run loads tokens, runs the price feed and the view model until ctx is done.
// Nothing started by Run outlives it.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return errors.New("engine already running")
	}
	e.running = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	e.logger.Info("Starting token pulse engine", zap.String("uuid", e.UUID), zap.String("name", e.Name))

	modelDone := make(chan struct{})
	modelCtx, cancelModel := context.WithCancel(ctx)
	go func() {
		defer close(modelDone)
		e.model.Run(modelCtx)
	}()

	stopLoader := e.loader.Start()

	if err := e.feed.Start(ctx); err != nil {
		stopLoader()
		cancelModel()
		<-modelDone
		return fmt.Errorf("failed to start price feed: %w", err)
	}

	<-ctx.Done()
	e.logger.Info("Stopping token pulse engine...")

	e.feed.Stop()
	stopLoader()
	cancelModel()
	<-modelDone

	e.logger.Info("Engine stopped")
	return nil
}

// Reload forces a token refetch.
func (e *Engine) Reload(ctx context.Context) error {
	return e.loader.Reload(ctx)
}

// LoadedTokens returns the last fetched catalog tokens of one category, without simulated moves.
func (e *Engine) LoadedTokens(category models.Category) []models.Token {
	return e.loader.Select(category)
}

// SetTokenPrice applies an external price update. Unknown ids are ignored.
func (e *Engine) SetTokenPrice(id string, price, change24h float64) error {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidPrice, price)
	}
	if math.IsNaN(change24h) || math.IsInf(change24h, 0) {
		return fmt.Errorf("%w: change24h %v", ErrInvalidPrice, change24h)
	}
	e.store.UpdateTokenPrice(id, price, change24h)
	return nil
}

// Status reports identity, uptime and the current store state.
func (e *Engine) Status() Status {
	snap := e.store.Snapshot()
	return Status{
		UUID:      e.UUID,
		Name:      e.Name,
		StartTime: e.StartTime.Format(time.RFC3339),
		Uptime:    time.Since(e.StartTime).Round(time.Second).String(),
		Loading:   snap.Loading,
		Error:     snap.Error,
		Tokens:    len(snap.Items),
		Version:   snap.Version,
	}
}
