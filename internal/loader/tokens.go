package loader

import (
	"context"
	"fmt"
	"sync"

	"token-pulse/internal/models"
	"token-pulse/internal/store"
	"token-pulse/internal/view"

	"go.uber.org/zap"
)

// TokensKey is the query key of the full token universe.
const TokensKey = "tokens"

// Source fetches the full token universe.
type Source interface {
	FetchTokens(ctx context.Context) ([]models.Token, error)
}

// TokenLoader binds the "tokens" query to the token store.
type TokenLoader struct {
	logger *zap.Logger
	store  *store.Store
	query  *Query[[]models.Token]

	mu      sync.Mutex
	running bool
}

// NewTokenLoader registers the tokens query on client, fetching from src.
func NewTokenLoader(logger *zap.Logger, client *Client, st *store.Store, src Source, opts Options) (*TokenLoader, error) {
	q, err := Register(client, TokensKey, src.FetchTokens, opts)
	if err != nil {
		return nil, err
	}
	return &TokenLoader{
		logger: logger.Named("token-loader"),
		store:  st,
		query:  q,
	}, nil
}

// Query exposes the underlying cached query.
func (l *TokenLoader) Query() *Query[[]models.Token] {
	return l.query
}

// Start subscribes to the tokens query and mirrors its state into the store.
// The returned func unsubscribes and waits for the mirror to finish.
func (l *TokenLoader) Start() (stop func()) {
	results, unsubscribe := l.query.Subscribe()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	l.mu.Lock()
	l.running = true
	l.mu.Unlock()

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case r := <-results:
				l.apply(r)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			unsubscribe()
			cancel()
			<-done

			l.mu.Lock()
			l.running = false
			l.mu.Unlock()
		})
	}
}

// Reload forces a refetch. When the loader is not started the outcome is applied directly.
func (l *TokenLoader) Reload(ctx context.Context) error {
	l.mu.Lock()
	running := l.running
	l.mu.Unlock()

	_, err := l.query.Refetch(ctx)
	if !running && ctx.Err() == nil {
		l.apply(l.query.Result())
	}
	if err != nil {
		return fmt.Errorf("failed to reload tokens: %w", err)
	}
	return nil
}

// Select returns the loaded tokens of one category.
func (l *TokenLoader) Select(category models.Category) []models.Token {
	r := l.query.Result()
	if !r.HasData {
		return nil
	}
	return view.FilterCategory(r.Data, category)
}

func (l *TokenLoader) apply(r Result[[]models.Token]) {
	switch r.Status {
	case StatusPending:
		l.store.SetLoading(true)
	case StatusSuccess:
		l.store.Dispatch(store.SetTokens{Tokens: r.Data}, store.SetError{})
		l.logger.Info("Tokens loaded", zap.Int("count", len(r.Data)))
	case StatusError:
		l.store.Dispatch(store.SetLoading{Loading: false}, store.SetError{Message: r.Err.Error()})
		l.logger.Error("Token load failed", zap.Error(r.Err))
	}
}
