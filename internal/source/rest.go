package source

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"token-pulse/internal/config"
	"token-pulse/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const maxRetries = 3

// ErrBadStatus is returned when the catalog answers with a non-retryable error status.
var ErrBadStatus = errors.New("unexpected response status")

// RestSource fetches the token universe from a remote catalog over HTTP.
type RestSource struct {
	client  *resty.Client
	logger  *zap.Logger
	limiter *rate.Limiter
	// backoff is the wait before retry attempt i when the server gives no Retry-After.
	backoff func(attempt int) time.Duration
}

// NewRestSource creates a catalog client for cfg.URL.
func NewRestSource(cfg config.Source, logger *zap.Logger) *RestSource {
	client := resty.New().
		SetBaseURL(cfg.URL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")

	logger = logger.Named("rest-source")
	logger.Info("Using remote token catalog", zap.String("url", cfg.URL))

	return &RestSource{
		client:  client,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst),
		backoff: exponentialBackoff,
	}
}

// exponentialBackoff waits 1s, 2s, 4s.
func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt))) * time.Second
}

// FetchTokens fetches all tokens and rejects the response if any category is unknown.
func (s *RestSource) FetchTokens(ctx context.Context) ([]models.Token, error) {
	var tokens []models.Token

	_, err := s.doRequest(ctx, http.MethodGet, "/tokens", func() *resty.Request {
		tokens = nil
		return s.client.R().SetContext(ctx).SetResult(&tokens)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tokens: %w", err)
	}

	for _, t := range tokens {
		if !t.Category.Valid() {
			return nil, fmt.Errorf("failed to fetch tokens: token %s has category %q: %w", t.ID, t.Category, models.ErrUnknownCategory)
		}
	}
	return tokens, nil
}

// doRequest executes a request with rate limiting and retries on 429/418, 5xx and transport errors.
func (s *RestSource) doRequest(ctx context.Context, method, url string, newReq func() *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error

	for i := 0; i < maxRetries; i++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		s.logger.Debug("Executing request", zap.String("method", method), zap.String("url", s.client.BaseURL+url))
		resp, err = newReq().Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		shouldRetry := false
		var retryAfter time.Duration

		if err == nil {
			statusCode := resp.StatusCode()
			switch {
			case statusCode == http.StatusTooManyRequests || statusCode == http.StatusTeapot:
				shouldRetry = true
				if seconds, perr := strconv.Atoi(resp.Header().Get("Retry-After")); perr == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			case statusCode >= http.StatusInternalServerError:
				shouldRetry = true
			}
			err = fmt.Errorf("%w %s: %s", ErrBadStatus, resp.Status(), resp.String())
		} else {
			shouldRetry = true
		}

		if !shouldRetry {
			return nil, err
		}
		if i == maxRetries-1 {
			break
		}

		if retryAfter == 0 {
			retryAfter = s.backoff(i)
		}

		s.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
}
