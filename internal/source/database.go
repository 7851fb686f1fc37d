package source

import (
	"context"
	"fmt"
	"time"

	"token-pulse/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DatabaseSource reads the token universe from the local catalog after a simulated network latency.
type DatabaseSource struct {
	db      *gorm.DB
	logger  *zap.Logger
	latency time.Duration
}

// NewDatabaseSource creates a source over db. A zero latency answers immediately.
func NewDatabaseSource(db *gorm.DB, latency time.Duration, logger *zap.Logger) *DatabaseSource {
	return &DatabaseSource{
		db:      db,
		logger:  logger.Named("db-source"),
		latency: latency,
	}
}

func (s *DatabaseSource) FetchTokens(ctx context.Context) ([]models.Token, error) {
	if s.latency > 0 {
		timer := time.NewTimer(s.latency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	var tokens []models.Token
	if err := s.db.WithContext(ctx).Order("created_at, id").Find(&tokens).Error; err != nil {
		return nil, fmt.Errorf("failed to read tokens: %w", err)
	}
	s.logger.Debug("Fetched tokens from catalog", zap.Int("count", len(tokens)))
	return tokens, nil
}
