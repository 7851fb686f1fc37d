package source

import (
	"context"
	"testing"
	"time"

	"token-pulse/internal/database"
	"token-pulse/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupCatalog(t *testing.T, tokens []models.Token) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.AutoMigrate(db))
	_, err = database.Seed(db, tokens)
	require.NoError(t, err)
	return db
}

func TestDatabaseSource_FetchTokens(t *testing.T) {
	db := setupCatalog(t, []models.Token{
		{ID: "a", Name: "Alpha", Symbol: "ALP", Category: models.CategoryNew, Price: 1},
		{ID: "b", Name: "Beta", Symbol: "BET", Category: models.CategoryFinal, Price: 2},
	})
	src := NewDatabaseSource(db, 0, zap.NewNop())

	tokens, err := src.FetchTokens(context.Background())

	require.NoError(t, err)
	assert.Len(t, tokens, 2)
	ids := []string{tokens[0].ID, tokens[1].ID}
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}

func TestDatabaseSource_Latency(t *testing.T) {
	db := setupCatalog(t, database.InitialTokens())

	t.Run("WaitsBeforeAnswering", func(t *testing.T) {
		src := NewDatabaseSource(db, 30*time.Millisecond, zap.NewNop())

		start := time.Now()
		tokens, err := src.FetchTokens(context.Background())

		require.NoError(t, err)
		assert.Len(t, tokens, len(database.InitialTokens()))
		assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	})

	t.Run("CancelledDuringLatency", func(t *testing.T) {
		src := NewDatabaseSource(db, time.Minute, zap.NewNop())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		tokens, err := src.FetchTokens(ctx)

		assert.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, tokens)
	})
}
