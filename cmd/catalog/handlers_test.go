package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"token-pulse/internal/database"
	"token-pulse/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupHandler(t *testing.T) *APIHandler {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.AutoMigrate(db))
	_, err = database.Seed(db, []models.Token{
		{ID: "a", Name: "Alpha", Symbol: "ALP", Category: models.CategoryNew, Price: 1.25, Change24h: 3, MarketCap: 100},
		{ID: "b", Name: "Beta", Symbol: "BET", Category: models.CategoryMigrated, Price: 7, Change24h: -1},
	})
	require.NoError(t, err)
	return NewAPIHandler(zap.NewNop(), db)
}

func TestTokensHandler(t *testing.T) {
	h := setupHandler(t)
	rec := httptest.NewRecorder()

	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tokens", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var tokens []models.Token
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tokens))
	require.Len(t, tokens, 2)
	assert.Contains(t, rec.Body.String(), `"marketCap":100`)
	assert.Contains(t, rec.Body.String(), `"change24h":3`)
}

func TestTokenHandler(t *testing.T) {
	h := setupHandler(t)

	t.Run("Found", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tokens/b", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var tok models.Token
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tok))
		assert.Equal(t, "BET", tok.Symbol)
		assert.Equal(t, models.CategoryMigrated, tok.Category)
	})

	t.Run("NotFound", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tokens/zzz", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHealthHandler(t *testing.T) {
	h := setupHandler(t)
	rec := httptest.NewRecorder()

	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK\n", rec.Body.String())
}
