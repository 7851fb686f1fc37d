package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"token-pulse/internal/database"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// APIHandler holds dependencies for the catalog endpoints.
type APIHandler struct {
	log *zap.Logger
	db  *gorm.DB
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(log *zap.Logger, db *gorm.DB) *APIHandler {
	return &APIHandler{log: log.Named("catalog"), db: db}
}

// Routes builds the catalog router.
func (h *APIHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", h.HealthHandler)
	r.Route("/tokens", func(r chi.Router) {
		r.Get("/", h.TokensHandler)
		r.Get("/{id}", h.TokenHandler)
	})
	return r
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// TokensHandler returns the whole token universe.
func (h *APIHandler) TokensHandler(w http.ResponseWriter, r *http.Request) {
	tokens, err := database.ListTokens(h.db.WithContext(r.Context()))
	if err != nil {
		h.log.Error("Failed to get tokens from database", zap.Error(err))
		http.Error(w, "Failed to get tokens", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, tokens)
}

// TokenHandler returns one token by id.
func (h *APIHandler) TokenHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	token, err := database.GetToken(h.db.WithContext(r.Context()), id)
	if err != nil {
		h.log.Error("Failed to get token from database", zap.String("id", id), zap.Error(err))
		http.Error(w, "Failed to get token", http.StatusInternalServerError)
		return
	}
	if token == nil {
		http.Error(w, "Token not found", http.StatusNotFound)
		return
	}

	h.writeJSON(w, token)
}

func (h *APIHandler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to write response", zap.Error(err))
	}
}
