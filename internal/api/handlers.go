package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"token-pulse/internal/models"
	"token-pulse/internal/pulse"
	"token-pulse/internal/view"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func (s *APIServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

func (s *APIServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.Status())
}

func (s *APIServer) frameHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.Model().Frame())
}

// PUT /api/view/category {"category":"new"}
func (s *APIServer) categoryHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Category string `json:"category"`
	}
	if !s.decode(w, r, &body) {
		return
	}

	category, err := models.ParseCategory(body.Category)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.engine.Model().SelectCategory(category); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.writeJSON(w, http.StatusOK, s.engine.Model().Frame())
}

// PUT /api/view/search {"term":"al"}
func (s *APIServer) searchHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Term string `json:"term"`
	}
	if !s.decode(w, r, &body) {
		return
	}

	s.engine.Model().SetSearchTerm(body.Term)
	s.writeJSON(w, http.StatusOK, s.engine.Model().Frame())
}

// POST /api/view/sort {"key":"price"}
func (s *APIServer) sortHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Key string `json:"key"`
	}
	if !s.decode(w, r, &body) {
		return
	}

	if err := s.engine.Model().SetSortKey(view.SortKey(body.Key)); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, view.ErrUnknownSortKey) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}
	s.writeJSON(w, http.StatusOK, s.engine.Model().Frame())
}

func (s *APIServer) toggleSortHandler(w http.ResponseWriter, r *http.Request) {
	s.engine.Model().ToggleSortDirection()
	s.writeJSON(w, http.StatusOK, s.engine.Model().Frame())
}

// GET /api/tokens?category=new
func (s *APIServer) loadedTokensHandler(w http.ResponseWriter, r *http.Request) {
	category, err := models.ParseCategory(r.URL.Query().Get("category"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	tokens := s.engine.LoadedTokens(category)
	if tokens == nil {
		tokens = []models.Token{}
	}
	s.writeJSON(w, http.StatusOK, tokens)
}

// PUT /api/tokens/{id}/price {"price":1.2,"change24h":3.4}
func (s *APIServer) priceHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body struct {
		Price     *float64 `json:"price"`
		Change24h *float64 `json:"change24h"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	if body.Price == nil || body.Change24h == nil {
		http.Error(w, "price and change24h are required", http.StatusBadRequest)
		return
	}

	if err := s.engine.SetTokenPrice(id, *body.Price, *body.Change24h); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, pulse.ErrInvalidPrice) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *APIServer) reloadHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Reload(r.Context()); err != nil {
		s.logger.Warn("Manual reload failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	s.writeJSON(w, http.StatusOK, s.engine.Status())
}

// decode reads a JSON body into v and answers 400 on failure.
func (s *APIServer) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return false
	}
	return true
}

func (s *APIServer) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to write response", zap.Error(err))
	}
}
