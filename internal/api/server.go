package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"token-pulse/internal/pulse"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// APIServer provides an HTTP and WebSocket interface for the pulse engine.
type APIServer struct {
	server   *http.Server
	engine   *pulse.Engine
	logger   *zap.Logger
	upgrader websocket.Upgrader

	// shutdown is closed by Stop to end hijacked WebSocket connections.
	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// NewAPIServer creates a new APIServer listening on port.
func NewAPIServer(engine *pulse.Engine, port int, logger *zap.Logger) *APIServer {
	s := &APIServer{
		engine:   engine,
		logger:   logger.Named("api-server"),
		shutdown: make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The display is served from anywhere during development.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Routes builds the router.
func (s *APIServer) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.healthHandler)
	r.Get("/ws", s.wsHandler)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.statusHandler)

		r.Route("/view", func(r chi.Router) {
			r.Get("/", s.frameHandler)
			r.Put("/category", s.categoryHandler)
			r.Put("/search", s.searchHandler)
			r.Post("/sort", s.sortHandler)
			r.Post("/sort/toggle", s.toggleSortHandler)
		})

		r.Route("/tokens", func(r chi.Router) {
			r.Get("/", s.loadedTokensHandler)
			r.Put("/{id}/price", s.priceHandler)
			r.Post("/reload", s.reloadHandler)
		})
	})

	return r
}

// Start runs the HTTP server in a new goroutine.
func (s *APIServer) Start() {
	s.logger.Info("Starting API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server failed", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *APIServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server...")
	s.shutdownOnce.Do(func() { close(s.shutdown) })
	return s.server.Shutdown(ctx)
}

func (s *APIServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("Request served",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
