package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"borsatahmin/config"
	"borsatahmin/db"
	"borsatahmin/logger"
	"borsatahmin/market"
	"borsatahmin/ml"
	"borsatahmin/monitoring"
	"borsatahmin/pipeline"
	"borsatahmin/trading"
)

// Server exposes the prediction and recommendation pipeline over HTTP.
type Server struct {
	server *http.Server

	cfg         *config.Config
	engine      *pipeline.Engine
	recommender *trading.Recommender
	regime      *market.RegimeDetector
	fetcher     *market.Fetcher
	store       *ml.Store
	history     *db.Store
	hub         *monitoring.Hub
}

// Deps carries everything the handlers need. history may be nil.
type Deps struct {
	Cfg         *config.Config
	Engine      *pipeline.Engine
	Recommender *trading.Recommender
	Regime      *market.RegimeDetector
	Fetcher     *market.Fetcher
	Store       *ml.Store
	History     *db.Store
	Hub         *monitoring.Hub
}

func NewServer(deps Deps) *Server {
	s := &Server{
		cfg:         deps.Cfg,
		engine:      deps.Engine,
		recommender: deps.Recommender,
		regime:      deps.Regime,
		fetcher:     deps.Fetcher,
		store:       deps.Store,
		history:     deps.History,
		hub:         deps.Hub,
	}

	mux := http.NewServeMux()
	s.registerHandlers(mux)

	chain := Chain(
		RecoveryMiddleware,
		LoggerMiddleware,
		CORSMiddleware,
	)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", deps.Cfg.Http.Port),
		Handler:      chain(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Start blocks serving requests until Stop or a listener error.
func (s *Server) Start() error {
	logger.L().Infow("http server starting", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Stop drains in-flight requests with a short grace period.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger.L().Info("http server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.server.Addr
}
