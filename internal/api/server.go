// SPDX-License-Identifier: MIT

// Package api exposes the relay over HTTP: one streaming audio endpoint
// plus health and metrics plumbing.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/soundscope/ytrelay/internal/cache"
	"github.com/soundscope/ytrelay/internal/config"
	"github.com/soundscope/ytrelay/internal/extract"
	"github.com/soundscope/ytrelay/internal/health"
	"github.com/soundscope/ytrelay/internal/relay"
)

// Server is the HTTP front of the relay daemon.
type Server struct {
	cfg        config.Config
	backend    extract.Backend
	relay      *relay.Relay
	cache      *cache.Manifests // nil when no Redis is configured
	health     *health.Manager
	logger     zerolog.Logger
	httpServer *http.Server
}

// Option configures optional Server collaborators.
type Option func(*Server)

// WithCache attaches a manifest cache.
func WithCache(c *cache.Manifests) Option {
	return func(s *Server) { s.cache = c }
}

// New wires the server. The relay policy follows cfg.RangePolicy.
func New(cfg config.Config, backend extract.Backend, hm *health.Manager, logger zerolog.Logger, opts ...Option) *Server {
	policy := relay.RangeForward
	if cfg.RangePolicy == config.RangeIgnore {
		policy = relay.RangeIgnore
	}

	s := &Server{
		cfg:     cfg,
		backend: backend,
		relay:   relay.New(backend, policy, logger.With().Str("component", "relay").Logger()),
		health:  hm,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.router(),
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		// Streaming bodies are unbounded; no write timeout.
		WriteTimeout:   0,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	return s
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()

	r.Use(Recoverer)
	r.Use(RequestID)
	r.Use(CORS)
	r.Use(Metrics)

	r.Group(func(r chi.Router) {
		r.Use(RateLimit(s.cfg.RateLimitRPM, s.cfg.TrustProxy))
		r.Get("/api/audio", s.handleAudio)
		r.Head("/api/audio", s.handleAudio)
	})

	r.Get("/healthz", s.health.Healthz)
	r.Get("/readyz", s.health.Readyz)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// Router exposes the handler tree for tests.
func (s *Server) Router() http.Handler {
	return s.httpServer.Handler
}

// Start serves until Shutdown or a listener error.
func (s *Server) Start() error {
	s.logger.Info().
		Str("addr", s.cfg.ListenAddr).
		Str("backend", s.backend.Name()).
		Str("range_policy", s.cfg.RangePolicy).
		Msg("starting relay server")

	s.health.SetReady(true)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("relay server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight sessions and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.health.SetReady(false)
	s.logger.Info().Msg("shutting down relay server")
	return s.httpServer.Shutdown(ctx)
}
