// Package gateway runs the bridge's HTTP surface: the voice-activity
// webhook, health and metrics endpoints.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/dar-kow/discord-bot-jira-work-log/internal/config"
	"github.com/dar-kow/discord-bot-jira-work-log/internal/logging"
)

// Server is the HTTP server for webhook ingestion and observability
// endpoints. Safe for concurrent use.
type Server struct {
	config  *config.ServerConfig
	webhook http.Handler
	metrics http.Handler
	limiter *RateLimiter

	server  *http.Server
	mu      sync.Mutex
	running bool
}

// NewServer creates the server. metricsHandler may be nil to disable the
// /metrics endpoint.
func NewServer(cfg *config.ServerConfig, webhook http.Handler, metricsHandler http.Handler, limiter *RateLimiter) *Server {
	return &Server{
		config:  cfg,
		webhook: webhook,
		metrics: metricsHandler,
		limiter: limiter,
	}
}

// Start starts the server and blocks until ctx is cancelled or the
// listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.running = true
	s.mu.Unlock()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/webhook/voice-activity", s.limiter.Middleware(s.webhook))
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logging.WithComponent("gateway").Info("http server starting", slog.String("addr", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Bound the rate limiter map while the server runs.
	housekeeping := time.NewTicker(5 * time.Minute)
	defer housekeeping.Stop()

	for {
		select {
		case err := <-errCh:
			return err
		case <-housekeeping.C:
			s.limiter.Prune(10 * time.Minute)
		case <-ctx.Done():
			return s.Shutdown()
		}
	}
}

// Shutdown gracefully stops the server with a 30-second timeout.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.running = false
	return s.server.Shutdown(ctx)
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
	})
}
