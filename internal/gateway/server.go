// Package gateway serves the console's views over local HTTP for browser
// dashboards and scripts.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/gofrs/flock"
	"github.com/larksync/larksync-console/internal/console"
	"github.com/larksync/larksync-console/internal/utils"
	"github.com/ulule/limiter/v3"
)

const shutdownTimeout = 5 * time.Second

var ErrGatewayRunning = errors.New("gateway: another gateway holds the lock")

type Config struct {
	Addr     string
	Token    string
	LockPath string
	Rate     limiter.Rate
}

type Server struct {
	config *Config
	server *http.Server
	hub    *LiveHub
	lock   *flock.Flock
}

// New builds a server. feed may be nil, in which case /v1/logs/live is not served.
func New(cfg *Config, c *console.Console, feed LiveFeed) *Server {
	var hub *LiveHub
	if feed != nil {
		hub = NewLiveHub(feed)
	}

	routes := SetupRoutes(c, hub, RouteConfig{Token: cfg.Token, Rate: cfg.Rate})

	s := &Server{
		config: cfg,
		hub:    hub,
		server: &http.Server{
			Addr:              cfg.Addr,
			Handler:           routes,
			ReadTimeout:       30 * time.Second,
			IdleTimeout:       120 * time.Second,
			ReadHeaderTimeout: 10 * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
	}
	if cfg.LockPath != "" {
		s.lock = flock.New(cfg.LockPath)
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start takes the lock, serves until ctx is done, then shuts down.
func (s *Server) Start(ctx context.Context) error {
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.release()

	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("gateway listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener, without the lock.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.hub != nil {
		go s.hub.Run(ctx)
	}

	slog.Info("gateway start", "addr", fmt.Sprintf("http://%s", ln.Addr()), "auth", s.config.Token != "")

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("gateway serve: %w", err)
	case <-ctx.Done():
	}

	slog.Info("gateway stop")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

func (s *Server) acquire() error {
	if s.lock == nil {
		return nil
	}
	if err := utils.EnsureParent(s.lock.Path()); err != nil {
		return err
	}

	locked, err := s.lock.TryLock()
	if err != nil {
		return fmt.Errorf("gateway lock: %w", err)
	}
	if !locked {
		return ErrGatewayRunning
	}
	return nil
}

func (s *Server) release() {
	if s.lock == nil || !s.lock.Locked() {
		return
	}
	if err := s.lock.Unlock(); err != nil {
		slog.Warn("gateway unlock", "error", err)
		return
	}
	_ = os.Remove(s.lock.Path())
}
