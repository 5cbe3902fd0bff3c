package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/semmidev/arxivsync/internal/infrastructure/logger"
)

// StatusServer exposes /metrics and /healthz while the scheduler runs.
type StatusServer struct {
	server *http.Server
	logger *logger.Logger
	addr   string
}

func NewStatusServer(addr string, metricsHandler http.Handler, log *logger.Logger) *StatusServer {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metricsHandler)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintln(w, "ok")
	})

	return &StatusServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: log,
	}
}

// Start binds the listener synchronously so address errors surface to the caller,
// then serves in a goroutine.
func (s *StatusServer) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}
	s.addr = ln.Addr().String()

	go func() {
		s.logger.Infof("Status server listening on %s", s.addr)
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Errorf("Status server error: %v", err)
		}
	}()

	return nil
}

// Addr is the bound address, useful when configured with port 0.
func (s *StatusServer) Addr() string {
	return s.addr
}

func (s *StatusServer) Shutdown(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown status server: %w", err)
	}
	s.logger.Infof("Status server stopped")
	return nil
}
