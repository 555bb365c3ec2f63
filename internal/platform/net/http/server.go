package http

import (
	"context"
	"errors"
	"net"
	stdhttp "net/http"
	"strings"
	"time"

	"authgate/internal/platform/config"
	"authgate/internal/platform/logger"

	"github.com/go-chi/chi/v5"
)

// Server is a thin wrapper over chi + stdlib http.Server
type Server struct {
	addr    string
	grace   time.Duration
	mux     *chi.Mux
	srv     *stdhttp.Server
	started chan struct{}
	bound   string
}

// NewServer reads PORT and SHUTDOWN_TIMEOUT from cfg
// opts receive the *chi.Mux so callers can mount routes/mw
func NewServer(cfg config.Conf, opts ...func(*chi.Mux)) *Server {
	addr := normalizeAddr(cfg.MayString("PORT", ":4000"))
	m := chi.NewRouter()
	for _, o := range opts {
		o(m)
	}
	return &Server{
		addr:    addr,
		grace:   cfg.MayDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		mux:     m,
		started: make(chan struct{}),
		srv: &stdhttp.Server{
			Addr:              addr,
			Handler:           m,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// normalizeAddr accepts "4000", ":4000" or "host:4000"
func normalizeAddr(s string) string {
	if strings.Contains(s, ":") {
		return s
	}
	return ":" + s
}

// Router returns a Router facade over the internal chi mux
func (s *Server) Router() Router { return AdaptChi(s.mux) }

// Addr returns the configured listening address
func (s *Server) Addr() string { return s.addr }

// Started is closed once the listener is bound
func (s *Server) Started() <-chan struct{} { return s.started }

// BoundAddr returns the actual listener address once Started is closed
func (s *Server) BoundAddr() string { return s.bound }

// Run serves until ctx is cancelled, then drains in-flight requests for up to
// the shutdown timeout
func (s *Server) Run(ctx context.Context) error {
	log := logger.Named("http")

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.bound = ln.Addr().String()
	close(s.started)
	log.Info().Str("addr", s.bound).Msg("http listening")

	errc := make(chan error, 1)
	go func() { errc <- s.srv.Serve(ln) }()

	select {
	case err := <-errc:
		if errors.Is(err, stdhttp.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), s.grace)
	defer cancel()
	log.Info().Dur("grace", s.grace).Msg("http shutting down")
	if err := s.srv.Shutdown(sctx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error { return s.srv.Shutdown(ctx) }
