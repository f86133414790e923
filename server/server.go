package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"

	spartanfiles "github.com/brianalban07/spartanfiles.github.io"
	"github.com/brianalban07/spartanfiles.github.io/metrics/export/prometheus"
	"github.com/brianalban07/spartanfiles.github.io/middleware"
)

// ErrNilRepository is returned by New without a repository.
var ErrNilRepository = errors.New("server: nil repository")

// Repository is the part of *spartanfiles.Repository the HTTP layer calls.
type Repository interface {
	Authenticate(ctx context.Context, username, password string) (*spartanfiles.Session, error)
	Logout(ctx context.Context, token string) error
	Resolve(ctx context.Context, token string) (*spartanfiles.Principal, error)

	Tree(ctx context.Context) ([]spartanfiles.Listing, error)
	ListCategories(ctx context.Context, dept string) ([]string, error)
	ListFiles(ctx context.Context, dept, category string) ([]spartanfiles.FileInfo, error)
	Upload(ctx context.Context, dept, category, filename string, content io.Reader) (spartanfiles.FileInfo, error)
	Delete(ctx context.Context, dept, category, filename string) error
	Download(ctx context.Context, dept, category, filename string) (*spartanfiles.Download, error)

	Ping(ctx context.Context) error
	MetricsSnapshot() spartanfiles.MetricsSnapshot
}

// Server serves a Repository over HTTP.
type Server struct {
	repo       Repository
	cfg        Config
	logger     *slog.Logger
	handler    http.Handler
	httpServer *http.Server
	inShutdown atomic.Bool
}

// New wires the routes. A nil logger discards output.
func New(repo Repository, cfg Config, logger *slog.Logger) (*Server, error) {
	if repo == nil {
		return nil, ErrNilRepository
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Server{
		repo:   repo,
		cfg:    cfg.withDefaults(),
		logger: logger,
	}
	s.handler = withRequestID(withAccessLog(logger, withRecovery(logger, withSameOrigin(s.routes()))))
	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
	return s, nil
}

// Handler returns the full middleware-wrapped route tree.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() *http.ServeMux {
	p := s.cfg.Prefix
	mux := http.NewServeMux()

	guard := middleware.RequireSession(s.repo, middleware.SessionOptions{
		CookieName: s.cfg.CookieName,
		LoginURL:   p + "/login",
		TrustProxy: s.cfg.TrustProxy,
	})
	protect := func(h http.HandlerFunc) http.Handler { return guard(h) }

	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.cfg.ExposeMetrics {
		mux.Handle("GET "+p+"/metrics", prometheus.NewExporter(s.repo).Handler())
	}

	mux.HandleFunc("GET "+p+"/login", s.handleLoginPrompt)
	mux.HandleFunc("POST "+p+"/login", s.handleLogin)
	mux.HandleFunc("GET "+p+"/logout", s.handleLogout)
	mux.HandleFunc("POST "+p+"/logout", s.handleLogout)

	if p != "" {
		mux.Handle("GET "+p, http.RedirectHandler(p+"/", http.StatusMovedPermanently))
	}
	mux.Handle("GET "+p+"/{$}", protect(s.handleIndex))
	mux.Handle("GET "+p+"/{department}", protect(s.handleCategories))
	mux.Handle("GET "+p+"/{department}/{category}", protect(s.handleFiles))
	mux.Handle("POST "+p+"/{department}/{category}", protect(s.handleCategoryPost))
	mux.Handle("GET "+p+"/{department}/{category}/{filename}", protect(s.handleDownload))
	mux.Handle("DELETE "+p+"/{department}/{category}/{filename}", protect(s.handleDelete))

	return mux
}

// ListenAndServe listens on Config.Addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then drains in-flight requests for
// at most Config.ShutdownTimeout. A clean shutdown returns nil.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(ln)
	}()
	s.logger.Info("http server listening", "addr", ln.Addr().String(), "prefix", s.cfg.Prefix)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("http server shutting down")
	shutdownErr := s.Shutdown(context.WithoutCancel(ctx))
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return shutdownErr
}

// Shutdown stops accepting connections and waits for in-flight requests, bounded by
// Config.ShutdownTimeout. /healthz reports 503 from the moment it is called.
func (s *Server) Shutdown(ctx context.Context) error {
	s.inShutdown.Store(true)
	s.httpServer.SetKeepAlivesEnabled(false)

	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// IsShuttingDown reports whether Shutdown has been called.
func (s *Server) IsShuttingDown() bool {
	return s.inShutdown.Load()
}

func (s *Server) cookiePath() string {
	return s.cfg.Prefix + "/"
}
