package server

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gdestore/backend/internal/auth"
	"github.com/gdestore/backend/internal/config"
	"github.com/gdestore/backend/internal/http/handlers"
	"github.com/gdestore/backend/internal/ledger"
	"github.com/gdestore/backend/internal/middleware"
	"github.com/gdestore/backend/internal/ratelimit"
	"github.com/gdestore/backend/internal/storage"
)

// Server wraps an http.Server with configured routes.
type Server struct {
	inner *http.Server
}

// New wires up middleware, routes, and returns a ready server.
func New(cfg config.Config, store storage.Store, log *logrus.Logger) *Server {
	mux := http.NewServeMux()

	engine := ledger.New(store)
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL())
	limiter := ratelimit.New(cfg.LoginRateLimit, cfg.LoginRateWindow)

	handlers.NewHealthHandler(time.Now()).Register(mux)
	handlers.NewAuthHandler(store, engine, tokens, limiter, log).Register(mux)
	handlers.NewGamesHandler(store, engine, log).Register(mux)
	handlers.NewAdminHandler(store, engine, log).Register(mux)

	handler := middleware.CORS(cfg.CORSOrigins, middleware.Logging(log, mux))

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &Server{inner: httpServer}
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	return s.inner.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}
