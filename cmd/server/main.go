package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/gdestore/backend/internal/config"
	"github.com/gdestore/backend/internal/server"
	"github.com/gdestore/backend/internal/storage"
	"github.com/gdestore/backend/internal/storage/postgres"
	"github.com/gdestore/backend/internal/storage/sqlite"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	loadLocalEnv(log)

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("load config")
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	ctx := context.Background()
	store, closeStore, err := openStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("init database")
	}
	defer closeStore()

	srv := server.New(cfg, store, log)

	go func() {
		log.WithField("addr", cfg.HTTPAddress()).Info("storefront backend listening")
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("http server error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.WithError(err).Error("graceful shutdown")
	}
}

// openStore picks the backend from the URL scheme: postgres:// connects a
// pool, anything else is treated as a SQLite path.
func openStore(ctx context.Context, databaseURL string) (storage.Store, func(), error) {
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		store, err := postgres.New(ctx, databaseURL)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}
	store, err := sqlite.Open(databaseURL)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { _ = store.Close() }, nil
}

func loadLocalEnv(log *logrus.Logger) {
	if err := godotenv.Load(); err != nil {
		log.Info("no .env file found; relying on existing environment")
	}
}
