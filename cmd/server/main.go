package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/sirupsen/logrus"

	"github.com/example/train-booking/internal/config"
	httpapi "github.com/example/train-booking/internal/http"
	"github.com/example/train-booking/internal/logging"
	"github.com/example/train-booking/internal/storage"
)

var CLI struct {
	Config  string `help:"Optional YAML config file, overridden by environment variables." type:"path"`
	Migrate bool   `help:"Apply the catalog migration before serving (requires PG_DSN)."`
}

func main() {
	kong.Parse(&CLI)

	cfg, err := config.LoadServerConfig(CLI.Config)
	log := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.PGDSN != "" && (CLI.Migrate || cfg.RunMigrations) {
		migrate(ctx, cfg, log)
	}

	srv, err := httpapi.NewServerFromConfig(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("wiring server")
	}
	defer func() {
		if err := srv.Close(); err != nil {
			log.WithError(err).Warn("closing clients")
		}
	}()
	srv.Start(ctx, cfg.CatalogRefresh)

	httpSrv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("train-booking listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server stopped")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("graceful shutdown failed")
	}
}

func migrate(ctx context.Context, cfg config.ServerConfig, log *logrus.Logger) {
	path := filepath.Join(cfg.MigrationsDir, "001_create_catalog.sql")
	script, err := os.ReadFile(path)
	if err != nil {
		log.WithError(err).Warn("migration file not readable")
		return
	}
	ps, err := storage.NewPostgresStore(cfg.PGDSN)
	if err != nil {
		log.WithError(err).Warn("migration db open error")
		return
	}
	defer ps.Close()
	if err := ps.Migrate(ctx, string(script)); err != nil {
		log.WithError(err).Warn("migration exec error")
		return
	}
	log.WithField("file", filepath.Base(path)).Info("migration applied")
}
