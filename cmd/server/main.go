// Command server runs the lab reference-data and patient-link API.
//
// It loads configuration from the environment (a local .env is honored in
// development), opens the SQLite database, warms the reference caches, starts
// the hourly cache refresh scheduler, and serves HTTP until interrupted.
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-lab-backend/internal/config"
	httpapi "github.com/tbourn/go-lab-backend/internal/http"
	"github.com/tbourn/go-lab-backend/internal/observability"
	"github.com/tbourn/go-lab-backend/internal/refdata"
	"github.com/tbourn/go-lab-backend/internal/repo"
	"github.com/tbourn/go-lab-backend/internal/services"
	"github.com/tbourn/go-lab-backend/internal/sysutil"
)

const version = "1.0.0"

func main() {
	// Optional .env for local development. Missing file is fine.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate failed")
	}
	log.Info().Str("path", cfg.DBPath).Msg("database ready")

	refSvc := services.NewReferenceDataService(db, repo.ReferenceStore{})

	sched := refdata.NewScheduler(cfg.RefreshInterval, log.Logger)
	for _, ks := range refSvc.KeySpaces() {
		sched.Add(ks)
	}
	sched.Start(ctx)
	defer sched.Stop()

	r := gin.New()
	httpapi.RegisterRoutes(r, db, refSvc, cfg)

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("base_path", cfg.APIBasePath).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("server error")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}

	sched.Stop()
	if err := shutdownOTel(shutCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown failed")
	}
	log.Info().Msg("server stopped")
}
