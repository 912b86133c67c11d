// Command callagent serves the call scheduling page: a single list of customer
// calls with a create/edit form, kept in an in-memory SQLite database for the
// lifetime of the process.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-call-agent/internal/config"
	httpapi "github.com/tbourn/go-call-agent/internal/http"
	"github.com/tbourn/go-call-agent/internal/observability"
	"github.com/tbourn/go-call-agent/internal/repo"
	"github.com/tbourn/go-call-agent/internal/services"
	"github.com/tbourn/go-call-agent/internal/sysutil"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.MustLoad()
	version := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), "dev")

	sysutil.SetLogLevel(cfg.LogLevel)
	w, closeLog := sysutil.LogWriter(os.Stderr, cfg.LogPretty, cfg.LogFile)
	defer func() { _ = closeLog() }()
	log.Logger = sysutil.NewLogger(w, cfg.OTEL.ServiceName)

	shutdownOTel, err := observability.SetupOTel(rootCtx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := repo.OpenSQLite(cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("open database failed")
	}
	if err := observability.InstrumentDB(db, cfg.OTEL); err != nil {
		log.Fatal().Err(err).Msg("gorm tracing failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate failed")
	}
	if cfg.SeedSamples {
		if err := repo.SeedCalls(rootCtx, db, services.SampleCalls()); err != nil {
			log.Fatal().Err(err).Msg("seed failed")
		}
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("base_path", cfg.BasePath).
			Str("version", version).
			Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server failed")
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info().Msg("shutdown initiated")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	if err := shutdownOTel(ctx); err != nil {
		log.Warn().Err(err).Msg("otel shutdown failed")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
