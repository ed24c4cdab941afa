package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const SHUTDOWN_TIMEOUT = 10 * time.Second

func setupLogger(level string) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	parsed, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		log.Warn().Msgf("Invalid LOG_LEVEL '%s'. Using %s.", level, DEFAULT_LOG_LEVEL)
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	setupLogger(cfg.LogLevel)

	if err := os.MkdirAll(cfg.OutputFolder, 0755); err != nil {
		log.Fatal().Err(err).Str("folder", cfg.OutputFolder).Msg("failed to create output folder")
	}

	cache, err := newReferenceCache(cfg.CacheMaxBytes, cfg.CacheTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize reference cache")
	}
	defer cache.close()

	srv := &http.Server{
		Addr:         cfg.addr(),
		Handler:      newRouter(cfg, NewMorpher(cfg, cache)),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("addr", srv.Addr).Str("origin", cfg.AllowedOrigin).Msg("server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), SHUTDOWN_TIMEOUT)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
