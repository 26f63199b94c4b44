package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/mcqlab/mcq-review/internal/config"
	"github.com/mcqlab/mcq-review/internal/handler"
	"github.com/mcqlab/mcq-review/internal/hub"
	"github.com/mcqlab/mcq-review/internal/logger"
	"github.com/mcqlab/mcq-review/internal/router"
	"github.com/mcqlab/mcq-review/internal/store"
	"github.com/mcqlab/mcq-review/internal/validator"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.Port).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Msg("Starting MCQ Review Server")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	// ─── State, Fan-out, Handlers ──────────────────────────────────────
	// The hub fans the full state out to every connection after each
	// accepted command; the store owns the state and is the only mutator.
	broadcastHub := hub.New(log)
	appStore := store.New(broadcastHub, log)

	handlers := &router.Handlers{
		WS:     handler.NewWSHandler(appStore, broadcastHub, log, cfg.AllowedOrigins),
		Upload: handler.NewUploadHandler(appStore, log, cfg.MaxUploadBytes),
		Export: handler.NewExportHandler(appStore, log),
		State:  handler.NewStateHandler(appStore),
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	// State lives only in process memory: shutdown loses it and every
	// client resynchronizes from the default state on reconnect.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
