package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/mcqlab/mcq-review/internal/client"
	"github.com/mcqlab/mcq-review/internal/logger"
	"github.com/mcqlab/mcq-review/internal/model"
)

// A headless review client: connects, mirrors state, and logs convergence.
// Useful for watching a live server and for smoke-testing deployments.
func main() {
	_ = godotenv.Load()

	var (
		serverURL = flag.String("url", envOr("SERVER_URL", "ws://localhost:5000/ws"), "server /ws endpoint")
		username  = flag.String("username", envOr("USERNAME", ""), "reviewer username")
		role      = flag.String("role", envOr("ROLE", "user"), "admin or user")
		cachePath = flag.String("cache", envOr("CACHE_FILE", ""), "optional session cache file")
		logLevel  = flag.String("log-level", envOr("LOG_LEVEL", "info"), "log level")
		logFormat = flag.String("log-format", envOr("LOG_FORMAT", "pretty"), "pretty or json")
		smoke     = flag.Bool("smoke", false, "lock, tag, and unlock the first question once synchronized")
	)
	flag.Parse()

	log := logger.Setup(*logLevel, *logFormat)

	var session *client.Session
	var smokeOnce sync.Once

	session = client.NewSession(client.Config{
		URL:       *serverURL,
		Username:  *username,
		Role:      *role,
		CachePath: *cachePath,
		Log:       log,
		OnState: func(state model.AppState) {
			if state.CurrentCollectionIndex < 0 || state.CurrentCollectionIndex >= len(state.Collections) {
				return
			}
			current := state.Collections[state.CurrentCollectionIndex]
			log.Info().
				Int("collections", len(state.Collections)).
				Str("current", current.Name).
				Int("questions", len(current.Questions)).
				Int("locks", len(current.Locks)).
				Msg("State synchronized")
			for _, entry := range tail(current.ActivityLog, 3) {
				log.Debug().
					Str("user", entry.Username).
					Str("at", entry.Timestamp).
					Msg(model.FormatEvent(entry))
			}
			if *smoke && len(current.Questions) > 0 {
				smokeOnce.Do(func() {
					go runSmoke(session, current.Questions[0], log)
				})
			}
		},
		OnStatus: func(status string) {
			log.Info().Msg(status)
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := session.Run(ctx); err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("Session ended")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Mirrors the browser's unload path: release held locks before leaving.
	session.Close()
	log.Info().Msg("Session closed")
}

// runSmoke exercises the lock/update/unlock path against question 0 so a
// deployment can be verified end to end from the command line.
func runSmoke(session *client.Session, question model.Question, log zerolog.Logger) {
	if err := session.LockQuestion(0); err != nil {
		log.Error().Err(err).Msg("Smoke lock failed")
		return
	}
	question.Tag = "smoke-test"
	if err := session.UpdateQuestion(0, "tag", question); err != nil {
		log.Error().Err(err).Msg("Smoke update failed")
	}
	if err := session.UnlockQuestion(0); err != nil {
		log.Error().Err(err).Msg("Smoke unlock failed")
	}
	log.Info().Msg("Smoke sequence sent")
}

func tail(entries []model.ActivityEntry, n int) []model.ActivityEntry {
	if len(entries) <= n {
		return entries
	}
	return entries[len(entries)-n:]
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
