package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ai-mockup-studio/internal/config"
	"ai-mockup-studio/internal/gemini"
	"ai-mockup-studio/internal/httpclient"
	"ai-mockup-studio/internal/mockup"
	"ai-mockup-studio/internal/session"
	"ai-mockup-studio/internal/synthesis"
	"ai-mockup-studio/internal/upload"
	"ai-mockup-studio/internal/web"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gem, err := gemini.New(ctx, gemini.Options{
		APIKey:      cfg.GeminiAPIKey,
		BaseURL:     cfg.GeminiBaseURL,
		APIVersion:  cfg.GeminiAPIVersion,
		SceneModel:  cfg.SceneModel,
		EditModel:   cfg.EditModel,
		Parallelism: cfg.SceneParallelism,
		HTTPClient: httpclient.New(httpclient.Options{
			PreferIPv4: cfg.PreferIPv4,
			Timeout:    cfg.HTTPTimeout,
			Name:       "gemini",
		}),
		Logger: logger,
	})
	if err != nil {
		logger.Error("gemini init failed", "err", err)
		os.Exit(1)
	}

	synth := synthesis.New(synthesis.Options{
		Provider:    gem,
		Timeout:     cfg.CallTimeout,
		MinInterval: cfg.MinCallInterval,
		Logger:      logger,
	})

	sessions := session.NewStore(session.Options{
		TTL: cfg.SessionTTL,
		NewOrchestrator: func(id string) *mockup.Orchestrator {
			return mockup.New(mockup.Options{
				ID:          id,
				Synthesizer: synth,
				Logger:      logger,
				OnChange: func(snap mockup.Snapshot) {
					logger.Debug("session changed", "session", id, "stage", snap.Stage.String(), "version", snap.Version)
				},
			})
		},
		Logger: logger,
	})

	s := web.New(web.Options{
		Sessions:       sessions,
		Validator:      upload.NewValidator(),
		Logger:         logger,
		BaseContext:    ctx,
		RequestTimeout: cfg.RequestTimeout,
	})

	srv := &http.Server{
		Addr:              cfg.WebAddr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "err", err)
		}
	}()

	logger.Info("web started", "addr", cfg.WebAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
	logger.Info("shutting down")
}

func newLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
}
