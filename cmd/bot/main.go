package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ai-mockup-studio/internal/config"
	"ai-mockup-studio/internal/gemini"
	"ai-mockup-studio/internal/handlers"
	"ai-mockup-studio/internal/httpclient"
	"ai-mockup-studio/internal/mediagroup"
	"ai-mockup-studio/internal/mockup"
	"ai-mockup-studio/internal/session"
	"ai-mockup-studio/internal/synthesis"
	"ai-mockup-studio/internal/telegram"
	"ai-mockup-studio/internal/upload"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if err := cfg.RequireTelegram(); err != nil {
		panic(err)
	}

	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tg, err := telegram.New(telegram.Options{
		Token: cfg.TelegramToken,
		HTTPClient: httpclient.New(httpclient.Options{
			PreferIPv4: cfg.PreferIPv4,
			Timeout:    cfg.HTTPTimeout,
			Name:       "telegram",
		}),
		Logger: logger,
		Debug:  cfg.Debug,
	})
	if err != nil {
		logger.Error("telegram init failed", "err", err)
		os.Exit(1)
	}

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

	handler := handlers.New(handlers.Options{
		Telegram:  tg,
		Sessions:  sessions,
		Validator: upload.NewValidator(),
		Logger:    logger,
	})

	sem := make(chan struct{}, cfg.MaxConcurrent)
	onGroupFlush := func(group mediagroup.Group) {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return
		}

		go func() {
			defer func() { <-sem }()

			reqCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
			defer cancel()

			handler.HandleMediaGroup(reqCtx, group)
		}()
	}

	aggregator := mediagroup.New(mediagroup.Options{
		Debounce: cfg.MediaGroupDebounce,
		OnFlush:  onGroupFlush,
		Logger:   logger,
	})
	defer aggregator.Stop()
	handler.SetMediaGroupAggregator(aggregator)

	logger.Info("bot started", "username", tg.Username(), "scene_model", cfg.SceneModel, "edit_model", cfg.EditModel)

	updates := tg.Updates(telegram.UpdatesOptions{
		Timeout: 30 * time.Second,
	})
	defer tg.StopUpdates()

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return
		case update, ok := <-updates:
			if !ok {
				logger.Info("updates channel closed")
				return
			}

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}

			go func(update telegram.Update) {
				defer func() { <-sem }()

				reqCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
				defer cancel()

				if err := handler.HandleUpdate(reqCtx, update); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("handle update failed", "err", err)
				}
			}(update)
		}
	}
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
