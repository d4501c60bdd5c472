package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/chatrelay/chatrelay/internal/config"
	"github.com/chatrelay/chatrelay/internal/provider"
	"github.com/chatrelay/chatrelay/internal/relay"
	"github.com/chatrelay/chatrelay/internal/telegram"
	"github.com/chatrelay/chatrelay/internal/transcript"
	"github.com/chatrelay/chatrelay/internal/window"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Connect to Telegram and answer messages (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := initConfig()
	if err != nil {
		return err
	}
	if err := errors.Join(cfg.Validate(), cfg.ValidateTelegram()); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting", "name", cfg.Personality.Name, "provider", cfg.Connections.Provider, "model", cfg.Model(), "config", cfg.Path)

	p, err := buildProvider(cfg, logger)
	if err != nil {
		return err
	}
	store, est, err := primeWindow(ctx, cfg, p, logger)
	if err != nil {
		return err
	}

	tg := cfg.Connections.TelegramAPI
	bot, err := telegram.New(telegram.Options{
		Token:          tg.Token,
		Username:       tg.Username,
		PhotoQuality:   tg.PhotoQuality,
		SendsPerSecond: tg.SendsPerSecond,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	rec, closeRec, err := openRecorder(cfg, logger)
	if err != nil {
		return err
	}
	defer closeRec()

	r := relay.New(relay.Options{
		Store:     store,
		Provider:  p,
		Sender:    bot,
		Images:    bot,
		Recorder:  rec,
		Estimator: est,
		Identity:  bot.Identity(cfg.Personality.Name, cfg.Personality.RespondToName),
		Settings:  relaySettings(cfg),
		Logger:    logger,
	})

	logger.Info("polling for updates")
	err = bot.Run(ctx, func(ctx context.Context, ev relay.Event) { r.Handle(ctx, ev) })
	logger.Info("stopped")
	return err
}

// primeWindow measures the system prompt with a priming call and returns
// the window store built around it.
func primeWindow(ctx context.Context, cfg *config.Config, p provider.Provider, logger *slog.Logger) (*window.Store, window.CostEstimator, error) {
	est, err := window.NewEstimator(string(cfg.Connections.OpenAIAPI.CostEstimator))
	if err != nil {
		return nil, nil, err
	}

	pctx, cancel := context.WithTimeout(ctx, cfg.Connections.OpenAIAPI.RequestTimeout)
	defer cancel()
	w, err := relay.Prime(pctx, p, cfg.Personality.Prompt, cfg.Model(), cfg.CompletionMaxTokens(), est, time.Now().UTC())
	if err != nil {
		return nil, nil, err
	}
	logger.Info("system prompt primed", "tokens", w.TotalCost())
	return window.NewStore(w, cfg.Budget(), nil), est, nil
}

// openRecorder opens the transcript log when one is configured. The
// returned close function is always safe to call.
func openRecorder(cfg *config.Config, logger *slog.Logger) (relay.Recorder, func(), error) {
	if cfg.Transcript.Path == "" {
		return nil, func() {}, nil
	}
	s, err := transcript.NewSQLiteStore(cfg.Transcript.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open transcript: %w", err)
	}
	logger.Info("recording transcript", "path", cfg.Transcript.Path)
	return s, func() { s.Close() }, nil
}

// relaySettings extracts the pipeline settings from cfg.
func relaySettings(cfg *config.Config) relay.Settings {
	o := cfg.Connections.OpenAIAPI
	tg := cfg.Connections.TelegramAPI
	return relay.Settings{
		Personality: cfg.Personality.Name,
		Model:       cfg.Model(),
		MaxTokens:   cfg.CompletionMaxTokens(),
		Limits: relay.Limits{
			MessageLengthLimit: tg.MessageLengthLimit,
			PhotoQuality:       tg.PhotoQuality,
		},
		VisionSupport:  o.VisionSupport,
		AllowPrivate:   tg.AllowPrivateMessages,
		AllowedChats:   tg.AllowedChats,
		RequestTimeout: o.RequestTimeout,
		Status: relay.StatusSettings{
			Name:          cfg.Personality.Name,
			Model:         cfg.Model(),
			TokensToKeep:  o.TokensToKeep,
			MinutesToKeep: o.MinutesToKeep,
		},
	}
}
