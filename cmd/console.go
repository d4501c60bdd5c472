package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chatrelay/chatrelay/internal/console"
	"github.com/chatrelay/chatrelay/internal/relay"
)

func newConsoleCmd() *cobra.Command {
	var author string
	cmd := &cobra.Command{
		Use:   "console",
		Short: "Chat with the configured personality from the terminal",
		Long: "Runs the same pipeline as serve with stdin/stdout in place of Telegram.\n" +
			"Lines are sent as private messages; prefix with /group to send a group message,\n" +
			"use /image <path> [caption] to send a local picture and /quit to leave.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsole(cmd.Context(), author)
		},
	}
	cmd.Flags().StringVar(&author, "as", "You", "display name used for your messages")
	return cmd
}

func runConsole(ctx context.Context, author string) error {
	cfg, err := initConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	p, err := buildProvider(cfg, logger)
	if err != nil {
		return err
	}
	store, est, err := primeWindow(ctx, cfg, p, logger)
	if err != nil {
		return err
	}
	rec, closeRec, err := openRecorder(cfg, logger)
	if err != nil {
		return err
	}
	defer closeRec()

	handle := cfg.Connections.TelegramAPI.Username
	if handle == "" {
		handle = "@" + cfg.Personality.Name
	}
	term := console.New(os.Stdin, os.Stdout, author, cfg.Personality.Name)
	r := relay.New(relay.Options{
		Store:     store,
		Provider:  p,
		Sender:    term,
		Images:    term,
		Recorder:  rec,
		Estimator: est,
		Identity:  console.Identity(handle, cfg.Personality.Name, cfg.Personality.RespondToName),
		Settings:  relaySettings(cfg),
		Logger:    logger,
	})

	fmt.Printf("Talking to %s (%s). Type /quit to leave.\n", cfg.Personality.Name, cfg.Model())
	return term.Run(ctx, func(ctx context.Context, ev relay.Event) { r.Handle(ctx, ev) })
}
