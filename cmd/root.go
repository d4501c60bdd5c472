package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chatrelay/chatrelay/internal/config"
	"github.com/chatrelay/chatrelay/internal/logging"
	"github.com/chatrelay/chatrelay/internal/provider"
)

var (
	cfgFile      string
	modelFlag    string
	providerFlag string
	logLevelFlag string
)

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	rootCmd := &cobra.Command{
		Use:   "chatrelay",
		Short: "Relay Telegram conversations to a hosted language model",
		Long: "chatrelay answers Telegram messages addressed to a bot using an OpenAI-compatible\n" +
			"or Anthropic completion API, keeping a bounded shared conversation window.",
		// Running chatrelay with no subcommand starts the bot.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default ./appsettings.yaml, then ~/.config/chatrelay/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&modelFlag, "model", "m", "", "override model")
	rootCmd.PersistentFlags().StringVarP(&providerFlag, "provider", "p", "", "override provider")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "override log level (debug, info, warn, error)")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newConsoleCmd())
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newTranscriptCmd())
	rootCmd.AddCommand(newVersionCmd(version, commit, date))

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// initConfig loads configuration, applying CLI flag overrides.
func initConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if providerFlag != "" {
		cfg.Connections.Provider = providerFlag
	}
	if modelFlag != "" {
		cfg.SetModel(modelFlag)
	}
	if logLevelFlag != "" {
		cfg.Log.Level = logLevelFlag
	}
	return cfg, nil
}

// newLogger builds the process logger from cfg and installs it as the
// slog default.
func newLogger(cfg *config.Config) (*slog.Logger, error) {
	logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return logger, nil
}

// providerBaseURLs maps OpenAI-compatible provider names to their base URLs.
var providerBaseURLs = map[string]string{
	"openai":     "",
	"deepseek":   "https://api.deepseek.com",
	"kimi":       "https://api.moonshot.cn/v1",
	"qwen":       "https://dashscope.aliyuncs.com/compatible-mode/v1",
	"groq":       "https://api.groq.com/openai/v1",
	"openrouter": "https://openrouter.ai/api/v1",
}

// buildProvider creates the completion provider selected by cfg, wrapped
// with retries.
func buildProvider(cfg *config.Config, logger *slog.Logger) (provider.Provider, error) {
	name := strings.ToLower(cfg.Connections.Provider)
	o := cfg.Connections.OpenAIAPI

	var p provider.Provider
	switch name {
	case "anthropic":
		a := cfg.Connections.AnthropicAPI
		if a.Token == "" {
			return nil, fmt.Errorf(
				"API key not configured for provider %q.\n"+
					"Set it via:\n"+
					"  - config file: connections.anthropic_api.token\n"+
					"  - environment: ANTHROPIC_API_KEY\n"+
					"  - run: chatrelay init",
				name,
			)
		}
		p = provider.NewAnthropicProvider(a.Token, a.BaseURL, a.Model)
	default:
		// All other providers use the OpenAI-compatible API.
		baseURL := o.BaseURL
		if baseURL == "" {
			u, ok := providerBaseURLs[name]
			if !ok {
				return nil, fmt.Errorf("unknown provider %q; set connections.openai_api.base_url in config", name)
			}
			baseURL = u
		}
		if o.Token == "" && o.BaseURL == "" {
			return nil, fmt.Errorf(
				"API key not configured for provider %q.\n"+
					"Set it via:\n"+
					"  - config file: connections.openai_api.token\n"+
					"  - environment: OPENAI_API_KEY or LLM_API_KEY\n"+
					"  - run: chatrelay init",
				name,
			)
		}
		p = provider.NewOpenAIProvider(o.Token, baseURL, o.Model)
	}
	return provider.WithRetry(p, o.MaxRetries, logger), nil
}
