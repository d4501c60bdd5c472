// Package config loads and validates chatrelay settings.
// Sources, from highest to lowest priority:
//  1. environment variables (OPENAI_API_KEY, LLM_API_KEY, TELEGRAM_BOT_TOKEN, ...)
//  2. the file named by --config
//  3. ./appsettings.yaml
//  4. ~/.config/chatrelay/config.yaml
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chatrelay/chatrelay/internal/window"
)

// PhotoQuality selects which of Telegram's photo sizes is fetched.
type PhotoQuality int

const (
	PhotoLow PhotoQuality = iota
	PhotoMedium
	PhotoHigh
)

func (q PhotoQuality) String() string {
	switch q {
	case PhotoLow:
		return "low"
	case PhotoMedium:
		return "medium"
	case PhotoHigh:
		return "high"
	default:
		return "PhotoQuality(" + strconv.Itoa(int(q)) + ")"
	}
}

// ParsePhotoQuality accepts "low", "medium", "high" (any case) or 0..2.
func ParsePhotoQuality(s string) (PhotoQuality, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low", "0":
		return PhotoLow, nil
	case "medium", "1":
		return PhotoMedium, nil
	case "high", "2":
		return PhotoHigh, nil
	}
	return 0, fmt.Errorf("unknown photo quality %q (want low, medium or high)", s)
}

func (q *PhotoQuality) UnmarshalYAML(node *yaml.Node) error {
	v, err := ParsePhotoQuality(node.Value)
	if err != nil {
		return err
	}
	*q = v
	return nil
}

func (q PhotoQuality) MarshalYAML() (any, error) { return q.String(), nil }

// Detail maps the quality to the vision detail level sent to the model.
func (q PhotoQuality) Detail() window.Detail {
	if q == PhotoLow {
		return window.DetailLow
	}
	return window.DetailHigh
}

// EstimatorKind names a window.CostEstimator.
type EstimatorKind string

func (k *EstimatorKind) UnmarshalYAML(node *yaml.Node) error {
	switch strings.ToLower(strings.TrimSpace(node.Value)) {
	case "", window.EstimatorUsage, "0":
		*k = window.EstimatorUsage
	case window.EstimatorChars, "1":
		*k = window.EstimatorChars
	default:
		return fmt.Errorf("unknown cost estimator %q (want usage or chars)", node.Value)
	}
	return nil
}

// Personality describes who the bot is.
type Personality struct {
	Name          string `yaml:"name"`
	Prompt        string `yaml:"prompt"`
	RespondToName bool   `yaml:"respond_to_name"`
}

// OpenAIAPI holds the completion settings. The window budgets live here for
// every provider.
type OpenAIAPI struct {
	Token          string        `yaml:"token"`
	BaseURL        string        `yaml:"base_url"`
	Model          string        `yaml:"model"`
	MinutesToKeep  int           `yaml:"minutes_to_keep"`
	TokensToKeep   int           `yaml:"tokens_to_keep"`
	MaxTokens      int           `yaml:"max_tokens"`
	VisionSupport  bool          `yaml:"vision_support"`
	CostEstimator  EstimatorKind `yaml:"cost_estimator"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxRetries     int           `yaml:"max_retries"`
}

// AnthropicAPI holds credentials for the Anthropic Messages API.
type AnthropicAPI struct {
	Token   string `yaml:"token"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// TelegramAPI holds the bot connection and admission settings.
type TelegramAPI struct {
	Token                string       `yaml:"token"`
	Username             string       `yaml:"username"`
	AllowedChats         []int64      `yaml:"allowed_chats"`
	MessageLengthLimit   int          `yaml:"message_length_limit"`
	AllowPrivateMessages bool         `yaml:"allow_private_messages"`
	PhotoQuality         PhotoQuality `yaml:"photo_quality"`
	SendsPerSecond       float64      `yaml:"sends_per_second"`
}

type Connections struct {
	// Provider: "openai" | "anthropic" | any OpenAI-compatible name.
	Provider     string       `yaml:"provider"`
	OpenAIAPI    OpenAIAPI    `yaml:"openai_api"`
	AnthropicAPI AnthropicAPI `yaml:"anthropic_api"`
	TelegramAPI  TelegramAPI  `yaml:"telegram_api"`
}

type TranscriptConfig struct {
	// Path of the SQLite exchange log; empty disables it.
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // auto | text | json
}

// Config is the complete chatrelay configuration.
type Config struct {
	Personality Personality      `yaml:"personality"`
	Connections Connections      `yaml:"connections"`
	Transcript  TranscriptConfig `yaml:"transcript"`
	Log         LogConfig        `yaml:"log"`

	// Path is the file the config was read from, empty when none was found.
	Path string `yaml:"-"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Personality: Personality{
			Name:   "Assistant",
			Prompt: "You are a helpful assistant taking part in a group chat.",
		},
		Connections: Connections{
			Provider: "openai",
			OpenAIAPI: OpenAIAPI{
				Model:          "gpt-4o-mini",
				MinutesToKeep:  60,
				TokensToKeep:   4000,
				CostEstimator:  window.EstimatorUsage,
				RequestTimeout: 60 * time.Second,
				MaxRetries:     3,
			},
			AnthropicAPI: AnthropicAPI{
				Model: "claude-sonnet-4-20250514",
			},
			TelegramAPI: TelegramAPI{
				MessageLengthLimit:   500,
				AllowPrivateMessages: true,
				PhotoQuality:         PhotoMedium,
				SendsPerSecond:       25,
			},
		},
		Log: LogConfig{Level: "info", Format: "auto"},
	}
}

// DefaultPaths lists the files Load tries when no path is given.
func DefaultPaths() []string {
	paths := []string{"appsettings.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "chatrelay", "config.yaml"))
	}
	return paths
}

// Load reads the config file and applies environment overrides. An explicit
// configPath must exist; otherwise the first existing default path is used,
// and defaults apply when none exists.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	var data []byte
	if configPath != "" {
		b, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		data = b
	} else {
		for _, p := range DefaultPaths() {
			if b, err := os.ReadFile(p); err == nil {
				data, configPath = b, p
				break
			}
		}
	}

	if data != nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
		}
		cfg.Path = configPath
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides copies environment variables over file values.
func applyEnvOverrides(cfg *Config) {
	// Provider selection first so LLM_MODEL lands on the right section.
	if v := os.Getenv("CHATRELAY_PROVIDER"); v != "" {
		cfg.Connections.Provider = v
	}

	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Connections.OpenAIAPI.Token = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.Connections.OpenAIAPI.Token = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.Connections.OpenAIAPI.BaseURL = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.SetModel(v)
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.Connections.AnthropicAPI.Token = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Connections.TelegramAPI.Token = v
	}
	if v := os.Getenv("CHATRELAY_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

// IsAnthropic reports whether the Anthropic Messages API is selected.
func (c *Config) IsAnthropic() bool {
	return strings.EqualFold(c.Connections.Provider, "anthropic")
}

// Model returns the model of the selected provider.
func (c *Config) Model() string {
	if c.IsAnthropic() {
		return c.Connections.AnthropicAPI.Model
	}
	return c.Connections.OpenAIAPI.Model
}

// SetModel overrides the model of the selected provider.
func (c *Config) SetModel(m string) {
	if c.IsAnthropic() {
		c.Connections.AnthropicAPI.Model = m
		return
	}
	c.Connections.OpenAIAPI.Model = m
}

// Budget returns the eviction budget.
func (c *Config) Budget() window.Budget {
	return window.Budget{
		MaxAge:    time.Duration(c.Connections.OpenAIAPI.MinutesToKeep) * time.Minute,
		MaxTokens: c.Connections.OpenAIAPI.TokensToKeep,
	}
}

// CompletionMaxTokens is the completion cap; 0 falls back to tokens_to_keep.
func (c *Config) CompletionMaxTokens() int {
	if c.Connections.OpenAIAPI.MaxTokens > 0 {
		return c.Connections.OpenAIAPI.MaxTokens
	}
	return c.Connections.OpenAIAPI.TokensToKeep
}

// Validate reports every problem with the provider and window settings.
func (c *Config) Validate() error {
	var errs []error
	o := c.Connections.OpenAIAPI

	if strings.TrimSpace(c.Personality.Name) == "" {
		errs = append(errs, errors.New("personality.name is required"))
	}
	if strings.TrimSpace(c.Personality.Prompt) == "" {
		errs = append(errs, errors.New("personality.prompt is required"))
	}
	if c.IsAnthropic() {
		if c.Connections.AnthropicAPI.Token == "" {
			errs = append(errs, errors.New("connections.anthropic_api.token is required (or set ANTHROPIC_API_KEY)"))
		}
	} else if o.Token == "" && o.BaseURL == "" {
		errs = append(errs, errors.New("connections.openai_api.token is required (or set OPENAI_API_KEY)"))
	}
	if c.Model() == "" {
		errs = append(errs, errors.New("model is required"))
	}
	if o.MinutesToKeep < 0 {
		errs = append(errs, fmt.Errorf("connections.openai_api.minutes_to_keep must be >= 0, got %d", o.MinutesToKeep))
	}
	if o.TokensToKeep < 0 {
		errs = append(errs, fmt.Errorf("connections.openai_api.tokens_to_keep must be >= 0, got %d", o.TokensToKeep))
	}
	if o.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("connections.openai_api.max_tokens must be >= 0, got %d", o.MaxTokens))
	}
	if o.RequestTimeout <= 0 {
		errs = append(errs, errors.New("connections.openai_api.request_timeout must be positive"))
	}
	if _, err := window.NewEstimator(string(o.CostEstimator)); err != nil {
		errs = append(errs, err)
	}
	if c.Connections.TelegramAPI.MessageLengthLimit <= 0 {
		errs = append(errs, errors.New("connections.telegram_api.message_length_limit must be positive"))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "auto", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not one of auto, text, json", c.Log.Format))
	}
	return errors.Join(errs...)
}

// ValidateTelegram checks the settings needed to connect to Telegram.
func (c *Config) ValidateTelegram() error {
	var errs []error
	t := c.Connections.TelegramAPI
	if t.Token == "" {
		errs = append(errs, errors.New("connections.telegram_api.token is required (or set TELEGRAM_BOT_TOKEN)"))
	}
	if !strings.HasPrefix(t.Username, "@") || len(t.Username) < 2 {
		errs = append(errs, fmt.Errorf("connections.telegram_api.username must look like @BotName, got %q", t.Username))
	}
	if t.SendsPerSecond < 0 {
		errs = append(errs, errors.New("connections.telegram_api.sends_per_second must be >= 0"))
	}
	return errors.Join(errs...)
}

// AllowsChat reports whether chatID passes the allowed_chats list. An
// empty list allows every chat.
func AllowsChat(allowed []int64, chatID int64) bool {
	return len(allowed) == 0 || slices.Contains(allowed, chatID)
}
