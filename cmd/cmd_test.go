package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chatrelay/chatrelay/internal/config"
	"github.com/chatrelay/chatrelay/internal/provider"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"CHATRELAY_PROVIDER", "OPENAI_API_KEY", "LLM_API_KEY", "LLM_BASE_URL", "LLM_MODEL",
		"ANTHROPIC_API_KEY", "TELEGRAM_BOT_TOKEN", "CHATRELAY_LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
}

func TestRunInit_WritesLoadableConfig(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	answers := strings.Join([]string{
		"2",             // anthropic
		"sk-ant-test",   // api key
		"",              // default model
		"123:abc",       // bot token
		"NovaBot",       // username without @
		"Nova",          // name
		"You are Nova.", // prompt
		"y",             // respond to name
	}, "\n") + "\n"

	var out bytes.Buffer
	if err := runInit(strings.NewReader(answers), &out, path); err != nil {
		t.Fatalf("runInit: %v", err)
	}
	if !strings.Contains(out.String(), "Config saved to") {
		t.Errorf("output = %q", out.String())
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.IsAnthropic() || cfg.Connections.AnthropicAPI.Token != "sk-ant-test" {
		t.Errorf("provider section = %+v", cfg.Connections.AnthropicAPI)
	}
	if cfg.Connections.TelegramAPI.Username != "@NovaBot" || cfg.Connections.TelegramAPI.Token != "123:abc" {
		t.Errorf("telegram section = %+v", cfg.Connections.TelegramAPI)
	}
	if cfg.Personality.Name != "Nova" || !cfg.Personality.RespondToName {
		t.Errorf("personality = %+v", cfg.Personality)
	}
	if cfg.Connections.OpenAIAPI.RequestTimeout != 60*time.Second {
		t.Errorf("request_timeout = %s", cfg.Connections.OpenAIAPI.RequestTimeout)
	}
	if cfg.Connections.TelegramAPI.PhotoQuality != config.PhotoMedium {
		t.Errorf("photo_quality = %s", cfg.Connections.TelegramAPI.PhotoQuality)
	}
}

func TestRunInit_EmptyKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := runInit(strings.NewReader("1\n\n"), &bytes.Buffer{}, path); err == nil {
		t.Fatal("expected error for empty API key")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("config written despite error")
	}
}

func TestRunInit_KeepsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("original"), 0600); err != nil {
		t.Fatal(err)
	}
	answers := "1\nsk-test\n\n\n\n\n\n\nn\n"
	var out bytes.Buffer
	if err := runInit(strings.NewReader(answers), &out, path); err != nil {
		t.Fatalf("runInit: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "original" {
		t.Error("existing config was overwritten")
	}
	if !strings.Contains(out.String(), "Aborted.") {
		t.Errorf("output = %q", out.String())
	}
}

func TestBuildProvider(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*config.Config)
		wantName string
		wantErr  bool
	}{
		{
			name:     "openai",
			mutate:   func(c *config.Config) { c.Connections.OpenAIAPI.Token = "sk" },
			wantName: "openai",
		},
		{
			name: "named compatible provider",
			mutate: func(c *config.Config) {
				c.Connections.Provider = "deepseek"
				c.Connections.OpenAIAPI.Token = "sk"
			},
			wantName: "deepseek",
		},
		{
			name: "anthropic",
			mutate: func(c *config.Config) {
				c.Connections.Provider = "anthropic"
				c.Connections.AnthropicAPI.Token = "sk-ant"
			},
			wantName: "anthropic",
		},
		{
			name:    "missing key",
			mutate:  func(c *config.Config) {},
			wantErr: true,
		},
		{
			name: "unknown provider without base url",
			mutate: func(c *config.Config) {
				c.Connections.Provider = "mystery"
				c.Connections.OpenAIAPI.Token = "sk"
			},
			wantErr: true,
		},
		{
			name: "local endpoint needs no key",
			mutate: func(c *config.Config) {
				c.Connections.Provider = "ollama"
				c.Connections.OpenAIAPI.BaseURL = "http://localhost:11434/v1"
			},
			wantName: "openai",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.mutate(cfg)
			p, err := buildProvider(cfg, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if p.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", p.Name(), tt.wantName)
			}
			r, ok := p.(*provider.Retrying)
			if !ok || r.MaxRetries != 3 {
				t.Errorf("provider not wrapped with default retries: %T", p)
			}
		})
	}
}

func TestRelaySettings(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Personality.Name = "Nova"
	cfg.Connections.OpenAIAPI.TokensToKeep = 300
	cfg.Connections.TelegramAPI.AllowedChats = []int64{5}

	s := relaySettings(cfg)
	if s.Personality != "Nova" || s.Status.Name != "Nova" || s.Model != "gpt-4o-mini" {
		t.Errorf("settings = %+v", s)
	}
	if s.MaxTokens != 300 || s.Status.TokensToKeep != 300 {
		t.Errorf("max tokens should fall back to tokens_to_keep: %+v", s)
	}
	if s.Limits.MessageLengthLimit != 500 || len(s.AllowedChats) != 1 || !s.AllowPrivate {
		t.Errorf("settings = %+v", s)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("a\nb   c", 10); got != "a b c" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("жжжжж", 3); got != "жжж..." {
		t.Errorf("truncate = %q", got)
	}
}
