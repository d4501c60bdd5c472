package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/chatrelay/chatrelay/internal/config"
)

func newInitCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactive configuration wizard",
		Long:  "Guides you through setting up chatrelay: choose a provider, enter the API and bot tokens, describe the personality, and save the config.",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := output
			if path == "" {
				home, err := os.UserHomeDir()
				if err != nil {
					return fmt.Errorf("get home dir: %w", err)
				}
				path = filepath.Join(home, ".config", "chatrelay", "config.yaml")
			}
			return runInit(os.Stdin, cmd.OutOrStdout(), path)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "where to write the config (default ~/.config/chatrelay/config.yaml)")
	return cmd
}

// initProviders are the choices offered by the wizard.
var initProviders = []string{"openai", "anthropic", "deepseek", "groq", "openrouter"}

func runInit(in io.Reader, out io.Writer, configPath string) error {
	reader := bufio.NewReader(in)
	ask := func(prompt, def string) string {
		if def != "" {
			fmt.Fprintf(out, "%s [%s]: ", prompt, def)
		} else {
			fmt.Fprintf(out, "%s: ", prompt)
		}
		line, _ := reader.ReadString('\n')
		line = strings.TrimSpace(line)
		if line == "" {
			return def
		}
		return line
	}

	fmt.Fprintln(out, "Welcome to the chatrelay configuration wizard!")
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Available providers:")
	for i, p := range initProviders {
		fmt.Fprintf(out, "  %d. %s\n", i+1, p)
	}
	selectedIdx := 0
	if n, err := strconv.Atoi(ask(fmt.Sprintf("\nSelect provider (1-%d)", len(initProviders)), "1")); err == nil && n >= 1 && n <= len(initProviders) {
		selectedIdx = n - 1
	}
	providerName := initProviders[selectedIdx]
	fmt.Fprintf(out, "Selected: %s\n\n", providerName)

	cfg := config.DefaultConfig()
	cfg.Connections.Provider = providerName

	apiKey := ask("Enter API key for "+providerName, "")
	if apiKey == "" {
		return fmt.Errorf("API key cannot be empty")
	}
	if providerName == "anthropic" {
		cfg.Connections.AnthropicAPI.Token = apiKey
		cfg.Connections.AnthropicAPI.Model = ask("Model", cfg.Connections.AnthropicAPI.Model)
	} else {
		cfg.Connections.OpenAIAPI.Token = apiKey
		cfg.Connections.OpenAIAPI.Model = ask("Model", cfg.Connections.OpenAIAPI.Model)
	}

	cfg.Connections.TelegramAPI.Token = ask("Telegram bot token (from @BotFather)", "")
	username := ask("Telegram bot username", "")
	if username != "" && !strings.HasPrefix(username, "@") {
		username = "@" + username
	}
	cfg.Connections.TelegramAPI.Username = username

	cfg.Personality.Name = ask("Personality name", cfg.Personality.Name)
	cfg.Personality.Prompt = ask("System prompt", cfg.Personality.Prompt)
	cfg.Personality.RespondToName = strings.HasPrefix(strings.ToLower(ask("Answer when the name is mentioned? [y/N]", "n")), "y")

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if _, err := os.Stat(configPath); err == nil {
		fmt.Fprintf(out, "\nConfig file already exists at %s\n", configPath)
		if !strings.EqualFold(ask("Overwrite? [y/N]", ""), "y") {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fmt.Fprintf(out, "\nConfig saved to %s\n", configPath)
	fmt.Fprintln(out, "You can now run: chatrelay console   (or chatrelay serve)")
	return nil
}
