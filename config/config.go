// Package config loads DeBot's settings: built-in defaults, then the YAML
// file, then environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/aschepis/backscratcher/debot/bot"
	"github.com/aschepis/backscratcher/debot/chat"
	"github.com/aschepis/backscratcher/debot/content"
	"github.com/aschepis/backscratcher/debot/memory"
	"github.com/aschepis/backscratcher/debot/personality"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// ProviderConfig describes one named LLM endpoint.
type ProviderConfig struct {
	Kind         string `yaml:"kind"`                   // "openai", "anthropic" or "ollama"
	APIKey       string `yaml:"api_key,omitempty"`      // Literal key; prefer APIKeyEnv
	APIKeyEnv    string `yaml:"api_key_env,omitempty"`  // Environment variable holding the key
	BaseURL      string `yaml:"base_url,omitempty"`     // OpenAI-compatible base URL
	Organization string `yaml:"organization,omitempty"` // OpenAI organization ID
	Host         string `yaml:"host,omitempty"`         // Ollama host
	Model        string `yaml:"model,omitempty"`        // Default model
	Anonymous    bool   `yaml:"anonymous,omitempty"`    // Endpoint needs no API key
}

// LLMPreference is one entry of an ordered provider list. The first
// provider that answers wins.
type LLMPreference struct {
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model,omitempty"`
	Temperature *float64      `yaml:"temperature,omitempty"`
	MaxTokens   int64         `yaml:"max_tokens,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
}

// GenerationConfig lists the providers for each use of the model.
type GenerationConfig struct {
	Chat   []LLMPreference `yaml:"chat,omitempty"`
	Commit []LLMPreference `yaml:"commit,omitempty"`
	Errors []LLMPreference `yaml:"errors,omitempty"`
}

// SlackConfig holds the Slack app credentials.
type SlackConfig struct {
	BotToken      string `yaml:"bot_token,omitempty"`
	SigningSecret string `yaml:"signing_secret,omitempty"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port int `yaml:"port,omitempty"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string { return ":" + strconv.Itoa(s.Port) }

// StorageConfig locates the SQLite database.
type StorageConfig struct {
	Path string `yaml:"path,omitempty"`
}

// LogConfig configures logging.
type LogConfig struct {
	File   string `yaml:"file,omitempty"`
	Pretty bool   `yaml:"pretty,omitempty"`
}

// PrinterConfig configures the 3D printer webhook.
type PrinterConfig struct {
	SecretKey string `yaml:"secret_key,omitempty"`
	// Channel receives alerts. Defaults to the announce channel.
	Channel string `yaml:"channel,omitempty"`
}

// Config is the full DeBot configuration.
type Config struct {
	Slack   SlackConfig   `yaml:"slack,omitempty"`
	Server  ServerConfig  `yaml:"server,omitempty"`
	Storage StorageConfig `yaml:"storage,omitempty"`
	Log     LogConfig     `yaml:"log,omitempty"`
	Printer PrinterConfig `yaml:"printer,omitempty"`

	// LLMProviders enables a subset of Providers. Empty enables all.
	LLMProviders []string                   `yaml:"llm_providers,omitempty"`
	Providers    map[string]*ProviderConfig `yaml:"providers,omitempty"`
	Generation   GenerationConfig           `yaml:"generation,omitempty"`

	Bot         bot.Options         `yaml:"bot,omitempty"`
	Memory      memory.Options      `yaml:"memory,omitempty"`
	Personality personality.Options `yaml:"personality,omitempty"`
	Chat        chat.Options        `yaml:"chat,omitempty"`
	Content     content.Options     `yaml:"content,omitempty"`

	// Schedules maps maintenance job names to cron expressions or durations.
	Schedules map[string]string `yaml:"schedules,omitempty"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	botOpts := bot.DefaultOptions()
	botOpts.BotUserID = "U08FRS21HC6"
	botOpts.Admins = []string{"U078PH0GBEH"}

	return Config{
		Server:  ServerConfig{Port: 3000},
		Storage: StorageConfig{Path: filepath.Join(configDir(), "debot.db")},
		Providers: map[string]*ProviderConfig{
			"hackclub":  {Kind: "openai", BaseURL: "https://ai.hackclub.com", Anonymous: true},
			"deepseek":  {Kind: "openai", BaseURL: "https://api.deepseek.com/v1", APIKeyEnv: "DEEPSEEK_API_KEY", Model: "deepseek-chat"},
			"openai":    {Kind: "openai", APIKeyEnv: "OPENAI_API_KEY", Model: "gpt-4o-mini"},
			"anthropic": {Kind: "anthropic", APIKeyEnv: "ANTHROPIC_API_KEY", Model: "claude-haiku-4-5"},
			"ollama":    {Kind: "ollama", Model: "llama3.2:3b"},
		},
		Generation: GenerationConfig{
			Chat: []LLMPreference{
				{Provider: "hackclub", Timeout: 10 * time.Second},
				{Provider: "deepseek", Timeout: 20 * time.Second},
			},
			Commit: []LLMPreference{{Provider: "deepseek", Timeout: 5 * time.Second}},
			Errors: []LLMPreference{{Provider: "deepseek", Timeout: 15 * time.Second}},
		},
		Bot:         botOpts,
		Memory:      memory.DefaultOptions(),
		Personality: personality.DefaultOptions(),
		Chat:        chat.DefaultOptions(),
		Content:     content.DefaultOptions(),
		Schedules:   map[string]string{"memory_sweep": "@daily"},
	}
}

// GetConfigPath returns the config file path.
// Can be overridden via DEBOT_CONFIG_PATH environment variable.
func GetConfigPath() string {
	if envPath := os.Getenv("DEBOT_CONFIG_PATH"); envPath != "" {
		return expandPath(envPath)
	}
	return filepath.Join(configDir(), "config.yaml")
}

func configDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./.debot"
	}
	return filepath.Join(homeDir, ".debot")
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// Load reads the configuration at path on top of the defaults, then applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	return load(path, os.Getenv)
}

func load(path string, getenv func(string) string) (*Config, error) {
	cfg := Defaults()

	expandedPath := expandPath(path)
	if _, err := os.Stat(expandedPath); err == nil {
		data, err := os.ReadFile(expandedPath) //#nosec 304 -- intentional file read for config
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %q: %w", expandedPath, err)
		}

		var fileCfg Config
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %q: %w", expandedPath, err)
		}
		if err := mergo.Merge(&cfg, fileCfg, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge config file: %w", err)
		}
	}

	applyEnv(&cfg, getenv)

	if cfg.Printer.Channel == "" {
		cfg.Printer.Channel = cfg.Bot.AnnounceChannel
	}
	cfg.Storage.Path = expandPath(cfg.Storage.Path)
	return &cfg, nil
}

// applyEnv copies set environment variables over the configuration.
func applyEnv(cfg *Config, getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(&cfg.Slack.BotToken, "SLACK_BOT_TOKEN")
	set(&cfg.Slack.SigningSecret, "SLACK_SIGNING_SECRET")
	set(&cfg.Bot.AnnounceChannel, "SLACK_CHANNEL_ID")
	set(&cfg.Bot.BotUserID, "SLACK_BOT_USER_ID")
	set(&cfg.Content.GiphyAPIKey, "GIPHY_API_KEY")
	set(&cfg.Printer.SecretKey, "OCTOEVERYWHERE_SECRET_KEY")
	set(&cfg.Storage.Path, "DEBOT_DB_PATH")

	if v := getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			cfg.Server.Port = port
		}
	}
	if v := getenv("DEBOT_ADMINS"); v != "" {
		cfg.Bot.Admins = lo.Compact(lo.Map(strings.Split(v, ","), func(s string, _ int) string {
			return strings.TrimSpace(s)
		}))
	}
}

// Save writes cfg to path as YAML.
func Save(cfg *Config, path string) error {
	expandedPath := expandPath(path)

	// Ensure directory exists
	dir := filepath.Dir(expandedPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(expandedPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
