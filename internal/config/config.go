// Package config handles voxbot configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Mode selects the deployment behavior. It is fixed at startup, never per message.
const (
	// ModeAssistant runs knowledge-augmented generation through the text
	// provider and uses the transcribe-regenerate voice flow.
	ModeAssistant = "assistant"
	// ModeConverter never calls the text provider: replies come from the
	// rule-based responder and voice messages go through direct conversion.
	ModeConverter = "converter"
)

// Config is the root configuration.
type Config struct {
	Version  int            `yaml:"version"`
	Mode     string         `yaml:"mode"`
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	AI       AIConfig       `yaml:"ai"`
	Speech   SpeechConfig   `yaml:"speech"`
	Channels ChannelsConfig `yaml:"channels"`
	Logging  LoggingConfig  `yaml:"logging"`
	Janitor  JanitorConfig  `yaml:"janitor"`
}

// ServerConfig describes the operational HTTP surface (metrics only).
type ServerConfig struct {
	MetricsAddr string `yaml:"metrics_addr"`
}

// StoreConfig describes the SQLite knowledge store.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// AIConfig describes the text-generation provider.
type AIConfig struct {
	BaseURL        string  `yaml:"base_url"`
	APIKey         string  `yaml:"api_key"`
	Model          string  `yaml:"model"`
	MaxTokens      int     `yaml:"max_tokens"`
	Temperature    float64 `yaml:"temperature"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

// SpeechConfig describes the speech provider and local audio handling.
type SpeechConfig struct {
	BaseURL             string `yaml:"base_url"`
	APIKey              string `yaml:"api_key"`
	TTSModel            string `yaml:"tts_model"`
	DefaultVoice        string `yaml:"default_voice"`
	CustomVoicesOnly    bool   `yaml:"custom_voices_only"`
	TranscribeTimeoutSeconds int `yaml:"transcribe_timeout_seconds"`
	SynthesizeTimeoutSeconds int `yaml:"synthesize_timeout_seconds"`
	FFmpegPath          string `yaml:"ffmpeg_path"`
	TempDir             string `yaml:"temp_dir"`
}

// ChannelsConfig describes messaging front-ends.
type ChannelsConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig describes the Telegram bot channel.
type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
}

// LoggingConfig describes log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// JanitorConfig describes the temp-artifact sweep.
type JanitorConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	MaxAgeMinutes int    `yaml:"max_age_minutes"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Version: 1,
		Mode:    ModeAssistant,
		Server: ServerConfig{
			MetricsAddr: "127.0.0.1:19090",
		},
		Store: StoreConfig{
			Path: "./voxbot.db",
		},
		AI: AIConfig{
			BaseURL:        "https://api.openai.com/v1",
			Model:          "gpt-4",
			MaxTokens:      1000,
			Temperature:    0.7,
			TimeoutSeconds: 30,
		},
		Speech: SpeechConfig{
			BaseURL:                  "https://api.elevenlabs.io/v1",
			TTSModel:                 "eleven_monolingual_v1",
			DefaultVoice:             "21m00Tcm4TlvDq8ikWAM",
			CustomVoicesOnly:         true,
			TranscribeTimeoutSeconds: 30,
			SynthesizeTimeoutSeconds: 60,
			FFmpegPath:               "ffmpeg",
			TempDir:                  os.TempDir(),
		},
		Channels: ChannelsConfig{
			Telegram: TelegramConfig{Enabled: false},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Janitor: JanitorConfig{
			Enabled:       true,
			Schedule:      "*/30 * * * *",
			MaxAgeMinutes: 60,
		},
	}
}

// Load reads configuration from path, falling back to defaults for missing
// fields, then applies environment overrides for secrets.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to path, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnv overrides secrets from the environment so tokens never have to
// live in the config file.
func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN")); v != "" {
		c.Channels.Telegram.Token = v
		c.Channels.Telegram.Enabled = true
	}
	if v := strings.TrimSpace(os.Getenv("ELEVENLABS_API_KEY")); v != "" {
		c.Speech.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" {
		c.AI.APIKey = v
	}
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeAssistant, ModeConverter:
	default:
		return fmt.Errorf("invalid mode %q: must be %q or %q", c.Mode, ModeAssistant, ModeConverter)
	}

	if c.Store.Path == "" {
		return fmt.Errorf("store.path must not be empty")
	}

	if c.Mode == ModeAssistant && c.AI.APIKey == "" {
		return fmt.Errorf("assistant mode requires an AI API key (OPENAI_API_KEY)")
	}

	return nil
}
