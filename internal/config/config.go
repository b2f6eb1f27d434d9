// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete tinychat configuration.
type Config struct {
	// Model selects the backend and the model it serves
	Model ModelConfig `toml:"model" json:"model" yaml:"model"`

	// Generation holds the sampling parameters; hot-reloaded
	Generation GenerationConfig `toml:"generation" json:"generation" yaml:"generation"`

	// Prompt controls how user text becomes a model prompt
	Prompt PromptConfig `toml:"prompt" json:"prompt" yaml:"prompt"`

	// Reclaim controls idle and memory-pressure unloading
	Reclaim ReclaimConfig `toml:"reclaim" json:"reclaim" yaml:"reclaim"`

	UI  UIConfig  `toml:"ui" json:"ui" yaml:"ui"`
	Log LogConfig `toml:"log" json:"log" yaml:"log"`
}

// ModelConfig contains backend settings.
type ModelConfig struct {
	// Backend is "ollama" or "openai" (any OpenAI-compatible server)
	Backend string `toml:"backend" json:"backend" yaml:"backend" jsonschema:"enum=ollama,enum=openai"`
	// Name is the model identifier, e.g. "tinyllama"
	Name string `toml:"name" json:"name" yaml:"name"`
	// BaseURL is the server address. Empty selects the backend default.
	BaseURL string `toml:"base_url" json:"base_url" yaml:"base_url"`
	// APIKey is sent to OpenAI-compatible servers
	APIKey string `toml:"api_key" json:"api_key" yaml:"api_key"`
	// AutoStart launches a local Ollama server when none answers
	AutoStart bool `toml:"auto_start" json:"auto_start" yaml:"auto_start"`
	// Pull downloads the model when it is missing locally
	Pull bool `toml:"pull" json:"pull" yaml:"pull"`
	// KeepAlive is how long Ollama keeps the model resident, e.g. "30m"
	KeepAlive string `toml:"keep_alive" json:"keep_alive" yaml:"keep_alive"`
	// RequestTimeoutSecs bounds non-streaming requests
	RequestTimeoutSecs int `toml:"request_timeout_secs" json:"request_timeout_secs" yaml:"request_timeout_secs" jsonschema:"minimum=1"`
	// StartTimeoutSecs bounds waiting for an auto-started server
	StartTimeoutSecs int `toml:"start_timeout_secs" json:"start_timeout_secs" yaml:"start_timeout_secs" jsonschema:"minimum=1"`
}

// GenerationConfig contains sampling parameters.
type GenerationConfig struct {
	// MaxNewTokens is used when the token field is empty or invalid
	MaxNewTokens int `toml:"max_new_tokens" json:"max_new_tokens" yaml:"max_new_tokens" jsonschema:"minimum=1"`
	// MaxNewTokensLimit clamps user-entered token counts (0 = no clamp)
	MaxNewTokensLimit int     `toml:"max_new_tokens_limit" json:"max_new_tokens_limit" yaml:"max_new_tokens_limit" jsonschema:"minimum=0"`
	Temperature       float64 `toml:"temperature" json:"temperature" yaml:"temperature" jsonschema:"minimum=0,maximum=2"`
	RepetitionPenalty float64 `toml:"repetition_penalty" json:"repetition_penalty" yaml:"repetition_penalty" jsonschema:"minimum=0"`
	DoSample          bool    `toml:"do_sample" json:"do_sample" yaml:"do_sample"`
	Stream            bool    `toml:"stream" json:"stream" yaml:"stream"`
}

// PromptConfig contains prompt formatting settings.
type PromptConfig struct {
	// Strategy is "template" (role-tagged chat format) or "identity"
	Strategy  string `toml:"strategy" json:"strategy" yaml:"strategy" jsonschema:"enum=template,enum=identity"`
	System    string `toml:"system" json:"system" yaml:"system"`
	EndOfTurn string `toml:"end_of_turn" json:"end_of_turn" yaml:"end_of_turn"`
	// TemplateFile is a markdown file with front matter; overrides the above
	TemplateFile string `toml:"template_file" json:"template_file" yaml:"template_file"`
}

// ReclaimConfig contains unload settings.
type ReclaimConfig struct {
	Enabled           bool `toml:"enabled" json:"enabled" yaml:"enabled"`
	IdleCheckSecs     int  `toml:"idle_check_secs" json:"idle_check_secs" yaml:"idle_check_secs" jsonschema:"minimum=1"`
	IdleThresholdSecs int  `toml:"idle_threshold_secs" json:"idle_threshold_secs" yaml:"idle_threshold_secs" jsonschema:"minimum=1"`
	MemoryCheckSecs   int  `toml:"memory_check_secs" json:"memory_check_secs" yaml:"memory_check_secs" jsonschema:"minimum=1"`
	// MemoryHighWater is the pressure ratio (0..1] that triggers an unload
	MemoryHighWater float64 `toml:"memory_high_water" json:"memory_high_water" yaml:"memory_high_water" jsonschema:"minimum=0,maximum=1"`
}

// UIConfig contains UI configuration.
type UIConfig struct {
	// Theme is "dark", "light" or "auto"
	Theme string `toml:"theme" json:"theme" yaml:"theme" jsonschema:"enum=dark,enum=light,enum=auto"`
	// Mode is "auto" (TUI on a terminal), "tui" or "plain"
	Mode string `toml:"mode" json:"mode" yaml:"mode" jsonschema:"enum=auto,enum=tui,enum=plain"`
	// AdvisoryMS is how long the empty-input advisory stays
	AdvisoryMS int `toml:"advisory_ms" json:"advisory_ms" yaml:"advisory_ms" jsonschema:"minimum=0"`
	// StatusResetMS is how long a result stays before the ready status returns
	StatusResetMS int `toml:"status_reset_ms" json:"status_reset_ms" yaml:"status_reset_ms" jsonschema:"minimum=0"`
	// PartialOnCancel is "keep" or "discard"
	PartialOnCancel string `toml:"partial_on_cancel" json:"partial_on_cancel" yaml:"partial_on_cancel" jsonschema:"enum=keep,enum=discard"`
	// Markdown renders finished assistant replies with glamour
	Markdown bool `toml:"markdown" json:"markdown" yaml:"markdown"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `toml:"level" json:"level" yaml:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	// File is the log path. Empty selects tinychat.log in the config directory.
	File string `toml:"file" json:"file" yaml:"file"`
	// Format is "text", "json" or "auto" (json unless writing to a terminal)
	Format     string `toml:"format" json:"format" yaml:"format" jsonschema:"enum=text,enum=json,enum=auto"`
	MaxSizeMB  int    `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb" jsonschema:"minimum=1"`
	MaxBackups int    `toml:"max_backups" json:"max_backups" yaml:"max_backups" jsonschema:"minimum=0"`
	MaxAgeDays int    `toml:"max_age_days" json:"max_age_days" yaml:"max_age_days" jsonschema:"minimum=0"`
}

// Backend names.
const (
	BackendOllama = "ollama"
	BackendOpenAI = "openai"
)

// Backend default addresses.
const (
	DefaultOllamaURL = "http://127.0.0.1:11434"
	DefaultOpenAIURL = "http://127.0.0.1:8080/v1"
)

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			Backend:            BackendOllama,
			Name:               "tinyllama",
			BaseURL:            "",
			AutoStart:          false,
			Pull:               true,
			KeepAlive:          "30m",
			RequestTimeoutSecs: 30,
			StartTimeoutSecs:   10,
		},

		Generation: GenerationConfig{
			MaxNewTokens:      256,
			MaxNewTokensLimit: 2048,
			Temperature:       0.7,
			RepetitionPenalty: 1.1,
			DoSample:          true,
			Stream:            true,
		},

		Prompt: PromptConfig{
			Strategy:  "template",
			System:    "You are a friendly chatbot who always responds helpfully and concisely.",
			EndOfTurn: "</s>",
		},

		Reclaim: ReclaimConfig{
			Enabled:           true,
			IdleCheckSecs:     60,
			IdleThresholdSecs: 600,
			MemoryCheckSecs:   15,
			MemoryHighWater:   0.90,
		},

		UI: UIConfig{
			Theme:           "dark",
			Mode:            "auto",
			AdvisoryMS:      2000,
			StatusResetMS:   3000,
			PartialOnCancel: "keep",
			Markdown:        true,
		},

		Log: LogConfig{
			Level:      "info",
			Format:     "auto",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// ResolvedBaseURL returns BaseURL or the backend's default address.
func (m ModelConfig) ResolvedBaseURL() string {
	if m.BaseURL != "" {
		return m.BaseURL
	}
	if m.Backend == BackendOpenAI {
		return DefaultOpenAIURL
	}
	return DefaultOllamaURL
}

// RequestTimeout returns the non-streaming request timeout.
func (m ModelConfig) RequestTimeout() time.Duration {
	return time.Duration(m.RequestTimeoutSecs) * time.Second
}

// StartTimeout returns the auto-start wait bound.
func (m ModelConfig) StartTimeout() time.Duration {
	return time.Duration(m.StartTimeoutSecs) * time.Second
}

// IdleCheckInterval returns the idle check cadence.
func (r ReclaimConfig) IdleCheckInterval() time.Duration {
	return time.Duration(r.IdleCheckSecs) * time.Second
}

// IdleThreshold returns the idle time after which the model is unloaded.
func (r ReclaimConfig) IdleThreshold() time.Duration {
	return time.Duration(r.IdleThresholdSecs) * time.Second
}

// MemoryCheckInterval returns the memory check cadence.
func (r ReclaimConfig) MemoryCheckInterval() time.Duration {
	return time.Duration(r.MemoryCheckSecs) * time.Second
}

// AdvisoryDelay returns how long the empty-input advisory stays.
func (u UIConfig) AdvisoryDelay() time.Duration {
	return time.Duration(u.AdvisoryMS) * time.Millisecond
}

// StatusResetDelay returns how long a result stays before the ready status.
func (u UIConfig) StatusResetDelay() time.Duration {
	return time.Duration(u.StatusResetMS) * time.Millisecond
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// HomeEnv overrides the configuration directory.
const HomeEnv = "TINYCHAT_HOME"

// ConfigDir returns the tinychat configuration directory path.
func ConfigDir() (string, error) {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".tinychat"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// candidateNames are tried in order by Load.
var candidateNames = []string{"config.toml", "config.jsonc", "config.json", "config.yaml", "config.yml"}

// FindConfigFile returns the first config file present in the config
// directory, or "" when there is none.
func FindConfigFile() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	for _, name := range candidateNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// =============================================================================
// HELPERS
// =============================================================================

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String returns an indented JSON rendering with the API key redacted.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.Model.APIKey != "" {
		safe.Model.APIKey = "[REDACTED]"
	}
	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}
