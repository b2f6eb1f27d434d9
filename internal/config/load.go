// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"dario.cat/mergo"
	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load finds the config file in the config directory (TOML, then JSONC or
// JSON, then YAML) and loads it over the defaults. With no file present the
// defaults are used. Environment overrides are applied last.
func Load() (*Config, error) {
	path, err := FindConfigFile()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific file with full
// validation. An empty path loads the defaults.
func LoadFromPath(path string) (*Config, error) {
	return load(path, true)
}

// LoadFile loads path over the defaults without .env or environment
// overrides, for commands that write the file back.
func LoadFile(path string) (*Config, error) {
	return load(path, false)
}

func load(path string, withEnv bool) (*Config, error) {
	if withEnv {
		loadDotEnv(path)
	}

	var layers []map[string]any
	if path != "" {
		layer, err := readLayer(path)
		if err != nil {
			return nil, err
		}
		layers = append(layers, layer)
	}

	cfg, err := build(layers...)
	if err != nil {
		return nil, err
	}

	if withEnv {
		cfg.ApplyEnvOverrides()
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// readLayer decodes a config file into a generic map, choosing the format
// by extension. Unknown extensions are read as TOML.
func readLayer(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var m map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		err = json.Unmarshal(jsonc.ToJSON(data), &m)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &m)
	default:
		_, err = toml.Decode(string(data), &m)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return normalizeLayer(m)
}

// normalizeLayer round-trips m through JSON so every layer has the same
// value types before merging.
func normalizeLayer(m map[string]any) (map[string]any, error) {
	if m == nil {
		return map[string]any{}, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// build deep-merges layers over the defaults, later layers winning, and
// decodes the result. Unknown keys are rejected.
func build(layers ...map[string]any) (*Config, error) {
	base, err := toLayer(Default())
	if err != nil {
		return nil, err
	}
	for _, layer := range layers {
		if err := mergo.Merge(&base, layer, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merging config: %w", err)
		}
	}

	merged, err := json.Marshal(base)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(merged))
	dec.DisallowUnknownFields()

	cfg := &Config{}
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

func toLayer(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// loadDotEnv loads .env from the working directory and from next to the
// config file. Variables already set in the environment win.
func loadDotEnv(configPath string) {
	candidates := []string{".env"}
	if configPath != "" {
		candidates = append(candidates, filepath.Join(filepath.Dir(configPath), ".env"))
	} else if dir, err := ConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, ".env"))
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
		}
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides.
//
// Supported variables:
//   - TINYCHAT_BACKEND: overrides model.backend
//   - TINYCHAT_MODEL: overrides model.name
//   - TINYCHAT_BASE_URL: overrides model.base_url
//   - TINYCHAT_API_KEY: overrides model.api_key (OPENAI_API_KEY is the fallback)
//   - TINYCHAT_AUTO_START, TINYCHAT_PULL: booleans ("1" or "true")
//   - TINYCHAT_KEEP_ALIVE: overrides model.keep_alive
//   - TINYCHAT_TEMPERATURE, TINYCHAT_MAX_NEW_TOKENS: sampling overrides
//   - TINYCHAT_UI_MODE: overrides ui.mode
//   - TINYCHAT_LOG_LEVEL: overrides log.level
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("TINYCHAT_BACKEND"); v != "" {
		c.Model.Backend = v
	}
	if v := os.Getenv("TINYCHAT_MODEL"); v != "" {
		c.Model.Name = v
	}
	if v := os.Getenv("TINYCHAT_BASE_URL"); v != "" {
		c.Model.BaseURL = v
	}
	if v := os.Getenv("TINYCHAT_API_KEY"); v != "" {
		c.Model.APIKey = v
	} else if c.Model.APIKey == "" {
		c.Model.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if v := os.Getenv("TINYCHAT_AUTO_START"); v != "" {
		c.Model.AutoStart = envBool(v)
	}
	if v := os.Getenv("TINYCHAT_PULL"); v != "" {
		c.Model.Pull = envBool(v)
	}
	if v := os.Getenv("TINYCHAT_KEEP_ALIVE"); v != "" {
		c.Model.KeepAlive = v
	}
	if v := os.Getenv("TINYCHAT_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Generation.Temperature = f
		}
	}
	if v := os.Getenv("TINYCHAT_MAX_NEW_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Generation.MaxNewTokens = n
		}
	}
	if v := os.Getenv("TINYCHAT_UI_MODE"); v != "" {
		c.UI.Mode = v
	}
	if v := os.Getenv("TINYCHAT_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

func envBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "1" || v == "true" || v == "yes"
}

// Normalize lowercases enumerated values and trims whitespace.
func (c *Config) Normalize() {
	lower := func(s *string) { *s = strings.ToLower(strings.TrimSpace(*s)) }
	lower(&c.Model.Backend)
	lower(&c.Prompt.Strategy)
	lower(&c.UI.Theme)
	lower(&c.UI.Mode)
	lower(&c.UI.PartialOnCancel)
	lower(&c.Log.Level)
	lower(&c.Log.Format)
	c.Model.Name = strings.TrimSpace(c.Model.Name)
	c.Model.BaseURL = strings.TrimSpace(c.Model.BaseURL)
}
