// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the config directory at a temp dir and clears overrides.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(HomeEnv, dir)
	for _, k := range []string{
		"TINYCHAT_BACKEND", "TINYCHAT_MODEL", "TINYCHAT_BASE_URL", "TINYCHAT_API_KEY",
		"TINYCHAT_AUTO_START", "TINYCHAT_PULL", "TINYCHAT_KEEP_ALIVE", "TINYCHAT_TEMPERATURE",
		"TINYCHAT_MAX_NEW_TOKENS", "TINYCHAT_UI_MODE", "TINYCHAT_LOG_LEVEL", "OPENAI_API_KEY",
	} {
		t.Setenv(k, "")
	}
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
}

// =============================================================================
// DEFAULTS AND LOADING
// =============================================================================

func TestConfig_Default(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, BackendOllama, cfg.Model.Backend)
	assert.Equal(t, "tinyllama", cfg.Model.Name)
	assert.Equal(t, 256, cfg.Generation.MaxNewTokens)
	assert.Equal(t, 0.7, cfg.Generation.Temperature)
	assert.Equal(t, 1.1, cfg.Generation.RepetitionPenalty)
	assert.True(t, cfg.Generation.DoSample)
	assert.Equal(t, 10*time.Minute, cfg.Reclaim.IdleThreshold())
	assert.Equal(t, time.Minute, cfg.Reclaim.IdleCheckInterval())
	assert.Equal(t, 15*time.Second, cfg.Reclaim.MemoryCheckInterval())
	assert.Equal(t, 2*time.Second, cfg.UI.AdvisoryDelay())
	assert.Equal(t, 3*time.Second, cfg.UI.StatusResetDelay())
}

func TestResolvedBaseURL(t *testing.T) {
	m := ModelConfig{Backend: BackendOllama}
	assert.Equal(t, DefaultOllamaURL, m.ResolvedBaseURL())
	m.Backend = BackendOpenAI
	assert.Equal(t, DefaultOpenAIURL, m.ResolvedBaseURL())
	m.BaseURL = "http://gpu-box:9000/v1"
	assert.Equal(t, "http://gpu-box:9000/v1", m.ResolvedBaseURL())
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default().Generation, cfg.Generation)
}

func TestLoad_FormatsMergeOverDefaults(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "toml",
			file: "config.toml",
			content: `
[model]
name = "qwen2:0.5b"

[generation]
temperature = 0.2
do_sample = false
`,
		},
		{
			name: "jsonc",
			file: "config.jsonc",
			content: `{
  // smaller model for the laptop
  "model": {"name": "qwen2:0.5b"},
  "generation": {
    "temperature": 0.2,
    "do_sample": false, /* greedy */
  },
}`,
		},
		{
			name: "yaml",
			file: "config.yaml",
			content: `
model:
  name: qwen2:0.5b
generation:
  temperature: 0.2
  do_sample: false
`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := isolate(t)
			writeFile(t, filepath.Join(dir, tc.file), tc.content)

			cfg, err := Load()
			require.NoError(t, err)

			assert.Equal(t, "qwen2:0.5b", cfg.Model.Name)
			assert.Equal(t, 0.2, cfg.Generation.Temperature)
			assert.False(t, cfg.Generation.DoSample)
			// Untouched keys keep their defaults
			assert.Equal(t, BackendOllama, cfg.Model.Backend)
			assert.Equal(t, 1.1, cfg.Generation.RepetitionPenalty)
			assert.Equal(t, 600, cfg.Reclaim.IdleThresholdSecs)
		})
	}
}

func TestLoad_TOMLPreferredOverYAML(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "config.toml"), "[model]\nname = \"from-toml\"\n")
	writeFile(t, filepath.Join(dir, "config.yaml"), "model:\n  name: from-yaml\n")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-toml", cfg.Model.Name)
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "config.toml"), "[model]\nnmae = \"typo\"\n")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_InvalidValueReturnsValidationErrors(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "config.toml"), "[model]\nbackend = \"llamafile\"\n[generation]\ntemperature = 5.0\n")

	_, err := Load()
	require.Error(t, err)

	var verrs ValidateErrors
	require.True(t, errors.As(err, &verrs))
	fields := make([]string, 0, len(verrs))
	for _, e := range verrs {
		fields = append(fields, e.Field)
	}
	assert.ElementsMatch(t, []string{"model.backend", "generation.temperature"}, fields)
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "config.toml"), "[model]\nname = \"from-file\"\n")
	t.Setenv("TINYCHAT_MODEL", "from-env")
	t.Setenv("TINYCHAT_BACKEND", "OpenAI")
	t.Setenv("TINYCHAT_AUTO_START", "true")
	t.Setenv("TINYCHAT_TEMPERATURE", "0.4")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Model.Name)
	assert.Equal(t, BackendOpenAI, cfg.Model.Backend)
	assert.True(t, cfg.Model.AutoStart)
	assert.Equal(t, 0.4, cfg.Generation.Temperature)
	assert.Equal(t, "sk-test", cfg.Model.APIKey)
}

func TestLoad_DotEnvNextToConfig(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "config.toml"), "")
	writeFile(t, filepath.Join(dir, ".env"), "TINYCHAT_KEEP_ALIVE=5m\n")
	t.Cleanup(func() { os.Unsetenv("TINYCHAT_KEEP_ALIVE") })
	os.Unsetenv("TINYCHAT_KEEP_ALIVE")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "5m", cfg.Model.KeepAlive)
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid default config", func(c *Config) {}, false},
		{"invalid backend", func(c *Config) { c.Model.Backend = "vllm" }, true},
		{"empty model name", func(c *Config) { c.Model.Name = "" }, true},
		{"bad base url scheme", func(c *Config) { c.Model.BaseURL = "ftp://host" }, true},
		{"keep alive duration", func(c *Config) { c.Model.KeepAlive = "1h" }, false},
		{"keep alive forever", func(c *Config) { c.Model.KeepAlive = "-1" }, false},
		{"keep alive garbage", func(c *Config) { c.Model.KeepAlive = "soon" }, true},
		{"zero max tokens", func(c *Config) { c.Generation.MaxNewTokens = 0 }, true},
		{"limit below default", func(c *Config) { c.Generation.MaxNewTokensLimit = 100 }, true},
		{"no limit", func(c *Config) { c.Generation.MaxNewTokensLimit = 0 }, false},
		{"greedy temperature", func(c *Config) { c.Generation.Temperature = 0 }, false},
		{"temperature too high", func(c *Config) { c.Generation.Temperature = 2.5 }, true},
		{"zero repetition penalty", func(c *Config) { c.Generation.RepetitionPenalty = 0 }, true},
		{"unknown strategy", func(c *Config) { c.Prompt.Strategy = "chatml" }, true},
		{"high water above one", func(c *Config) { c.Reclaim.MemoryHighWater = 1.5 }, true},
		{"zero idle threshold", func(c *Config) { c.Reclaim.IdleThresholdSecs = 0 }, true},
		{"invalid theme", func(c *Config) { c.UI.Theme = "neon" }, true},
		{"invalid partial policy", func(c *Config) { c.UI.PartialOnCancel = "maybe" }, true},
		{"invalid log level", func(c *Config) { c.Log.Level = "trace" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// =============================================================================
// GET / SET / SAVE
// =============================================================================

func TestConfig_GetSet(t *testing.T) {
	cfg := Default()

	val, err := cfg.Get("generation.temperature")
	require.NoError(t, err)
	assert.Equal(t, 0.7, val)

	require.NoError(t, cfg.Set("generation.temperature", "0.3"))
	require.NoError(t, cfg.Set("generation.max_new_tokens", "64"))
	require.NoError(t, cfg.Set("model.pull", "false"))
	require.NoError(t, cfg.Set("model.name", "phi3:mini"))
	assert.Equal(t, 0.3, cfg.Generation.Temperature)
	assert.Equal(t, 64, cfg.Generation.MaxNewTokens)
	assert.False(t, cfg.Model.Pull)
	assert.Equal(t, "phi3:mini", cfg.Model.Name)

	_, err = cfg.Get("invalid.key")
	assert.Error(t, err)
	_, err = cfg.Get("generation")
	assert.Error(t, err)
	assert.Error(t, cfg.Set("generation.max_new_tokens", "many"))
}

func TestAllKeys(t *testing.T) {
	keys := AllKeys()
	assert.Contains(t, keys, "model.backend")
	assert.Contains(t, keys, "generation.repetition_penalty")
	assert.Contains(t, keys, "reclaim.memory_high_water")
	assert.Contains(t, keys, "ui.partial_on_cancel")

	cfg := Default()
	for _, k := range keys {
		_, err := cfg.Get(k)
		assert.NoError(t, err, k)
	}
}

func TestSaveTOML_RoundTrip(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")

	cfg := Default()
	cfg.Model.Name = "smollm:135m"
	cfg.Generation.DoSample = false
	cfg.Model.APIKey = "secret"
	require.NoError(t, SaveTOML(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	if os.PathSeparator == '/' {
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestConfig_StringRedactsKey(t *testing.T) {
	cfg := Default()
	cfg.Model.APIKey = "sk-very-secret"
	s := cfg.String()
	assert.NotContains(t, s, "sk-very-secret")
	assert.Contains(t, s, "[REDACTED]")
	assert.Equal(t, "sk-very-secret", cfg.Model.APIKey)
}

func TestConfig_Clone(t *testing.T) {
	original := Default()
	clone := original.Clone()
	clone.Model.Name = "cloned"
	assert.Equal(t, "tinyllama", original.Model.Name)
}

func TestSchema(t *testing.T) {
	data, err := Schema()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	props, ok := doc["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "model")
	assert.Contains(t, props, "generation")
	assert.Contains(t, string(data), `"ollama"`)
}

// =============================================================================
// WATCH
// =============================================================================

func TestWatch_ReloadsOnChange(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, "[generation]\ntemperature = 0.5\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 4)
	require.NoError(t, Watch(ctx, path, 20*time.Millisecond, func(cfg *Config, err error) {
		if err == nil {
			reloaded <- cfg
		}
	}))

	writeFile(t, path, "[generation]\ntemperature = 0.9\n")

	select {
	case cfg := <-reloaded:
		assert.Equal(t, 0.9, cfg.Generation.Temperature)
	case <-time.After(3 * time.Second):
		t.Fatal("no reload after write")
	}
}

func TestWatch_ReportsInvalidFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errs := make(chan error, 4)
	require.NoError(t, Watch(ctx, path, 20*time.Millisecond, func(cfg *Config, err error) {
		if err != nil {
			errs <- err
		}
	}))

	writeFile(t, path, "[generation]\ntemperature = 9.0\n")

	select {
	case err := <-errs:
		assert.Error(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("no error reported for invalid config")
	}
}

// =============================================================================
// GLOBAL
// =============================================================================

func TestConfig_ConcurrentAccess(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()
	t.Cleanup(ResetGlobalForTesting)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			SetGlobal(Default())
		}()
		go func() {
			defer wg.Done()
			assert.NotNil(t, Global())
		}()
	}
	wg.Wait()
}

func TestConfig_GlobalInitialization(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()
	t.Cleanup(ResetGlobalForTesting)

	cfg := Global()
	require.NotNil(t, cfg)
	assert.Equal(t, "tinyllama", cfg.Model.Name)
	require.NoError(t, ReloadGlobal())
	assert.NotNil(t, Global())
}

func TestConfig_SetGlobalOverwrites(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()
	t.Cleanup(ResetGlobalForTesting)

	_ = Global()
	custom := Default()
	custom.Model.Name = "custom"
	SetGlobal(custom)
	assert.Equal(t, "custom", Global().Model.Name)
}
