// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/tinychat/internal/config"
	"github.com/jeranaias/tinychat/internal/detect"
	"github.com/jeranaias/tinychat/internal/prompt"
	"github.com/jeranaias/tinychat/internal/session"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// isolate points the config directory at a temp dir and clears overrides.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(config.HomeEnv, dir)
	for _, k := range []string{
		"TINYCHAT_BACKEND", "TINYCHAT_MODEL", "TINYCHAT_BASE_URL", "TINYCHAT_API_KEY",
		"TINYCHAT_AUTO_START", "TINYCHAT_PULL", "TINYCHAT_KEEP_ALIVE", "TINYCHAT_TEMPERATURE",
		"TINYCHAT_MAX_NEW_TOKENS", "TINYCHAT_UI_MODE", "TINYCHAT_LOG_LEVEL", "OPENAI_API_KEY",
	} {
		t.Setenv(k, "")
	}
	config.ResetGlobalForTesting()
	return dir
}

// run executes the command tree and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root, a := newRootCommand()
	defer a.teardown()

	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func ollamaServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "Ollama is running")
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

// =============================================================================
// MODE SELECTION
// =============================================================================

func TestChooseMode(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		plain, tui bool
		stdin      bool
		stdout     bool
		want       string
	}{
		{"auto on terminal", "auto", false, false, true, true, modeTUI},
		{"auto piped stdout", "auto", false, false, true, false, modePlain},
		{"auto piped stdin", "auto", false, false, false, true, modePlain},
		{"configured plain", "plain", false, false, true, true, modePlain},
		{"configured tui", "TUI", false, false, false, false, modeTUI},
		{"plain flag wins", "tui", true, false, true, true, modePlain},
		{"tui flag wins", "plain", false, true, false, false, modeTUI},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, chooseMode(tt.configured, tt.plain, tt.tui, tt.stdin, tt.stdout))
		})
	}
}

// =============================================================================
// WIRING
// =============================================================================

func TestSessionOptions_FromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Generation.MaxNewTokens = 64
	cfg.Generation.MaxNewTokensLimit = 512
	cfg.Generation.Temperature = 0.2
	cfg.UI.PartialOnCancel = "discard"
	cfg.UI.AdvisoryMS = 1500
	cfg.UI.StatusResetMS = 2500

	opts := sessionOptions(cfg, prompt.Identity{}, nil)
	assert.Equal(t, "tinyllama", opts.Model)
	assert.Equal(t, session.PartialDiscard, opts.PartialOnCancel)
	assert.Equal(t, 1500*time.Millisecond, opts.AdvisoryDelay)
	assert.Equal(t, 2500*time.Millisecond, opts.StatusResetDelay)
	assert.Equal(t, session.GenerationOptions{
		DefaultMaxNewTokens: 64,
		MaxNewTokensLimit:   512,
		Temperature:         0.2,
		RepetitionPenalty:   1.1,
		DoSample:            true,
		Stream:              true,
	}, opts.Generation)
}

func TestReclaimOptions_FromConfig(t *testing.T) {
	r := config.Default().Reclaim
	r.IdleThresholdSecs = 120
	r.MemoryHighWater = 0.8

	opts := reclaimOptions(r, nil)
	assert.Equal(t, 2*time.Minute, opts.IdleThreshold)
	assert.Equal(t, time.Minute, opts.IdleCheckInterval)
	assert.Equal(t, 15*time.Second, opts.MemoryCheckInterval)
	assert.InDelta(t, 0.8, opts.MemoryHighWater, 1e-9)
}

func TestNewFormatter(t *testing.T) {
	cfg := config.Default()
	f, err := newFormatter(cfg)
	require.NoError(t, err)
	assert.IsType(t, prompt.Template{}, f)
	assert.True(t, usesTemplate(cfg))

	cfg.Prompt.Strategy = prompt.StrategyIdentity
	f, err = newFormatter(cfg)
	require.NoError(t, err)
	assert.Equal(t, prompt.Identity{}, f)
	assert.False(t, usesTemplate(cfg))

	cfg = config.Default()
	cfg.Model.Backend = config.BackendOpenAI
	f, err = newFormatter(cfg)
	require.NoError(t, err)
	assert.Equal(t, prompt.Identity{}, f)
	assert.False(t, usesTemplate(cfg))

	cfg = config.Default()
	cfg.Prompt.TemplateFile = filepath.Join(t.TempDir(), "missing.md")
	_, err = newFormatter(cfg)
	assert.Error(t, err)
}

func TestNewBackend_OllamaRuntimeCheck(t *testing.T) {
	srv := ollamaServer(t)
	cfg := config.Default()
	cfg.Model.BaseURL = srv.URL

	be, err := newBackend(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "Ollama", be.name)
	assert.NoError(t, be.runtime(t.Context()))

	srv.Close()
	cfg.Model.AutoStart = false
	be, err = newBackend(cfg, nil)
	require.NoError(t, err)
	assert.Error(t, be.runtime(t.Context()))
}

func TestNewBackend_Unknown(t *testing.T) {
	cfg := config.Default()
	cfg.Model.Backend = "llamafile"
	_, err := newBackend(cfg, nil)
	assert.ErrorContains(t, err, "unknown backend")
}

// =============================================================================
// COMMANDS
// =============================================================================

func TestProbeCommand_Supported(t *testing.T) {
	dir := isolate(t)
	srv := ollamaServer(t)
	path := writeConfig(t, dir, fmt.Sprintf("[model]\nbase_url = %q\n", srv.URL))

	out, err := run(t, "--config", path, "probe", "--json")
	require.NoError(t, err)

	var report detect.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.True(t, report.Supported)
}

func TestProbeCommand_Unsupported(t *testing.T) {
	dir := isolate(t)
	srv := ollamaServer(t)
	url := srv.URL
	srv.Close()
	path := writeConfig(t, dir, fmt.Sprintf("[model]\nbase_url = %q\nauto_start = false\n", url))

	out, err := run(t, "--config", path, "probe")
	assert.ErrorIs(t, err, errUnsupported)
	assert.Contains(t, out, "Environment: UNSUPPORTED")
	assert.Contains(t, out, "Ollama unavailable")
}

func TestConfigShow_RedactsSecrets(t *testing.T) {
	dir := isolate(t)
	path := writeConfig(t, dir, "[model]\nbackend = \"openai\"\napi_key = \"sk-secret\"\n")

	out, err := run(t, "--config", path, "config", "show", "--format", "json")
	require.NoError(t, err)
	assert.NotContains(t, out, "sk-secret")
	assert.Contains(t, out, `"api_key": "***"`)

	out, err = run(t, "--config", path, "config", "show", "-f", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "backend: openai")

	_, err = run(t, "--config", path, "config", "show", "-f", "xml")
	assert.ErrorContains(t, err, "unknown format")
}

func TestConfigInit_WritesDefaultsOnce(t *testing.T) {
	dir := isolate(t)

	out, err := run(t, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(dir, "config.toml"))

	_, err = run(t, "config", "init")
	assert.ErrorContains(t, err, "already exists")

	_, err = run(t, "config", "init", "--force")
	assert.NoError(t, err)

	out, err = run(t, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.toml")+"\n", out)
}

func TestConfigPath_NotCreated(t *testing.T) {
	isolate(t)
	out, err := run(t, "config", "path")
	require.NoError(t, err)
	assert.Contains(t, out, "(not created yet)")
}

func TestConfigSetGet(t *testing.T) {
	isolate(t)
	t.Setenv("TINYCHAT_MODEL", "from-env")

	out, err := run(t, "config", "set", "generation.temperature", "0.3")
	require.NoError(t, err)
	assert.Contains(t, out, "generation.temperature = 0.3")

	out, err = run(t, "config", "get", "generation.temperature")
	require.NoError(t, err)
	assert.Equal(t, "0.3\n", out)

	// The environment override is visible but was not written to the file.
	out, err = run(t, "config", "get", "model.name")
	require.NoError(t, err)
	assert.Equal(t, "from-env\n", out)
	t.Setenv("TINYCHAT_MODEL", "")
	out, err = run(t, "config", "get", "model.name")
	require.NoError(t, err)
	assert.Equal(t, "tinyllama\n", out)

	_, err = run(t, "config", "set", "generation.temperature", "9")
	assert.Error(t, err)

	_, err = run(t, "config", "get", "nope")
	assert.ErrorContains(t, err, "valid keys")
}

func TestConfigSchema(t *testing.T) {
	isolate(t)
	out, err := run(t, "config", "schema")
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &schema))
	assert.Contains(t, schema, "properties")
}

func TestRoot_InvalidBackendFlag(t *testing.T) {
	isolate(t)
	_, err := run(t, "--backend", "nope")
	assert.ErrorContains(t, err, "invalid --backend")
}
