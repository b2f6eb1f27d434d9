// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with Ollama API.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error from the Ollama client.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeNotRunning
	ErrTypeTimeout
	ErrTypeModelNotFound
	ErrTypeCancelled
	ErrTypeConnection
	ErrTypeInvalidResponse
	ErrTypePull
)

// Sentinel errors for easy checking.
var (
	ErrNotRunning    = &ClientError{Type: ErrTypeNotRunning, Message: "Ollama is not running"}
	ErrTimeout       = &ClientError{Type: ErrTypeTimeout, Message: "request timed out"}
	ErrModelNotFound = &ClientError{Type: ErrTypeModelNotFound, Message: "model not found"}
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the Ollama client.
type ClientConfig struct {
	// BaseURL is the Ollama API base URL (default: http://127.0.0.1:11434)
	// Note: Uses explicit IPv4 address instead of localhost to avoid IPv6 resolution issues on Windows
	BaseURL string

	// Timeout for non-streaming requests (default: 30s)
	Timeout time.Duration

	// StartTimeout bounds how long EnsureRunning waits for a freshly
	// started server (default: 10s)
	StartTimeout time.Duration

	// Logger receives client events. Defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:      "http://127.0.0.1:11434",
		Timeout:      30 * time.Second,
		StartTimeout: 10 * time.Second,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client handles communication with the Ollama API.
// It provides health checks, model pull/load/unload and streaming generation.
//
// The Client is thread-safe for concurrent use.
//
// Example:
//
//	client := ollama.NewClient()
//	if err := client.EnsureRunning(ctx); err != nil {
//	    return err
//	}
//	stream, err := client.GenerateStream(ctx, ollama.GenerateRequest{Model: "tinyllama", Prompt: p})
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
	// SECURITY: TLS not required - Ollama runs locally on 127.0.0.1 over HTTP.
	// Streaming requests have no client timeout; they are bounded by context.
	streamClient *http.Client
	log          *slog.Logger
}

// NewClient creates a new Ollama client with default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithConfig creates a new Ollama client with custom configuration.
func NewClientWithConfig(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	// Fill in defaults for any zero values
	if config.BaseURL == "" {
		config.BaseURL = "http://127.0.0.1:11434"
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.StartTimeout == 0 {
		config.StartTimeout = 10 * time.Second
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		config:       config,
		httpClient:   &http.Client{Timeout: config.Timeout},
		streamClient: &http.Client{},
		log:          logger.With("component", "ollama"),
	}
}

// BaseURL returns the API base URL the client talks to.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// =============================================================================
// HEALTH CHECK
// =============================================================================

// CheckRunning verifies that Ollama is reachable and running.
func (c *Client) CheckRunning(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL, nil)
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(ctx, err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &ClientError{
			Type:    ErrTypeConnection,
			Message: "unexpected status from Ollama: " + resp.Status,
		}
	}

	return nil
}

// EnsureRunning checks if Ollama is running, and starts it if not.
// The actual start logic is platform-specific (see start_windows.go and start_unix.go).
func (c *Client) EnsureRunning(ctx context.Context) error {
	if err := c.CheckRunning(ctx); err == nil {
		return nil
	}
	return c.startOllamaProcess(ctx)
}

// =============================================================================
// MODEL OPERATIONS
// =============================================================================

// ShowModel retrieves information about a locally available model.
// Returns ErrModelNotFound when the model has not been pulled.
func (c *Client) ShowModel(ctx context.Context, name string) (*ShowModelResponse, error) {
	resp, err := c.post(ctx, c.httpClient, "/api/show", ShowModelRequest{Model: name, Name: name})
	if err != nil {
		return nil, err
	}
	defer drainAndClose(resp.Body)

	var result ShowModelResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}
	return &result, nil
}

// ModelExists checks if a model is available locally.
func (c *Client) ModelExists(ctx context.Context, name string) (bool, error) {
	_, err := c.ShowModel(ctx, name)
	if err == nil {
		return true, nil
	}
	if IsModelNotFound(err) {
		return false, nil
	}
	return false, err
}

// PullCallback receives each progress line of a model download.
type PullCallback func(PullProgress)

// Pull downloads a model, reporting progress lines to fn as they arrive.
// Blocks until the pull finishes, fails, or ctx is cancelled.
func (c *Client) Pull(ctx context.Context, name string, fn PullCallback) error {
	c.log.Info("MODEL_PULL_START", "model", name)
	resp, err := c.post(ctx, c.streamClient, "/api/pull", PullRequest{Model: name, Stream: true})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	reader := NewStreamReader(resp.Body)
	for {
		line, err := reader.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return readError(ctx, err)
		}

		var p PullProgress
		if err := json.Unmarshal(line, &p); err != nil {
			continue
		}
		if p.Error != "" {
			return &ClientError{Type: ErrTypePull, Message: "pull failed: " + p.Error}
		}
		if fn != nil {
			fn(p)
		}
		if p.Status == "success" {
			c.log.Info("MODEL_PULL_DONE", "model", name)
			return nil
		}
	}

	return &ClientError{Type: ErrTypePull, Message: "pull ended before success"}
}

// Load asks the server to load a model into memory and keep it resident
// for keepAlive (a duration such as "30m", or "-1" for indefinitely).
func (c *Client) Load(ctx context.Context, name string, keepAlive string) error {
	req := GenerateRequest{Model: name, Stream: false}
	if keepAlive != "" {
		req.KeepAlive = keepAlive
	}
	start := time.Now()
	if err := c.generateNoPrompt(ctx, req); err != nil {
		return err
	}
	c.log.Info("MODEL_LOADED", "model", name, "elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

// Unload evicts a model from server memory.
func (c *Client) Unload(ctx context.Context, name string) error {
	if err := c.generateNoPrompt(ctx, GenerateRequest{Model: name, Stream: false, KeepAlive: 0}); err != nil {
		return err
	}
	c.log.Info("MODEL_UNLOADED", "model", name)
	return nil
}

func (c *Client) generateNoPrompt(ctx context.Context, body GenerateRequest) error {
	payload := map[string]any{"model": body.Model, "stream": false}
	if body.KeepAlive != nil {
		payload["keep_alive"] = body.KeepAlive
	}

	// Loads can take far longer than the default request timeout.
	resp, err := c.post(ctx, c.streamClient, "/api/generate", payload)
	if err != nil {
		return err
	}
	defer drainAndClose(resp.Body)

	var result GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}
	if result.Error != "" {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: result.Error}
	}
	return nil
}

// =============================================================================
// STREAMING GENERATION
// =============================================================================

// GenerateStream sends a streaming generate request. The caller must Close
// the returned stream.
func (c *Client) GenerateStream(ctx context.Context, req GenerateRequest) (*GenerateStream, error) {
	req.Stream = true
	resp, err := c.post(ctx, c.streamClient, "/api/generate", req)
	if err != nil {
		return nil, err
	}
	return newGenerateStream(ctx, resp.Body), nil
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

// post marshals body, sends it to path and maps non-2xx statuses to
// ClientErrors. On success the caller owns resp.Body.
func (c *Client) post(ctx context.Context, hc *http.Client, path string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return nil, transportError(ctx, err)
	}

	if resp.StatusCode == http.StatusOK {
		return resp, nil
	}
	defer drainAndClose(resp.Body)

	var ollamaErr OllamaError
	_ = json.NewDecoder(resp.Body).Decode(&ollamaErr)

	if resp.StatusCode == http.StatusNotFound {
		if ollamaErr.Error != "" {
			return nil, &ClientError{Type: ErrTypeModelNotFound, Message: ollamaErr.Error}
		}
		return nil, ErrModelNotFound
	}
	if ollamaErr.Error != "" {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: ollamaErr.Error}
	}
	return nil, &ClientError{
		Type:    ErrTypeInvalidResponse,
		Message: path + " failed: " + resp.Status,
	}
}

// transportError classifies a failed round trip.
func transportError(ctx context.Context, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return &ClientError{Type: ErrTypeCancelled, Message: "request cancelled", Cause: ctx.Err()}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return &ClientError{Type: ErrTypeTimeout, Message: "request timed out", Cause: context.DeadlineExceeded}
	default:
		return &ClientError{Type: ErrTypeNotRunning, Message: "Ollama is not running", Cause: err}
	}
}

// readError classifies a failure while reading a response body.
func readError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return transportError(ctx, err)
	}
	return &ClientError{Type: ErrTypeConnection, Message: "stream interrupted", Cause: err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsModelNotFound checks if an error is a model not found error.
func IsModelNotFound(err error) bool {
	return hasType(err, ErrTypeModelNotFound)
}

// IsNotRunning checks if an error indicates Ollama is not running.
func IsNotRunning(err error) bool {
	return hasType(err, ErrTypeNotRunning)
}

// IsTimeout checks if an error is a timeout error.
func IsTimeout(err error) bool {
	return hasType(err, ErrTypeTimeout)
}

// IsCancelled checks if an error came from a cancelled context.
func IsCancelled(err error) bool {
	return hasType(err, ErrTypeCancelled) || errors.Is(err, context.Canceled)
}

func hasType(err error, t ErrorType) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == t
	}
	return false
}

// Helper to drain response body
func drainAndClose(r io.ReadCloser) {
	_, _ = io.Copy(io.Discard, r)
	r.Close()
}
