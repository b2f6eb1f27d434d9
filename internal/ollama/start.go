// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// Installed reports whether an ollama executable can be found, so a
// server that is not running yet can still be started on demand.
func Installed() bool {
	_, err := findOllamaExecutable()
	return err == nil
}

// ModelsDir returns where the local server stores model weights:
// $OLLAMA_MODELS, or ~/.ollama/models.
func ModelsDir() string {
	if dir := os.Getenv("OLLAMA_MODELS"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".ollama", "models")
}

// startOllamaProcess launches "ollama serve" detached from this process and
// polls until the API answers or StartTimeout elapses.
func (c *Client) startOllamaProcess(ctx context.Context) error {
	ollamaPath, err := findOllamaExecutable()
	if err != nil {
		return &ClientError{
			Type:    ErrTypeNotRunning,
			Message: "failed to find Ollama executable",
			Cause:   err,
		}
	}

	cmd := exec.Command(ollamaPath, "serve")
	detach(cmd)

	if err := cmd.Start(); err != nil {
		return &ClientError{
			Type:    ErrTypeNotRunning,
			Message: fmt.Sprintf("failed to start Ollama (path: %s)", ollamaPath),
			Cause:   err,
		}
	}

	// Release the process so it continues running after we exit
	if cmd.Process != nil {
		_ = cmd.Process.Release()
	}

	c.log.Info("OLLAMA_START", "path", ollamaPath)
	startTime := time.Now()
	deadline := startTime.Add(c.config.StartTimeout)
	var lastErr error

	for time.Now().Before(deadline) {
		checkCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		lastErr = c.CheckRunning(checkCtx)
		cancel()

		if lastErr == nil {
			c.log.Info("OLLAMA_READY", "elapsed", time.Since(startTime).Round(100*time.Millisecond))
			return nil
		}

		select {
		case <-ctx.Done():
			return &ClientError{
				Type:    ErrTypeCancelled,
				Message: "Ollama startup cancelled",
				Cause:   ctx.Err(),
			}
		case <-time.After(500 * time.Millisecond):
		}
	}

	return &ClientError{
		Type:    ErrTypeNotRunning,
		Message: fmt.Sprintf("Ollama started but not responding after %s (path: %s)", c.config.StartTimeout, ollamaPath),
		Cause:   lastErr,
	}
}
