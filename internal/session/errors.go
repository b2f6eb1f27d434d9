// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"fmt"

	"github.com/jeranaias/tinychat/internal/ollama"
	"github.com/jeranaias/tinychat/internal/pipeline"
)

var (
	// ErrAcquire wraps failures to load the pipeline. The next Submit retries.
	ErrAcquire = errors.New("failed to load model")
	// ErrGenerate wraps failures while generating.
	ErrGenerate = errors.New("generation failed")
	// ErrPanic wraps a panic recovered inside Submit.
	ErrPanic = errors.New("internal error")
)

// Hint returns a remediation suggestion for err, or "" when none applies.
func Hint(err error, modelName string) string {
	switch {
	case err == nil:
		return ""
	case ollama.IsNotRunning(err):
		return "Start Ollama with 'ollama serve' or set model.auto_start = true."
	case ollama.IsModelNotFound(err):
		return fmt.Sprintf("Pull it with 'ollama pull %s' or set model.pull = true.", modelName)
	case errors.Is(err, pipeline.ErrModelNotServed):
		return "Check the model name your endpoint serves."
	case ollama.IsTimeout(err):
		return "The runtime did not answer in time. Try again."
	case errors.Is(err, ErrPanic):
		return "See the log file for details."
	default:
		return "Try again, or check the log file for details."
	}
}
