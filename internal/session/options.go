// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jeranaias/tinychat/internal/pipeline"
	"github.com/jeranaias/tinychat/internal/prompt"
)

// Status texts.
const (
	TextReadyCold      = "Ready! Submit a message to load the model."
	TextReadyLoaded    = "Model loaded! Ask away."
	TextNextQuestion   = "Ready for next question!"
	TextEmptyInput     = "Please enter a message first."
	TextGenerating     = "Generating..."
	TextUnloaded       = "Model unloaded to save memory"
	TextCancelled      = "Generation cancelled"
	CancellationMarker = "\n\n[Generation cancelled]"
)

// PartialPolicy decides what happens to partial assistant text on cancel.
type PartialPolicy string

const (
	// PartialKeep finalizes the partial bubble with the cancellation marker.
	PartialKeep PartialPolicy = "keep"
	// PartialDiscard removes the partial bubble.
	PartialDiscard PartialPolicy = "discard"
)

// GenerationOptions are the sampling parameters applied to each Submit.
type GenerationOptions struct {
	// DefaultMaxNewTokens is used when the user value is unparsable or
	// non-positive.
	DefaultMaxNewTokens int
	// MaxNewTokensLimit clamps the user value. Zero disables the clamp.
	MaxNewTokensLimit int
	Temperature       float64
	RepetitionPenalty float64
	DoSample          bool
	Stream            bool
}

// DefaultGenerationOptions returns the sampling defaults.
func DefaultGenerationOptions() GenerationOptions {
	return GenerationOptions{
		DefaultMaxNewTokens: 256,
		MaxNewTokensLimit:   2048,
		Temperature:         0.7,
		RepetitionPenalty:   1.1,
		DoSample:            true,
		Stream:              true,
	}
}

// Options configures a Controller.
type Options struct {
	// Model is the model identifier passed to the factory.
	Model string
	// Task defaults to pipeline.TaskTextGeneration.
	Task pipeline.Task
	// Formatter defaults to prompt.Identity.
	Formatter prompt.Formatter
	// Generation defaults to DefaultGenerationOptions.
	Generation GenerationOptions
	// PartialOnCancel defaults to PartialKeep.
	PartialOnCancel PartialPolicy
	// AdvisoryDelay is how long the blank-input advisory stays (default 2s).
	AdvisoryDelay time.Duration
	// StatusResetDelay is how long a result stays before the ready status
	// returns (default 3s).
	StatusResetDelay time.Duration
	// ReleaseTimeout bounds closing a released handle (default 10s).
	ReleaseTimeout time.Duration
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

func (o *Options) fillDefaults() {
	if o.Task == "" {
		o.Task = pipeline.TaskTextGeneration
	}
	if o.Formatter == nil {
		o.Formatter = prompt.Identity{}
	}
	if o.Generation == (GenerationOptions{}) {
		o.Generation = DefaultGenerationOptions()
	}
	if o.PartialOnCancel == "" {
		o.PartialOnCancel = PartialKeep
	}
	if o.AdvisoryDelay <= 0 {
		o.AdvisoryDelay = 2 * time.Second
	}
	if o.StatusResetDelay <= 0 {
		o.StatusResetDelay = 3 * time.Second
	}
	if o.ReleaseTimeout <= 0 {
		o.ReleaseTimeout = 10 * time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// ParseMaxTokens parses a user-entered token count. Unparsable or
// non-positive input yields fallback; limit > 0 clamps the result.
func ParseMaxTokens(raw string, fallback, limit int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		n = fallback
	}
	if limit > 0 && n > limit {
		n = limit
	}
	return n
}
