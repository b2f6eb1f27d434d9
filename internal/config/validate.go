// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors as
// ValidateErrors.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}
	oneOf := func(field, value string, allowed ...string) {
		for _, a := range allowed {
			if value == a {
				return
			}
		}
		add(field, "invalid value '%s', must be one of: %s", value, strings.Join(allowed, ", "))
	}

	// Model
	oneOf("model.backend", c.Model.Backend, BackendOllama, BackendOpenAI)
	if c.Model.Name == "" {
		add("model.name", "model name is required")
	}
	if c.Model.BaseURL != "" {
		u, err := url.Parse(c.Model.BaseURL)
		if err != nil {
			add("model.base_url", "invalid URL: %v", err)
		} else if u.Scheme != "http" && u.Scheme != "https" {
			add("model.base_url", "scheme must be http or https")
		}
	}
	if c.Model.KeepAlive != "" && !validKeepAlive(c.Model.KeepAlive) {
		add("model.keep_alive", "invalid duration '%s' (e.g. 30m, 1h, -1)", c.Model.KeepAlive)
	}
	if c.Model.RequestTimeoutSecs <= 0 {
		add("model.request_timeout_secs", "must be positive")
	}
	if c.Model.StartTimeoutSecs <= 0 {
		add("model.start_timeout_secs", "must be positive")
	}

	// Generation
	g := c.Generation
	if g.MaxNewTokens <= 0 {
		add("generation.max_new_tokens", "must be positive")
	}
	if g.MaxNewTokensLimit < 0 {
		add("generation.max_new_tokens_limit", "cannot be negative")
	} else if g.MaxNewTokensLimit > 0 && g.MaxNewTokensLimit < g.MaxNewTokens {
		add("generation.max_new_tokens_limit", "must be at least max_new_tokens (%d)", g.MaxNewTokens)
	}
	if g.Temperature < 0 || g.Temperature > 2 {
		add("generation.temperature", "must be between 0 and 2")
	}
	if g.RepetitionPenalty <= 0 {
		add("generation.repetition_penalty", "must be positive")
	}

	// Prompt
	if c.Prompt.Strategy != "" {
		oneOf("prompt.strategy", c.Prompt.Strategy, "template", "identity")
	}

	// Reclaim
	r := c.Reclaim
	if r.IdleCheckSecs <= 0 {
		add("reclaim.idle_check_secs", "must be positive")
	}
	if r.IdleThresholdSecs <= 0 {
		add("reclaim.idle_threshold_secs", "must be positive")
	}
	if r.MemoryCheckSecs <= 0 {
		add("reclaim.memory_check_secs", "must be positive")
	}
	if r.MemoryHighWater <= 0 || r.MemoryHighWater > 1 {
		add("reclaim.memory_high_water", "must be in (0, 1]")
	}

	// UI
	oneOf("ui.theme", c.UI.Theme, "dark", "light", "auto")
	oneOf("ui.mode", c.UI.Mode, "auto", "tui", "plain")
	oneOf("ui.partial_on_cancel", c.UI.PartialOnCancel, "keep", "discard")
	if c.UI.AdvisoryMS < 0 {
		add("ui.advisory_ms", "cannot be negative")
	}
	if c.UI.StatusResetMS < 0 {
		add("ui.status_reset_ms", "cannot be negative")
	}

	// Log
	oneOf("log.level", c.Log.Level, "debug", "info", "warn", "error")
	oneOf("log.format", c.Log.Format, "text", "json", "auto")
	if c.Log.MaxSizeMB <= 0 {
		add("log.max_size_mb", "must be positive")
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// validKeepAlive accepts Go durations and bare integers (seconds; negative
// keeps the model loaded indefinitely).
func validKeepAlive(s string) bool {
	if _, err := time.ParseDuration(s); err == nil {
		return true
	}
	_, err := strconv.Atoi(s)
	return err == nil
}
