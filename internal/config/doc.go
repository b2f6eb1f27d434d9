// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for tinychat.
//
// # Sections
//
//   - model: backend (ollama or openai), model name, server address
//   - generation: sampling parameters, hot-reloaded while running
//   - prompt: template strategy and system preamble
//   - reclaim: idle and memory-pressure unloading
//   - ui, log: presentation and logging
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (TINYCHAT_*), including a .env file
//   - The first of config.toml, config.jsonc, config.json, config.yaml in
//     ~/.tinychat (or $TINYCHAT_HOME)
//   - Built-in defaults
//
// File values are deep-merged over the defaults, so a file only needs the
// keys it changes.
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	temp := cfg.Generation.Temperature
package config
