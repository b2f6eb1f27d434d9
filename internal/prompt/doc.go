// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package prompt maps raw user text into the prompt the model expects.
//
// Two strategies are supported and exactly one is picked per deployment:
//
//   - Identity: the user text is passed through unchanged. Use this for
//     models served behind a chat endpoint that applies its own template.
//   - Template: the user text is wrapped in a role-tagged chat template with
//     a system preamble, the user turn and an open assistant turn, each turn
//     closed by an end-of-turn token (TinyLlama / Zephyr format).
//
// Formatters are pure: they never touch session state and accept any
// string, including the empty one. Rejecting blank input is the caller's job.
//
// A template can also be loaded from a markdown file whose YAML front matter
// selects the strategy and end-of-turn token and whose body is the system
// preamble:
//
//	---
//	strategy: template
//	end_of_turn: "</s>"
//	---
//	You are a friendly chatbot who answers briefly.
package prompt
