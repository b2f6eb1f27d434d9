// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package pipeline abstracts the inference runtime behind a small port.
//
// A Factory acquires a Pipeline (a loaded model) for a task, reporting
// load progress as fractions in [0,1]. A Pipeline turns a prompt into a
// Stream of Updates. Streams are lazy, finite and not restartable: they
// end when generation completes, fails, or the context passed to Generate
// is cancelled.
//
// # Backends
//
//   - OllamaFactory: a local Ollama server; pulls the model when missing,
//     loads it into memory on Acquire and unloads it on Close
//   - OpenAIFactory: any OpenAI-compatible server (llama.cpp llama-server,
//     vLLM, LM Studio) via openai-go
package pipeline
