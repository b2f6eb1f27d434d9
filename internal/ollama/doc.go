// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with Ollama API.
//
// The client covers what a chat front end needs to manage a single local
// model: health checks and auto-start, pulling a missing model with
// progress, loading and unloading it, and streaming text generation.
//
// # Key Types
//
//   - Client: HTTP client for Ollama API communication
//   - GenerateRequest: Request body for /api/generate
//   - GenerateStream: Iterator over streamed generation chunks
//   - PullProgress: One progress line of a model download
//   - ClientError: Typed error with IsNotRunning/IsModelNotFound helpers
//
// # Usage
//
//	client := ollama.NewClient()
//	if err := client.Pull(ctx, "tinyllama", func(p ollama.PullProgress) { ... }); err != nil {
//	    return err
//	}
//	if err := client.Load(ctx, "tinyllama", "30m"); err != nil {
//	    return err
//	}
//	stream, err := client.GenerateStream(ctx, ollama.GenerateRequest{Model: "tinyllama", Prompt: p})
//	if err != nil {
//	    return err
//	}
//	defer stream.Close()
//	for stream.Next() {
//	    fmt.Print(stream.Current().Content)
//	}
//	return stream.Err()
package ollama
