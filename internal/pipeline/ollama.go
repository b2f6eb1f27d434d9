// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/jeranaias/tinychat/internal/ollama"
)

// =============================================================================
// OLLAMA FACTORY
// =============================================================================

// OllamaOptions configures the Ollama backend.
type OllamaOptions struct {
	// AutoStart launches "ollama serve" when the server is not reachable.
	AutoStart bool
	// Pull downloads the model when it is not available locally.
	Pull bool
	// KeepAlive is how long the server keeps the model resident between
	// requests (e.g. "30m"). Empty uses the server default.
	KeepAlive string
	// Raw sends prompts without the server's chat template, for prompts the
	// caller already formatted.
	Raw bool
	// Logger receives backend events. Defaults to slog.Default().
	Logger *slog.Logger
}

// OllamaFactory acquires models from a local Ollama server.
type OllamaFactory struct {
	client *ollama.Client
	opts   OllamaOptions
	log    *slog.Logger
}

// NewOllamaFactory creates a factory backed by client.
func NewOllamaFactory(client *ollama.Client, opts OllamaOptions) *OllamaFactory {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &OllamaFactory{client: client, opts: opts, log: logger.With("component", "pipeline", "backend", "ollama")}
}

// Acquire makes sure the server is up, pulls the model if needed and loads
// it into memory. Download progress is reported under PhaseLoading and the
// load under PhaseCompiling.
func (f *OllamaFactory) Acquire(ctx context.Context, task Task, model string, progress ProgressFunc) (Pipeline, error) {
	if task != TaskTextGeneration {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedTask, task)
	}

	report(progress, PhaseLoading, 0)

	var err error
	if f.opts.AutoStart {
		err = f.client.EnsureRunning(ctx)
	} else {
		err = f.client.CheckRunning(ctx)
	}
	if err != nil {
		return nil, err
	}

	exists, err := f.client.ModelExists(ctx, model)
	if err != nil {
		return nil, err
	}
	if !exists {
		if !f.opts.Pull {
			return nil, &ollama.ClientError{
				Type:    ollama.ErrTypeModelNotFound,
				Message: fmt.Sprintf("model %q not found; run 'ollama pull %s'", model, model),
			}
		}
		err = f.client.Pull(ctx, model, func(p ollama.PullProgress) {
			if frac := p.Fraction(); frac >= 0 {
				report(progress, PhaseLoading, frac)
			}
		})
		if err != nil {
			return nil, err
		}
	}
	report(progress, PhaseLoading, 1)

	report(progress, PhaseCompiling, 0)
	if err := f.client.Load(ctx, model, f.opts.KeepAlive); err != nil {
		return nil, err
	}
	report(progress, PhaseCompiling, 1)

	f.log.Info("PIPELINE_ACQUIRED", "model", model, "pulled", !exists)
	return &ollamaPipeline{factory: f, model: model}, nil
}

// =============================================================================
// OLLAMA PIPELINE
// =============================================================================

type ollamaPipeline struct {
	factory *OllamaFactory
	model   string

	mu     sync.Mutex
	closed bool
}

func (p *ollamaPipeline) Model() string { return p.model }

func (p *ollamaPipeline) Generate(ctx context.Context, prompt string, opts GenerateOptions) (Stream, error) {
	temperature := opts.Temperature
	if !opts.DoSample {
		temperature = 0
	}

	req := ollama.GenerateRequest{
		Model:  p.model,
		Prompt: prompt,
		Raw:    p.factory.opts.Raw,
		Options: &ollama.Options{
			Temperature:   temperature,
			RepeatPenalty: opts.RepetitionPenalty,
			NumPredict:    opts.MaxNewTokens,
		},
	}
	if p.factory.opts.KeepAlive != "" {
		req.KeepAlive = p.factory.opts.KeepAlive
	}

	s, err := p.factory.client.GenerateStream(ctx, req)
	if err != nil {
		return nil, err
	}
	return &ollamaStream{src: s, collect: !opts.Stream, log: p.factory.log, model: p.model}, nil
}

func (p *ollamaPipeline) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	return p.factory.client.Unload(ctx, p.model)
}

// =============================================================================
// OLLAMA STREAM
// =============================================================================

// ollamaStream maps Ollama chunks to delta Updates. With collect set it
// drains the source and yields one cumulative update.
type ollamaStream struct {
	src     *ollama.GenerateStream
	collect bool
	log     *slog.Logger
	model   string

	cur  Update
	done bool
}

func (s *ollamaStream) Next() bool {
	if s.done {
		return false
	}

	if s.collect {
		var sb strings.Builder
		for s.src.Next() {
			sb.WriteString(s.src.Current().Content)
			s.logStats(s.src.Current())
		}
		s.done = true
		if s.src.Err() != nil {
			return false
		}
		s.cur = Update{Text: sb.String(), Cumulative: true, Done: true}
		return true
	}

	if !s.src.Next() {
		s.done = true
		return false
	}
	chunk := s.src.Current()
	s.logStats(chunk)
	s.cur = Update{Text: chunk.Content, Done: chunk.Done}
	if chunk.Done {
		s.done = true
	}
	return true
}

func (s *ollamaStream) logStats(chunk ollama.StreamChunk) {
	if !chunk.Done {
		return
	}
	s.log.Debug("GENERATION_STATS",
		"model", s.model,
		"prompt_tokens", chunk.PromptTokens,
		"completion_tokens", chunk.CompletionTokens,
		"tokens_per_sec", fmt.Sprintf("%.1f", chunk.TokensPerSecond()),
		"done_reason", chunk.DoneReason)
}

func (s *ollamaStream) Update() Update { return s.cur }
func (s *ollamaStream) Err() error     { return s.src.Err() }
func (s *ollamaStream) Close() error   { return s.src.Close() }
