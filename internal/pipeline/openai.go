// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
)

// =============================================================================
// OPENAI-COMPATIBLE FACTORY
// =============================================================================

// OpenAIOptions configures the OpenAI-compatible backend.
type OpenAIOptions struct {
	// BaseURL of the server, e.g. http://127.0.0.1:8080/v1.
	BaseURL string
	// APIKey is sent as a bearer token. Local servers usually ignore it.
	APIKey string
	// System, when set, is sent as a system message before the prompt.
	System string
	// Logger receives backend events. Defaults to slog.Default().
	Logger *slog.Logger
}

// OpenAIFactory serves models from an OpenAI-compatible server. The server
// owns model residency, so acquiring only verifies the model is served.
type OpenAIFactory struct {
	client *openai.Client
	opts   OpenAIOptions
	log    *slog.Logger
}

// NewOpenAIFactory creates a factory for the server at opts.BaseURL.
func NewOpenAIFactory(opts OpenAIOptions) *OpenAIFactory {
	var client *openai.Client
	if opts.BaseURL != "" {
		// Paths resolve relative to the base, which must end in a slash.
		if !strings.HasSuffix(opts.BaseURL, "/") {
			opts.BaseURL += "/"
		}
		client = openai.NewClient(option.WithBaseURL(opts.BaseURL), option.WithAPIKey(opts.APIKey))
	} else {
		client = openai.NewClient(option.WithAPIKey(opts.APIKey))
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIFactory{client: client, opts: opts, log: logger.With("component", "pipeline", "backend", "openai")}
}

// ErrModelNotServed is returned when the server does not know the model.
var ErrModelNotServed = errors.New("model not served by endpoint")

// CheckRunning verifies the endpoint answers. It backs the compatibility probe.
func (f *OpenAIFactory) CheckRunning(ctx context.Context) error {
	_, err := f.client.Models.List(ctx)
	return err
}

// Acquire checks that the server serves model.
func (f *OpenAIFactory) Acquire(ctx context.Context, task Task, model string, progress ProgressFunc) (Pipeline, error) {
	if task != TaskTextGeneration {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedTask, task)
	}

	report(progress, PhaseLoading, 0)
	if _, err := f.client.Models.Get(ctx, model); err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrModelNotServed, model)
		}
		return nil, err
	}
	report(progress, PhaseLoading, 1)
	report(progress, PhaseCompiling, 1)

	f.log.Info("PIPELINE_ACQUIRED", "model", model)
	return &openAIPipeline{factory: f, model: model}, nil
}

// =============================================================================
// OPENAI-COMPATIBLE PIPELINE
// =============================================================================

type openAIPipeline struct {
	factory *OpenAIFactory
	model   string
}

func (p *openAIPipeline) Model() string { return p.model }

func (p *openAIPipeline) params(prompt string, opts GenerateOptions) openai.ChatCompletionNewParams {
	messages := []openai.ChatCompletionMessageParamUnion{}
	if p.factory.opts.System != "" {
		messages = append(messages, openai.SystemMessage(p.factory.opts.System))
	}
	messages = append(messages, openai.UserMessage(prompt))

	temperature := opts.Temperature
	if !opts.DoSample {
		temperature = 0
	}

	params := openai.ChatCompletionNewParams{
		Messages:    openai.F(messages),
		Model:       openai.F(openai.ChatModel(p.model)),
		Temperature: openai.F(temperature),
	}
	if opts.MaxNewTokens > 0 {
		params.MaxTokens = openai.F(int64(opts.MaxNewTokens))
	}
	return params
}

// requestOptions carries parameters the OpenAI schema lacks but local
// servers accept.
func (p *openAIPipeline) requestOptions(opts GenerateOptions) []option.RequestOption {
	var ro []option.RequestOption
	if opts.RepetitionPenalty > 0 {
		ro = append(ro, option.WithJSONSet("repeat_penalty", opts.RepetitionPenalty))
	}
	return ro
}

func (p *openAIPipeline) Generate(ctx context.Context, prompt string, opts GenerateOptions) (Stream, error) {
	params := p.params(prompt, opts)
	ro := p.requestOptions(opts)

	if !opts.Stream {
		completion, err := p.factory.client.Chat.Completions.New(ctx, params, ro...)
		if err != nil {
			return nil, err
		}
		text := ""
		if len(completion.Choices) > 0 {
			text = completion.Choices[0].Message.Content
		}
		return &sliceStream{updates: []Update{{Text: text, Cumulative: true, Done: true}}}, nil
	}

	stream := p.factory.client.Chat.Completions.NewStreaming(ctx, params, ro...)
	if err := stream.Err(); err != nil {
		stream.Close()
		return nil, err
	}
	return &openAIStream{src: stream}, nil
}

// Close is a no-op: the server manages model memory itself.
func (p *openAIPipeline) Close(ctx context.Context) error {
	p.factory.log.Debug("PIPELINE_RELEASED", "model", p.model)
	return nil
}

// =============================================================================
// OPENAI-COMPATIBLE STREAM
// =============================================================================

type openAIStream struct {
	src  *ssestream.Stream[openai.ChatCompletionChunk]
	cur  Update
	done bool
}

func (s *openAIStream) Next() bool {
	if s.done {
		return false
	}
	for s.src.Next() {
		chunk := s.src.Current()
		if len(chunk.Choices) == 0 {
			// Usage-only chunk
			continue
		}
		choice := chunk.Choices[0]
		s.cur = Update{Text: choice.Delta.Content, Done: choice.FinishReason != ""}
		if s.cur.Done {
			s.done = true
		}
		return true
	}
	s.done = true
	return false
}

func (s *openAIStream) Update() Update { return s.cur }
func (s *openAIStream) Err() error     { return s.src.Err() }
func (s *openAIStream) Close() error   { return s.src.Close() }
