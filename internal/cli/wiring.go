// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jeranaias/tinychat/internal/config"
	"github.com/jeranaias/tinychat/internal/detect"
	"github.com/jeranaias/tinychat/internal/ollama"
	"github.com/jeranaias/tinychat/internal/pipeline"
	"github.com/jeranaias/tinychat/internal/prompt"
	"github.com/jeranaias/tinychat/internal/reclaim"
	"github.com/jeranaias/tinychat/internal/session"
)

// =============================================================================
// BACKEND
// =============================================================================

// backend bundles the pipeline factory with the probe's hard requirement.
type backend struct {
	name    string
	factory pipeline.Factory
	runtime detect.RuntimeCheck
	// modelStore is where a missing model would be downloaded, if any.
	modelStore string
}

// newBackend builds the factory selected by model.backend.
func newBackend(cfg *config.Config, logger *slog.Logger) (*backend, error) {
	switch cfg.Model.Backend {
	case config.BackendOllama, "":
		client := ollama.NewClientWithConfig(&ollama.ClientConfig{
			BaseURL:      cfg.Model.ResolvedBaseURL(),
			Timeout:      cfg.Model.RequestTimeout(),
			StartTimeout: cfg.Model.StartTimeout(),
			Logger:       logger,
		})
		factory := pipeline.NewOllamaFactory(client, pipeline.OllamaOptions{
			AutoStart: cfg.Model.AutoStart,
			Pull:      cfg.Model.Pull,
			KeepAlive: cfg.Model.KeepAlive,
			Raw:       usesTemplate(cfg),
			Logger:    logger,
		})
		autoStart := cfg.Model.AutoStart
		store := ""
		if cfg.Model.Pull {
			store = ollama.ModelsDir()
		}
		return &backend{
			name:       "Ollama",
			factory:    factory,
			modelStore: store,
			runtime: func(ctx context.Context) error {
				err := client.CheckRunning(ctx)
				if err != nil && autoStart && ollama.Installed() {
					// Started on the first message.
					return nil
				}
				return err
			},
		}, nil

	case config.BackendOpenAI:
		factory := pipeline.NewOpenAIFactory(pipeline.OpenAIOptions{
			BaseURL: cfg.Model.ResolvedBaseURL(),
			APIKey:  cfg.Model.APIKey,
			System:  cfg.Prompt.System,
			Logger:  logger,
		})
		return &backend{
			name:    "OpenAI-compatible server",
			factory: factory,
			runtime: factory.CheckRunning,
		}, nil

	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Model.Backend)
	}
}

// usesTemplate reports whether prompts are formatted locally.
func usesTemplate(cfg *config.Config) bool {
	if cfg.Model.Backend == config.BackendOpenAI {
		return false
	}
	if cfg.Prompt.TemplateFile != "" {
		return true
	}
	return cfg.Prompt.Strategy != prompt.StrategyIdentity
}

// newFormatter builds the prompt formatter. Chat-completions servers apply
// their own chat template, so they always get the raw text.
func newFormatter(cfg *config.Config) (prompt.Formatter, error) {
	if cfg.Model.Backend == config.BackendOpenAI {
		return prompt.Identity{}, nil
	}
	if cfg.Prompt.TemplateFile != "" {
		return prompt.LoadTemplateFile(cfg.Prompt.TemplateFile)
	}
	return prompt.New(cfg.Prompt.Strategy, cfg.Prompt.System, cfg.Prompt.EndOfTurn)
}

// newProber creates the compatibility prober for a backend.
func newProber(cfg *config.Config, be *backend, logger *slog.Logger) *detect.Prober {
	return detect.NewProber(detect.ProberOptions{
		Runtime:     be.runtime,
		RuntimeName: be.name,
		Model:       cfg.Model.Name,
		ModelStore:  be.modelStore,
		Logger:      logger,
	})
}

// =============================================================================
// SESSION
// =============================================================================

// generationOptions maps the generation section to controller options.
func generationOptions(g config.GenerationConfig) session.GenerationOptions {
	return session.GenerationOptions{
		DefaultMaxNewTokens: g.MaxNewTokens,
		MaxNewTokensLimit:   g.MaxNewTokensLimit,
		Temperature:         g.Temperature,
		RepetitionPenalty:   g.RepetitionPenalty,
		DoSample:            g.DoSample,
		Stream:              g.Stream,
	}
}

// sessionOptions maps the configuration to controller options.
func sessionOptions(cfg *config.Config, formatter prompt.Formatter, logger *slog.Logger) session.Options {
	return session.Options{
		Model:            cfg.Model.Name,
		Task:             pipeline.TaskTextGeneration,
		Formatter:        formatter,
		Generation:       generationOptions(cfg.Generation),
		PartialOnCancel:  session.PartialPolicy(cfg.UI.PartialOnCancel),
		AdvisoryDelay:    cfg.UI.AdvisoryDelay(),
		StatusResetDelay: cfg.UI.StatusResetDelay(),
		Logger:           logger,
	}
}

// reclaimOptions maps the reclaim section to reclaimer options.
func reclaimOptions(r config.ReclaimConfig, logger *slog.Logger) reclaim.Options {
	opts := reclaim.DefaultOptions()
	opts.IdleCheckInterval = r.IdleCheckInterval()
	opts.IdleThreshold = r.IdleThreshold()
	opts.MemoryCheckInterval = r.MemoryCheckInterval()
	opts.MemoryHighWater = r.MemoryHighWater
	opts.Logger = logger
	return opts
}

// startBackground runs the reclaimer and the config watcher until ctx ends.
func (a *app) startBackground(ctx context.Context, ctrl *session.Controller) {
	if a.cfg.Reclaim.Enabled {
		go reclaim.New(ctrl, reclaimOptions(a.cfg.Reclaim, a.logger)).Run(ctx)
	}

	if a.configPath == "" {
		return
	}
	err := config.Watch(ctx, a.configPath, config.DefaultWatchDebounce, func(cfg *config.Config, err error) {
		if err != nil {
			a.logger.Warn("CONFIG_RELOAD_FAILED", "path", a.configPath, "error", err)
			return
		}
		config.SetGlobal(cfg)
		ctrl.SetGeneration(generationOptions(cfg.Generation))
		a.logger.Info("CONFIG_RELOADED", "path", a.configPath)
	})
	if err != nil {
		a.logger.Warn("CONFIG_WATCH_FAILED", "path", a.configPath, "error", err)
	}
}
