// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jeranaias/tinychat/internal/config"
	"github.com/jeranaias/tinychat/internal/logging"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// app holds the global flags and the state shared by subcommands.
type app struct {
	configPath string
	verbose    bool

	// chat flags
	model   string
	backend string
	plain   bool
	tui     bool

	cfg     *config.Config
	logger  *slog.Logger
	closers []io.Closer
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	root, _ := newRootCommand()
	return root
}

func newRootCommand() (*cobra.Command, *app) {
	a := &app{}

	root := &cobra.Command{
		Use:   "tinychat",
		Short: "Chat with a small local language model",
		Long: `tinychat is a terminal chat for a small local model served by Ollama or
an OpenAI-compatible server. The model is loaded on the first message,
answers stream token by token, and the model is unloaded again when idle
or when the machine runs low on memory.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runChat(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file path")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	f := root.Flags()
	f.StringVarP(&a.model, "model", "m", "", "model to chat with (overrides model.name)")
	f.StringVar(&a.backend, "backend", "", "backend: ollama or openai (overrides model.backend)")
	f.BoolVar(&a.plain, "plain", false, "use the line-mode interface")
	f.BoolVar(&a.tui, "tui", false, "use the full-screen interface even when not detected")
	root.MarkFlagsMutuallyExclusive("plain", "tui")

	root.AddCommand(newProbeCommand(a))
	root.AddCommand(newConfigCommand(a))
	return root, a
}

// Execute runs the root command.
func Execute() error {
	root, a := newRootCommand()
	defer a.teardown()
	return root.Execute()
}

// setup loads configuration and starts logging.
func (a *app) setup(cmd *cobra.Command) error {
	path := a.configPath
	if path == "" {
		found, err := config.FindConfigFile()
		if err != nil {
			return err
		}
		path = found
	}
	a.configPath = path

	cfg, err := config.LoadFromPath(path)
	if err != nil {
		return err
	}
	if a.model != "" {
		cfg.Model.Name = a.model
	}
	if a.backend != "" {
		cfg.Model.Backend = a.backend
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid --backend: %w", err)
		}
	}
	config.SetGlobal(cfg)
	a.cfg = cfg

	logFile := cfg.Log.File
	if logFile == "" {
		dir, err := config.ConfigDir()
		if err != nil {
			return err
		}
		logFile = filepath.Join(dir, "tinychat.log")
	}
	logger, closer, err := logging.Setup(logging.Options{
		Level:      cfg.Log.Level,
		Verbose:    a.verbose,
		File:       logFile,
		Format:     cfg.Log.Format,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Stderr:     cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	a.logger = logger
	a.closers = append(a.closers, closer)

	logger.Debug("CONFIG_LOADED", "path", path, "backend", cfg.Model.Backend, "model", cfg.Model.Name)
	return nil
}

func (a *app) teardown() {
	for _, c := range a.closers {
		_ = c.Close()
	}
	a.closers = nil
}
