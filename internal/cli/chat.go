// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jeranaias/tinychat/internal/config"
	"github.com/jeranaias/tinychat/internal/detect"
	"github.com/jeranaias/tinychat/internal/session"
	"github.com/jeranaias/tinychat/internal/ui/chat"
	"github.com/jeranaias/tinychat/internal/ui/plain"
	"github.com/jeranaias/tinychat/internal/ui/styles"
)

// Interface modes.
const (
	modeTUI   = "tui"
	modePlain = "plain"
)

// chooseMode picks the interface. Flags win over ui.mode; "auto" uses the
// TUI only when both stdin and stdout are terminals.
func chooseMode(configured string, forcePlain, forceTUI, stdinTTY, stdoutTTY bool) string {
	switch {
	case forcePlain:
		return modePlain
	case forceTUI:
		return modeTUI
	}
	switch strings.ToLower(configured) {
	case modePlain:
		return modePlain
	case modeTUI:
		return modeTUI
	}
	if stdinTTY && stdoutTTY {
		return modeTUI
	}
	return modePlain
}

// runChat wires the session controller to the chosen interface.
func (a *app) runChat(cmd *cobra.Command) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	be, err := newBackend(a.cfg, a.logger)
	if err != nil {
		return err
	}
	formatter, err := newFormatter(a.cfg)
	if err != nil {
		return err
	}
	report := newProber(a.cfg, be, a.logger).Probe(ctx)
	opts := sessionOptions(a.cfg, formatter, a.logger)

	mode := chooseMode(a.cfg.UI.Mode, a.plain, a.tui,
		term.IsTerminal(int(os.Stdin.Fd())), term.IsTerminal(int(os.Stdout.Fd())))
	a.logger.Info("CHAT_START", "mode", mode, "backend", be.name, "model", a.cfg.Model.Name,
		"supported", report.Supported, "warnings", len(report.Warnings))

	if mode == modeTUI {
		return a.runTUI(ctx, be, opts, report)
	}
	return a.runPlain(ctx, cmd, be, opts, report)
}

func (a *app) runTUI(ctx context.Context, be *backend, opts session.Options, report detect.Report) error {
	binder := chat.NewBinder()
	ctrl, err := session.New(be.factory, binder, opts)
	if err != nil {
		return err
	}
	defer ctrl.Shutdown()
	a.startBackground(ctx, ctrl)

	m := chat.New(chat.Options{
		Controller:       ctrl,
		Theme:            styles.NewTheme(a.cfg.UI.Theme),
		ModelName:        a.cfg.Model.Name,
		DefaultMaxTokens: a.cfg.Generation.MaxNewTokens,
		Report:           &report,
		Markdown:         a.cfg.UI.Markdown,
		Context:          ctx,
	})

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	go binder.Run(ctx, p.Send)

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("chat view: %w", err)
	}
	return nil
}

func (a *app) runPlain(ctx context.Context, cmd *cobra.Command, be *backend, opts session.Options, report detect.Report) error {
	noColor := os.Getenv("NO_COLOR") != "" || !term.IsTerminal(int(os.Stdout.Fd()))
	printer := plain.NewPrinter(cmd.OutOrStdout(), noColor)

	for _, w := range report.Warnings {
		printer.Warn("%s", w)
	}
	if !report.Supported {
		return errors.New("environment unsupported, submission disabled (see warnings above)")
	}

	ctrl, err := session.New(be.factory, printer, opts)
	if err != nil {
		return err
	}
	defer ctrl.Shutdown()
	a.startBackground(ctx, ctrl)

	historyFile := ""
	if dir, err := config.ConfigDir(); err == nil && config.EnsureConfigDir() == nil {
		historyFile = filepath.Join(dir, "history")
	}
	repl := plain.NewREPL(ctrl, printer, plain.Options{
		HistoryFile: historyFile,
		MaxTokens:   a.cfg.Generation.MaxNewTokens,
		Logger:      a.logger,
	})
	defer repl.Close()

	printer.Info("tinychat %s | %s via %s", Version, a.cfg.Model.Name, be.name)
	return repl.Run(ctx)
}
