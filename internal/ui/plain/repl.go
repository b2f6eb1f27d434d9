// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package plain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/jeranaias/tinychat/internal/session"
)

// Controller is the subset of the session controller the REPL drives.
type Controller interface {
	Submit(ctx context.Context, text, maxTokensRaw string) session.Outcome
	Cancel() bool
	Clear()
	Touch()
}

// LineReader reads one edited line. *liner.State satisfies it.
type LineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

// =============================================================================
// REPL
// =============================================================================

// Options configures a REPL.
type Options struct {
	// Reader defaults to a liner session on the terminal.
	Reader LineReader
	// HistoryFile persists liner history. Empty disables persistence.
	HistoryFile string
	// MaxTokens is the initial max new tokens value.
	MaxTokens int
	// Prompt defaults to "you> ".
	Prompt string
	// Interrupts delivers Ctrl+C during generation. Defaults to SIGINT.
	Interrupts <-chan os.Signal
	Logger     *slog.Logger
}

// REPL is the plain-mode chat loop.
type REPL struct {
	ctrl    Controller
	printer *Printer
	reader  LineReader
	liner   *liner.State
	opts    Options
	tokens  string
	log     *slog.Logger
}

// NewREPL creates a REPL. When opts.Reader is nil a liner session is
// opened on the terminal and must be released with Close.
func NewREPL(ctrl Controller, printer *Printer, opts Options) *REPL {
	if opts.Prompt == "" {
		opts.Prompt = "you> "
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = session.DefaultGenerationOptions().DefaultMaxNewTokens
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	r := &REPL{
		ctrl:    ctrl,
		printer: printer,
		reader:  opts.Reader,
		opts:    opts,
		tokens:  strconv.Itoa(opts.MaxTokens),
		log:     opts.Logger,
	}
	if r.reader == nil {
		st := liner.NewLiner()
		st.SetCtrlCAborts(true)
		r.liner = st
		r.reader = st
		r.loadHistory()
	}
	return r
}

// MaxTokens returns the current max tokens value as entered.
func (r *REPL) MaxTokens() string {
	return r.tokens
}

// Run reads input until /quit, Ctrl+D, Ctrl+C at the prompt, or ctx ends.
func (r *REPL) Run(ctx context.Context) error {
	interrupts := r.opts.Interrupts
	if interrupts == nil {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt)
		defer signal.Stop(ch)
		interrupts = ch
	}

	loopCtx, stop := context.WithCancel(ctx)
	defer stop()
	go r.cancelOnInterrupt(loopCtx, interrupts)

	r.printer.Info("Type a message and press Enter. /help lists commands, Ctrl+C cancels a generation.")

	for {
		if ctx.Err() != nil {
			return nil
		}
		r.printer.FlushNotices()
		input, err := r.reader.Prompt(r.opts.Prompt)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		r.ctrl.Touch()

		trimmed := strings.TrimSpace(input)
		if trimmed == "" {
			r.printer.Warn(session.TextEmptyInput)
			continue
		}
		r.reader.AppendHistory(input)

		if strings.HasPrefix(trimmed, "/") {
			if quit := r.command(trimmed); quit {
				return nil
			}
			continue
		}

		outcome := r.ctrl.Submit(ctx, input, r.tokens)
		r.log.Debug("PLAIN_SUBMIT_DONE", "outcome", outcome.String())
	}
}

// Close saves history and restores the terminal.
func (r *REPL) Close() error {
	if r.liner == nil {
		return nil
	}
	r.saveHistory()
	return r.liner.Close()
}

// cancelOnInterrupt cancels the running generation on each interrupt.
func (r *REPL) cancelOnInterrupt(ctx context.Context, interrupts <-chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-interrupts:
			r.ctrl.Touch()
			if r.ctrl.Cancel() {
				r.log.Info("PLAIN_INTERRUPT_CANCEL")
			}
		}
	}
}

// command handles a slash command and reports whether to quit.
func (r *REPL) command(input string) bool {
	fields := strings.Fields(input)
	switch strings.ToLower(fields[0]) {
	case "/quit", "/exit":
		return true

	case "/clear":
		r.ctrl.Clear()

	case "/tokens":
		if len(fields) < 2 {
			r.printer.Info("max tokens: %s", r.tokens)
			return false
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil || n <= 0 {
			r.printer.Warn("/tokens needs a positive number, got %q", fields[1])
			return false
		}
		r.tokens = strconv.Itoa(n)
		r.printer.Info("max tokens set to %d", n)

	case "/help":
		r.printer.Info("/clear  clear the conversation")
		r.printer.Info("/tokens N  set max new tokens (now %s)", r.tokens)
		r.printer.Info("/quit  exit")

	default:
		r.printer.Warn("unknown command %s, try /help", fields[0])
	}
	return false
}

func (r *REPL) loadHistory() {
	if r.opts.HistoryFile == "" {
		return
	}
	f, err := os.Open(r.opts.HistoryFile)
	if err != nil {
		return
	}
	defer f.Close()
	if _, err := r.liner.ReadHistory(f); err != nil {
		r.log.Debug("HISTORY_READ_FAILED", "path", r.opts.HistoryFile, "error", err)
	}
}

// saveHistory writes history with owner-only permissions.
func (r *REPL) saveHistory() {
	if r.opts.HistoryFile == "" {
		return
	}
	f, err := os.OpenFile(r.opts.HistoryFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		r.log.Debug("HISTORY_WRITE_FAILED", "path", r.opts.HistoryFile, "error", err)
		return
	}
	defer f.Close()
	if _, err := r.liner.WriteHistory(f); err != nil {
		r.log.Debug("HISTORY_WRITE_FAILED", "path", r.opts.HistoryFile, "error", err)
	}
}
