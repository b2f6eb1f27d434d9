// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package plain

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jeranaias/tinychat/internal/model"
	"github.com/jeranaias/tinychat/internal/session"
)

var titleCaser = cases.Title(language.English)

// Printer implements session.View on a plain output stream.
//
// User messages are not echoed since the prompt already shows them.
// Statuses are printed only while a generation runs, except errors, so
// late status resets never land on top of the prompt. Idle notices such as
// an unload are held until FlushNotices.
type Printer struct {
	mu  sync.Mutex
	out io.Writer

	busy       bool
	open       bool   // an assistant line is being streamed
	printed    string // text of the open line written so far
	lastStatus string
	notices    []string

	labels map[model.Role]*color.Color
	dim    *color.Color
	warn   *color.Color
	errc   *color.Color
}

var _ session.View = (*Printer)(nil)

// NewPrinter creates a Printer writing to out. noColor disables ANSI
// colors regardless of the terminal.
func NewPrinter(out io.Writer, noColor bool) *Printer {
	mk := func(attrs ...color.Attribute) *color.Color {
		c := color.New(attrs...)
		if noColor {
			c.DisableColor()
		}
		return c
	}
	return &Printer{
		out: out,
		labels: map[model.Role]*color.Color{
			model.RoleUser:      mk(color.FgCyan, color.Bold),
			model.RoleAssistant: mk(color.FgMagenta, color.Bold),
			model.RoleSystem:    mk(color.FgYellow, color.Bold),
		},
		dim:  mk(color.Faint),
		warn: mk(color.FgYellow),
		errc: mk(color.FgRed, color.Bold),
	}
}

// Label returns the colored role label, e.g. "Assistant: ".
func (p *Printer) Label(role model.Role) string {
	c, ok := p.labels[role]
	if !ok {
		c = p.labels[model.RoleSystem]
	}
	return c.Sprint(titleCaser.String(string(role)) + ": ")
}

// AppendMessage implements session.View.
func (p *Printer) AppendMessage(msg model.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closeLine()
	switch msg.Role {
	case model.RoleUser:
		return
	case model.RoleAssistant:
		fmt.Fprint(p.out, p.Label(msg.Role)+msg.Content)
		p.open = true
		p.printed = msg.Content
	default:
		fmt.Fprintln(p.out, p.Label(msg.Role)+msg.Content)
	}
}

// UpdateLastMessage implements session.View.
func (p *Printer) UpdateLastMessage(content string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeDelta(content)
}

// FinalizeLastMessage implements session.View.
func (p *Printer) FinalizeLastMessage(content string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeDelta(content)
	p.closeLine()
}

// RemoveLastMessage implements session.View.
func (p *Printer) RemoveLastMessage() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.open {
		p.closeLine()
		fmt.Fprintln(p.out, p.dim.Sprint("(response discarded)"))
	}
}

// ClearMessages implements session.View.
func (p *Printer) ClearMessages() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLine()
	fmt.Fprintln(p.out, p.dim.Sprint("--- conversation cleared ---"))
}

// SetStatus implements session.View.
func (p *Printer) SetStatus(status session.Status) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if status.Kind == session.StatusStreaming {
		return
	}
	if !p.busy && status.Kind != session.StatusError {
		if status.Kind == session.StatusInfo && status.Text != session.TextReadyCold {
			p.notices = append(p.notices, status.Text)
		}
		return
	}
	if status.Text == p.lastStatus {
		return
	}
	p.lastStatus = status.Text

	p.closeLine()
	switch status.Kind {
	case session.StatusError:
		fmt.Fprintln(p.out, p.errc.Sprint(status.Text))
	case session.StatusAdvisory:
		fmt.Fprintln(p.out, p.warn.Sprint(status.Text))
	default:
		fmt.Fprintln(p.out, p.dim.Sprint(status.Text))
	}
}

// SetBusy implements session.View.
func (p *Printer) SetBusy(busy bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.busy = busy
	if busy {
		p.lastStatus = ""
	} else {
		p.closeLine()
	}
}

// FlushNotices prints the notices held while idle. The REPL calls it
// before each prompt.
func (p *Printer) FlushNotices() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, n := range p.notices {
		p.closeLine()
		fmt.Fprintln(p.out, p.dim.Sprint(n))
	}
	p.notices = nil
}

// Info prints a dimmed informational line.
func (p *Printer) Info(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLine()
	fmt.Fprintln(p.out, p.dim.Sprintf(format, args...))
}

// Warn prints a warning line.
func (p *Printer) Warn(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLine()
	fmt.Fprintln(p.out, p.warn.Sprintf(format, args...))
}

// writeDelta prints what content adds to the open line. A rewrite that
// does not extend the printed text starts a fresh line.
func (p *Printer) writeDelta(content string) {
	if !p.open {
		return
	}
	if strings.HasPrefix(content, p.printed) {
		fmt.Fprint(p.out, content[len(p.printed):])
	} else {
		fmt.Fprint(p.out, "\n"+p.Label(model.RoleAssistant)+content)
	}
	p.printed = content
}

func (p *Printer) closeLine() {
	if p.open {
		fmt.Fprintln(p.out)
		p.open = false
		p.printed = ""
	}
}
