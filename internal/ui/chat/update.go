// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/tinychat/internal/session"
)

// =============================================================================
// UPDATE
// =============================================================================

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.sized = true
		m.layout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		if m.ctrl != nil {
			m.ctrl.Touch()
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case AppendMessageMsg:
		m.conversation.Append(msg.Message)
		m.refreshLog()
		return m, nil

	case UpdateLastMessageMsg:
		m.conversation.UpdateLast(msg.Content)
		m.refreshLog()
		return m, nil

	case FinalizeLastMessageMsg:
		if last, ok := m.conversation.Last(); ok {
			m.markdown.Forget(last.ID)
		}
		m.conversation.FinalizeLast(msg.Content)
		m.refreshLog()
		return m, nil

	case RemoveLastMessageMsg:
		m.conversation.RemoveLast()
		m.refreshLog()
		return m, nil

	case ClearMessagesMsg:
		m.conversation.Clear()
		m.markdown.Reset()
		m.refreshLog()
		return m, nil

	case StatusMsg:
		m.status = msg.Status
		return m, nil

	case BusyMsg:
		return m.handleBusy(msg.Busy)

	case submitDoneMsg:
		m.submitting = false
		if msg.Outcome == session.OutcomeIgnored && m.input.Value() == "" {
			m.input.SetValue(msg.Text)
		}
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m.updateFocused(msg)
}

func (m Model) handleBusy(busy bool) (tea.Model, tea.Cmd) {
	wasBusy := m.busy
	m.busy = busy
	if busy && !wasBusy {
		return m, m.spinner.Tick
	}
	return m, nil
}

// handleKey processes keyboard input. Every key counts as interaction.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.ctrl != nil {
		m.ctrl.Touch()
	}

	if key.Matches(msg, m.keys.Quit) {
		if m.ctrl != nil {
			m.ctrl.Cancel()
		}
		return m, tea.Quit
	}

	// Every other control is disabled while elements are missing.
	if m.Disabled() {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.ctrl.Cancel()
		return m, nil

	case key.Matches(msg, m.keys.Clear):
		m.ctrl.Clear()
		return m, nil

	case key.Matches(msg, m.keys.Focus):
		return m.toggleFocus()

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		return m.handleSubmit()
	}

	return m.updateFocused(msg)
}

// handleSubmit starts a generation. The input is kept when the controller
// would ignore it (busy) or when submission is disabled.
func (m Model) handleSubmit() (tea.Model, tea.Cmd) {
	if m.unsupported {
		m.status = session.Status{
			Kind:     session.StatusError,
			Text:     "Submission disabled: environment unsupported",
			Progress: -1,
		}
		return m, nil
	}
	if m.busy || m.submitting {
		return m, nil
	}

	text := m.input.Value()
	tokens := m.tokens.Value()
	if strings.TrimSpace(text) != "" {
		m.input.Reset()
	}
	m.submitting = true

	ctrl, ctx := m.ctrl, m.ctx
	return m, func() tea.Msg {
		return submitDoneMsg{Outcome: ctrl.Submit(ctx, text, tokens), Text: text}
	}
}

func (m Model) toggleFocus() (tea.Model, tea.Cmd) {
	if m.focus == focusMessage {
		m.focus = focusTokens
		m.input.Blur()
		return m, m.tokens.Focus()
	}
	m.focus = focusMessage
	m.tokens.Blur()
	return m, m.input.Focus()
}

// updateFocused forwards msg to the focused input.
func (m Model) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.Disabled() {
		return m, nil
	}
	var cmd tea.Cmd
	if m.focus == focusTokens {
		m.tokens, cmd = m.tokens.Update(msg)
	} else {
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}
