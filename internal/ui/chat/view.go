// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/tinychat/internal/model"
	"github.com/jeranaias/tinychat/internal/session"
	"github.com/jeranaias/tinychat/internal/util"
)

// =============================================================================
// VIEW
// =============================================================================

// View implements tea.Model.
func (m Model) View() string {
	if m.Disabled() {
		return m.theme.Diagnostic.Render(diagnostic(m.missing, m.width, m.height))
	}
	if !m.sized {
		return "Initializing..."
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.viewport.View(),
		m.renderStatus(),
		m.renderInput(),
		m.renderTokens(),
		m.renderFooter(),
	)
}

func (m Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render("tinychat")
	info := m.modelName
	if m.gpuLabel != "" {
		info += " | " + m.gpuLabel
	}
	info = util.TruncateWidth(info, m.width-lipgloss.Width(title)-4)
	return m.theme.Header.Width(m.width).Render(title + "  " + m.theme.HeaderModel.Render(info))
}

// renderStatus draws the status line: spinner while busy, progress bar
// while loading, then the text cut to one line.
func (m Model) renderStatus() string {
	var prefix string
	if m.busy {
		prefix = m.spinner.View() + " "
	}
	if m.status.Kind == session.StatusLoading && m.status.Progress >= 0 {
		prefix += m.progress.ViewAs(m.status.Progress) + " "
	}

	room := m.width - lipgloss.Width(prefix)
	text := util.SingleLine(m.status.Text)
	if m.status.Kind == session.StatusStreaming {
		// Keep the newest tokens visible.
		text = util.TailWidth(text, room)
	} else {
		text = util.TruncateWidth(text, room)
	}
	return prefix + m.statusStyle().Render(text)
}

func (m Model) statusStyle() lipgloss.Style {
	switch m.status.Kind {
	case session.StatusAdvisory:
		return m.theme.StatusAdvisory
	case session.StatusLoading:
		return m.theme.StatusLoading
	case session.StatusStreaming:
		return m.theme.StatusStreaming
	case session.StatusSuccess:
		return m.theme.StatusSuccess
	case session.StatusError:
		return m.theme.StatusError
	default:
		return m.theme.StatusInfo
	}
}

func (m Model) renderInput() string {
	style := m.theme.InputBlurred
	if m.focus == focusMessage && !m.unsupported {
		style = m.theme.InputFocused
	}
	return style.Width(m.width - 2).Render(m.input.View())
}

func (m Model) renderTokens() string {
	label := m.theme.TokensLabel.Render("max tokens: ")
	row := label + m.tokens.View()
	if m.busy {
		row += "  " + m.theme.ShortcutDesc.Render("generating, Esc to cancel")
	}
	return row
}

func (m Model) renderFooter() string {
	parts := make([]string, 0, len(m.keys.ShortHelp()))
	for _, b := range m.keys.ShortHelp() {
		h := b.Help()
		parts = append(parts, m.theme.ShortcutKey.Render(h.Key)+" "+m.theme.ShortcutDesc.Render(h.Desc))
	}
	return util.TruncateWidth(strings.Join(parts, "  "), m.width)
}

// =============================================================================
// CHAT LOG
// =============================================================================

// refreshLog re-renders the conversation into the viewport. The log
// follows new output only when it was already at the bottom.
func (m *Model) refreshLog() {
	atBottom := m.viewport.AtBottom()
	msgs := m.conversation.Messages()
	rendered := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		rendered = append(rendered, m.renderMessage(msg))
	}
	m.viewport.SetContent(strings.Join(rendered, "\n"))
	if atBottom {
		m.viewport.GotoBottom()
	}
}

func (m *Model) renderMessage(msg model.Message) string {
	bubbleWidth := m.width - 4
	if bubbleWidth < 10 {
		bubbleWidth = 10
	}

	var style lipgloss.Style
	switch msg.Role {
	case model.RoleUser:
		style = m.theme.UserBubble
	case model.RoleAssistant:
		style = m.theme.AssistantBubble
	default:
		style = m.theme.SystemBubble
	}

	body := msg.Content
	if msg.Role == model.RoleAssistant && !msg.Streaming {
		if md, ok := m.markdown.Render(msg.ID, msg.Content); ok {
			body = md
		}
	}
	if msg.Streaming {
		body += "_"
	}

	label := m.theme.RoleLabel.Render(msg.Role.DisplayName())
	return label + "\n" + style.Width(bubbleWidth).Render(body)
}
